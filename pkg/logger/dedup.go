package logger

import (
	"fmt"
	"sync"
	"time"
)

// Deduplicator collapses identical consecutive debug messages into one line
// with a repeat count. Card-level extraction misses repeat a lot.
type Deduplicator struct {
	mu         sync.Mutex
	log        *Logger
	lastMsg    string
	count      int
	flushDelay time.Duration
	timer      *time.Timer
}

func NewDeduplicator(log *Logger, flushDelay time.Duration) *Deduplicator {
	return &Deduplicator{log: log, flushDelay: flushDelay}
}

func (d *Deduplicator) Printf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	d.mu.Lock()
	defer d.mu.Unlock()

	if msg == d.lastMsg {
		d.count++
	} else {
		d.flushLocked()
		d.lastMsg = msg
		d.count = 1
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.flushDelay, d.Flush)
}

// Flush writes any pending message immediately.
func (d *Deduplicator) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushLocked()
}

func (d *Deduplicator) flushLocked() {
	if d.count == 0 {
		return
	}
	l := d.log
	if l == nil {
		l = Default
	}
	if d.count == 1 {
		l.Debug().Msg(d.lastMsg)
	} else {
		l.Debug().Int("repeats", d.count).Msg(d.lastMsg)
	}
	d.count = 0
	d.lastMsg = ""
}
