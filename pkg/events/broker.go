package events

import (
	"context"
	"sync"

	"hunter-compare/pkg/logger"
)

// Broker fans job events out to in-process subscribers. Slow subscribers
// miss events instead of blocking the publisher.
type Broker struct {
	mu      sync.Mutex
	subs    map[chan JobEvent]struct{}
	buffer  int
	closed  bool
	dropped int
	log     *logger.Logger
}

func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 16
	}
	return &Broker{
		subs:   make(map[chan JobEvent]struct{}),
		buffer: buffer,
		log:    logger.For("events"),
	}
}

// Subscribe returns a channel of future events and a function that ends
// the subscription and closes the channel.
func (b *Broker) Subscribe() (<-chan JobEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan JobEvent, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
		})
	}
}

func (b *Broker) Publish(ctx context.Context, event JobEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	for ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.dropped++
			b.log.Warn().Str("job_id", event.JobID).Str("status", string(event.Status)).Msg("Subscriber full, event dropped")
		}
	}
	return nil
}

// Dropped returns how many deliveries were skipped for full subscribers.
func (b *Broker) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close ends every subscription.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
		delete(b.subs, ch)
	}
	return nil
}
