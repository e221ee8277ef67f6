// Package browser provides the page sessions the store crawlers drive.
package browser

import (
	"context"
	"fmt"
	"time"
)

// Session is one browser tab owned by a single search invocation.
// Implementations are not safe for concurrent navigation.
type Session interface {
	// Navigate loads url and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error
	// WaitReady blocks until selector matches at least one element or timeout expires.
	WaitReady(ctx context.Context, selector string, timeout time.Duration) error
	// ScrollToBottom scrolls the window to the end of the document.
	ScrollToBottom(ctx context.Context) error
	// HTML returns the current rendered document.
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Factory opens sessions.
type Factory interface {
	Open(ctx context.Context) (Session, error)
}

// Options configure both session kinds.
type Options struct {
	Headless          bool
	UserAgent         string
	NavigationTimeout time.Duration
	// DebugDir receives a screenshot and the page HTML when a wait fails.
	// Chrome sessions only; empty disables it.
	DebugDir string
}

func (o Options) withDefaults() Options {
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = 60 * time.Second
	}
	if o.UserAgent == "" {
		o.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	return o
}

// NewFactory returns the factory for mode "chrome" or "static".
func NewFactory(mode string, opts Options) (Factory, error) {
	switch mode {
	case "chrome":
		return NewChromeFactory(opts), nil
	case "static":
		return NewStaticFactory(opts), nil
	default:
		return nil, fmt.Errorf("unknown browser mode %q", mode)
	}
}

// Sleep waits for d unless ctx ends first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
