// Package browsertest provides scripted sessions for crawler tests.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hunter-compare/pkg/browser"
)

// FakeSession serves canned HTML per URL. Successive HTML calls after one
// navigation walk through the configured snapshots, repeating the last one,
// which lets tests model content that grows while scrolling.
type FakeSession struct {
	Pages       map[string][]string
	NavigateErr map[string]error
	WaitErr     error
	// HTMLErrAfter fails every HTML call after this many successful ones (0 disables).
	HTMLErrAfter int
	HTMLErr      error

	mu      sync.Mutex
	current string
	reads   int
	total   int
	visited []string
	waits   []string
	scrolls int
	closed  bool
}

var _ browser.Session = (*FakeSession)(nil)

func (f *FakeSession) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visited = append(f.visited, url)
	if err := f.NavigateErr[url]; err != nil {
		return err
	}
	f.current = url
	f.reads = 0
	return nil
}

func (f *FakeSession) WaitReady(ctx context.Context, selector string, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waits = append(f.waits, selector)
	return f.WaitErr
}

func (f *FakeSession) ScrollToBottom(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrolls++
	return nil
}

func (f *FakeSession) HTML(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.HTMLErrAfter > 0 && f.total >= f.HTMLErrAfter {
		return "", f.HTMLErr
	}
	f.total++
	snapshots, ok := f.Pages[f.current]
	if !ok || len(snapshots) == 0 {
		return "<html><body></body></html>", nil
	}
	i := f.reads
	if i >= len(snapshots) {
		i = len(snapshots) - 1
	}
	f.reads++
	return snapshots[i], nil
}

func (f *FakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *FakeSession) Visited() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.visited...)
}

func (f *FakeSession) Scrolls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scrolls
}

func (f *FakeSession) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// FakeFactory hands out sessions built by New and records them.
type FakeFactory struct {
	New     func() *FakeSession
	OpenErr error

	mu       sync.Mutex
	sessions []*FakeSession
}

var _ browser.Factory = (*FakeFactory)(nil)

func (f *FakeFactory) Open(ctx context.Context) (browser.Session, error) {
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	if f.New == nil {
		return nil, fmt.Errorf("browsertest: no session constructor")
	}
	s := f.New()
	f.mu.Lock()
	f.sessions = append(f.sessions, s)
	f.mu.Unlock()
	return s, nil
}

func (f *FakeFactory) Sessions() []*FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeSession(nil), f.sessions...)
}
