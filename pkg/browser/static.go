package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "hunter-compare/pkg/errors"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// StaticFactory opens sessions that fetch server-rendered HTML with colly.
// No JavaScript runs, so scrolling is a no-op and waits only check the
// fetched document.
type StaticFactory struct {
	opts Options
}

func NewStaticFactory(opts Options) *StaticFactory {
	return &StaticFactory{opts: opts.withDefaults()}
}

func (f *StaticFactory) Open(ctx context.Context) (Session, error) {
	c := colly.NewCollector(
		colly.UserAgent(f.opts.UserAgent),
		colly.AllowURLRevisit(),
	)
	if f.opts.NavigationTimeout > 0 {
		c.SetRequestTimeout(f.opts.NavigationTimeout)
	}

	s := &StaticSession{collector: c}
	c.OnResponse(func(r *colly.Response) {
		s.mu.Lock()
		s.body = r.Body
		s.mu.Unlock()
	})
	return s, nil
}

// StaticSession keeps the last fetched document.
type StaticSession struct {
	collector *colly.Collector

	mu   sync.Mutex
	body []byte
}

func (s *StaticSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Classify("static", "navigation cancelled", err)
	}
	s.mu.Lock()
	s.body = nil
	s.mu.Unlock()

	if err := s.collector.Visit(url); err != nil {
		return apperrors.Classify("static", "navigation to "+url+" failed", err)
	}
	return nil
}

func (s *StaticSession) WaitReady(ctx context.Context, selector string, timeout time.Duration) error {
	html, err := s.HTML(ctx)
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return apperrors.NewParsing("static", "invalid HTML", err)
	}
	if doc.Find(selector).Length() == 0 {
		return apperrors.NewTimeout("static", fmt.Sprintf("no element matches %q", selector), context.DeadlineExceeded)
	}
	return nil
}

func (s *StaticSession) ScrollToBottom(ctx context.Context) error {
	return nil
}

func (s *StaticSession) HTML(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.body == nil {
		return "", apperrors.NewNetwork("static", "no page loaded", nil)
	}
	return string(s.body), nil
}

func (s *StaticSession) Close() error {
	return nil
}
