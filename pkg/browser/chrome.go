package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	apperrors "hunter-compare/pkg/errors"
	"hunter-compare/pkg/logger"

	"github.com/chromedp/chromedp"
)

// ChromeFactory starts one headless Chrome per session.
type ChromeFactory struct {
	opts Options
}

func NewChromeFactory(opts Options) *ChromeFactory {
	return &ChromeFactory{opts: opts.withDefaults()}
}

// Open launches the browser eagerly so start-up failures surface here and
// not on the first navigation.
func (f *ChromeFactory) Open(ctx context.Context) (Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.opts.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.UserAgent(f.opts.UserAgent),
		chromedp.WindowSize(1920, 1080),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, apperrors.NewNetwork("chrome", "failed to start browser", err)
	}

	logger.For("browser").Debug().Bool("headless", f.opts.Headless).Msg("Chrome session started")

	return &ChromeSession{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		opts:        f.opts,
	}, nil
}

// ChromeSession drives a single chromedp tab.
type ChromeSession struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	opts        Options
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (s *ChromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (s *ChromeSession) Navigate(ctx context.Context, url string) error {
	logger.For("browser").Debug().Str("url", url).Msg("Navigating")
	err := s.run(ctx, s.opts.NavigationTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady(`body`, chromedp.ByQuery),
	)
	if err != nil {
		return apperrors.Classify("chrome", "navigation to "+url+" failed", err)
	}
	return nil
}

func (s *ChromeSession) WaitReady(ctx context.Context, selector string, timeout time.Duration) error {
	err := s.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
	if err != nil {
		s.dumpDebug(selector)
		return apperrors.Classify("chrome", fmt.Sprintf("waiting for %q failed", selector), err)
	}
	return nil
}

func (s *ChromeSession) ScrollToBottom(ctx context.Context) error {
	var height int64
	err := s.run(ctx, s.opts.NavigationTimeout, chromedp.Evaluate(
		`window.scrollTo(0, document.body.scrollHeight); document.body.scrollHeight`, &height))
	if err != nil {
		return apperrors.Classify("chrome", "scroll failed", err)
	}
	return nil
}

func (s *ChromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, s.opts.NavigationTimeout, chromedp.Evaluate(`document.documentElement.outerHTML`, &html))
	if err != nil {
		return "", apperrors.Classify("chrome", "reading page HTML failed", err)
	}
	return html, nil
}

func (s *ChromeSession) Close() error {
	s.cancelTab()
	s.cancelAlloc()
	logger.For("browser").Debug().Msg("Chrome session closed")
	return nil
}

// dumpDebug saves a screenshot and the HTML of the current page when DebugDir is set.
func (s *ChromeSession) dumpDebug(selector string) {
	if s.opts.DebugDir == "" {
		return
	}
	log := logger.For("browser")
	debugCtx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()

	stamp := time.Now().UTC().Format("20060102T150405")

	var buf []byte
	if err := chromedp.Run(debugCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		log.Warn().Err(err).Msg("Failed to capture screenshot")
	} else {
		path := filepath.Join(s.opts.DebugDir, "debug_"+stamp+".png")
		if err := os.WriteFile(path, buf, 0644); err != nil {
			log.Warn().Err(err).Msg("Failed to write screenshot")
		}
	}

	var html string
	if err := chromedp.Run(debugCtx, chromedp.Evaluate(`document.documentElement.outerHTML`, &html)); err != nil {
		log.Warn().Err(err).Msg("Failed to capture HTML")
		return
	}
	path := filepath.Join(s.opts.DebugDir, "debug_"+stamp+".html")
	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		log.Warn().Err(err).Msg("Failed to write HTML")
		return
	}
	log.Info().Str("selector", selector).Str("dir", s.opts.DebugDir).Msg("Saved debug snapshot")
}
