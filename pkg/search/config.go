package search

import (
	"hunter-compare/pkg/browser"
	"hunter-compare/pkg/config"
	"hunter-compare/pkg/scrapers/magnit"
	"hunter-compare/pkg/scrapers/pyaterochka"
)

// FromConfig builds the production orchestrator: Pyaterochka first,
// Magnit second, sessions from the configured browser mode.
func FromConfig(cfg *config.Config) (*Orchestrator, error) {
	factory, err := browser.NewFactory(cfg.BrowserMode, browser.Options{
		Headless:          cfg.BrowserHeadless,
		UserAgent:         cfg.BrowserUserAgent,
		NavigationTimeout: cfg.NavigationTimeout,
		DebugDir:          cfg.BrowserDebugDir,
	})
	if err != nil {
		return nil, err
	}

	pOpts := pyaterochka.DefaultOptions()
	pOpts.BaseURL = cfg.PyaterochkaURL
	pOpts.InitialWait = cfg.InitialWait
	pOpts.CardTimeout = cfg.CardWaitTimeout
	pOpts.ScrollWait = cfg.ScrollWait
	pOpts.MaxScrollAttempts = cfg.MaxScrollAttempts

	mOpts := magnit.Options{
		BaseURL:      cfg.MagnitURL,
		PageWait:     cfg.PageWait,
		PageInterval: cfg.PageInterval,
		MaxPages:     cfg.MaxPages,
	}

	return NewOrchestrator(factory,
		pyaterochka.NewScraper(pOpts),
		magnit.NewScraper(mOpts),
		WithThreshold(cfg.MatchThreshold),
		WithParallel(cfg.ParallelSessions),
	), nil
}
