// Package search runs both store crawlers for a query and matches the results.
package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hunter-compare/pkg/browser"
	"hunter-compare/pkg/logger"
	"hunter-compare/pkg/matcher"
	"hunter-compare/pkg/models"
	"hunter-compare/pkg/scrapers"
)

// Orchestrator owns the browser sessions of one search at a time.
type Orchestrator struct {
	factory   browser.Factory
	a, b      scrapers.Scraper
	threshold int
	// Parallel crawls both stores at once, each in its own session.
	parallel bool
	log      *logger.Logger
}

type Option func(*Orchestrator)

func WithThreshold(threshold int) Option {
	return func(o *Orchestrator) { o.threshold = threshold }
}

func WithParallel(parallel bool) Option {
	return func(o *Orchestrator) { o.parallel = parallel }
}

// NewOrchestrator crawls a first and b second. Items of a drive the matching.
func NewOrchestrator(factory browser.Factory, a, b scrapers.Scraper, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		factory:   factory,
		a:         a,
		b:         b,
		threshold: matcher.DefaultThreshold,
		log:       logger.For("search"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Search crawls both stores for query and matches their items. Crawl
// failures only shrink the result; failing to open a session is an error.
func (o *Orchestrator) Search(ctx context.Context, query string) (*models.MatchResult, error) {
	log := o.log.WithStr("query", query)
	start := time.Now()

	var (
		itemsA, itemsB []models.ScrapedItem
		err            error
	)
	if o.parallel {
		itemsA, itemsB, err = o.crawlParallel(ctx, query)
	} else {
		itemsA, itemsB, err = o.crawlSequential(ctx, query)
	}
	if err != nil {
		return nil, err
	}

	result := matcher.Match(itemsA, itemsB, o.threshold)
	log.Info().
		Int(string(o.a.Source()), len(itemsA)).
		Int(string(o.b.Source()), len(itemsB)).
		Int("pairs", len(result.Pairs)).
		Dur("elapsed", time.Since(start)).
		Msg("Search finished")
	return &result, nil
}

func (o *Orchestrator) crawlSequential(ctx context.Context, query string) ([]models.ScrapedItem, []models.ScrapedItem, error) {
	sess, err := o.factory.Open(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("opening browser session: %w", err)
	}
	defer o.close(sess)

	itemsA := o.a.Scrape(ctx, sess, query)
	itemsB := o.b.Scrape(ctx, sess, query)
	return itemsA, itemsB, nil
}

func (o *Orchestrator) crawlParallel(ctx context.Context, query string) ([]models.ScrapedItem, []models.ScrapedItem, error) {
	sessA, err := o.factory.Open(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("opening browser session: %w", err)
	}
	defer o.close(sessA)
	sessB, err := o.factory.Open(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("opening second browser session: %w", err)
	}
	defer o.close(sessB)

	var (
		wg             sync.WaitGroup
		itemsA, itemsB []models.ScrapedItem
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		itemsA = o.a.Scrape(ctx, sessA, query)
	}()
	go func() {
		defer wg.Done()
		itemsB = o.b.Scrape(ctx, sessB, query)
	}()
	wg.Wait()
	return itemsA, itemsB, nil
}

func (o *Orchestrator) close(sess browser.Session) {
	if err := sess.Close(); err != nil {
		o.log.Warn().Err(err).Msg("Closing browser session failed")
	}
}
