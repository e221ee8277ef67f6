// Package jobs decides when a category needs scraping and runs the scrape
// jobs on a worker pool.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"hunter-compare/pkg/cache"
	"hunter-compare/pkg/events"
	"hunter-compare/pkg/logger"
	"hunter-compare/pkg/models"

	"github.com/google/uuid"
)

var (
	ErrQueueFull = errors.New("scrape queue is full")
	ErrStopped   = errors.New("scheduler stopped")
)

// Store is the part of the persistence adapter jobs need.
type Store interface {
	GetOrCreateCategory(ctx context.Context, name string) (*models.Category, bool, error)
	ClaimCategory(ctx context.Context, id int64) (bool, error)
	SetCategoryStatus(ctx context.Context, id int64, inProgress bool, lastScrapedAt *time.Time) error
	SaveResult(ctx context.Context, categoryID int64, result *models.MatchResult) (models.SaveStats, error)
}

// Searcher runs one cross-store search.
type Searcher interface {
	Search(ctx context.Context, query string) (*models.MatchResult, error)
}

type Options struct {
	Workers    int
	QueueSize  int
	StaleAfter time.Duration
	// ReleaseTimeout bounds the status reset after a failed job.
	ReleaseTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 16
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 24 * time.Hour
	}
	if o.ReleaseTimeout <= 0 {
		o.ReleaseTimeout = 10 * time.Second
	}
	return o
}

// Job is one queued scrape of a category.
type Job struct {
	ID         string
	CategoryID int64
	Category   string
	Query      string
	EnqueuedAt time.Time
}

// Scheduler owns the scrape queue. The category in_progress flag, claimed
// atomically in the store, is the only lock between jobs.
type Scheduler struct {
	store     Store
	searcher  Searcher
	cache     cache.ResultCache
	publisher events.Publisher
	broker    *events.Broker
	opts      Options
	log       *logger.Logger
	now       func() time.Time

	queue   chan Job
	mu      sync.RWMutex
	started bool
	stopped bool
	wg      sync.WaitGroup
}

type Option func(*Scheduler)

// WithCache stores every successful result in c.
func WithCache(c cache.ResultCache) Option {
	return func(s *Scheduler) { s.cache = c }
}

// WithPublisher also sends job events to p.
func WithPublisher(p events.Publisher) Option {
	return func(s *Scheduler) { s.publisher = p }
}

func NewScheduler(store Store, searcher Searcher, opts Options, options ...Option) *Scheduler {
	opts = opts.withDefaults()
	s := &Scheduler{
		store:     store,
		searcher:  searcher,
		cache:     cache.Nop{},
		publisher: events.Nop{},
		broker:    events.NewBroker(opts.QueueSize * 4),
		opts:      opts,
		log:       logger.For("jobs"),
		now:       func() time.Time { return time.Now().UTC() },
		queue:     make(chan Job, opts.QueueSize),
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Subscribe streams job events until the returned cancel func is called or
// the scheduler stops.
func (s *Scheduler) Subscribe() (<-chan events.JobEvent, func()) {
	return s.broker.Subscribe()
}

// Request evaluates a search query. For DecisionScrape the category has
// been claimed and a job queued; the returned category reflects that.
func (s *Scheduler) Request(ctx context.Context, query string) (Decision, *models.Category, error) {
	if !QueryAllowed(query) {
		return DecisionTooShort, nil, nil
	}
	name := NormalizeQuery(query)

	category, created, err := s.store.GetOrCreateCategory(ctx, name)
	if err != nil {
		return "", nil, fmt.Errorf("loading category %q: %w", name, err)
	}

	decision := Decide(category.Freshness(), created, s.now(), s.opts.StaleAfter)
	log := s.log.WithStr("category", name)
	log.Debug().Str("decision", string(decision)).Bool("created", created).Msg("Search requested")
	if decision != DecisionScrape {
		return decision, category, nil
	}

	claimed, err := s.store.ClaimCategory(ctx, category.ID)
	if err != nil {
		return "", category, fmt.Errorf("claiming category %q: %w", name, err)
	}
	if !claimed {
		category.InProgress = true
		return DecisionInProgress, category, nil
	}
	category.InProgress = true

	job := Job{
		ID:         uuid.NewString(),
		CategoryID: category.ID,
		Category:   name,
		Query:      name,
		EnqueuedAt: s.now(),
	}
	s.publish(ctx, job, events.StatusQueued, nil)
	if err := s.enqueue(job); err != nil {
		s.release(ctx, job, log)
		category.InProgress = false
		log.Warn().Err(err).Str("job_id", job.ID).Msg("Scrape job rejected")
		s.publish(ctx, job, events.StatusFailed, func(e *events.JobEvent) { e.Error = err.Error() })
		return "", category, err
	}

	log.Info().Str("job_id", job.ID).Msg("Scrape job queued")
	return DecisionScrape, category, nil
}

func (s *Scheduler) enqueue(job Job) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return ErrStopped
	}
	select {
	case s.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the workers. Jobs run detached from ctx cancellation;
// a started job always finishes.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true

	ctx = context.WithoutCancel(ctx)
	for i := 0; i < s.opts.Workers; i++ {
		s.wg.Add(1)
		go func(worker int) {
			defer s.wg.Done()
			for job := range s.queue {
				s.run(ctx, job, s.log.WithField("worker", worker))
			}
		}(i)
	}
	s.log.Info().Int("workers", s.opts.Workers).Int("queue", s.opts.QueueSize).Msg("Scheduler started")
}

// Stop refuses new jobs, waits for queued ones to finish and ends all
// subscriptions. Jobs still queued when no workers were started are
// released.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.queue)
	started := s.started
	s.mu.Unlock()

	if !started {
		for job := range s.queue {
			s.release(context.Background(), job, s.log)
			s.publish(context.Background(), job, events.StatusFailed, func(e *events.JobEvent) { e.Error = ErrStopped.Error() })
		}
	}
	s.wg.Wait()
	s.broker.Close()
	s.log.Info().Msg("Scheduler stopped")
}

// run executes one job. Whatever happens, including a panic, the category
// leaves in_progress; last_scraped_at only moves on success.
func (s *Scheduler) run(ctx context.Context, job Job, log *logger.Logger) {
	log = log.WithStr("job_id", job.ID).WithStr("category", job.Category)
	start := time.Now()
	var (
		jobErr    error
		succeeded bool
	)
	defer func() {
		if r := recover(); r != nil {
			jobErr = fmt.Errorf("job panicked: %v", r)
			log.Error().Str("stack", string(debug.Stack())).Msg("Scrape job panicked")
		}
		if succeeded {
			return
		}
		s.release(ctx, job, log)
		log.Error().Err(jobErr).Dur("elapsed", time.Since(start)).Msg("Scrape job failed")
		s.publish(ctx, job, events.StatusFailed, func(e *events.JobEvent) {
			if jobErr != nil {
				e.Error = jobErr.Error()
			}
		})
	}()

	log.Info().Msg("Scrape job started")
	s.publish(ctx, job, events.StatusRunning, nil)

	result, err := s.searcher.Search(ctx, job.Query)
	if err != nil {
		jobErr = fmt.Errorf("search: %w", err)
		return
	}
	stats, err := s.store.SaveResult(ctx, job.CategoryID, result)
	if err != nil {
		jobErr = fmt.Errorf("saving results: %w", err)
		return
	}
	s.cache.Set(ctx, job.CategoryID, result)

	finished := s.now()
	if err := s.store.SetCategoryStatus(ctx, job.CategoryID, false, &finished); err != nil {
		jobErr = fmt.Errorf("marking category scraped: %w", err)
		return
	}
	succeeded = true

	log.Info().
		Int("pairs", len(result.Pairs)).
		Int("created", stats.Created).
		Int("price_changed", stats.PriceChanged).
		Int("failed", stats.Failed).
		Dur("elapsed", time.Since(start)).
		Msg("Scrape job finished")
	s.publish(ctx, job, events.StatusSucceeded, func(e *events.JobEvent) {
		e.Pairs = len(result.Pairs)
		e.Stats = &stats
	})
}

// release clears in_progress without touching last_scraped_at.
func (s *Scheduler) release(ctx context.Context, job Job, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ReleaseTimeout)
	defer cancel()
	if err := s.store.SetCategoryStatus(ctx, job.CategoryID, false, nil); err != nil {
		log.Error().Err(err).Int64("category_id", job.CategoryID).Msg("Releasing category failed")
	}
}

func (s *Scheduler) publish(ctx context.Context, job Job, status events.Status, fill func(*events.JobEvent)) {
	event := events.JobEvent{
		JobID:      job.ID,
		CategoryID: job.CategoryID,
		Category:   job.Category,
		Status:     status,
		At:         s.now(),
	}
	if fill != nil {
		fill(&event)
	}
	s.broker.Publish(ctx, event)
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("job_id", job.ID).Msg("Publishing job event failed")
	}
}
