// Package cache keeps the last match result of each category for fast reads.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"hunter-compare/pkg/logger"
	"hunter-compare/pkg/models"
)

// ResultCache stores serialized match results per category. Failures are
// logged and reported as misses; a cache never breaks a search.
type ResultCache interface {
	Get(ctx context.Context, categoryID int64) (*models.MatchResult, bool)
	Set(ctx context.Context, categoryID int64, result *models.MatchResult)
}

// SnapshotStore is the database table backing Snapshots.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context, categoryID int64) ([]byte, time.Time, error)
	SaveSnapshot(ctx context.Context, categoryID int64, data []byte, scrapedAt time.Time) error
}

// Snapshots caches results in the database, expiring them after ttl.
type Snapshots struct {
	store SnapshotStore
	ttl   time.Duration
	now   func() time.Time
	log   *logger.Logger
}

func NewSnapshots(store SnapshotStore, ttl time.Duration) *Snapshots {
	return &Snapshots{store: store, ttl: ttl, now: time.Now, log: logger.For("cache")}
}

func (c *Snapshots) Get(ctx context.Context, categoryID int64) (*models.MatchResult, bool) {
	data, scrapedAt, err := c.store.LoadSnapshot(ctx, categoryID)
	if err != nil {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(scrapedAt) > c.ttl {
		return nil, false
	}

	var result models.MatchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.log.Warn().Err(err).Int64("category_id", categoryID).Msg("Failed to unmarshal cached result")
		return nil, false
	}
	return &result, true
}

func (c *Snapshots) Set(ctx context.Context, categoryID int64, result *models.MatchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.log.Warn().Err(err).Int64("category_id", categoryID).Msg("Failed to marshal result")
		return
	}
	if err := c.store.SaveSnapshot(ctx, categoryID, data, c.now()); err != nil {
		c.log.Warn().Err(err).Int64("category_id", categoryID).Msg("Failed to store result")
	}
}

// Tiered reads through caches in order and writes to all of them. A hit in
// a later tier is copied into the earlier ones.
type Tiered []ResultCache

func (t Tiered) Get(ctx context.Context, categoryID int64) (*models.MatchResult, bool) {
	for i, c := range t {
		if result, ok := c.Get(ctx, categoryID); ok {
			for _, earlier := range t[:i] {
				earlier.Set(ctx, categoryID, result)
			}
			return result, true
		}
	}
	return nil, false
}

func (t Tiered) Set(ctx context.Context, categoryID int64, result *models.MatchResult) {
	for _, c := range t {
		c.Set(ctx, categoryID, result)
	}
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, int64) (*models.MatchResult, bool) { return nil, false }
func (Nop) Set(context.Context, int64, *models.MatchResult)        {}
