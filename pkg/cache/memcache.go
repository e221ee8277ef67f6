package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"hunter-compare/pkg/logger"
	"hunter-compare/pkg/models"

	"github.com/bradfitz/gomemcache/memcache"
)

const keyPrefix = "hunter:result:"

// Memcache keeps results in memcached with an expiration of ttl.
type Memcache struct {
	client *memcache.Client
	ttl    time.Duration
	log    *logger.Logger
}

func NewMemcache(serverAddr string, ttl time.Duration) *Memcache {
	client := memcache.New(serverAddr)
	client.Timeout = 500 * time.Millisecond
	return &Memcache{client: client, ttl: ttl, log: logger.For("cache")}
}

// memcached reads expirations above 30 days as unix timestamps.
const maxRelativeExpiration = 30 * 24 * time.Hour

func expiration(ttl time.Duration) int32 {
	if ttl <= 0 {
		return 0
	}
	if ttl > maxRelativeExpiration {
		ttl = maxRelativeExpiration
	}
	return int32(ttl.Seconds())
}

func key(categoryID int64) string {
	return keyPrefix + strconv.FormatInt(categoryID, 10)
}

// Ping checks that memcached answers.
func (m *Memcache) Ping() error {
	_, err := m.client.Get(keyPrefix + "ping")
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return err
	}
	return nil
}

func (m *Memcache) Get(ctx context.Context, categoryID int64) (*models.MatchResult, bool) {
	item, err := m.client.Get(key(categoryID))
	if err != nil {
		if !errors.Is(err, memcache.ErrCacheMiss) {
			m.log.Warn().Err(err).Int64("category_id", categoryID).Msg("Memcache read failed")
		}
		return nil, false
	}

	var result models.MatchResult
	if err := json.Unmarshal(item.Value, &result); err != nil {
		m.log.Warn().Err(err).Int64("category_id", categoryID).Msg("Failed to unmarshal cached result")
		return nil, false
	}
	return &result, true
}

func (m *Memcache) Set(ctx context.Context, categoryID int64, result *models.MatchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		m.log.Warn().Err(err).Int64("category_id", categoryID).Msg("Failed to marshal result")
		return
	}
	err = m.client.Set(&memcache.Item{
		Key:        key(categoryID),
		Value:      data,
		Expiration: expiration(m.ttl),
	})
	if err != nil {
		m.log.Warn().Err(err).Int64("category_id", categoryID).Msg("Memcache write failed")
	}
}
