package events

import (
	"context"
	"encoding/json"

	apperrors "hunter-compare/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher appends job events to a Redis stream capped at maxLen
// entries (approximately; zero means uncapped).
type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisPublisher(addr string, db int, stream string, maxLen int64) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	return &RedisPublisher{client: client, stream: stream, maxLen: maxLen}
}

// Ping checks the connection.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *RedisPublisher) Publish(ctx context.Context, event JobEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"job_id": event.JobID,
			"status": string(event.Status),
			"event":  string(payload),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return apperrors.Classify("redis", "publish job event", err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
