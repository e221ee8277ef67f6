// Package events carries scrape job lifecycle notifications.
package events

import (
	"context"
	"time"

	"hunter-compare/pkg/models"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// JobEvent is one transition of a scrape job.
type JobEvent struct {
	JobID      string            `json:"job_id"`
	CategoryID int64             `json:"category_id"`
	Category   string            `json:"category"`
	Status     Status            `json:"status"`
	Pairs      int               `json:"pairs,omitempty"`
	Stats      *models.SaveStats `json:"stats,omitempty"`
	Error      string            `json:"error,omitempty"`
	At         time.Time         `json:"at"`
}

// Terminal reports whether no further events follow for the job.
func (e JobEvent) Terminal() bool {
	return e.Status == StatusSucceeded || e.Status == StatusFailed
}

// Publisher delivers job events somewhere.
type Publisher interface {
	Publish(ctx context.Context, event JobEvent) error
	Close() error
}

type Nop struct{}

func (Nop) Publish(context.Context, JobEvent) error { return nil }
func (Nop) Close() error                            { return nil }
