package models

import "time"

// Category is the stored record for one search query.
type Category struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	LastScrapedAt *time.Time `json:"last_scraped_at,omitempty"`
	InProgress    bool       `json:"in_progress"`
	CreatedAt     time.Time  `json:"created_at"`
}

// CategoryFreshness is the staleness and lock view of a category.
type CategoryFreshness struct {
	LastScrapedAt *time.Time
	InProgress    bool
}

func (c *Category) Freshness() CategoryFreshness {
	return CategoryFreshness{LastScrapedAt: c.LastScrapedAt, InProgress: c.InProgress}
}

// StaleAt reports whether data scraped at LastScrapedAt is older than window at now.
// Never-scraped data is always stale.
func (f CategoryFreshness) StaleAt(now time.Time, window time.Duration) bool {
	if f.LastScrapedAt == nil {
		return true
	}
	return now.Sub(*f.LastScrapedAt) > window
}
