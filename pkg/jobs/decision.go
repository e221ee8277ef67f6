package jobs

import (
	"strings"
	"time"
	"unicode/utf8"

	"hunter-compare/pkg/models"
)

// Decision is the outcome of a search request.
type Decision string

const (
	// DecisionTooShort: the query needs more than MinQueryLength runes.
	DecisionTooShort Decision = "too_short"
	// DecisionScrape: a scrape job was queued for the category.
	DecisionScrape Decision = "scrape"
	// DecisionInProgress: another job is already scraping the category.
	DecisionInProgress Decision = "in_progress"
	// DecisionFresh: stored data is recent enough.
	DecisionFresh Decision = "fresh"
)

const MinQueryLength = 3

// NormalizeQuery trims the query and folds its case, giving the category name.
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// QueryAllowed reports whether query is long enough to search for.
func QueryAllowed(query string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(query)) >= MinQueryLength
}

// Decide picks what to do for a category. created is true when the request
// just inserted it.
func Decide(f models.CategoryFreshness, created bool, now time.Time, staleAfter time.Duration) Decision {
	switch {
	case created:
		return DecisionScrape
	case f.InProgress:
		return DecisionInProgress
	case f.StaleAt(now, staleAfter):
		return DecisionScrape
	default:
		return DecisionFresh
	}
}
