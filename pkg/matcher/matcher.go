// Package matcher pairs equivalent products across the two stores.
package matcher

import (
	"sort"

	"hunter-compare/pkg/logger"
	"hunter-compare/pkg/models"
	"hunter-compare/pkg/scrapers"
)

// DefaultThreshold is the minimum similarity for two items to be paired.
const DefaultThreshold = 75

// Match pairs items of a with items of b. Items of a are visited in order
// and each takes the best scoring unused item of b, the earliest one on
// ties, when that score reaches threshold. Pairing is greedy, so an early
// item of a may take a partner a later item would have scored higher with.
//
// Every input item ends up in exactly one pair or singles list. Pairs are
// ordered by descending similarity, keeping a's order among equal scores.
func Match(a, b []models.ScrapedItem, threshold int) models.MatchResult {
	log := logger.For("matcher")

	usedB := make([]bool, len(b))
	result := models.MatchResult{
		Pairs:    []models.MatchedPair{},
		SinglesA: []models.ScrapedItem{},
		SinglesB: []models.ScrapedItem{},
	}

	for _, itemA := range a {
		best, bestScore := -1, 0
		for j, itemB := range b {
			if usedB[j] {
				continue
			}
			score := TokenSetRatio(itemA.Name, itemB.Name)
			if score > bestScore && score >= threshold {
				best, bestScore = j, score
			}
		}

		if best < 0 {
			result.SinglesA = append(result.SinglesA, itemA)
			continue
		}
		usedB[best] = true
		result.Pairs = append(result.Pairs, models.MatchedPair{
			Similarity: bestScore,
			A:          itemA,
			B:          b[best],
		})
		log.Debug().
			Str("a", scrapers.Truncate(itemA.Name, 40)).
			Str("b", scrapers.Truncate(b[best].Name, 40)).
			Int("similarity", bestScore).
			Msg("Pair found")
	}

	for j, itemB := range b {
		if !usedB[j] {
			result.SinglesB = append(result.SinglesB, itemB)
		}
	}

	sort.SliceStable(result.Pairs, func(i, j int) bool {
		return result.Pairs[i].Similarity > result.Pairs[j].Similarity
	})

	log.Info().
		Int("pairs", len(result.Pairs)).
		Int("singles_a", len(result.SinglesA)).
		Int("singles_b", len(result.SinglesB)).
		Msg("Matching finished")
	return result
}
