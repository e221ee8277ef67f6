package storage

import (
	"context"
	"fmt"

	"hunter-compare/pkg/models"

	"github.com/shopspring/decimal"
)

type saveEntry struct {
	nameA, nameB   string
	priceA, priceB *decimal.Decimal
}

// entries flattens a result into one entry per product row. Repeated
// (nameA, nameB) keys collapse into the first entry, keeping the lowest
// price seen on each side, so a result always saves the same prices.
func entries(result *models.MatchResult) []saveEntry {
	out := make([]saveEntry, 0, len(result.Pairs)+len(result.SinglesA)+len(result.SinglesB))
	index := make(map[[2]string]int)
	add := func(e saveEntry) {
		k := [2]string{e.nameA, e.nameB}
		i, ok := index[k]
		if !ok {
			index[k] = len(out)
			out = append(out, e)
			return
		}
		out[i].priceA = lowest(out[i].priceA, e.priceA)
		out[i].priceB = lowest(out[i].priceB, e.priceB)
	}

	for _, p := range result.Pairs {
		a, b := p.A.Price, p.B.Price
		add(saveEntry{nameA: p.A.Name, nameB: p.B.Name, priceA: &a, priceB: &b})
	}
	for _, it := range result.SinglesA {
		price := it.Price
		add(saveEntry{nameA: it.Name, priceA: &price})
	}
	for _, it := range result.SinglesB {
		price := it.Price
		add(saveEntry{nameB: it.Name, priceB: &price})
	}
	return out
}

func lowest(a, b *decimal.Decimal) *decimal.Decimal {
	if a == nil || (b != nil && b.LessThan(*a)) {
		return b
	}
	return a
}

// SaveResult reconciles a match result with the stored products of a
// category. A failing item is logged and counted; the rest are still
// saved. The error is only set when the context ends or every item failed.
func (s *Store) SaveResult(ctx context.Context, categoryID int64, result *models.MatchResult) (models.SaveStats, error) {
	var stats models.SaveStats
	if result == nil {
		return stats, nil
	}

	all := entries(result)
	var lastErr error
	for _, e := range all {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		product, created, err := s.GetOrCreateProduct(ctx, categoryID, e.nameA, e.nameB)
		if err != nil {
			stats.Failed++
			lastErr = err
			s.log.Error().Err(err).Str("name_a", e.nameA).Str("name_b", e.nameB).Msg("Saving product failed")
			continue
		}
		changed, err := s.UpdateProductPrices(ctx, product, e.priceA, e.priceB)
		if err != nil {
			stats.Failed++
			lastErr = err
			s.log.Error().Err(err).Int64("product_id", product.ID).Msg("Saving prices failed")
			continue
		}

		switch {
		case created:
			stats.Created++
		case changed:
			stats.PriceChanged++
		default:
			stats.Unchanged++
		}
	}

	s.log.Info().
		Int64("category_id", categoryID).
		Int("created", stats.Created).
		Int("price_changed", stats.PriceChanged).
		Int("unchanged", stats.Unchanged).
		Int("failed", stats.Failed).
		Msg("Results saved")

	if len(all) > 0 && stats.Failed == len(all) {
		return stats, fmt.Errorf("saving %d items failed: %w", stats.Failed, lastErr)
	}
	return stats, nil
}
