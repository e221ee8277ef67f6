package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// MatchedPair links a Pyaterochka item to its Magnit counterpart.
type MatchedPair struct {
	Similarity int
	A          ScrapedItem
	B          ScrapedItem
}

// PriceDelta is the absolute price difference between both sides.
func (p MatchedPair) PriceDelta() decimal.Decimal {
	return p.A.Price.Sub(p.B.Price).Abs()
}

// PriceDeltaPercent is the delta relative to the cheaper price, rounded to
// two places. Zero when the cheaper price is not positive.
func (p MatchedPair) PriceDeltaPercent() decimal.Decimal {
	base := decimal.Min(p.A.Price, p.B.Price)
	if !base.IsPositive() {
		return decimal.Zero
	}
	return p.PriceDelta().Div(base).Mul(hundred).Round(2)
}

// Cheaper reports which source sells the pair for less.
func (p MatchedPair) Cheaper() Source {
	switch p.A.Price.Cmp(p.B.Price) {
	case -1:
		return p.A.Source
	case 1:
		return p.B.Source
	default:
		return SourceEqual
	}
}

type pairJSON struct {
	Similarity        int         `json:"similarity"`
	A                 ScrapedItem `json:"a"`
	B                 ScrapedItem `json:"b"`
	PriceDelta        string      `json:"price_delta"`
	PriceDeltaPercent string      `json:"price_delta_percent"`
	Cheaper           Source      `json:"cheaper"`
}

func (p MatchedPair) MarshalJSON() ([]byte, error) {
	return json.Marshal(pairJSON{
		Similarity:        p.Similarity,
		A:                 p.A,
		B:                 p.B,
		PriceDelta:        FormatPrice(p.PriceDelta()),
		PriceDeltaPercent: FormatPrice(p.PriceDeltaPercent()),
		Cheaper:           p.Cheaper(),
	})
}

func (p *MatchedPair) UnmarshalJSON(data []byte) error {
	var raw pairJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = MatchedPair{Similarity: raw.Similarity, A: raw.A, B: raw.B}
	return nil
}

// MatchResult is the outcome of one cross-source match run.
// Every input item is either in exactly one pair or in one of the singles lists.
type MatchResult struct {
	Pairs    []MatchedPair `json:"pairs"`
	SinglesA []ScrapedItem `json:"singles_a"`
	SinglesB []ScrapedItem `json:"singles_b"`
}
