package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a stored cross-store record. A matched pair fills both sides,
// a single fills only the side it was seen on.
type Product struct {
	ID         int64               `json:"id"`
	CategoryID int64               `json:"category_id"`
	NameA      string              `json:"name_a,omitempty"`
	NameB      string              `json:"name_b,omitempty"`
	PriceA     decimal.NullDecimal `json:"-"`
	PriceB     decimal.NullDecimal `json:"-"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

type productJSON struct {
	ID         int64     `json:"id"`
	CategoryID int64     `json:"category_id"`
	NameA      string    `json:"name_a,omitempty"`
	NameB      string    `json:"name_b,omitempty"`
	PriceA     *string   `json:"price_a,omitempty"`
	PriceB     *string   `json:"price_b,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (p Product) MarshalJSON() ([]byte, error) {
	return marshal(productJSON{
		ID:         p.ID,
		CategoryID: p.CategoryID,
		NameA:      p.NameA,
		NameB:      p.NameB,
		PriceA:     nullPrice(p.PriceA),
		PriceB:     nullPrice(p.PriceB),
		UpdatedAt:  p.UpdatedAt,
	})
}

func nullPrice(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := FormatPrice(d.Decimal)
	return &s
}

// SaveStats summarizes one reconciliation of a MatchResult against storage.
type SaveStats struct {
	Created      int `json:"created"`
	PriceChanged int `json:"price_changed"`
	Unchanged    int `json:"unchanged"`
	Failed       int `json:"failed"`
}

// PricePoint is one recorded price of a product side.
type PricePoint struct {
	ProductID  int64           `json:"product_id"`
	Source     Source          `json:"source"`
	Price      decimal.Decimal `json:"-"`
	RecordedAt time.Time       `json:"recorded_at"`
}

func (p PricePoint) MarshalJSON() ([]byte, error) {
	return marshal(struct {
		ProductID  int64     `json:"product_id"`
		Source     Source    `json:"source"`
		Price      string    `json:"price"`
		RecordedAt time.Time `json:"recorded_at"`
	}{p.ProductID, p.Source, FormatPrice(p.Price), p.RecordedAt})
}
