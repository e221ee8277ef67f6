package models

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Source identifies the retail site an item was scraped from.
type Source string

const (
	SourcePyaterochka Source = "pyaterochka"
	SourceMagnit      Source = "magnit"

	// SourceEqual is only used as the cheaper side of a pair with equal prices.
	SourceEqual Source = "equal"
)

// ScrapedItem is one product card read from a search listing.
type ScrapedItem struct {
	Name   string
	Price  decimal.Decimal
	Source Source
	Page   int
}

// NewScrapedItem validates the parsed values and builds an item.
// Items without a name or with a non-positive price are rejected.
func NewScrapedItem(name string, price decimal.Decimal, source Source, page int) (ScrapedItem, bool) {
	name = strings.TrimSpace(name)
	if name == "" || !price.IsPositive() {
		return ScrapedItem{}, false
	}
	if page < 1 {
		page = 1
	}
	return ScrapedItem{Name: name, Price: price, Source: source, Page: page}, true
}

// FormatPrice renders a price with exactly two fractional digits.
func FormatPrice(d decimal.Decimal) string {
	return d.StringFixed(2)
}

type itemJSON struct {
	Name   string `json:"name"`
	Price  string `json:"price"`
	Source Source `json:"source"`
	Page   int    `json:"page"`
}

func (i ScrapedItem) MarshalJSON() ([]byte, error) {
	return marshal(itemJSON{
		Name:   i.Name,
		Price:  FormatPrice(i.Price),
		Source: i.Source,
		Page:   i.Page,
	})
}

func (i *ScrapedItem) UnmarshalJSON(data []byte) error {
	var raw itemJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	price, err := decimal.NewFromString(raw.Price)
	if err != nil {
		return err
	}
	*i = ScrapedItem{Name: raw.Name, Price: price, Source: raw.Source, Page: raw.Page}
	return nil
}

func marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}
