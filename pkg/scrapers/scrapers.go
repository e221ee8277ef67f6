// Package scrapers defines the capability set every store crawler provides.
package scrapers

import (
	"context"
	"net/url"
	"strings"

	"hunter-compare/pkg/browser"
	"hunter-compare/pkg/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

// Scraper reads one store's search listing.
type Scraper interface {
	Source() models.Source
	// ExtractName returns the display name of a product card.
	ExtractName(card *goquery.Selection) (string, bool)
	// ExtractPrice returns the current price of a product card.
	ExtractPrice(card *goquery.Selection) (decimal.Decimal, bool)
	// Scrape searches for query and returns every parsed card. It never
	// fails: I/O errors are logged and the items collected so far returned.
	Scrape(ctx context.Context, sess browser.Session, query string) []models.ScrapedItem
}

// Extractor is the pure half of Scraper.
type Extractor interface {
	Source() models.Source
	ExtractName(card *goquery.Selection) (string, bool)
	ExtractPrice(card *goquery.Selection) (decimal.Decimal, bool)
}

// CardMiss describes a card that could not be parsed.
type CardMiss struct {
	Index int
	Name  string
}

// ParseCards runs the extractor over every card matching selector in html.
// It returns the parsed items in page order, the number of cards found and
// the cards skipped for a missing name or price.
func ParseCards(html, selector string, ex Extractor, page int) ([]models.ScrapedItem, int, []CardMiss, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, 0, nil, err
	}

	cards := doc.Find(selector)
	var (
		items  []models.ScrapedItem
		missed []CardMiss
	)
	cards.Each(func(i int, card *goquery.Selection) {
		name, ok := ex.ExtractName(card)
		if !ok {
			missed = append(missed, CardMiss{Index: i})
			return
		}
		price, ok := ex.ExtractPrice(card)
		if !ok {
			missed = append(missed, CardMiss{Index: i, Name: name})
			return
		}
		if item, ok := models.NewScrapedItem(name, price, ex.Source(), page); ok {
			items = append(items, item)
		}
	})
	return items, cards.Length(), missed, nil
}

// CountCards returns how many elements match selector in html.
func CountCards(html, selector string) (int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0, err
	}
	return doc.Find(selector).Length(), nil
}

// QueryEscape percent-encodes every reserved character, spaces as %20.
func QueryEscape(q string) string {
	return strings.ReplaceAll(url.QueryEscape(q), "+", "%20")
}

// Truncate shortens s to n runes for log lines.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
