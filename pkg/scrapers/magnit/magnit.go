package magnit

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"hunter-compare/pkg/browser"
	"hunter-compare/pkg/logger"
	"hunter-compare/pkg/models"
	"hunter-compare/pkg/scrapers"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	Source        = models.SourceMagnit
	BaseURL       = "https://magnit.ru/search"
	CardSelector  = `article[data-test-id='v-product-preview']`
	TitleSelector = `div[class*='unit-catalog-product-preview-title']`
	PriceSelector = `span[class*='unit-catalog-product-preview-prices__regular']`
)

var priceToken = regexp.MustCompile(`\d+[.,]\d+|\d+`)

type Options struct {
	BaseURL string
	// PageWait lets a freshly loaded page render its cards.
	PageWait time.Duration
	// PageInterval is the minimum gap between two page requests.
	PageInterval time.Duration
	// MaxPages caps the crawl when the listing never runs dry.
	MaxPages int
}

func DefaultOptions() Options {
	return Options{
		BaseURL:      BaseURL,
		PageWait:     3 * time.Second,
		PageInterval: time.Second,
		MaxPages:     50,
	}
}

// Scraper walks the paginated magnit.ru search listing.
type Scraper struct {
	opts  Options
	log   *logger.Logger
	dedup *logger.Deduplicator
}

var _ scrapers.Scraper = (*Scraper)(nil)

func NewScraper(opts Options) *Scraper {
	if opts.BaseURL == "" {
		opts.BaseURL = BaseURL
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultOptions().MaxPages
	}
	log := logger.ForScraper(string(Source))
	return &Scraper{
		opts:  opts,
		log:   log,
		dedup: logger.NewDeduplicator(log, 2*time.Second),
	}
}

func (s *Scraper) Source() models.Source {
	return Source
}

func (s *Scraper) ExtractName(card *goquery.Selection) (string, bool) {
	title := card.Find(TitleSelector).First()
	if title.Length() == 0 {
		return "", false
	}
	name := strings.TrimSpace(title.Text())
	return name, name != ""
}

// ExtractPrice takes the first number of the regular price label, so
// "149,99 ₽" and "149.99 ₽" both read as 149.99.
func (s *Scraper) ExtractPrice(card *goquery.Selection) (decimal.Decimal, bool) {
	label := card.Find(PriceSelector).First()
	if label.Length() == 0 {
		return decimal.Zero, false
	}
	token := priceToken.FindString(label.Text())
	if token == "" {
		return decimal.Zero, false
	}
	price, err := decimal.NewFromString(strings.Replace(token, ",", ".", 1))
	if err != nil || !price.IsPositive() {
		return decimal.Zero, false
	}
	return price, true
}

func (s *Scraper) pageURL(query string, page int) string {
	return fmt.Sprintf("%s?term=%s&page=%d", s.opts.BaseURL, scrapers.QueryEscape(query), page)
}

// Scrape requests pages 1, 2, ... until a page has no cards. A failing page
// ends the crawl; items from earlier pages are kept.
func (s *Scraper) Scrape(ctx context.Context, sess browser.Session, query string) []models.ScrapedItem {
	log := s.log.WithStr("query", query)
	log.Info().Msg("Starting Magnit scrape")
	start := time.Now()

	limit := rate.Inf
	if s.opts.PageInterval > 0 {
		limit = rate.Every(s.opts.PageInterval)
	}
	limiter := rate.NewLimiter(limit, 1)

	items := []models.ScrapedItem{}
	pages := 0
	defer func() {
		s.dedup.Flush()
		log.Info().
			Int("pages", pages).
			Int("items", len(items)).
			Dur("elapsed", time.Since(start)).
			Msg("Magnit scrape finished")
	}()

	for page := 1; page <= s.opts.MaxPages; page++ {
		if err := limiter.Wait(ctx); err != nil {
			log.Warn().Err(err).Int("page", page).Msg("Crawl interrupted")
			return items
		}

		pageURL := s.pageURL(query, page)
		if err := sess.Navigate(ctx, pageURL); err != nil {
			log.Error().Err(err).Str("url", pageURL).Msg("Page failed to load")
			return items
		}
		if err := browser.Sleep(ctx, s.opts.PageWait); err != nil {
			return items
		}

		html, err := sess.HTML(ctx)
		if err != nil {
			log.Error().Err(err).Int("page", page).Msg("Reading page failed")
			return items
		}
		found, cards, missed, err := scrapers.ParseCards(html, CardSelector, s, page)
		if err != nil {
			log.Error().Err(err).Int("page", page).Msg("Parsing page failed")
			return items
		}
		if cards == 0 {
			log.Debug().Int("page", page).Msg("No cards, last page reached")
			return items
		}
		pages++

		for _, m := range missed {
			if m.Name == "" {
				s.dedup.Printf("magnit: card without title skipped")
			} else {
				s.dedup.Printf("magnit: %s: price not found", scrapers.Truncate(m.Name, 40))
			}
		}
		log.Debug().Int("page", page).Int("cards", cards).Int("items", len(found)).Msg("Page parsed")
		items = append(items, found...)
	}

	log.Warn().Int("max_pages", s.opts.MaxPages).Msg("Page budget exhausted")
	return items
}
