package pyaterochka

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"hunter-compare/pkg/browser"
	apperrors "hunter-compare/pkg/errors"
	"hunter-compare/pkg/logger"
	"hunter-compare/pkg/models"
	"hunter-compare/pkg/scrapers"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

const (
	Source       = models.SourcePyaterochka
	BaseURL      = "https://5ka.ru/search/"
	CardSelector = `div[data-qa^='product-card']`
)

var (
	numericName = regexp.MustCompile(`^\d+[.,]?\d*$`)
	digitsOnly  = regexp.MustCompile(`^\d+$`)
)

// Options tune the infinite-scroll crawl.
type Options struct {
	BaseURL string
	// InitialWait lets the search page boot before looking for cards.
	InitialWait time.Duration
	// CardTimeout bounds the wait for the first cards; expiry means no results.
	CardTimeout time.Duration
	// SettleWait runs after the first cards appear.
	SettleWait        time.Duration
	ScrollWait        time.Duration
	MaxScrollAttempts int
}

func DefaultOptions() Options {
	return Options{
		BaseURL:           BaseURL,
		InitialWait:       5 * time.Second,
		CardTimeout:       15 * time.Second,
		SettleWait:        2 * time.Second,
		ScrollWait:        2 * time.Second,
		MaxScrollAttempts: 20,
	}
}

// Scraper reads the single infinite-scroll search page of 5ka.ru.
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
	if opts.MaxScrollAttempts <= 0 {
		opts.MaxScrollAttempts = DefaultOptions().MaxScrollAttempts
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

// ExtractName returns the longest descriptive <p> text of the card. Ratings,
// weights and other short or purely numeric fragments are ignored.
func (s *Scraper) ExtractName(card *goquery.Selection) (string, bool) {
	var best string
	card.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := strings.TrimSpace(p.Text())
		if utf8.RuneCountInString(text) < 5 {
			return
		}
		if numericName.MatchString(text) {
			return
		}
		if !strings.ContainsFunc(text, unicode.IsLetter) {
			return
		}
		if utf8.RuneCountInString(text) > utf8.RuneCountInString(best) {
			best = text
		}
	})
	return best, best != ""
}

// ExtractPrice reads the rubles/kopecks <span> fragments. Discounted cards
// show the old price pair first and the promotional pair second; the
// promotional price wins.
func (s *Scraper) ExtractPrice(card *goquery.Selection) (decimal.Decimal, bool) {
	var numbers []string
	card.Find("span").Each(func(_ int, span *goquery.Selection) {
		text := strings.TrimSpace(span.Text())
		if digitsOnly.MatchString(text) {
			numbers = append(numbers, text)
		}
	})

	var rubles, kopecks string
	switch len(numbers) {
	case 4:
		rubles, kopecks = numbers[2], numbers[3]
	case 2:
		rubles, kopecks = numbers[0], numbers[1]
	default:
		return decimal.Zero, false
	}

	switch {
	case len(kopecks) == 1:
		kopecks += "0"
	case len(kopecks) > 2:
		kopecks = kopecks[:2]
	}

	price, err := decimal.NewFromString(rubles + "." + kopecks)
	if err != nil || !price.IsPositive() {
		return decimal.Zero, false
	}
	return price, true
}

// Scrape opens the search page, scrolls until no new cards load and parses
// every card. Items are always on page 1.
func (s *Scraper) Scrape(ctx context.Context, sess browser.Session, query string) []models.ScrapedItem {
	log := s.log.WithStr("query", query)
	log.Info().Msg("Starting Pyaterochka scrape")
	start := time.Now()

	searchURL := s.opts.BaseURL + "?text=" + scrapers.QueryEscape(query)
	if err := sess.Navigate(ctx, searchURL); err != nil {
		log.Error().Err(err).Str("url", searchURL).Msg("Search page failed to load")
		return []models.ScrapedItem{}
	}
	if err := browser.Sleep(ctx, s.opts.InitialWait); err != nil {
		return []models.ScrapedItem{}
	}

	if err := sess.WaitReady(ctx, CardSelector, s.opts.CardTimeout); err != nil {
		if apperrors.IsTimeout(err) {
			log.Warn().Dur("timeout", s.opts.CardTimeout).Msg("No product cards appeared")
		} else {
			log.Error().Err(err).Msg("Waiting for product cards failed")
		}
		return []models.ScrapedItem{}
	}
	if err := browser.Sleep(ctx, s.opts.SettleWait); err != nil {
		return []models.ScrapedItem{}
	}

	s.scrollAndLoad(ctx, sess, log)

	html, err := sess.HTML(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Reading search page failed")
		return []models.ScrapedItem{}
	}

	items, cards, missed, err := scrapers.ParseCards(html, CardSelector, s, 1)
	if err != nil {
		log.Error().Err(err).Msg("Parsing search page failed")
		return []models.ScrapedItem{}
	}
	for _, m := range missed {
		if m.Name == "" {
			s.dedup.Printf("pyaterochka: card without name skipped")
		} else {
			s.dedup.Printf("pyaterochka: card without price skipped")
		}
	}
	s.dedup.Flush()

	log.Info().
		Int("cards", cards).
		Int("items", len(items)).
		Dur("elapsed", time.Since(start)).
		Msg("Pyaterochka scrape finished")

	if items == nil {
		items = []models.ScrapedItem{}
	}
	return items
}

// scrollAndLoad scrolls until two consecutive reads see the same card count
// or the attempt budget runs out. Errors stop scrolling; whatever is loaded
// gets parsed.
func (s *Scraper) scrollAndLoad(ctx context.Context, sess browser.Session, log *logger.Logger) {
	previous := 0
	for attempt := 1; attempt <= s.opts.MaxScrollAttempts; attempt++ {
		html, err := sess.HTML(ctx)
		if err != nil {
			log.Error().Err(err).Int("attempt", attempt).Msg("Reading page during scroll failed")
			return
		}
		current, err := scrapers.CountCards(html, CardSelector)
		if err != nil {
			log.Error().Err(err).Msg("Counting cards failed")
			return
		}

		log.Debug().Int("attempt", attempt).Int("cards", current).Msg("Scroll check")
		if current == previous {
			return
		}
		previous = current

		if err := sess.ScrollToBottom(ctx); err != nil {
			log.Error().Err(err).Msg("Scroll failed")
			return
		}
		if err := browser.Sleep(ctx, s.opts.ScrollWait); err != nil {
			return
		}
	}
	log.Warn().Int("attempts", s.opts.MaxScrollAttempts).Msg("Scroll budget exhausted")
}
