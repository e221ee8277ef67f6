package magnit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"hunter-compare/pkg/browser"
	"hunter-compare/pkg/browser/browsertest"
	"hunter-compare/pkg/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(base string) Options {
	return Options{BaseURL: base, MaxPages: 10}
}

func card(name, price string) string {
	return fmt.Sprintf(`<article data-test-id="v-product-preview">
		<div class="pl-text unit-catalog-product-preview-title">%s</div>
		<div class="unit-catalog-product-preview-prices">
			<span class="pl-text unit-catalog-product-preview-prices__regular">%s</span>
			<span class="unit-catalog-product-preview-prices__sale">-20%%</span>
		</div>
	</article>`, name, price)
}

func listing(cards ...string) string {
	return "<html><body><main>" + strings.Join(cards, "\n") + "</main></body></html>"
}

func selection(t *testing.T, html string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc.Find(CardSelector).First()
}

func TestExtractPrice(t *testing.T) {
	s := NewScraper(DefaultOptions())

	tests := []struct {
		label string
		want  string
		found bool
	}{
		{"129,99 ₽", "129.99", true},
		{"149.99 ₽", "149.99", true},
		{"89 ₽", "89.00", true},
		{"от 1 299,50 ₽", "1.00", true},
		{"₽", "", false},
		{"0 ₽", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := s.ExtractPrice(selection(t, card("Молоко", tt.label)))
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, models.FormatPrice(got))
			}
		})
	}

	t.Run("missing container", func(t *testing.T) {
		_, ok := s.ExtractPrice(selection(t,
			`<article data-test-id="v-product-preview"><span class="old-price">99</span></article>`))
		assert.False(t, ok)
	})
}

func TestExtractName(t *testing.T) {
	s := NewScraper(DefaultOptions())

	name, ok := s.ExtractName(selection(t, card("\n  Молоко Простоквашино 3.2%, 930 мл  ", "99,99 ₽")))
	require.True(t, ok)
	assert.Equal(t, "Молоко Простоквашино 3.2%, 930 мл", name)

	_, ok = s.ExtractName(selection(t, card("   ", "99,99 ₽")))
	assert.False(t, ok, "blank title")

	_, ok = s.ExtractName(selection(t,
		`<article data-test-id="v-product-preview"><h3>Молоко</h3></article>`))
	assert.False(t, ok, "no title container")
}

func TestScrapePaginatesUntilEmptyPage(t *testing.T) {
	opts := testOptions("https://magnit.test/search")
	s := NewScraper(opts)
	url := func(page int) string { return s.pageURL("сыр", page) }

	sess := &browsertest.FakeSession{Pages: map[string][]string{
		url(1): {listing(
			card("Сыр Российский 45%", "459,99 ₽"),
			card("Сыр Ламбер 50%", "899,00 ₽"),
			card("Сыр без цены", "нет в наличии"),
		)},
		url(2): {listing(card("Сыр Гауда 45%", "399 ₽"))},
		url(3): {listing()},
	}}

	items := s.Scrape(context.Background(), sess, "сыр")

	assert.Equal(t, []string{url(1), url(2), url(3)}, sess.Visited())
	assert.Equal(t, "https://magnit.test/search?term=%D1%81%D1%8B%D1%80&page=1", url(1))
	require.Len(t, items, 3)
	assert.Equal(t, "Сыр Российский 45%", items[0].Name)
	assert.Equal(t, "459.99", models.FormatPrice(items[0].Price))
	assert.Equal(t, "Сыр Гауда 45%", items[2].Name)

	pages := []int{items[0].Page, items[1].Page, items[2].Page}
	assert.Equal(t, []int{1, 1, 2}, pages, "items carry the page they were found on")
	for _, it := range items {
		assert.Equal(t, models.SourceMagnit, it.Source)
	}
}

func TestScrapeNoResults(t *testing.T) {
	s := NewScraper(testOptions("https://magnit.test/search"))
	sess := &browsertest.FakeSession{}

	items := s.Scrape(context.Background(), sess, "unobtainium")

	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.Len(t, sess.Visited(), 1)
}

func TestScrapeKeepsItemsWhenLaterPageFails(t *testing.T) {
	s := NewScraper(testOptions("https://magnit.test/search"))
	url := func(page int) string { return s.pageURL("чай", page) }
	sess := &browsertest.FakeSession{
		Pages:       map[string][]string{url(1): {listing(card("Чай Greenfield 100 пак.", "349,90 ₽"))}},
		NavigateErr: map[string]error{url(2): errors.New("net::ERR_CONNECTION_RESET")},
	}

	items := s.Scrape(context.Background(), sess, "чай")

	require.Len(t, items, 1)
	assert.Equal(t, "349.90", models.FormatPrice(items[0].Price))
}

func TestScrapeStopsAtPageBudget(t *testing.T) {
	opts := testOptions("https://magnit.test/search")
	opts.MaxPages = 2
	s := NewScraper(opts)

	pages := map[string][]string{}
	for p := 1; p <= 5; p++ {
		pages[s.pageURL("вода", p)] = []string{listing(card(fmt.Sprintf("Вода питьевая %d л", p), "49,99 ₽"))}
	}
	sess := &browsertest.FakeSession{Pages: pages}

	items := s.Scrape(context.Background(), sess, "вода")

	assert.Len(t, sess.Visited(), 2)
	assert.Len(t, items, 2)
}

func TestScrapeHonorsCancellation(t *testing.T) {
	opts := testOptions("https://magnit.test/search")
	opts.PageInterval = time.Hour
	s := NewScraper(opts)
	url := func(page int) string { return s.pageURL("кофе", page) }
	sess := &browsertest.FakeSession{Pages: map[string][]string{
		url(1): {listing(card("Кофе Jacobs Monarch 95 г", "299 ₽"))},
		url(2): {listing(card("Кофе Nescafe Gold 190 г", "549 ₽"))},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	items := s.Scrape(ctx, sess, "кофе")

	assert.Len(t, items, 1, "second page is never requested")
	assert.Len(t, sess.Visited(), 1)
}

func TestScrapeOverStaticSession(t *testing.T) {
	var requests atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "молоко", r.URL.Query().Get("term"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, listing(
				card("Молоко Домик в деревне 2.5%", "94,99 ₽"),
				card("Молоко Простоквашино 3.2%", "109,99 ₽"),
			))
		case "2":
			fmt.Fprint(w, listing(card("Молоко Parmalat 3.5%", "129,99 ₽")))
		default:
			fmt.Fprint(w, listing())
		}
	}))
	defer ts.Close()

	factory := browser.NewStaticFactory(browser.Options{NavigationTimeout: 5 * time.Second})
	sess, err := factory.Open(context.Background())
	require.NoError(t, err)
	defer sess.Close()

	items := NewScraper(testOptions(ts.URL+"/search")).Scrape(context.Background(), sess, "молоко")

	assert.EqualValues(t, 3, requests.Load())
	require.Len(t, items, 3)
	assert.Equal(t, "Молоко Parmalat 3.5%", items[2].Name)
	assert.Equal(t, "129.99", models.FormatPrice(items[2].Price))
	assert.Equal(t, 2, items[2].Page)
}
