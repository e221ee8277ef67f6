package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"hunter-compare/pkg/api"
	"hunter-compare/pkg/cache"
	"hunter-compare/pkg/events"
	"hunter-compare/pkg/jobs"
	"hunter-compare/pkg/models"
	"hunter-compare/pkg/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSearcher struct {
	result *models.MatchResult
}

func (f fixedSearcher) Search(ctx context.Context, query string) (*models.MatchResult, error) {
	return f.result, nil
}

type failingRequester struct {
	err error
}

func (f failingRequester) Request(ctx context.Context, query string) (jobs.Decision, *models.Category, error) {
	return "", nil, f.err
}

func item(name, price string, source models.Source) models.ScrapedItem {
	return models.ScrapedItem{Name: name, Price: decimal.RequireFromString(price), Source: source, Page: 1}
}

func milkResult() *models.MatchResult {
	return &models.MatchResult{
		Pairs: []models.MatchedPair{{
			A:          item("Молоко 2.5% 930мл", "89.99", models.SourcePyaterochka),
			B:          item("Молоко 2,5% 930 мл", "84.99", models.SourceMagnit),
			Similarity: 88,
		}},
		SinglesA: []models.ScrapedItem{item("Молоко овсяное", "149.00", models.SourcePyaterochka)},
		SinglesB: []models.ScrapedItem{},
	}
}

type testServer struct {
	app       *app
	store     *storage.Store
	scheduler *jobs.Scheduler
	events    <-chan events.JobEvent
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	store, err := storage.Open(ctx, storage.DriverSQLite, filepath.Join(t.TempDir(), "hunter.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	results := cache.NewSnapshots(store, time.Hour)
	scheduler := jobs.NewScheduler(store, fixedSearcher{result: milkResult()}, jobs.Options{
		Workers:    1,
		QueueSize:  4,
		StaleAfter: time.Hour,
	}, jobs.WithCache(results))
	ch, unsubscribe := scheduler.Subscribe()
	t.Cleanup(unsubscribe)
	scheduler.Start(ctx)
	t.Cleanup(scheduler.Stop)

	return &testServer{
		app:       newApp(store, scheduler, results),
		store:     store,
		scheduler: scheduler,
		events:    ch,
	}
}

func (ts *testServer) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	ts.app.routes().ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) waitJob(t *testing.T) events.JobEvent {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-ts.events:
			if ev.Terminal() {
				return ev
			}
		case <-timeout:
			t.Fatal("timed out waiting for the scrape job")
		}
	}
}

func TestProblemResponses(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
		expectedDetail string
	}{
		{
			name:           "Unknown path",
			method:         http.MethodGet,
			path:           "/offers/1",
			expectedStatus: http.StatusNotFound,
			expectedDetail: "Unknown path",
		},
		{
			name:           "Search without query",
			method:         http.MethodGet,
			path:           "/search",
			expectedStatus: http.StatusBadRequest,
			expectedDetail: "Missing query parameter q",
		},
		{
			name:           "Search with wrong method",
			method:         http.MethodPost,
			path:           "/search?q=milk",
			expectedStatus: http.StatusMethodNotAllowed,
			expectedDetail: "Use GET",
		},
		{
			name:           "Unknown category",
			method:         http.MethodGet,
			path:           "/categories/unknown",
			expectedStatus: http.StatusNotFound,
			expectedDetail: "has not been searched yet",
		},
		{
			name:           "Nested category path",
			method:         http.MethodGet,
			path:           "/categories/a/b",
			expectedStatus: http.StatusBadRequest,
			expectedDetail: "Expected /categories/{name}",
		},
		{
			name:           "History path without suffix",
			method:         http.MethodGet,
			path:           "/products/1",
			expectedStatus: http.StatusBadRequest,
			expectedDetail: "Expected /products/{id}/history",
		},
		{
			name:           "Non-numeric product ID",
			method:         http.MethodGet,
			path:           "/products/abc/history",
			expectedStatus: http.StatusBadRequest,
			expectedDetail: "Invalid product ID: abc",
		},
		{
			name:           "Missing product",
			method:         http.MethodGet,
			path:           "/products/999/history",
			expectedStatus: http.StatusNotFound,
			expectedDetail: "Product not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, tt.method, tt.path)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

			var pd api.ProblemDetails
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pd), "body: %s", rr.Body.String())
			assert.Equal(t, tt.expectedStatus, pd.Status)
			assert.Equal(t, "about:blank", pd.Type)
			instance, _, _ := strings.Cut(tt.path, "?")
			assert.Equal(t, instance, pd.Instance)
			assert.Contains(t, pd.Detail, tt.expectedDetail)
		})
	}
}

func TestSearchTooShort(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/search?q=%20ab%20")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ab", resp.Query)
	assert.Equal(t, jobs.DecisionTooShort, resp.Decision)
	assert.Nil(t, resp.Category)
	assert.Empty(t, resp.Products)
	assert.Contains(t, rr.Body.String(), `"products":[]`)
}

func TestSearchScrapesThenServesStoredData(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/search?q=%D0%9C%D0%BE%D0%BB%D0%BE%D0%BA%D0%BE")
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	var first SearchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &first))
	assert.Equal(t, jobs.DecisionScrape, first.Decision)
	require.NotNil(t, first.Category)
	assert.Equal(t, "молоко", first.Category.Name)
	assert.True(t, first.Category.InProgress)
	assert.Nil(t, first.Result)

	ev := ts.waitJob(t)
	require.Equal(t, events.StatusSucceeded, ev.Status, ev.Error)

	rr = ts.do(t, http.MethodGet, "/search?q=%D0%BC%D0%BE%D0%BB%D0%BE%D0%BA%D0%BE")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var second SearchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &second))
	assert.Equal(t, jobs.DecisionFresh, second.Decision)
	require.NotNil(t, second.Category)
	assert.False(t, second.Category.InProgress)
	assert.NotNil(t, second.Category.LastScrapedAt)
	assert.Len(t, second.Products, 2)
	require.NotNil(t, second.Result)
	require.Len(t, second.Result.Pairs, 1)
	assert.Equal(t, 88, second.Result.Pairs[0].Similarity)

	rr = ts.do(t, http.MethodGet, "/categories/%D0%BC%D0%BE%D0%BB%D0%BE%D0%BA%D0%BE")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var category CategoryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &category))
	assert.Equal(t, second.Category.ID, category.Category.ID)
	assert.Len(t, category.Products, 2)

	productID := second.Products[0].ID
	rr = ts.do(t, http.MethodGet, "/products/"+strconv.FormatInt(productID, 10)+"/history")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"price":"89.99"`)
	assert.Contains(t, rr.Body.String(), `"price":"84.99"`)
}

func TestSearchQueueUnavailable(t *testing.T) {
	for _, err := range []error{jobs.ErrQueueFull, jobs.ErrStopped} {
		t.Run(err.Error(), func(t *testing.T) {
			ts := newTestServer(t)
			ts.app.scheduler = failingRequester{err: err}

			rr := ts.do(t, http.MethodGet, "/search?q=milk")
			assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
			assert.Equal(t, "30", rr.Header().Get("Retry-After"))
			assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
		})
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	ts.store.Close()
	rr = ts.do(t, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
