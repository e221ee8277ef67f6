package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hunter-compare/pkg/api"
	"hunter-compare/pkg/cache"
	"hunter-compare/pkg/jobs"
	"hunter-compare/pkg/logger"
	"hunter-compare/pkg/models"

	scalargo "github.com/bdpiprava/scalar-go"
)

// catalog is the read side of storage the handlers use.
type catalog interface {
	GetCategoryByName(ctx context.Context, name string) (*models.Category, error)
	ListProducts(ctx context.Context, categoryID int64) ([]models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	PriceHistory(ctx context.Context, productID int64) ([]models.PricePoint, error)
	Ping(ctx context.Context) error
}

type requester interface {
	Request(ctx context.Context, query string) (jobs.Decision, *models.Category, error)
}

type app struct {
	store     catalog
	scheduler requester
	results   cache.ResultCache
	specDir   string
	log       *logger.Logger
}

func newApp(store catalog, scheduler requester, results cache.ResultCache) *app {
	if results == nil {
		results = cache.Nop{}
	}
	return &app{
		store:     store,
		scheduler: scheduler,
		results:   results,
		specDir:   "./",
		log:       logger.For("http"),
	}
}

// SearchResponse is the body of GET /search.
type SearchResponse struct {
	Query    string              `json:"query"`
	Decision jobs.Decision       `json:"decision"`
	Category *models.Category    `json:"category,omitempty"`
	Result   *models.MatchResult `json:"result,omitempty"`
	Products []models.Product    `json:"products"`
}

// CategoryResponse is the body of GET /categories/{name}.
type CategoryResponse struct {
	Category *models.Category    `json:"category"`
	Result   *models.MatchResult `json:"result,omitempty"`
	Products []models.Product    `json:"products"`
}

// HistoryResponse is the body of GET /products/{id}/history.
type HistoryResponse struct {
	Product *models.Product     `json:"product"`
	Prices  []models.PricePoint `json:"prices"`
}

func (a *app) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", a.rootHandler)
	return mux
}

func (a *app) rootHandler(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/search":
		a.searchHandler(w, r)
		return
	case strings.HasPrefix(r.URL.Path, "/categories/"):
		a.categoryHandler(w, r)
		return
	case strings.HasPrefix(r.URL.Path, "/products/"):
		a.historyHandler(w, r)
		return
	case r.URL.Path == "/healthz":
		a.healthHandler(w, r)
		return
	case r.URL.Path != "/":
		api.WriteNotFound(w, "Unknown path. Available: /search, /categories/{name}, /products/{id}/history, /healthz", r.URL.Path)
		return
	}

	// Serve Scalar docs on root path
	html, err := scalargo.NewV2(
		scalargo.WithSpecDir(a.specDir),
		scalargo.WithMetaDataOpts(
			scalargo.WithTitle("Hunter Compare API"),
		),
	)
	if err != nil {
		api.WriteInternalServerError(w, err, r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, html)
}

// searchHandler answers GET /search?q=. Stored products are returned right
// away; a 202 means a scrape is queued or running for the category.
func (a *app) searchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.WriteMethodNotAllowed(w, http.MethodGet, r.URL.Path)
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		api.WriteBadRequest(w, "Missing query parameter q.", r.URL.Path)
		return
	}

	decision, category, err := a.scheduler.Request(r.Context(), query)
	if err != nil {
		a.log.Error().Err(err).Str("query", query).Msg("Search request failed")
		if errors.Is(err, jobs.ErrQueueFull) || errors.Is(err, jobs.ErrStopped) {
			api.WriteServiceUnavailable(w, "Scrape queue is not accepting jobs, retry later.", 30*time.Second, r.URL.Path)
			return
		}
		api.WriteAppError(w, err, r.URL.Path)
		return
	}

	resp := SearchResponse{
		Query:    query,
		Decision: decision,
		Category: category,
		Products: []models.Product{},
	}
	if category != nil {
		products, err := a.store.ListProducts(r.Context(), category.ID)
		if err != nil {
			api.WriteAppError(w, err, r.URL.Path)
			return
		}
		resp.Products = products
		if result, ok := a.results.Get(r.Context(), category.ID); ok {
			resp.Result = result
		}
	}

	status := http.StatusOK
	if decision == jobs.DecisionScrape || decision == jobs.DecisionInProgress {
		status = http.StatusAccepted
	}
	api.WriteJSON(w, status, resp, r.URL.Path)
}

func (a *app) categoryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.WriteMethodNotAllowed(w, http.MethodGet, r.URL.Path)
		return
	}

	name := jobs.NormalizeQuery(strings.TrimPrefix(r.URL.Path, "/categories/"))
	if name == "" || strings.Contains(name, "/") {
		api.WriteBadRequest(w, "Invalid path. Expected /categories/{name}", r.URL.Path)
		return
	}

	category, err := a.store.GetCategoryByName(r.Context(), name)
	if errors.Is(err, models.ErrCategoryNotFound) {
		api.WriteNotFound(w, fmt.Sprintf("Category %q has not been searched yet.", name), r.URL.Path)
		return
	}
	if err != nil {
		api.WriteAppError(w, err, r.URL.Path)
		return
	}

	products, err := a.store.ListProducts(r.Context(), category.ID)
	if err != nil {
		api.WriteAppError(w, err, r.URL.Path)
		return
	}
	resp := CategoryResponse{Category: category, Products: products}
	if result, ok := a.results.Get(r.Context(), category.ID); ok {
		resp.Result = result
	}
	api.WriteJSON(w, http.StatusOK, resp, r.URL.Path)
}

func (a *app) historyHandler(w http.ResponseWriter, r *http.Request) {
	// Path expected: /products/{id}/history
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) != 4 || parts[3] != "history" {
		api.WriteBadRequest(w, "Invalid path. Expected /products/{id}/history", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		api.WriteMethodNotAllowed(w, http.MethodGet, r.URL.Path)
		return
	}

	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || id <= 0 {
		api.WriteBadRequest(w, fmt.Sprintf("Invalid product ID: %s. Must be a positive integer.", parts[2]), r.URL.Path)
		return
	}

	product, err := a.store.GetProduct(r.Context(), id)
	if errors.Is(err, models.ErrProductNotFound) {
		api.WriteNotFound(w, "Product not found", r.URL.Path)
		return
	}
	if err != nil {
		api.WriteAppError(w, err, r.URL.Path)
		return
	}

	prices, err := a.store.PriceHistory(r.Context(), id)
	if err != nil {
		api.WriteAppError(w, err, r.URL.Path)
		return
	}
	api.WriteJSON(w, http.StatusOK, HistoryResponse{Product: product, Prices: prices}, r.URL.Path)
}

func (a *app) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.store.Ping(ctx); err != nil {
		api.WriteServiceUnavailable(w, "Database unreachable: "+err.Error(), 0, r.URL.Path)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"}, r.URL.Path)
}
