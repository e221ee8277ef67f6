package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "hunter-compare/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeProblem(t *testing.T, rr *httptest.ResponseRecorder) ProblemDetails {
	t.Helper()
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	var pd ProblemDetails
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pd), rr.Body.String())
	return pd
}

func TestWriteAppError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		title  string
	}{
		{"validation", apperrors.NewValidation("http", "bad query"), http.StatusBadRequest, "Bad Request"},
		{"timeout", fmt.Errorf("search: %w", apperrors.NewTimeout("chrome", "wait", nil)), http.StatusGatewayTimeout, "Gateway Timeout"},
		{"network", apperrors.NewNetwork("static", "fetch", errors.New("refused")), http.StatusBadGateway, "Bad Gateway"},
		{"storage", apperrors.NewStorage("insert", errors.New("locked")), http.StatusInternalServerError, "Internal Server Error"},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteAppError(rr, tt.err, "/search")

			assert.Equal(t, tt.status, rr.Code)
			pd := decodeProblem(t, rr)
			assert.Equal(t, tt.status, pd.Status)
			assert.Equal(t, tt.title, pd.Title)
			assert.Equal(t, "about:blank", pd.Type)
			assert.Equal(t, "/search", pd.Instance)
		})
	}
}

func TestWriteServiceUnavailable(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteServiceUnavailable(rr, "queue full", 90*time.Second, "/search")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "90", rr.Header().Get("Retry-After"))
	assert.Equal(t, "queue full", decodeProblem(t, rr).Detail)

	rr = httptest.NewRecorder()
	WriteServiceUnavailable(rr, "db down", 0, "/healthz")
	assert.Empty(t, rr.Header().Get("Retry-After"))
}

func TestWriteMethodNotAllowed(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteMethodNotAllowed(rr, http.MethodGet, "/search")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, http.MethodGet, rr.Header().Get("Allow"))
	assert.Equal(t, "Use GET.", decodeProblem(t, rr).Detail)
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSON(rr, http.StatusAccepted, map[string]int{"pairs": 2}, "/search")
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"pairs":2}`, rr.Body.String())

	rr = httptest.NewRecorder()
	WriteJSON(rr, http.StatusOK, map[string]any{"bad": make(chan int)}, "/search")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "failed to encode response", decodeProblem(t, rr).Detail)
}

func TestProblemDetailsError(t *testing.T) {
	pd := &ProblemDetails{Status: 404, Title: "Not Found", Detail: "Product not found"}
	assert.Equal(t, "404 Not Found: Product not found", pd.Error())
}
