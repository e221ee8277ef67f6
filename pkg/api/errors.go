package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	apperrors "hunter-compare/pkg/errors"
	"hunter-compare/pkg/logger"
)

// follows RFC 7807: Problem Details for HTTP APIs
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

func (pd *ProblemDetails) Error() string {
	return fmt.Sprintf("%d %s: %s", pd.Status, pd.Title, pd.Detail)
}

func WriteError(w http.ResponseWriter, status int, title, detail, instance string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	pd := &ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	}

	if err := json.NewEncoder(w).Encode(pd); err != nil {
		logger.For("api").Error().Err(err).Msg("Encoding problem details failed")
	}
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any, instance string) {
	body, err := json.Marshal(v)
	if err != nil {
		logger.For("api").Error().Err(err).Str("path", instance).Msg("Encoding response failed")
		WriteInternalServerError(w, fmt.Errorf("failed to encode response"), instance)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

// WriteAppError maps a classified error to a status: validation 400,
// timeouts 504, upstream network failures 502, anything else 500.
func WriteAppError(w http.ResponseWriter, err error, instance string) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		WriteInternalServerError(w, err, instance)
		return
	}
	switch appErr.Type {
	case apperrors.ErrorTypeValidation:
		WriteBadRequest(w, appErr.Message, instance)
	case apperrors.ErrorTypeTimeout:
		WriteError(w, http.StatusGatewayTimeout, "Gateway Timeout", "Upstream service timed out: "+err.Error(), instance)
	case apperrors.ErrorTypeNetwork:
		WriteError(w, http.StatusBadGateway, "Bad Gateway", err.Error(), instance)
	default:
		WriteInternalServerError(w, err, instance)
	}
}

func WriteInternalServerError(w http.ResponseWriter, err error, instance string) {
	WriteError(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), instance)
}

func WriteBadRequest(w http.ResponseWriter, detail, instance string) {
	WriteError(w, http.StatusBadRequest, "Bad Request", detail, instance)
}

func WriteNotFound(w http.ResponseWriter, detail, instance string) {
	WriteError(w, http.StatusNotFound, "Not Found", detail, instance)
}

func WriteMethodNotAllowed(w http.ResponseWriter, allowed, instance string) {
	w.Header().Set("Allow", allowed)
	WriteError(w, http.StatusMethodNotAllowed, "Method Not Allowed", "Use "+allowed+".", instance)
}

// WriteServiceUnavailable asks the client to come back after retryAfter.
func WriteServiceUnavailable(w http.ResponseWriter, detail string, retryAfter time.Duration, instance string) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	}
	WriteError(w, http.StatusServiceUnavailable, "Service Unavailable", detail, instance)
}
