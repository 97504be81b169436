package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/efreitasn/venue/internal/domain"
)

const timeFormat = "2006-01-02T15:04:05Z"

// WriteJSON writes a JSON response with the given status code and data.
// Sets Content-Type to application/json before writing the status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Write error intentionally ignored in response helper
}

// errorResponse is the standard error response format. Reasons lists
// every failed check of a validation error.
type errorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Reasons []string `json:"reasons,omitempty"`
}

// WriteError writes a standard error response with the given status code,
// error code, and human-readable message.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteJSON(w, status, errorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// ParseJSON decodes the request body as JSON into v.
// It validates that the Content-Type header is application/json and
// returns an error for missing/incorrect content type or malformed JSON.
func ParseJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	return nil
}

var sentinelErrors = []struct {
	err     error
	status  int
	message string
}{
	{domain.ErrSecurityNotFound, http.StatusNotFound, "Security not found"},
	{domain.ErrBrokerNotFound, http.StatusNotFound, "Broker not found"},
	{domain.ErrShareholderNotFound, http.StatusNotFound, "Shareholder not found"},
	{domain.ErrOrderNotFound, http.StatusNotFound, "Order not found"},
	{domain.ErrWebhookNotFound, http.StatusNotFound, "Webhook not found"},
	{domain.ErrSecurityAlreadyExists, http.StatusConflict, "Security already registered"},
	{domain.ErrBrokerAlreadyExists, http.StatusConflict, "Broker already registered"},
	{domain.ErrShareholderAlreadyExists, http.StatusConflict, "Shareholder already registered"},
}

// writeServiceError maps service errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "validation_error",
			Message: validationErr.Error(),
			Reasons: validationErr.Reasons,
		})
		return
	}

	for _, s := range sentinelErrors {
		if errors.Is(err, s.err) {
			WriteError(w, s.status, s.err.Error(), s.message)
			return
		}
	}
	WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
}
