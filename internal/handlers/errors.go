package handlers

import (
	"encoding/json"
	"net/http"
)

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
	Reason  string `json:"reason,omitempty"`
}

type errorEnvelope struct {
	Error errorDetail `json:"error"`
}

type anthropicErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type anthropicErrorEnvelope struct {
	Type  string               `json:"type"`
	Error anthropicErrorDetail `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}

func errorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request_error"
	case http.StatusUnauthorized:
		return "authentication_error"
	case http.StatusNotFound:
		return "not_found_error"
	case http.StatusTooManyRequests:
		return "rate_limit_error"
	case http.StatusServiceUnavailable:
		return "overloaded_error"
	default:
		return "api_error"
	}
}

// writeError emits the OpenAI-style error envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeErrorReason(w, status, message, "")
}

// writeErrorReason emits the OpenAI-style envelope with a machine-readable
// reason code, used by 503 responses.
func writeErrorReason(w http.ResponseWriter, status int, message, reason string) {
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}

	writeJSON(w, status, errorEnvelope{Error: errorDetail{
		Message: message,
		Type:    errorType(status),
		Code:    status,
		Reason:  reason,
	}})
}

// writeAnthropicError emits the Anthropic-style error envelope.
func writeAnthropicError(w http.ResponseWriter, status int, message string) {
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}

	writeJSON(w, status, anthropicErrorEnvelope{
		Type:  "error",
		Error: anthropicErrorDetail{Type: errorType(status), Message: message},
	})
}
