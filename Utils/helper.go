package utils

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"
)

// ErrorResponse is the uniform failure envelope for every endpoint.
type ErrorResponse struct {
	Message string `json:"message"`
}

// SendJSON writes a JSON response with proper headers.
// Sets Content-Type: application/json and handles encoding consistently.
func SendJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// Headers are already written; nothing to send the client here.
		log.Printf("SendJSON: failed to encode response: %v", err)
	}
}

// SendError writes the standard {"message": ...} failure envelope.
// Use this for all error responses to maintain consistency.
func SendError(w http.ResponseWriter, status int, message string) {
	SendJSON(w, status, ErrorResponse{Message: message})
}

// ParseLimit parses a page-size query parameter. Missing, malformed, or
// non-positive values fall back to def; anything above max is capped.
func ParseLimit(raw string, def, max int) int {
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 1 {
		return def
	}
	if parsed > max {
		return max
	}
	return parsed
}

// ParseCursor parses an ISO timestamp cursor. Invalid cursors are ignored
// rather than rejected, matching the pagination contract.
func ParseCursor(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			parsed = parsed.UTC()
			return &parsed
		}
	}
	return nil
}
