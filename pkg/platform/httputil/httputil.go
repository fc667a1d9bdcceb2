// Package httputil provides small JSON response helpers shared by handlers
// and middleware.
package httputil

import (
	"encoding/json"
	"net/http"
)

// errorBody mirrors the OAuth-style error envelope used across the API.
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error envelope. Internal errors should pass an
// empty description so storage details never leak to clients.
func WriteError(w http.ResponseWriter, status int, code, description string) {
	WriteJSON(w, status, errorBody{Error: code, ErrorDescription: description})
}
