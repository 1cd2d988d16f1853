// Package httputil holds the JSON response helpers shared by handlers and
// middleware.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/Shivanand-hulikatti/eventreg/internal/model"
	"github.com/rs/zerolog/log"
)

// Machine-readable error codes returned in model.ErrorResponse.Code.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeConflict           = "CONFLICT"
	CodeAlreadyRegistered  = "ALREADY_REGISTERED"
	CodeEventFull          = "EVENT_FULL"
	CodeNotFound           = "NOT_FOUND"
	CodeForbidden          = "FORBIDDEN"
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeRateLimited        = "RATE_LIMITED"
	CodeServerError        = "SERVER_ERROR"
)

// WriteJSON sends v as a JSON body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode json response")
	}
}

// WriteError sends a JSON error envelope.
func WriteError(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, model.ErrorResponse{Error: msg, Code: code})
}

// WriteFieldError sends a JSON error envelope naming the offending fields.
func WriteFieldError(w http.ResponseWriter, status int, code, msg string, fields []string) {
	WriteJSON(w, status, model.ErrorResponse{Error: msg, Code: code, Fields: fields})
}
