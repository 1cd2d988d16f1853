// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Shivanand-hulikatti/eventreg/internal/auth"
	"github.com/Shivanand-hulikatti/eventreg/internal/httputil"
	"github.com/Shivanand-hulikatti/eventreg/internal/model"
	"github.com/Shivanand-hulikatti/eventreg/internal/repository"
	"github.com/Shivanand-hulikatti/eventreg/internal/service"
	"github.com/rs/zerolog"
)

// ─── Response payloads ────────────────────────────────────────────────────────

type messageResponse struct {
	Message string `json:"message"`
}

type authResponse struct {
	Message string      `json:"message"`
	Token   string      `json:"token"`
	User    *model.User `json:"user"`
}

type userResponse struct {
	Message string      `json:"message"`
	User    *model.User `json:"user"`
}

type eventResponse struct {
	Message string       `json:"message"`
	Event   *model.Event `json:"event"`
}

type registrationResponse struct {
	Message string             `json:"message"`
	Event   *model.EventDetail `json:"event"`
	User    *model.User        `json:"user"`
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeBadBody(w http.ResponseWriter, err error) {
	httputil.WriteError(w, http.StatusBadRequest, httputil.CodeValidation, "invalid request body: "+err.Error())
}

// writeServiceError maps service and store errors onto HTTP responses.
// Unrecognised errors are logged and reported as a generic 500.
func writeServiceError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		httputil.WriteFieldError(w, http.StatusBadRequest, httputil.CodeValidation, verr.Message, verr.Fields)
	case errors.Is(err, service.ErrInvalidCredentials):
		httputil.WriteError(w, http.StatusBadRequest, httputil.CodeInvalidCredentials, "invalid email or password")
	case errors.Is(err, repository.ErrDuplicateEmail):
		httputil.WriteFieldError(w, http.StatusBadRequest, httputil.CodeConflict, "user with this email already exists", []string{"email"})
	case errors.Is(err, repository.ErrAlreadyRegistered):
		httputil.WriteError(w, http.StatusBadRequest, httputil.CodeAlreadyRegistered, "user already registered for this event")
	case errors.Is(err, repository.ErrEventFull):
		httputil.WriteError(w, http.StatusBadRequest, httputil.CodeEventFull, "event is fully booked")
	case errors.Is(err, repository.ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, httputil.CodeNotFound, "resource not found")
	case errors.Is(err, service.ErrForbidden):
		httputil.WriteError(w, http.StatusForbidden, httputil.CodeForbidden, "you are not allowed to modify this resource")
	default:
		logger.Error().Err(err).Msg("request failed")
		httputil.WriteError(w, http.StatusInternalServerError, httputil.CodeServerError, "internal server error")
	}
}

// caller returns the identity RequireAuth attached to the request.
func caller(r *http.Request) *auth.Identity {
	identity, _ := auth.IdentityFromContext(r.Context())
	return identity
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
