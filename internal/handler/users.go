package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/eventreg/internal/httputil"
	"github.com/Shivanand-hulikatti/eventreg/internal/model"
	"github.com/Shivanand-hulikatti/eventreg/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// UserHandler holds the HTTP handlers for accounts.
type UserHandler struct {
	svc    *service.UserService
	logger zerolog.Logger
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(svc *service.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{svc: svc, logger: logger.With().Str("component", "user_handler").Logger()}
}

// ListUsers handles GET /users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	httputil.WriteJSON(w, http.StatusOK, users)
}

// Register handles POST /users/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	res, err := h.svc.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, authResponse{
		Message: "user registered successfully",
		Token:   res.Token,
		User:    res.User,
	})
}

// Login handles POST /users/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	res, err := h.svc.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, authResponse{
		Message: "login successful",
		Token:   res.Token,
		User:    res.User,
	})
}

// UpdateUser handles PATCH /users/{id}
// Only the account owner may update it.
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	user, err := h.svc.Update(r.Context(), caller(r), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, userResponse{Message: "user updated successfully", User: user})
}

// DeleteUser handles DELETE /users/{id}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), caller(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "user deleted successfully"})
}
