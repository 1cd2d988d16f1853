package handler

import (
	"net/http"
	"strconv"

	"github.com/Shivanand-hulikatti/eventreg/internal/httputil"
	"github.com/Shivanand-hulikatti/eventreg/internal/model"
	"github.com/Shivanand-hulikatti/eventreg/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// EventHandler holds all HTTP handlers for events and registrations.
type EventHandler struct {
	svc    *service.EventService
	logger zerolog.Logger
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(svc *service.EventService, logger zerolog.Logger) *EventHandler {
	return &EventHandler{svc: svc, logger: logger.With().Str("component", "event_handler").Logger()}
}

// CreateEvent handles POST /events/create
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	event, err := h.svc.Create(r.Context(), caller(r), req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, eventResponse{Message: "event created successfully", Event: event})
}

// ListEvents handles GET /events?search=&page=&limit=
// The total number of matches is returned in X-Total-Count.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query, err := service.ParseEventQuery(q.Get("search"), q.Get("page"), q.Get("limit"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	events, total, err := h.svc.List(r.Context(), query)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if events == nil {
		events = []model.Event{}
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	httputil.WriteJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, event)
}

// UpdateEvent handles PATCH /events/{id}
// Only the creator may update the event.
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	event, err := h.svc.Update(r.Context(), caller(r), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, eventResponse{Message: "event updated successfully", Event: event})
}

// DeleteEvent handles DELETE /events/{id}
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), caller(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "event deleted successfully"})
}

// Register handles POST /events/{id}/register
// Registers the authenticated caller. The duplicate and capacity checks
// are atomic with the append.
func (h *EventHandler) Register(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Register(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, registrationResponse{
		Message: "registered for event successfully",
		Event:   res.Event,
		User:    res.User,
	})
}

// ListRegisteredUsers handles GET /events/{id}/registered-users
func (h *EventHandler) ListRegisteredUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListRegisteredUsers(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	httputil.WriteJSON(w, http.StatusOK, users)
}
