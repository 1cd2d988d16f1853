package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/eventreg/internal/auth"
	"github.com/Shivanand-hulikatti/eventreg/internal/metrics"
	"github.com/Shivanand-hulikatti/eventreg/internal/model"
	"github.com/Shivanand-hulikatti/eventreg/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// RegistrationResult is returned by a successful event registration.
type RegistrationResult struct {
	Event *model.EventDetail
	User  *model.User
}

// EventService orchestrates event and registration operations.
type EventService struct {
	events        EventStore
	registrations RegistrationStore
	users         UserStore
	validator     *validator.Validate
	logger        zerolog.Logger
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(events EventStore, registrations RegistrationStore, users UserStore, logger zerolog.Logger) *EventService {
	return &EventService{
		events:        events,
		registrations: registrations,
		users:         users,
		validator:     newValidator(),
		logger:        logger.With().Str("component", "events").Logger(),
	}
}

// ParseEventQuery turns raw page/limit/search query values into an
// EventQuery. Both page and limit empty means no pagination.
func ParseEventQuery(search, page, limit string) (model.EventQuery, error) {
	q := model.EventQuery{Search: strings.TrimSpace(search)}
	if page == "" && limit == "" {
		return q, nil
	}

	var bad []string
	q.Page, q.Limit = DefaultPage, DefaultLimit
	if page != "" {
		n, err := strconv.Atoi(page)
		if err != nil || n < 1 {
			bad = append(bad, "page")
		}
		q.Page = n
	}
	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 || n > MaxLimit {
			bad = append(bad, "limit")
		}
		q.Limit = n
	}
	if len(bad) > 0 {
		return model.EventQuery{}, invalid(fmt.Sprintf("page must be a positive integer and limit between 1 and %d", MaxLimit), bad...)
	}
	return q, nil
}

// List returns events matching q and the total match count.
func (s *EventService) List(ctx context.Context, q model.EventQuery) ([]model.Event, int, error) {
	events, total, err := s.events.List(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	return events, total, nil
}

// Get returns a single event.
func (s *EventService) Get(ctx context.Context, id string) (*model.Event, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	return s.events.GetByID(ctx, id)
}

// Create validates and persists a new event. The creator defaults to the
// caller.
func (s *EventService) Create(ctx context.Context, caller *auth.Identity, req model.CreateEventRequest) (*model.Event, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Location = strings.TrimSpace(req.Location)
	req.Date = strings.TrimSpace(req.Date)
	req.CreatedBy = strings.TrimSpace(req.CreatedBy)
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}

	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}

	createdBy := req.CreatedBy
	if createdBy == "" && caller != nil {
		createdBy = caller.UserID
	}

	now := time.Now().UTC()
	event := &model.Event{
		ID:              uuid.New().String(),
		Title:           req.Title,
		Date:            date,
		Location:        req.Location,
		Description:     req.Description,
		CreatedBy:       createdBy,
		MaxParticipants: req.MaxParticipants,
		RegisteredUsers: []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.events.Create(ctx, event); err != nil {
		if errors.Is(err, repository.ErrUnknownUser) {
			return nil, invalid("createdBy does not reference an existing user", "createdBy")
		}
		return nil, fmt.Errorf("create event: %w", err)
	}

	s.logger.Info().Str("event_id", event.ID).Str("created_by", createdBy).Msg("event created")
	return event, nil
}

// Update applies a partial update. Only the creator may update an event.
func (s *EventService) Update(ctx context.Context, caller *auth.Identity, id string, req model.UpdateEventRequest) (*model.Event, error) {
	if _, err := s.ensureOwner(ctx, caller, id); err != nil {
		return nil, err
	}

	req.Title = trimmed(req.Title)
	req.Location = trimmed(req.Location)
	req.Date = trimmed(req.Date)
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	if req.Title == nil && req.Date == nil && req.Location == nil && req.Description == nil && req.MaxParticipants == nil {
		return nil, invalid("at least one field is required", "title", "date", "location", "description", "maxParticipants")
	}

	upd := model.EventUpdate{
		Title:           req.Title,
		Location:        req.Location,
		Description:     req.Description,
		MaxParticipants: req.MaxParticipants,
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			return nil, err
		}
		upd.Date = &date
	}

	event, err := s.events.Update(ctx, id, upd)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, err
		case errors.Is(err, repository.ErrCapacityBelowRegistrations):
			return nil, invalid(err.Error(), "maxParticipants")
		}
		return nil, fmt.Errorf("update event: %w", err)
	}
	return event, nil
}

// Delete removes an event. Only the creator may delete it.
func (s *EventService) Delete(ctx context.Context, caller *auth.Identity, id string) error {
	if _, err := s.ensureOwner(ctx, caller, id); err != nil {
		return err
	}
	if err := s.events.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete event: %w", err)
	}
	s.logger.Info().Str("event_id", id).Msg("event deleted")
	return nil
}

// Register adds the caller to the event's registered users. The duplicate
// and capacity checks run inside the store together with the append.
func (s *EventService) Register(ctx context.Context, caller *auth.Identity, eventID string) (*RegistrationResult, error) {
	if caller == nil {
		return nil, ErrForbidden
	}
	if !validID(eventID) {
		metrics.RecordRegistration(metrics.OutcomeNotFound)
		return nil, repository.ErrNotFound
	}

	user, err := s.users.GetByID(ctx, caller.UserID)
	if err != nil {
		// A valid token for a deleted account.
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if _, err := s.registrations.Book(ctx, eventID, user.ID); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			metrics.RecordRegistration(metrics.OutcomeNotFound)
			return nil, err
		case errors.Is(err, repository.ErrAlreadyRegistered):
			metrics.RecordRegistration(metrics.OutcomeAlreadyRegistered)
			return nil, err
		case errors.Is(err, repository.ErrEventFull):
			metrics.RecordRegistration(metrics.OutcomeEventFull)
			return nil, err
		}
		metrics.RecordRegistration(metrics.OutcomeError)
		return nil, fmt.Errorf("book registration: %w", err)
	}
	metrics.RecordRegistration(metrics.OutcomeRegistered)

	detail, err := s.detail(ctx, eventID)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("event_id", eventID).Str("user_id", user.ID).Msg("user registered for event")
	return &RegistrationResult{Event: detail, User: user}, nil
}

// ListRegisteredUsers returns the profiles of users registered for an event.
func (s *EventService) ListRegisteredUsers(ctx context.Context, eventID string) ([]model.User, error) {
	if _, err := s.Get(ctx, eventID); err != nil {
		return nil, err
	}
	users, err := s.registrations.ListUsers(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list registered users: %w", err)
	}
	return users, nil
}

func (s *EventService) detail(ctx context.Context, eventID string) (*model.EventDetail, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("reload event: %w", err)
	}
	users, err := s.registrations.ListUsers(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("resolve registered users: %w", err)
	}
	return &model.EventDetail{Event: event, RegisteredUsers: users}, nil
}

func (s *EventService) ensureOwner(ctx context.Context, caller *auth.Identity, id string) (*model.Event, error) {
	event, err := s.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if caller == nil || event.CreatedBy == "" || event.CreatedBy != caller.UserID {
		return nil, ErrForbidden
	}
	return event, nil
}

// parseDate accepts a calendar date or a full RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, invalid("date must be YYYY-MM-DD or RFC 3339", "date")
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
