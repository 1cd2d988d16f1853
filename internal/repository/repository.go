// Package repository implements all database queries for the event
// registration system. It uses pgx directly (no ORM).
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/eventreg/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrEventFull is returned when an event has no remaining capacity.
var ErrEventFull = errors.New("event is fully booked")

// ErrAlreadyRegistered is returned when the same user registers twice.
var ErrAlreadyRegistered = errors.New("user already registered for this event")

// ErrDuplicateEmail is returned when an email is already taken.
var ErrDuplicateEmail = errors.New("email already exists")

// ErrUnknownUser is returned when a reference points at a missing user.
var ErrUnknownUser = errors.New("referenced user does not exist")

// ErrCapacityBelowRegistrations is returned when an update would lower
// maxParticipants under the number of users already registered.
var ErrCapacityBelowRegistrations = errors.New("maxParticipants cannot be lower than the number of registered users")

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

const eventColumns = `e.id, e.title, e.event_date, e.location, e.description,
	COALESCE(e.created_by, ''), e.max_participants,
	ARRAY(SELECT r.user_id FROM event_registrations r
	      WHERE r.event_id = e.id ORDER BY r.created_at, r.user_id),
	e.created_at, e.updated_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Title, &e.Date, &e.Location, &e.Description,
		&e.CreatedBy, &e.MaxParticipants, &e.RegisteredUsers, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if e.RegisteredUsers == nil {
		e.RegisteredUsers = []string{}
	}
	return &e, nil
}

// EventRepository handles persistence for events.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event. ID and timestamps must already be set.
func (r *EventRepository) Create(ctx context.Context, event *model.Event) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO events (id, title, event_date, location, description, created_by, max_participants, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		event.ID, event.Title, event.Date, event.Location, event.Description,
		nullIfEmpty(event.CreatedBy), event.MaxParticipants, event.CreatedAt, event.UpdatedAt,
	)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return ErrUnknownUser
		}
		return fmt.Errorf("insert event: %w", err)
	}
	if event.RegisteredUsers == nil {
		event.RegisteredUsers = []string{}
	}
	return nil
}

// List returns events matching q, newest first, plus the total number of
// matches ignoring pagination.
func (r *EventRepository) List(ctx context.Context, q model.EventQuery) ([]model.Event, int, error) {
	var (
		where strings.Builder
		args  []any
	)
	if q.Search != "" {
		args = append(args, "%"+escapeLike(q.Search)+"%")
		where.WriteString(` WHERE (e.title ILIKE $1 OR e.location ILIKE $1)`)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM events e`+where.String(), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	query := `SELECT ` + eventColumns + ` FROM events e` + where.String() + ` ORDER BY e.seq DESC`
	if q.Limit > 0 {
		args = append(args, q.Limit, q.Offset())
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, total, rows.Err()
}

// GetByID returns a single event or ErrNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events e WHERE e.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// Update applies upd under a row lock so a capacity change cannot race a
// concurrent registration.
func (r *EventRepository) Update(ctx context.Context, id string, upd model.EventUpdate) (*model.Event, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked string
	err = tx.QueryRow(ctx, `SELECT id FROM events WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock event row: %w", err)
	}

	var registered int
	err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM event_registrations WHERE event_id = $1`, id).Scan(&registered)
	if err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}
	if upd.MaxParticipants != nil && *upd.MaxParticipants < registered {
		return nil, ErrCapacityBelowRegistrations
	}

	_, err = tx.Exec(ctx,
		`UPDATE events SET
			title = COALESCE($2, title),
			event_date = COALESCE($3, event_date),
			location = COALESCE($4, location),
			description = COALESCE($5, description),
			max_participants = COALESCE($6, max_participants),
			updated_at = $7
		 WHERE id = $1`,
		id, upd.Title, upd.Date, upd.Location, upd.Description, upd.MaxParticipants, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}

	e, err := scanEvent(tx.QueryRow(ctx, `SELECT `+eventColumns+` FROM events e WHERE e.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("reload event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return e, nil
}

// Delete removes an event and, by cascade, its registrations.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RegistrationRepository handles persistence for registrations.
type RegistrationRepository struct {
	db *pgxpool.Pool
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Book adds userID to the event's registered users as one atomic unit.
//
// Two transactions that both read the registration count before either
// writes would each see a free seat and overbook the event. SELECT ... FOR
// UPDATE takes a row lock on the event so concurrent Book calls for the same
// event run the duplicate check, capacity check and insert one at a time.
// The (event_id, user_id) primary key backs up the duplicate check.
func (r *RegistrationRepository) Book(ctx context.Context, eventID, userID string) (*model.Registration, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	// No-op once committed.
	defer func() { _ = tx.Rollback(ctx) }()

	var capacity int
	err = tx.QueryRow(ctx,
		`SELECT max_participants FROM events WHERE id = $1 FOR UPDATE`,
		eventID,
	).Scan(&capacity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock event row: %w", err)
	}

	var registered int
	var already bool
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(BOOL_OR(user_id = $2), false)
		 FROM event_registrations WHERE event_id = $1`,
		eventID, userID,
	).Scan(&registered, &already)
	if err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}
	if already {
		return nil, ErrAlreadyRegistered
	}
	if registered >= capacity {
		return nil, ErrEventFull
	}

	reg := &model.Registration{
		EventID:   eventID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO event_registrations (event_id, user_id, created_at) VALUES ($1, $2, $3)`,
		reg.EventID, reg.UserID, reg.CreatedAt,
	)
	if err != nil {
		switch pgErrorCode(err) {
		case pgUniqueViolation:
			return nil, ErrAlreadyRegistered
		case pgForeignKeyViolation:
			return nil, ErrUnknownUser
		}
		return nil, fmt.Errorf("insert registration: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return reg, nil
}

// ListUsers returns the profiles of users registered for an event, in
// registration order.
func (r *RegistrationRepository) ListUsers(ctx context.Context, eventID string) ([]model.User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+`
		 FROM event_registrations r
		 JOIN users u ON u.id = r.user_id
		 WHERE r.event_id = $1
		 ORDER BY r.created_at, r.user_id`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registered users: %w", err)
	}
	return collectUsers(rows)
}

// nullIfEmpty maps "" to SQL NULL for nullable foreign keys.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
