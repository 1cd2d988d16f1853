// Package memstore is an in-process store for development and tests. It
// implements the same contracts as the Postgres and Mongo stores, including
// the atomic registration check-and-append.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/eventreg/internal/model"
	"github.com/Shivanand-hulikatti/eventreg/internal/repository"
)

// Store holds users, events and registrations behind one lock.
type Store struct {
	mu     sync.RWMutex
	seq    int64
	users  map[string]*userRecord
	events map[string]*eventRecord
}

type userRecord struct {
	seq  int64
	user model.User
}

type eventRecord struct {
	seq   int64
	event model.Event
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:  make(map[string]*userRecord),
		events: make(map[string]*eventRecord),
	}
}

// Users returns the user store view.
func (s *Store) Users() *UserStore { return &UserStore{s: s} }

// Events returns the event store view.
func (s *Store) Events() *EventStore { return &EventStore{s: s} }

// Registrations returns the registration store view.
func (s *Store) Registrations() *RegistrationStore { return &RegistrationStore{s: s} }

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

func copyEvent(e model.Event) model.Event {
	e.RegisteredUsers = append([]string{}, e.RegisteredUsers...)
	return e
}

// UserStore implements user persistence.
type UserStore struct{ s *Store }

func (u *UserStore) emailTaken(email, exceptID string) bool {
	for id, rec := range u.s.users {
		if id != exceptID && rec.user.Email == email {
			return true
		}
	}
	return false
}

// Create inserts a user, enforcing unique emails.
func (u *UserStore) Create(_ context.Context, user *model.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	if u.emailTaken(user.Email, "") {
		return repository.ErrDuplicateEmail
	}
	u.s.users[user.ID] = &userRecord{seq: u.s.nextSeq(), user: *user}
	return nil
}

// List returns all users, newest first.
func (u *UserStore) List(_ context.Context) ([]model.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	recs := make([]*userRecord, 0, len(u.s.users))
	for _, rec := range u.s.users {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq > recs[j].seq })

	users := make([]model.User, 0, len(recs))
	for _, rec := range recs {
		users = append(users, rec.user)
	}
	return users, nil
}

// GetByID returns a user or repository.ErrNotFound.
func (u *UserStore) GetByID(_ context.Context, id string) (*model.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	rec, ok := u.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	user := rec.user
	return &user, nil
}

// GetByEmail returns a user by exact email or repository.ErrNotFound.
func (u *UserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	for _, rec := range u.s.users {
		if rec.user.Email == email {
			user := rec.user
			return &user, nil
		}
	}
	return nil, repository.ErrNotFound
}

// Update applies the non-nil fields of upd.
func (u *UserStore) Update(_ context.Context, id string, upd model.UserUpdate) (*model.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	rec, ok := u.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if upd.Email != nil && u.emailTaken(*upd.Email, id) {
		return nil, repository.ErrDuplicateEmail
	}
	if upd.Name != nil {
		rec.user.Name = *upd.Name
	}
	if upd.Email != nil {
		rec.user.Email = *upd.Email
	}
	if upd.Password != nil {
		rec.user.Password = *upd.Password
	}
	rec.user.UpdatedAt = time.Now().UTC()
	user := rec.user
	return &user, nil
}

// Delete removes a user, drops their registrations and clears the creator of
// their events, mirroring the Postgres foreign keys.
func (u *UserStore) Delete(_ context.Context, id string) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	if _, ok := u.s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(u.s.users, id)

	for _, rec := range u.s.events {
		if rec.event.CreatedBy == id {
			rec.event.CreatedBy = ""
		}
		for i, uid := range rec.event.RegisteredUsers {
			if uid == id {
				rec.event.RegisteredUsers = append(rec.event.RegisteredUsers[:i], rec.event.RegisteredUsers[i+1:]...)
				break
			}
		}
	}
	return nil
}

// EventStore implements event persistence.
type EventStore struct{ s *Store }

// Create inserts an event. A non-empty CreatedBy must reference a user.
func (e *EventStore) Create(_ context.Context, event *model.Event) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	if event.CreatedBy != "" {
		if _, ok := e.s.users[event.CreatedBy]; !ok {
			return repository.ErrUnknownUser
		}
	}
	if event.RegisteredUsers == nil {
		event.RegisteredUsers = []string{}
	}
	e.s.events[event.ID] = &eventRecord{seq: e.s.nextSeq(), event: copyEvent(*event)}
	return nil
}

// List returns events matching q, newest first, and the total match count.
func (e *EventStore) List(_ context.Context, q model.EventQuery) ([]model.Event, int, error) {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()

	needle := strings.ToLower(q.Search)
	var recs []*eventRecord
	for _, rec := range e.s.events {
		if needle != "" &&
			!strings.Contains(strings.ToLower(rec.event.Title), needle) &&
			!strings.Contains(strings.ToLower(rec.event.Location), needle) {
			continue
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq > recs[j].seq })

	total := len(recs)
	if q.Limit > 0 {
		start := min(q.Offset(), total)
		end := min(start+q.Limit, total)
		recs = recs[start:end]
	}

	events := make([]model.Event, 0, len(recs))
	for _, rec := range recs {
		events = append(events, copyEvent(rec.event))
	}
	return events, total, nil
}

// GetByID returns an event or repository.ErrNotFound.
func (e *EventStore) GetByID(_ context.Context, id string) (*model.Event, error) {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()

	rec, ok := e.s.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	event := copyEvent(rec.event)
	return &event, nil
}

// Update applies the non-nil fields of upd.
func (e *EventStore) Update(_ context.Context, id string, upd model.EventUpdate) (*model.Event, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	rec, ok := e.s.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if upd.MaxParticipants != nil && *upd.MaxParticipants < len(rec.event.RegisteredUsers) {
		return nil, repository.ErrCapacityBelowRegistrations
	}
	if upd.Title != nil {
		rec.event.Title = *upd.Title
	}
	if upd.Date != nil {
		rec.event.Date = *upd.Date
	}
	if upd.Location != nil {
		rec.event.Location = *upd.Location
	}
	if upd.Description != nil {
		rec.event.Description = *upd.Description
	}
	if upd.MaxParticipants != nil {
		rec.event.MaxParticipants = *upd.MaxParticipants
	}
	rec.event.UpdatedAt = time.Now().UTC()
	event := copyEvent(rec.event)
	return &event, nil
}

// Delete removes an event and its registrations.
func (e *EventStore) Delete(_ context.Context, id string) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	if _, ok := e.s.events[id]; !ok {
		return repository.ErrNotFound
	}
	delete(e.s.events, id)
	return nil
}

// RegistrationStore implements the registration check-and-append.
type RegistrationStore struct{ s *Store }

// Book appends userID to the event's registered users. The existence,
// duplicate and capacity checks and the append happen under one lock.
func (r *RegistrationStore) Book(_ context.Context, eventID, userID string) (*model.Registration, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.events[eventID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if _, ok := r.s.users[userID]; !ok {
		return nil, repository.ErrUnknownUser
	}
	if rec.event.HasRegistered(userID) {
		return nil, repository.ErrAlreadyRegistered
	}
	if rec.event.IsFull() {
		return nil, repository.ErrEventFull
	}

	now := time.Now().UTC()
	rec.event.RegisteredUsers = append(rec.event.RegisteredUsers, userID)
	return &model.Registration{EventID: eventID, UserID: userID, CreatedAt: now}, nil
}

// ListUsers returns registered user profiles in registration order. An
// unknown event yields an empty list.
func (r *RegistrationStore) ListUsers(_ context.Context, eventID string) ([]model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	users := []model.User{}
	rec, ok := r.s.events[eventID]
	if !ok {
		return users, nil
	}
	for _, id := range rec.event.RegisteredUsers {
		if u, ok := r.s.users[id]; ok {
			users = append(users, u.user)
		}
	}
	return users, nil
}
