package memstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/eventreg/internal/model"
	"github.com/Shivanand-hulikatti/eventreg/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, s *Store, email string) *model.User {
	t.Helper()
	u := &model.User{ID: uuid.NewString(), Name: "user", Email: email, Password: "hash"}
	require.NoError(t, s.Users().Create(context.Background(), u))
	return u
}

func seedEvent(t *testing.T, s *Store, title, location string, capacity int) *model.Event {
	t.Helper()
	e := &model.Event{
		ID:              uuid.NewString(),
		Title:           title,
		Date:            time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Location:        location,
		MaxParticipants: capacity,
	}
	require.NoError(t, s.Events().Create(context.Background(), e))
	return e
}

func TestUserEmailUnique(t *testing.T) {
	s := New()
	seedUser(t, s, "a@x.com")

	err := s.Users().Create(context.Background(), &model.User{ID: uuid.NewString(), Email: "a@x.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)

	b := seedUser(t, s, "b@x.com")
	taken := "a@x.com"
	_, err = s.Users().Update(context.Background(), b.ID, model.UserUpdate{Email: &taken})
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)
}

func TestUserDeleteUnknown(t *testing.T) {
	s := New()
	seedUser(t, s, "a@x.com")

	err := s.Users().Delete(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, repository.ErrNotFound)

	users, err := s.Users().List(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestUserDeleteDetachesEvents(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := seedUser(t, s, "a@x.com")
	e := seedEvent(t, s, "T", "L", 5)
	_, err := s.Registrations().Book(ctx, e.ID, u.ID)
	require.NoError(t, err)

	require.NoError(t, s.Users().Delete(ctx, u.ID))

	got, err := s.Events().GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Empty(t, got.RegisteredUsers)
}

func TestEventCreateUnknownCreator(t *testing.T) {
	s := New()
	e := &model.Event{ID: uuid.NewString(), Title: "T", CreatedBy: uuid.NewString(), MaxParticipants: 1}
	err := s.Events().Create(context.Background(), e)
	assert.ErrorIs(t, err, repository.ErrUnknownUser)
}

func TestEventListSearchAndPaging(t *testing.T) {
	s := New()
	seedEvent(t, s, "Go Meetup", "Berlin", 10)
	seedEvent(t, s, "Rust Night", "Paris", 10)
	seedEvent(t, s, "gopher day", "Lisbon", 10)
	seedEvent(t, s, "Tea", "Gothenburg", 10)

	events, total, err := s.Events().List(context.Background(), model.EventQuery{Search: "GO"})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, events, 3)
	// newest first
	assert.Equal(t, "Tea", events[0].Title)
	assert.Equal(t, "Go Meetup", events[2].Title)

	events, total, err = s.Events().List(context.Background(), model.EventQuery{Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, events, 1)
	assert.Equal(t, "Go Meetup", events[0].Title)

	events, _, err = s.Events().List(context.Background(), model.EventQuery{Page: 5, Limit: 3})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEventUpdateCapacityBelowRegistrations(t *testing.T) {
	ctx := context.Background()
	s := New()
	e := seedEvent(t, s, "T", "L", 3)
	for i := range 2 {
		u := seedUser(t, s, fmt.Sprintf("u%d@x.com", i))
		_, err := s.Registrations().Book(ctx, e.ID, u.ID)
		require.NoError(t, err)
	}

	one := 1
	_, err := s.Events().Update(ctx, e.ID, model.EventUpdate{MaxParticipants: &one})
	assert.ErrorIs(t, err, repository.ErrCapacityBelowRegistrations)

	two := 2
	got, err := s.Events().Update(ctx, e.ID, model.EventUpdate{MaxParticipants: &two})
	require.NoError(t, err)
	assert.Equal(t, 2, got.MaxParticipants)
	assert.True(t, got.IsFull())
}

func TestBook(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := seedUser(t, s, "a@x.com")
	b := seedUser(t, s, "b@x.com")
	e := seedEvent(t, s, "T", "L", 1)

	reg, err := s.Registrations().Book(ctx, e.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, reg.UserID)

	_, err = s.Registrations().Book(ctx, e.ID, a.ID)
	assert.ErrorIs(t, err, repository.ErrAlreadyRegistered)

	_, err = s.Registrations().Book(ctx, e.ID, b.ID)
	assert.ErrorIs(t, err, repository.ErrEventFull)

	_, err = s.Registrations().Book(ctx, uuid.NewString(), a.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	users, err := s.Registrations().ListUsers(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, a.Email, users[0].Email)
}

func TestBookConcurrentNeverOverbooks(t *testing.T) {
	ctx := context.Background()
	s := New()
	const capacity = 5
	e := seedEvent(t, s, "T", "L", capacity)

	users := make([]*model.User, 50)
	for i := range users {
		users[i] = seedUser(t, s, fmt.Sprintf("u%d@x.com", i))
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		booked int
		full   int
	)
	for _, u := range users {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := s.Registrations().Book(ctx, e.ID, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				booked++
			case assert.ErrorIs(t, err, repository.ErrEventFull):
				full++
			}
		}(u.ID)
	}
	wg.Wait()

	assert.Equal(t, capacity, booked)
	assert.Equal(t, len(users)-capacity, full)

	got, err := s.Events().GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, got.RegisteredUsers, capacity)
}

func TestGetByIDReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := seedUser(t, s, "a@x.com")
	e := seedEvent(t, s, "T", "L", 2)
	_, err := s.Registrations().Book(ctx, e.ID, u.ID)
	require.NoError(t, err)

	got, err := s.Events().GetByID(ctx, e.ID)
	require.NoError(t, err)
	got.RegisteredUsers[0] = "tampered"

	again, err := s.Events().GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{u.ID}, again.RegisteredUsers)
}
