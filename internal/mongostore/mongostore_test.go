package mongostore

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/eventreg/internal/model"
	"github.com/Shivanand-hulikatti/eventreg/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupStore connects to the Mongo server named by MONGO_TEST_URI and uses a
// throwaway database that is dropped when the test ends.
func setupStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := Connect(ctx, uri, "eventreg_test_"+uuid.NewString()[:8], zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, store.EnsureIndexes(ctx))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = store.db.Drop(ctx)
		_ = store.Close(ctx)
	})
	return store
}

func newUser(t *testing.T, s *Store, email string) *model.User {
	t.Helper()
	now := time.Now().UTC()
	u := &model.User{ID: uuid.NewString(), Name: "u", Email: email, Password: "hash", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.Users().Create(context.Background(), u))
	return u
}

func newEvent(t *testing.T, s *Store, title string, capacity int) *model.Event {
	t.Helper()
	now := time.Now().UTC()
	e := &model.Event{
		ID:              uuid.NewString(),
		Title:           title,
		Date:            time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Location:        "L",
		MaxParticipants: capacity,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, s.Events().Create(context.Background(), e))
	return e
}

func TestMongoUsers(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	a := newUser(t, s, "a@x.com")
	err := s.Users().Create(ctx, &model.User{ID: uuid.NewString(), Email: "a@x.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)

	got, err := s.Users().GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	b := newUser(t, s, "b@x.com")
	taken := "a@x.com"
	_, err = s.Users().Update(ctx, b.ID, model.UserUpdate{Email: &taken})
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)

	_, err = s.Users().GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, s.Users().Delete(ctx, uuid.NewString()), repository.ErrNotFound)
}

func TestMongoDeleteUserReleasesSeatAndDetachesEvents(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	a := newUser(t, s, "a@x.com")
	b := newUser(t, s, "b@x.com")

	now := time.Now().UTC()
	e := &model.Event{
		ID: uuid.NewString(), Title: "T", Location: "L", CreatedBy: a.ID,
		MaxParticipants: 1, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.Events().Create(ctx, e))
	_, err := s.Registrations().Book(ctx, e.ID, a.ID)
	require.NoError(t, err)

	require.NoError(t, s.Users().Delete(ctx, a.ID))
	assert.ErrorIs(t, s.Users().Delete(ctx, a.ID), repository.ErrNotFound)

	got, err := s.Events().GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Empty(t, got.RegisteredUsers)
	assert.Empty(t, got.CreatedBy)

	_, err = s.Registrations().Book(ctx, e.ID, b.ID)
	require.NoError(t, err)
}

func TestMongoListIsNewestFirstWithinSameTimestamp(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	var ids []string
	for i := range 6 {
		e := &model.Event{
			ID: uuid.NewString(), Title: fmt.Sprintf("E%d", i), Location: "L",
			MaxParticipants: 1, CreatedAt: now, UpdatedAt: now,
		}
		require.NoError(t, s.Events().Create(ctx, e))
		ids = append([]string{e.ID}, ids...)

		u := &model.User{ID: uuid.NewString(), Name: "u", Email: fmt.Sprintf("u%d@x.com", i), Password: "h", CreatedAt: now, UpdatedAt: now}
		require.NoError(t, s.Users().Create(ctx, u))
	}

	events, total, err := s.Events().List(ctx, model.EventQuery{})
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	got := make([]string, len(events))
	for i, e := range events {
		got[i] = e.ID
	}
	assert.Equal(t, ids, got)

	users, err := s.Users().List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 6)
	assert.Equal(t, "u5@x.com", users[0].Email)
	assert.Equal(t, "u0@x.com", users[5].Email)
}

func TestMongoEventSearch(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	newEvent(t, s, "Go Meetup", 5)
	newEvent(t, s, "a.b (regex)", 5)

	events, total, err := s.Events().List(ctx, model.EventQuery{Search: "go"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, events, 1)
	assert.Equal(t, "Go Meetup", events[0].Title)

	// Regex metacharacters match literally.
	_, total, err = s.Events().List(ctx, model.EventQuery{Search: "(regex)"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestMongoBook(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	a := newUser(t, s, "a@x.com")
	b := newUser(t, s, "b@x.com")
	e := newEvent(t, s, "T", 1)

	_, err := s.Registrations().Book(ctx, e.ID, a.ID)
	require.NoError(t, err)
	_, err = s.Registrations().Book(ctx, e.ID, a.ID)
	assert.ErrorIs(t, err, repository.ErrAlreadyRegistered)
	_, err = s.Registrations().Book(ctx, e.ID, b.ID)
	assert.ErrorIs(t, err, repository.ErrEventFull)
	_, err = s.Registrations().Book(ctx, uuid.NewString(), a.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	zero := 0
	_, err = s.Events().Update(ctx, e.ID, model.EventUpdate{MaxParticipants: &zero})
	assert.ErrorIs(t, err, repository.ErrCapacityBelowRegistrations)

	users, err := s.Registrations().ListUsers(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, a.ID, users[0].ID)
}

func TestMongoBookConcurrent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	const capacity = 3
	e := newEvent(t, s, "T", capacity)

	var wg sync.WaitGroup
	for i := range 20 {
		u := newUser(t, s, fmt.Sprintf("u%d@x.com", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Registrations().Book(ctx, e.ID, u.ID)
		}()
	}
	wg.Wait()

	got, err := s.Events().GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, got.RegisteredUsers, capacity)
}
