package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/Shivanand-hulikatti/eventreg/internal/model"
	"github.com/Shivanand-hulikatti/eventreg/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// registeredCount is the aggregation expression for the registered-user
// array length.
var registeredCount = bson.M{"$size": "$registeredUsers"}

// eventDoc is the stored form of an event: the model plus its insertion
// sequence.
type eventDoc struct {
	model.Event `bson:",inline"`
	Seq         int64 `bson:"seq"`
}

// EventStore implements event persistence on the events collection.
type EventStore struct {
	users    *mongo.Collection
	events   *mongo.Collection
	counters *mongo.Collection
}

func (s *EventStore) Create(ctx context.Context, event *model.Event) error {
	if event.CreatedBy != "" {
		n, err := s.users.CountDocuments(ctx, bson.M{"_id": event.CreatedBy})
		if err != nil {
			return fmt.Errorf("check creator: %w", err)
		}
		if n == 0 {
			return repository.ErrUnknownUser
		}
	}
	// $size needs an array, not null.
	if event.RegisteredUsers == nil {
		event.RegisteredUsers = []string{}
	}
	seq, err := nextSeq(ctx, s.counters, eventsCollection)
	if err != nil {
		return err
	}
	if _, err := s.events.InsertOne(ctx, eventDoc{Event: *event, Seq: seq}); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *EventStore) List(ctx context.Context, q model.EventQuery) ([]model.Event, int, error) {
	filter := bson.M{}
	if q.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(q.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"location": pattern},
		}
	}

	total, err := s.events.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	opts := options.Find().SetSort(newestFirst)
	if q.Limit > 0 {
		opts.SetSkip(int64(q.Offset())).SetLimit(int64(q.Limit))
	}
	cur, err := s.events.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	events := []model.Event{}
	if err := cur.All(ctx, &events); err != nil {
		return nil, 0, fmt.Errorf("decode events: %w", err)
	}
	for i := range events {
		normalize(&events[i])
	}
	return events, int(total), nil
}

func (s *EventStore) GetByID(ctx context.Context, id string) (*model.Event, error) {
	return getEvent(ctx, s.events, id)
}

// Update applies upd in one conditional write. A capacity change only
// matches while the registered-user count still fits under it.
func (s *EventStore) Update(ctx context.Context, id string, upd model.EventUpdate) (*model.Event, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if upd.Title != nil {
		set["title"] = *upd.Title
	}
	if upd.Date != nil {
		set["date"] = *upd.Date
	}
	if upd.Location != nil {
		set["location"] = *upd.Location
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}

	filter := bson.M{"_id": id}
	if upd.MaxParticipants != nil {
		set["maxParticipants"] = *upd.MaxParticipants
		filter["$expr"] = bson.M{"$lte": bson.A{registeredCount, *upd.MaxParticipants}}
	}

	var e model.Event
	err := s.events.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&e)
	if err == nil {
		normalize(&e)
		return &e, nil
	}
	if !isNoDocuments(err) {
		return nil, fmt.Errorf("update event: %w", err)
	}

	// No match: either the event is gone or the capacity guard failed.
	if _, err := getEvent(ctx, s.events, id); err != nil {
		return nil, err
	}
	return nil, repository.ErrCapacityBelowRegistrations
}

func (s *EventStore) Delete(ctx context.Context, id string) error {
	res, err := s.events.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RegistrationStore implements the registration check-and-append.
type RegistrationStore struct {
	users  *mongo.Collection
	events *mongo.Collection
}

// Book appends userID with a single conditional UpdateOne. The filter only
// matches while the user is absent from registeredUsers and the array is
// shorter than maxParticipants, so the server applies the checks and the
// push atomically on the one document.
func (r *RegistrationStore) Book(ctx context.Context, eventID, userID string) (*model.Registration, error) {
	n, err := r.users.CountDocuments(ctx, bson.M{"_id": userID})
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if n == 0 {
		return nil, repository.ErrUnknownUser
	}

	now := time.Now().UTC()
	res, err := r.events.UpdateOne(ctx,
		bson.M{
			"_id":             eventID,
			"registeredUsers": bson.M{"$ne": userID},
			"$expr":           bson.M{"$lt": bson.A{registeredCount, "$maxParticipants"}},
		},
		bson.M{
			"$push": bson.M{"registeredUsers": userID},
			"$set":  bson.M{"updatedAt": now},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("book registration: %w", err)
	}
	if res.MatchedCount == 0 {
		event, err := getEvent(ctx, r.events, eventID)
		if err != nil {
			return nil, err
		}
		if event.HasRegistered(userID) {
			return nil, repository.ErrAlreadyRegistered
		}
		return nil, repository.ErrEventFull
	}
	return &model.Registration{EventID: eventID, UserID: userID, CreatedAt: now}, nil
}

// ListUsers resolves the event's registered users in registration order.
// An unknown event yields an empty list.
func (r *RegistrationStore) ListUsers(ctx context.Context, eventID string) ([]model.User, error) {
	event, err := getEvent(ctx, r.events, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return []model.User{}, nil
		}
		return nil, err
	}
	if len(event.RegisteredUsers) == 0 {
		return []model.User{}, nil
	}

	cur, err := r.users.Find(ctx, bson.M{"_id": bson.M{"$in": event.RegisteredUsers}})
	if err != nil {
		return nil, fmt.Errorf("list registered users: %w", err)
	}
	var found []model.User
	if err := cur.All(ctx, &found); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	byID := make(map[string]model.User, len(found))
	for _, u := range found {
		byID[u.ID] = u
	}
	users := make([]model.User, 0, len(found))
	for _, id := range event.RegisteredUsers {
		if u, ok := byID[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

func getEvent(ctx context.Context, coll *mongo.Collection, id string) (*model.Event, error) {
	var e model.Event
	if err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		if isNoDocuments(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	normalize(&e)
	return &e, nil
}

func normalize(e *model.Event) {
	if e.RegisteredUsers == nil {
		e.RegisteredUsers = []string{}
	}
	e.Date = e.Date.UTC()
}
