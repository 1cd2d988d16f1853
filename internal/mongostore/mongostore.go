// Package mongostore persists users and events in MongoDB. Registered users
// are embedded in each event document as an array of user ids.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	usersCollection    = "users"
	eventsCollection   = "events"
	countersCollection = "counters"
)

// Store wraps a connected client and the application database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri, verifies the connection and returns a Store bound to
// database.
func Connect(ctx context.Context, uri, database string, logger zerolog.Logger) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(10*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	logger.Info().Str("database", database).Msg("connected to mongo")
	return &Store{client: client, db: client.Database(database)}, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the unique email index and the listing indexes.
// It is idempotent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create users email index: %w", err)
	}

	for _, name := range []string{usersCollection, eventsCollection} {
		_, err = s.db.Collection(name).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: "seq", Value: -1}},
		})
		if err != nil {
			return fmt.Errorf("create %s seq index: %w", name, err)
		}
	}
	return nil
}

// Users returns the user store view.
func (s *Store) Users() *UserStore {
	return &UserStore{
		users:    s.db.Collection(usersCollection),
		events:   s.db.Collection(eventsCollection),
		counters: s.db.Collection(countersCollection),
	}
}

// Events returns the event store view.
func (s *Store) Events() *EventStore {
	return &EventStore{
		users:    s.db.Collection(usersCollection),
		events:   s.db.Collection(eventsCollection),
		counters: s.db.Collection(countersCollection),
	}
}

// Registrations returns the registration store view.
func (s *Store) Registrations() *RegistrationStore {
	return &RegistrationStore{users: s.db.Collection(usersCollection), events: s.db.Collection(eventsCollection)}
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// newestFirst orders documents by insertion, latest first.
var newestFirst = bson.D{{Key: "seq", Value: -1}}

// nextSeq returns the next value of the named counter. Values strictly
// increase across every process sharing the database.
func nextSeq(ctx context.Context, counters *mongo.Collection, name string) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	for attempt := 0; attempt < 2; attempt++ {
		err := counters.FindOneAndUpdate(ctx,
			bson.M{"_id": name},
			bson.M{"$inc": bson.M{"seq": int64(1)}},
			opts,
		).Decode(&counter)
		if err == nil {
			return counter.Seq, nil
		}
		// Two first-time upserts can race on _id; the loser retries as an update.
		if !mongo.IsDuplicateKeyError(err) {
			return 0, fmt.Errorf("next %s seq: %w", name, err)
		}
	}
	return 0, fmt.Errorf("next %s seq: counter upsert kept conflicting", name)
}
