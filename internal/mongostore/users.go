package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/eventreg/internal/model"
	"github.com/Shivanand-hulikatti/eventreg/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserStore implements user persistence on the users collection.
type UserStore struct {
	users    *mongo.Collection
	events   *mongo.Collection
	counters *mongo.Collection
}

// userDoc is the stored form of a user: the model plus its insertion sequence.
type userDoc struct {
	model.User `bson:",inline"`
	Seq        int64 `bson:"seq"`
}

func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	seq, err := nextSeq(ctx, s.counters, usersCollection)
	if err != nil {
		return err
	}
	if _, err := s.users.InsertOne(ctx, userDoc{User: *user, Seq: seq}); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *UserStore) List(ctx context.Context) ([]model.User, error) {
	cur, err := s.users.Find(ctx, bson.M{}, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := []model.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	var u model.User
	if err := s.users.FindOne(ctx, filter).Decode(&u); err != nil {
		if isNoDocuments(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *UserStore) Update(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Email != nil {
		set["email"] = *upd.Email
	}
	if upd.Password != nil {
		set["password"] = *upd.Password
	}

	var u model.User
	err := s.users.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&u)
	if err != nil {
		switch {
		case isNoDocuments(err):
			return nil, repository.ErrNotFound
		case mongo.IsDuplicateKeyError(err):
			return nil, repository.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return &u, nil
}

// Delete removes the user, pulls them from every event's registered users
// and clears createdBy on events they created. References are cleared before
// the user document goes, so a failure part way leaves the user in place and
// the call can be retried.
func (s *UserStore) Delete(ctx context.Context, id string) error {
	n, err := s.users.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}

	if _, err := s.events.UpdateMany(ctx,
		bson.M{"registeredUsers": id},
		bson.M{"$pull": bson.M{"registeredUsers": id}},
	); err != nil {
		return fmt.Errorf("remove user registrations: %w", err)
	}
	if _, err := s.events.UpdateMany(ctx,
		bson.M{"createdBy": id},
		bson.M{"$set": bson.M{"createdBy": ""}},
	); err != nil {
		return fmt.Errorf("detach user events: %w", err)
	}

	res, err := s.users.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
