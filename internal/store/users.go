package store

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/keithlinneman/tours-api/internal/apperr"
)

// Users is the users collection. Deleted users are deactivated, not removed,
// and are invisible to every read.
type Users struct {
	coll *mongo.Collection
}

var activeOnly = bson.E{Key: "active", Value: bson.M{"$ne": false}}

// Create inserts u. PasswordHash must already be set.
func (us *Users) Create(ctx context.Context, u *User) error {
	u.prepare()
	if err := Validate(u); err != nil {
		return err
	}
	if u.PasswordHash == "" {
		return apperr.Errorf("create user: empty password hash")
	}
	res, err := us.coll.InsertOne(ctx, u)
	if err != nil {
		return apperr.Wrap(err, "insert user")
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		u.ID = oid
	}
	return nil
}

// ByEmail returns the active user with email, password hash included.
func (us *Users) ByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return us.findOne(ctx, bson.D{{Key: "email", Value: email}, activeOnly})
}

func (us *Users) Get(ctx context.Context, id string) (*User, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	return us.findOne(ctx, bson.D{{Key: "_id", Value: oid}, activeOnly})
}

func (us *Users) findOne(ctx context.Context, filter bson.D) (*User, error) {
	var u User
	if err := us.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, apperr.Wrap(err, "find user")
	}
	return &u, nil
}

func (us *Users) List(ctx context.Context) ([]User, error) {
	cur, err := us.coll.Find(ctx, bson.D{activeOnly}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, apperr.Wrap(err, "find users")
	}
	out := []User{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.Wrap(err, "decode users")
	}
	return out, nil
}

// Deactivate marks the user inactive.
func (us *Users) Deactivate(ctx context.Context, id string) error {
	oid, err := ParseID(id)
	if err != nil {
		return err
	}
	res, err := us.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}, activeOnly},
		bson.D{{Key: "$set", Value: bson.D{{Key: "active", Value: false}}}},
	)
	if err != nil {
		return apperr.Wrap(err, "deactivate user")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
