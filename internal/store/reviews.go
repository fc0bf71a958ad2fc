package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/keithlinneman/tours-api/internal/apperr"
)

type Reviews struct {
	coll *mongo.Collection
}

// List returns reviews, newest first, optionally for one tour.
func (rv *Reviews) List(ctx context.Context, tourID string) ([]Review, error) {
	filter := bson.D{}
	if tourID != "" {
		oid, err := ParseID(tourID)
		if err != nil {
			return nil, err
		}
		filter = append(filter, bson.E{Key: "tour", Value: oid})
	}
	cur, err := rv.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, apperr.Wrap(err, "find reviews")
	}
	out := []Review{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.Wrap(err, "decode reviews")
	}
	return out, nil
}

func (rv *Reviews) Get(ctx context.Context, id string) (*Review, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	var r Review
	if err := rv.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, apperr.Wrap(err, "find review")
	}
	return &r, nil
}

func (rv *Reviews) Create(ctx context.Context, r *Review) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if err := Validate(r); err != nil {
		return err
	}
	res, err := rv.coll.InsertOne(ctx, r)
	if err != nil {
		return apperr.Wrap(err, "insert review")
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		r.ID = oid
	}
	return nil
}

func (rv *Reviews) Replace(ctx context.Context, r *Review) error {
	if err := Validate(r); err != nil {
		return err
	}
	res, err := rv.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: r.ID}}, r)
	if err != nil {
		return apperr.Wrap(err, "replace review")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (rv *Reviews) Delete(ctx context.Context, id string) error {
	oid, err := ParseID(id)
	if err != nil {
		return err
	}
	res, err := rv.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return apperr.Wrap(err, "delete review")
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
