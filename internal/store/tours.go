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

// Tours is the tours collection. Secret tours never appear in reads.
type Tours struct {
	coll *mongo.Collection
	now  func() time.Time
}

// TourStats is one difficulty bucket of the tour-stats aggregate.
type TourStats struct {
	Difficulty string  `bson:"_id" json:"_id"`
	NumTours   int     `bson:"numTours" json:"numTours"`
	NumRatings int     `bson:"numRatings" json:"numRatings"`
	AvgRating  float64 `bson:"avgRating" json:"avgRating"`
	AvgPrice   float64 `bson:"avgPrice" json:"avgPrice"`
	MinPrice   float64 `bson:"minPrice" json:"minPrice"`
	MaxPrice   float64 `bson:"maxPrice" json:"maxPrice"`
}

// MonthPlan is one month of the monthly-plan aggregate.
type MonthPlan struct {
	Month         int      `bson:"month" json:"month"`
	NumTourStarts int      `bson:"numTourStarts" json:"numTourStarts"`
	Tours         []string `bson:"tours" json:"tours"`
}

var notSecret = bson.E{Key: "secretTour", Value: bson.M{"$ne": true}}

func (t *Tours) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

func (t *Tours) List(ctx context.Context, q ListQuery) ([]Tour, error) {
	filter := bson.D{notSecret}
	for k, v := range q.Filter {
		if k == "secretTour" {
			continue
		}
		filter = append(filter, bson.E{Key: k, Value: v})
	}
	opts := options.Find().
		SetSkip(q.Skip()).
		SetLimit(q.Limit)
	if len(q.Sort) > 0 {
		opts.SetSort(q.Sort)
	}
	if len(q.Projection) > 0 {
		opts.SetProjection(q.Projection)
	}
	cur, err := t.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperr.Wrap(err, "find tours")
	}
	out := []Tour{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.Wrap(err, "decode tours")
	}
	return out, nil
}

func (t *Tours) Get(ctx context.Context, id string) (*Tour, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	return t.findOne(ctx, bson.D{{Key: "_id", Value: oid}, notSecret})
}

func (t *Tours) BySlug(ctx context.Context, slug string) (*Tour, error) {
	return t.findOne(ctx, bson.D{{Key: "slug", Value: slug}, notSecret})
}

func (t *Tours) findOne(ctx context.Context, filter bson.D) (*Tour, error) {
	var tour Tour
	if err := t.coll.FindOne(ctx, filter).Decode(&tour); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, apperr.Wrap(err, "find tour")
	}
	return &tour, nil
}

// Create validates and inserts tour, filling its id, slug and defaults.
func (t *Tours) Create(ctx context.Context, tour *Tour) error {
	tour.prepare(t.clock())
	if err := Validate(tour); err != nil {
		return err
	}
	res, err := t.coll.InsertOne(ctx, tour)
	if err != nil {
		return apperr.Wrap(err, "insert tour")
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		tour.ID = oid
	}
	return nil
}

// Replace validates and stores tour over the document with the same id.
func (t *Tours) Replace(ctx context.Context, tour *Tour) error {
	tour.prepare(t.clock())
	if err := Validate(tour); err != nil {
		return err
	}
	res, err := t.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: tour.ID}}, tour)
	if err != nil {
		return apperr.Wrap(err, "replace tour")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *Tours) Delete(ctx context.Context, id string) error {
	oid, err := ParseID(id)
	if err != nil {
		return err
	}
	res, err := t.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return apperr.Wrap(err, "delete tour")
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *Tours) Stats(ctx context.Context) ([]TourStats, error) {
	cur, err := t.coll.Aggregate(ctx, tourStatsPipeline())
	if err != nil {
		return nil, apperr.Wrap(err, "aggregate tour stats")
	}
	out := []TourStats{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.Wrap(err, "decode tour stats")
	}
	return out, nil
}

func (t *Tours) MonthlyPlan(ctx context.Context, year int) ([]MonthPlan, error) {
	cur, err := t.coll.Aggregate(ctx, monthlyPlanPipeline(year))
	if err != nil {
		return nil, apperr.Wrap(err, "aggregate monthly plan")
	}
	out := []MonthPlan{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.Wrap(err, "decode monthly plan")
	}
	return out, nil
}

func tourStatsPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{notSecret, {Key: "ratingsAverage", Value: bson.M{"$gte": 4.5}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.M{"$toUpper": "$difficulty"}},
			{Key: "numTours", Value: bson.M{"$sum": 1}},
			{Key: "numRatings", Value: bson.M{"$sum": "$ratingsQuantity"}},
			{Key: "avgRating", Value: bson.M{"$avg": "$ratingsAverage"}},
			{Key: "avgPrice", Value: bson.M{"$avg": "$price"}},
			{Key: "minPrice", Value: bson.M{"$min": "$price"}},
			{Key: "maxPrice", Value: bson.M{"$max": "$price"}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "avgPrice", Value: 1}}}},
	}
}

func monthlyPlanPipeline(year int) mongo.Pipeline {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{notSecret}}},
		{{Key: "$unwind", Value: "$startDates"}},
		{{Key: "$match", Value: bson.D{{Key: "startDates", Value: bson.M{"$gte": from, "$lt": to}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.M{"$month": "$startDates"}},
			{Key: "numTourStarts", Value: bson.M{"$sum": 1}},
			{Key: "tours", Value: bson.M{"$push": "$name"}},
		}}},
		{{Key: "$addFields", Value: bson.D{{Key: "month", Value: "$_id"}}}},
		{{Key: "$project", Value: bson.D{{Key: "_id", Value: 0}}}},
		{{Key: "$sort", Value: bson.D{{Key: "numTourStarts", Value: -1}}}},
		{{Key: "$limit", Value: 12}},
	}
}
