package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harentsoaR/telehealth-api/internal/models"
	"github.com/harentsoaR/telehealth-api/internal/store"
)

type Ratings struct {
	coll *mongo.Collection
}

func (s *Ratings) Insert(ctx context.Context, r *models.Rating) error {
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, r)
	if duplicateIndex(err) != "" {
		return store.ErrDuplicateRating
	}
	return err
}

func (s *Ratings) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Rating, error) {
	var r models.Rating
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (s *Ratings) FindOne(ctx context.Context, user, doctor, appointment primitive.ObjectID) (*models.Rating, error) {
	var r models.Rating
	filter := bson.M{"user": user, "doctor": doctor, "appointment": appointment}
	if err := s.coll.FindOne(ctx, filter).Decode(&r); err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (s *Ratings) FindByUser(ctx context.Context, user primitive.ObjectID) ([]models.Rating, error) {
	return s.find(ctx, bson.M{"user": user}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (s *Ratings) Update(ctx context.Context, id primitive.ObjectID, rating int, review string, at time.Time) error {
	update := bson.M{"$set": bson.M{"rating": rating, "review": review, "updatedAt": at}}
	result, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Ratings) ListByDoctor(ctx context.Context, doctor primitive.ObjectID, skip, limit int64) ([]models.Rating, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)
	return s.find(ctx, bson.M{"doctor": doctor}, opts)
}

func (s *Ratings) CountByDoctor(ctx context.Context, doctor primitive.ObjectID) (int64, error) {
	return s.coll.CountDocuments(ctx, bson.M{"doctor": doctor})
}

func (s *Ratings) Summary(ctx context.Context, doctor primitive.ObjectID) (models.RatingSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "doctor", Value: doctor}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "avg", Value: bson.D{{Key: "$avg", Value: "$rating"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return models.RatingSummary{}, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Avg   float64 `bson:"avg"`
		Count int64   `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return models.RatingSummary{}, err
	}
	if len(rows) == 0 {
		return models.RatingSummary{}, nil
	}
	return models.RatingSummary{Average: store.RoundRating(rows[0].Avg), Count: rows[0].Count}, nil
}

func (s *Ratings) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Rating, error) {
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	ratings := make([]models.Rating, 0)
	if err := cursor.All(ctx, &ratings); err != nil {
		return nil, err
	}
	return ratings, nil
}
