package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harentsoaR/telehealth-api/internal/models"
)

type HealthRecords struct {
	coll *mongo.Collection
}

func (s *HealthRecords) Insert(ctx context.Context, rec *models.HealthRecord) error {
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, rec)
	return err
}

func (s *HealthRecords) FindByID(ctx context.Context, id primitive.ObjectID) (*models.HealthRecord, error) {
	var rec models.HealthRecord
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&rec); err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

func (s *HealthRecords) ListByUser(ctx context.Context, user primitive.ObjectID) ([]models.HealthRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	cursor, err := s.coll.Find(ctx, bson.M{"user": user}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := make([]models.HealthRecord, 0)
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

type Chats struct {
	coll *mongo.Collection
}

func (s *Chats) Insert(ctx context.Context, msg *models.ChatMessage) error {
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, msg)
	return err
}

func (s *Chats) Conversation(ctx context.Context, a, b primitive.ObjectID) ([]models.ChatMessage, error) {
	filter := bson.M{"$or": []bson.M{
		{"sender": a, "receiver": b},
		{"sender": b, "receiver": a},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	messages := make([]models.ChatMessage, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}
