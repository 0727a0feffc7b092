package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harentsoaR/telehealth-api/internal/models"
	"github.com/harentsoaR/telehealth-api/internal/store"
)

type Appointments struct {
	coll *mongo.Collection
}

func (s *Appointments) Insert(ctx context.Context, apt *models.Appointment) error {
	if apt.ID.IsZero() {
		apt.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, apt)
	switch duplicateIndex(err) {
	case "":
		return err
	case UserSlotIndex:
		return store.ErrUserSlotTaken
	default:
		return store.ErrDoctorSlotTaken
	}
}

func (s *Appointments) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	var apt models.Appointment
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&apt); err != nil {
		return nil, notFound(err)
	}
	return &apt, nil
}

func (s *Appointments) Find(ctx context.Context, f store.AppointmentFilter) ([]models.Appointment, error) {
	filter := bson.M{}
	if !f.UserID.IsZero() {
		filter["userId"] = f.UserID
	}
	if !f.DoctorID.IsZero() {
		filter["doctorId"] = f.DoctorID
	}
	if f.Date != "" {
		filter["date"] = f.Date
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}})
	cursor, err := s.coll.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	appointments := make([]models.Appointment, 0)
	if err := cursor.All(ctx, &appointments); err != nil {
		return nil, err
	}
	return appointments, nil
}

func (s *Appointments) DoctorSlotTaken(ctx context.Context, doctorID primitive.ObjectID, date, at string) (bool, error) {
	return s.slotTaken(ctx, bson.M{"doctorId": doctorID, "date": date, "time": at})
}

func (s *Appointments) UserSlotTaken(ctx context.Context, userID primitive.ObjectID, date, at string) (bool, error) {
	return s.slotTaken(ctx, bson.M{"userId": userID, "date": date, "time": at})
}

func (s *Appointments) slotTaken(ctx context.Context, filter bson.M) (bool, error) {
	filter["status"] = bson.M{"$in": models.ActiveStatuses()}
	n, err := s.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Appointments) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to models.AppointmentStatus, at time.Time) (*models.Appointment, error) {
	update := bson.M{"$set": bson.M{"status": to, "updatedAt": at}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var apt models.Appointment
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": from}, update, opts).Decode(&apt)
	if err == nil {
		return &apt, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	// The conditional update matched nothing: either the id is unknown or
	// the status already moved on.
	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, store.ErrNotFound
	}
	return nil, store.ErrStatusChanged
}
