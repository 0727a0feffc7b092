// Package mongostore implements the store contracts on MongoDB.
//
// Slot and rating uniqueness are enforced by unique indexes created in
// EnsureIndexes. The slot indexes are partial on active statuses so a
// cancelled appointment frees its slot; partial filters using $in need
// MongoDB 6.0 or newer.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harentsoaR/telehealth-api/internal/models"
	"github.com/harentsoaR/telehealth-api/internal/store"
)

const (
	AppointmentsCollection  = "appointments"
	UsersCollection         = "users"
	DoctorsCollection       = "doctors"
	RatingsCollection       = "ratings"
	HealthRecordsCollection = "healthrecords"
	ChatsCollection         = "chats"
)

const (
	DoctorSlotIndex = "doctor_slot_unique"
	UserSlotIndex   = "user_slot_unique"
	RatingIndex     = "rating_unique"
	PhoneIndex      = "phone_unique"
)

func New(db *mongo.Database) *store.Store {
	return &store.Store{
		Appointments:  &Appointments{coll: db.Collection(AppointmentsCollection)},
		Users:         &Users{coll: db.Collection(UsersCollection)},
		Doctors:       &Doctors{coll: db.Collection(DoctorsCollection)},
		Ratings:       &Ratings{coll: db.Collection(RatingsCollection)},
		HealthRecords: &HealthRecords{coll: db.Collection(HealthRecordsCollection)},
		Chats:         &Chats{coll: db.Collection(ChatsCollection)},
	}
}

func activeSlotFilter() bson.M {
	return bson.M{"status": bson.M{"$in": models.ActiveStatuses()}}
}

// IndexModels lists the indexes each collection needs.
func IndexModels() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		AppointmentsCollection: {
			{
				Keys: bson.D{{Key: "doctorId", Value: 1}, {Key: "date", Value: 1}, {Key: "time", Value: 1}},
				Options: options.Index().
					SetName(DoctorSlotIndex).
					SetUnique(true).
					SetPartialFilterExpression(activeSlotFilter()),
			},
			{
				Keys: bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: 1}, {Key: "time", Value: 1}},
				Options: options.Index().
					SetName(UserSlotIndex).
					SetUnique(true).
					SetPartialFilterExpression(activeSlotFilter()),
			},
			{Keys: bson.D{{Key: "date", Value: 1}, {Key: "status", Value: 1}}},
		},
		RatingsCollection: {
			{
				Keys:    bson.D{{Key: "user", Value: 1}, {Key: "doctor", Value: 1}, {Key: "appointment", Value: 1}},
				Options: options.Index().SetName(RatingIndex).SetUnique(true),
			},
			{Keys: bson.D{{Key: "doctor", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		UsersCollection: {
			{
				Keys:    bson.D{{Key: "phoneNumber", Value: 1}},
				Options: options.Index().SetName(PhoneIndex).SetUnique(true),
			},
		},
		HealthRecordsCollection: {
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "date", Value: -1}}},
		},
		ChatsCollection: {
			{Keys: bson.D{{Key: "sender", Value: 1}, {Key: "receiver", Value: 1}, {Key: "timestamp", Value: 1}}},
		},
	}
}

// EnsureIndexes creates every index from IndexModels. It is safe to call on
// every start; existing identical indexes are left alone.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for coll, idx := range IndexModels() {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

// duplicateIndex reports which unique index a duplicate key error hit.
// It returns "" if err is not a duplicate key error.
func duplicateIndex(err error) string {
	if err == nil || !mongo.IsDuplicateKeyError(err) {
		return ""
	}
	msg := err.Error()
	for _, name := range []string{DoctorSlotIndex, UserSlotIndex, RatingIndex, PhoneIndex} {
		if strings.Contains(msg, name) {
			return name
		}
	}
	return "unknown"
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return err
}
