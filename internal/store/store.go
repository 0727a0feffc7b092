// Package store defines the persistence contracts for the telehealth API.
// mongostore backs them with MongoDB; memstore keeps everything in process
// for local runs and tests. Both enforce the same uniqueness rules.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/telehealth-api/internal/models"
)

var (
	ErrNotFound        = errors.New("store: not found")
	ErrDoctorSlotTaken = errors.New("store: doctor slot already booked")
	ErrUserSlotTaken   = errors.New("store: user already booked at this slot")
	ErrDuplicateRating = errors.New("store: rating already exists")
	ErrDuplicatePhone  = errors.New("store: phone number already registered")
	ErrStatusChanged   = errors.New("store: appointment status changed concurrently")
)

// AppointmentFilter narrows Find. Zero values are ignored.
type AppointmentFilter struct {
	UserID   primitive.ObjectID
	DoctorID primitive.ObjectID
	Date     string
	Statuses []models.AppointmentStatus
}

type AppointmentStore interface {
	// Insert stores a new appointment. It returns ErrDoctorSlotTaken or
	// ErrUserSlotTaken when another active appointment holds the slot.
	Insert(ctx context.Context, apt *models.Appointment) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error)
	// Find returns matches sorted by date then time, ascending.
	Find(ctx context.Context, filter AppointmentFilter) ([]models.Appointment, error)
	DoctorSlotTaken(ctx context.Context, doctorID primitive.ObjectID, date, at string) (bool, error)
	UserSlotTaken(ctx context.Context, userID primitive.ObjectID, date, at string) (bool, error)
	// UpdateStatus moves the appointment from `from` to `to`. It returns
	// ErrNotFound when the id is unknown and ErrStatusChanged when the
	// stored status is no longer `from`.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to models.AppointmentStatus, at time.Time) (*models.Appointment, error)
}

type UserStore interface {
	// Insert returns ErrDuplicatePhone if the phone number is registered.
	Insert(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByPhone(ctx context.Context, phone string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.User, error)
}

type DoctorFilter struct {
	Specialization string
	Language       string
}

type DoctorStore interface {
	Insert(ctx context.Context, d *models.Doctor) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Doctor, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.Doctor, error)
	Find(ctx context.Context, filter DoctorFilter) ([]models.Doctor, error)
	Update(ctx context.Context, d *models.Doctor) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type RatingStore interface {
	// Insert returns ErrDuplicateRating if the (user, doctor, appointment)
	// triple is already rated.
	Insert(ctx context.Context, r *models.Rating) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Rating, error)
	FindOne(ctx context.Context, user, doctor, appointment primitive.ObjectID) (*models.Rating, error)
	FindByUser(ctx context.Context, user primitive.ObjectID) ([]models.Rating, error)
	Update(ctx context.Context, id primitive.ObjectID, rating int, review string, at time.Time) error
	// ListByDoctor returns ratings newest first.
	ListByDoctor(ctx context.Context, doctor primitive.ObjectID, skip, limit int64) ([]models.Rating, error)
	CountByDoctor(ctx context.Context, doctor primitive.ObjectID) (int64, error)
	Summary(ctx context.Context, doctor primitive.ObjectID) (models.RatingSummary, error)
}

type HealthRecordStore interface {
	Insert(ctx context.Context, rec *models.HealthRecord) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.HealthRecord, error)
	// ListByUser returns records newest date first.
	ListByUser(ctx context.Context, user primitive.ObjectID) ([]models.HealthRecord, error)
}

type ChatStore interface {
	Insert(ctx context.Context, msg *models.ChatMessage) error
	// Conversation returns the messages exchanged between a and b in either
	// direction, oldest first.
	Conversation(ctx context.Context, a, b primitive.ObjectID) ([]models.ChatMessage, error)
}

// Store bundles every collection the API uses.
type Store struct {
	Appointments  AppointmentStore
	Users         UserStore
	Doctors       DoctorStore
	Ratings       RatingStore
	HealthRecords HealthRecordStore
	Chats         ChatStore
}

// RoundRating rounds an average to one decimal place.
func RoundRating(avg float64) float64 {
	return float64(int64(avg*10+0.5)) / 10
}
