package models

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AppointmentStatus string

const (
	StatusUpcoming  AppointmentStatus = "upcoming"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// DateLayout and TimeLayout are the canonical stored forms of a slot.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var (
	ErrInvalidDate = errors.New("date must be YYYY-MM-DD")
	ErrInvalidTime = errors.New("time must be HH:MM (24h)")
)

// statusTransitions lists the only moves the appointment lifecycle allows.
// Anything missing here, including a status to itself, is rejected.
var statusTransitions = map[AppointmentStatus][]AppointmentStatus{
	StatusUpcoming: {StatusCompleted, StatusCancelled},
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusUpcoming, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s AppointmentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ActiveStatuses are the statuses that hold a slot. A cancelled appointment
// frees its doctor and user slot.
func ActiveStatuses() []AppointmentStatus {
	return []AppointmentStatus{StatusUpcoming, StatusCompleted}
}

type Appointment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	DoctorID  primitive.ObjectID `bson:"doctorId" json:"doctorId"`
	Date      string             `bson:"date" json:"date"` // YYYY-MM-DD
	Time      string             `bson:"time" json:"time"` // HH:MM
	Status    AppointmentStatus  `bson:"status" json:"status"`
	Notes     string             `bson:"notes" json:"notes"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// DoctorSummary and PatientSummary are read-time projections joined into
// responses. They are never stored on the appointment document.
type DoctorSummary struct {
	ID             primitive.ObjectID `json:"id"`
	Name           string             `json:"name"`
	Specialization string             `json:"specialization"`
}

type PatientSummary struct {
	ID   primitive.ObjectID `json:"id"`
	Name string             `json:"name"`
}

type AppointmentView struct {
	Appointment
	Doctor  *DoctorSummary  `json:"doctor,omitempty"`
	Patient *PatientSummary `json:"patient,omitempty"`
}

type CompletedAppointmentView struct {
	AppointmentView
	HasRated bool    `json:"hasRated"`
	Rating   *Rating `json:"rating,omitempty"`
}

// NormalizeDate reduces a date or RFC3339 timestamp to its UTC calendar
// date in DateLayout.
func NormalizeDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidDate
	}
	if d, err := time.Parse(DateLayout, raw); err == nil {
		return d.Format(DateLayout), nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC().Format(DateLayout), nil
	}
	return "", ErrInvalidDate
}

// NormalizeTime accepts H:MM or HH:MM on a 24h clock and returns HH:MM.
func NormalizeTime(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) < 4 || len(raw) > 5 {
		return "", ErrInvalidTime
	}
	t, err := time.Parse(TimeLayout, raw)
	if err != nil {
		return "", ErrInvalidTime
	}
	return t.Format(TimeLayout), nil
}
