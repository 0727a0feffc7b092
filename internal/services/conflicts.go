package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/telehealth-api/internal/apperr"
	"github.com/harentsoaR/telehealth-api/internal/store"
)

const (
	msgDoctorSlotTaken = "This time slot is already booked for the doctor."
	msgUserSlotTaken   = "You already have an appointment at this time."
)

// ConflictChecker answers whether a slot is already held. Cancelled
// appointments never hold a slot. It is a read-only early exit; the unique
// indexes in the store decide races.
type ConflictChecker struct {
	appointments store.AppointmentStore
}

func NewConflictChecker(appointments store.AppointmentStore) *ConflictChecker {
	return &ConflictChecker{appointments: appointments}
}

func (c *ConflictChecker) DoctorSlotTaken(ctx context.Context, doctorID primitive.ObjectID, date, at string) (bool, error) {
	return c.appointments.DoctorSlotTaken(ctx, doctorID, date, at)
}

func (c *ConflictChecker) UserSlotTaken(ctx context.Context, userID primitive.ObjectID, date, at string) (bool, error) {
	return c.appointments.UserSlotTaken(ctx, userID, date, at)
}

// Check runs the doctor check first, then the user check, and returns the
// matching conflict error.
func (c *ConflictChecker) Check(ctx context.Context, doctorID, userID primitive.ObjectID, date, at string) error {
	taken, err := c.DoctorSlotTaken(ctx, doctorID, date, at)
	if err != nil {
		return apperr.Internal("Failed to check doctor availability", err)
	}
	if taken {
		return doctorSlotTaken()
	}

	taken, err = c.UserSlotTaken(ctx, userID, date, at)
	if err != nil {
		return apperr.Internal("Failed to check your schedule", err)
	}
	if taken {
		return userSlotTaken()
	}
	return nil
}

func doctorSlotTaken() *apperr.Error {
	return apperr.Conflict(apperr.CodeDoctorSlotTaken, msgDoctorSlotTaken)
}

func userSlotTaken() *apperr.Error {
	return apperr.Conflict(apperr.CodeUserSlotTaken, msgUserSlotTaken)
}
