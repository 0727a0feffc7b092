package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MinRating = 1
	MaxRating = 5
)

type Rating struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User        primitive.ObjectID `bson:"user" json:"user"`
	Doctor      primitive.ObjectID `bson:"doctor" json:"doctor"`
	Appointment primitive.ObjectID `bson:"appointment" json:"appointment"`
	Rating      int                `bson:"rating" json:"rating"`
	Review      string             `bson:"review" json:"review"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type RatingView struct {
	Rating
	Reviewer *PatientSummary `json:"reviewer,omitempty"`
}

type Pagination struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"hasMore"`
}
