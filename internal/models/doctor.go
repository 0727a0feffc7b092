package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

type TimeRange struct {
	StartTime string `bson:"startTime" json:"startTime"`
	EndTime   string `bson:"endTime" json:"endTime"`
}

type Availability struct {
	Day   string      `bson:"day" json:"day"`
	Slots []TimeRange `bson:"slots" json:"slots"`
}

type Doctor struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name           string             `bson:"name" json:"name"`
	Specialization string             `bson:"specialization" json:"specialization"`
	Experience     int                `bson:"experience" json:"experience"`
	Languages      []string           `bson:"languages" json:"languages"`
	Availability   []Availability     `bson:"availability" json:"availability"`
	ImageURL       string             `bson:"imageUrl" json:"imageUrl"`
	Fees           float64            `bson:"fees" json:"fees"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (d *Doctor) Summary() *DoctorSummary {
	return &DoctorSummary{ID: d.ID, Name: d.Name, Specialization: d.Specialization}
}

// RatingSummary is derived from the ratings collection at read time.
type RatingSummary struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

type DoctorProfile struct {
	Doctor
	Rating RatingSummary `json:"rating"`
}

func IsWeekday(day string) bool {
	for _, d := range Weekdays {
		if d == day {
			return true
		}
	}
	return false
}
