package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var RecordTypes = []string{"prescription", "labReport", "vaccination", "general"}

type Attachment struct {
	Filename    string `bson:"filename" json:"filename"`
	Key         string `bson:"key" json:"-"`
	URL         string `bson:"url" json:"url"`
	ContentType string `bson:"contentType" json:"contentType"`
	Size        int64  `bson:"size" json:"size"`
}

type HealthRecord struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User         primitive.ObjectID `bson:"user" json:"user"`
	RecordType   string             `bson:"recordType" json:"recordType"`
	Date         string             `bson:"date" json:"date"`
	DoctorName   string             `bson:"doctorName" json:"doctorName"`
	HospitalName string             `bson:"hospitalName" json:"hospitalName"`
	Details      string             `bson:"details" json:"details"`
	Attachments  []Attachment       `bson:"attachments" json:"attachments"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func IsRecordType(t string) bool {
	for _, rt := range RecordTypes {
		if rt == t {
			return true
		}
	}
	return false
}
