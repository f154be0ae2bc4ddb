package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Emergency statuses
const (
	EmergencyReported   = "reported"
	EmergencyReceived   = "received"
	EmergencyDispatched = "dispatched"
	EmergencyResolved   = "resolved"
)

// Emergency types
const (
	EmergencyPolice   = "police"
	EmergencyMedical  = "medical"
	EmergencyFire     = "fire"
	EmergencyDisaster = "disaster"
)

// Emergency holds the structure for the emergencies collection in mongo.
// Unlike reports, emergencies have no confirmed department, so location and a
// contact number are mandatory at creation.
type Emergency struct {
	ID                primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	EmergencyID       string              `bson:"emergencyId" json:"emergencyId"`
	Citizen           primitive.ObjectID  `bson:"citizen" json:"citizen"`
	Type              string              `bson:"type" json:"type"`
	Title             string              `bson:"title" json:"title"`
	Description       string              `bson:"description,omitempty" json:"description,omitempty"`
	ContactNumber     string              `bson:"contactNumber" json:"contactNumber"`
	Location          Location            `bson:"location" json:"location"`
	Media             Media               `bson:"media,omitempty" json:"media"`
	Status            string              `bson:"status" json:"status"`
	StatusHistory     []StatusEntry       `bson:"statusHistory" json:"statusHistory"`
	RespondingOfficer *primitive.ObjectID `bson:"respondingOfficer,omitempty" json:"respondingOfficer,omitempty"`
	Priority          string              `bson:"priority" json:"priority"`
	Severity          int                 `bson:"severity" json:"severity"`
	ReceivedAt        *time.Time          `bson:"receivedAt,omitempty" json:"receivedAt,omitempty"`
	DispatchedAt      *time.Time          `bson:"dispatchedAt,omitempty" json:"dispatchedAt,omitempty"`
	ResolvedAt        *time.Time          `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
	Deleted           bool                `bson:"deleted" json:"-"`
	CreatedAt         time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time           `bson:"updatedAt" json:"updatedAt"`
}
