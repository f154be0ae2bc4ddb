package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Report statuses
const (
	ReportSubmitted  = "submitted"
	ReportInProgress = "in_progress"
	ReportResolved   = "resolved"
	ReportRejected   = "rejected"
)

// Location is a GeoJSON point with optional human-readable context. The
// coordinates pair is [longitude, latitude] to match mongo's 2dsphere index.
type Location struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
	Address     string    `bson:"address,omitempty" json:"address,omitempty"`
	Landmark    string    `bson:"landmark,omitempty" json:"landmark,omitempty"`
}

// MediaItem is one externally hosted attachment
type MediaItem struct {
	URL        string `bson:"url" json:"url"`
	ProviderID string `bson:"providerId" json:"providerId"`
}

// Media groups attachments by kind
type Media struct {
	Images []MediaItem `bson:"images,omitempty" json:"images"`
	Videos []MediaItem `bson:"videos,omitempty" json:"videos"`
	Audio  []MediaItem `bson:"audio,omitempty" json:"audio"`
}

// StatusEntry is one immutable entry in an entity's status history. By is nil
// for system-initiated entries (the initial entry at creation).
type StatusEntry struct {
	Status  string              `bson:"status" json:"status"`
	By      *primitive.ObjectID `bson:"by,omitempty" json:"by,omitempty"`
	At      time.Time           `bson:"at" json:"at"`
	Remarks string              `bson:"remarks,omitempty" json:"remarks,omitempty"`
}

// Rejection records who rejected a report, when and why
type Rejection struct {
	Reason string             `bson:"reason" json:"reason"`
	By     primitive.ObjectID `bson:"by" json:"by"`
	At     time.Time          `bson:"at" json:"at"`
}

// Report holds the structure for the reports collection in mongo
type Report struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	ReportID        string              `bson:"reportId" json:"reportId"`
	Citizen         primitive.ObjectID  `bson:"citizen" json:"citizen"`
	Department      primitive.ObjectID  `bson:"department" json:"department"`
	Title           string              `bson:"title" json:"title"`
	Description     string              `bson:"description" json:"description"`
	Location        Location            `bson:"location" json:"location"`
	Media           Media               `bson:"media" json:"media"`
	Status          string              `bson:"status" json:"status"`
	StatusHistory   []StatusEntry       `bson:"statusHistory" json:"statusHistory"`
	AssignedOfficer *primitive.ObjectID `bson:"assignedOfficer,omitempty" json:"assignedOfficer,omitempty"`
	Rejection       *Rejection          `bson:"rejection,omitempty" json:"rejection,omitempty"`
	ResolvedAt      *time.Time          `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
	Deleted         bool                `bson:"deleted" json:"-"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time           `bson:"updatedAt" json:"updatedAt"`
}
