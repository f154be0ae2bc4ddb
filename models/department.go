package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Department holds the structure for the departments collection in mongo.
// Counters are denormalized from report and officer state; the scheduler
// reconciles them nightly.
type Department struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name           string             `bson:"name" json:"name"`
	Code           string             `bson:"code" json:"code"`
	Description    string             `bson:"description,omitempty" json:"description,omitempty"`
	Active         bool               `bson:"active" json:"active"`
	Deleted        bool               `bson:"deleted" json:"-"`
	TotalReports   int64              `bson:"totalReports" json:"totalReports"`
	ActiveReports  int64              `bson:"activeReports" json:"activeReports"`
	ResolvedReports int64             `bson:"resolvedReports" json:"resolvedReports"`
	OfficersCount  int64              `bson:"officersCount" json:"officersCount"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// DepartmentStats is the aggregation result of true report counts by status
type DepartmentStats struct {
	DepartmentID primitive.ObjectID `bson:"_id" json:"departmentId"`
	Submitted    int64              `bson:"submitted" json:"submitted"`
	InProgress   int64              `bson:"in_progress" json:"inProgress"`
	Resolved     int64              `bson:"resolved" json:"resolved"`
	Rejected     int64              `bson:"rejected" json:"rejected"`
	Total        int64              `bson:"total" json:"total"`
}
