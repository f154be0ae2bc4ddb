package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User roles
const (
	RoleCitizen = "citizen"
	RoleOfficer = "officer"
	RoleAdmin   = "admin"
)

// User account statuses
const (
	AccountActive    = "active"
	AccountInactive  = "inactive"
	AccountSuspended = "suspended"
)

// User holds the structure for the users collection in mongo
type User struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty" json:"id,omitempty"`
	Name          string               `bson:"name" json:"name"`
	Email         string               `bson:"email" json:"email"`
	Password      string               `bson:"password,omitempty" json:"-"`
	Phone         string               `bson:"phone,omitempty" json:"phone,omitempty"`
	ProviderID    string               `bson:"providerId,omitempty" json:"-"`
	Role          string               `bson:"role" json:"role"`
	AccountStatus string               `bson:"accountStatus" json:"accountStatus"`
	Departments   []primitive.ObjectID `bson:"departments,omitempty" json:"departments,omitempty"`
	Deleted       bool                 `bson:"deleted" json:"-"`
	CreatedAt     time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// Actor is the authenticated identity performing a request, extracted by the
// auth middleware and consumed by the access-scoping policy
type Actor struct {
	ID          primitive.ObjectID
	Role        string
	Departments []primitive.ObjectID
}

// IsAdmin reports whether the actor carries the admin role
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// IsOfficer reports whether the actor carries the officer role
func (a Actor) IsOfficer() bool { return a.Role == RoleOfficer }

// AssignedTo reports whether the actor is assigned to the given department
func (a Actor) AssignedTo(dept primitive.ObjectID) bool {
	for _, d := range a.Departments {
		if d == dept {
			return true
		}
	}
	return false
}

// PasswordReset holds a single-use hashed reset token
type PasswordReset struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	TokenHash string             `bson:"tokenHash" json:"-"`
	ExpiresAt time.Time          `bson:"expiresAt" json:"expiresAt"`
	UsedAt    *time.Time         `bson:"usedAt,omitempty" json:"usedAt,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
