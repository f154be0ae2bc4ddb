package policy

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/civicgrid/civic-report-api/models"
)

// ReportScope builds the list-query predicate restricting which reports the
// actor may see. Citizens see their own, officers see their assigned
// departments (an officer with no assignments gets an impossible $in and an
// empty result set), admins see everything.
func ReportScope(actor models.Actor) bson.M {
	switch actor.Role {
	case models.RoleAdmin:
		return bson.M{}
	case models.RoleOfficer:
		depts := actor.Departments
		if depts == nil {
			depts = []primitive.ObjectID{}
		}
		return bson.M{"department": bson.M{"$in": depts}}
	default:
		return bson.M{"citizen": actor.ID}
	}
}

// EmergencyScope builds the list-query predicate for emergencies. Emergencies
// carry no confirmed department, so any officer may see all of them.
func EmergencyScope(actor models.Actor) bson.M {
	switch actor.Role {
	case models.RoleAdmin, models.RoleOfficer:
		return bson.M{}
	default:
		return bson.M{"citizen": actor.ID}
	}
}

// CanAccessReport re-checks scope against a loaded report. List scoping alone
// is not enough, direct-by-id access would bypass it.
func CanAccessReport(actor models.Actor, report models.Report) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleOfficer:
		return actor.AssignedTo(report.Department)
	default:
		return report.Citizen == actor.ID
	}
}

// CanAccessEmergency re-checks scope against a loaded emergency
func CanAccessEmergency(actor models.Actor, emergency models.Emergency) bool {
	switch actor.Role {
	case models.RoleAdmin, models.RoleOfficer:
		return true
	default:
		return emergency.Citizen == actor.ID
	}
}
