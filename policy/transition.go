// Package policy holds the pure decision logic shared by the request handlers:
// status-transition validation, identifier assignment, audit-trail appends and
// access scoping. Nothing in here touches the database.
package policy

import "github.com/civicgrid/civic-report-api/models"

var reportTransitions = map[string][]string{
	models.ReportSubmitted:  {models.ReportInProgress, models.ReportRejected},
	models.ReportInProgress: {models.ReportResolved, models.ReportRejected},
	models.ReportResolved:   {},
	models.ReportRejected:   {},
}

var emergencyTransitions = map[string][]string{
	models.EmergencyReported:   {models.EmergencyReceived},
	models.EmergencyReceived:   {models.EmergencyDispatched},
	models.EmergencyDispatched: {models.EmergencyResolved},
	models.EmergencyResolved:   {},
}

// IsValidReportTransition reports whether a report may move from current to
// requested. Unknown statuses, same-state requests and anything out of a
// terminal state are denied.
func IsValidReportTransition(current, requested string) bool {
	return contains(reportTransitions[current], requested)
}

// IsValidEmergencyTransition reports whether an emergency may move from
// current to requested. The emergency lifecycle is strictly linear.
func IsValidEmergencyTransition(current, requested string) bool {
	return contains(emergencyTransitions[current], requested)
}

// IsTerminalReportStatus reports whether status has no outgoing transitions
func IsTerminalReportStatus(status string) bool {
	next, ok := reportTransitions[status]
	return ok && len(next) == 0
}

// IsTerminalEmergencyStatus reports whether status has no outgoing transitions
func IsTerminalEmergencyStatus(status string) bool {
	next, ok := emergencyTransitions[status]
	return ok && len(next) == 0
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
