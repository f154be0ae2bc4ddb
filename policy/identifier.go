package policy

import (
	"fmt"
	"strings"
	"time"
)

// ReportID formats the human-readable identifier for the n-th report created
// on day t, e.g. RPT-20250601-0003
func ReportID(t time.Time, seq int64) string {
	return fmt.Sprintf("RPT-%s-%04d", t.Format("20060102"), seq)
}

// EmergencyID formats the identifier for the n-th emergency of the given type
// created on day t, e.g. EMR-MED-20250601-0001
func EmergencyID(emergencyType string, t time.Time, seq int64) string {
	prefix := strings.ToUpper(emergencyType)
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	return fmt.Sprintf("EMR-%s-%s-%04d", prefix, t.Format("20060102"), seq)
}

// DayRange returns the local calendar-day boundaries enclosing t, used to
// count same-day records when assigning the next sequence number
func DayRange(t time.Time) (start, end time.Time) {
	start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}
