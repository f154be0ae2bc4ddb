package policy

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/civicgrid/civic-report-api/models"
)

// AppendStatus returns history with exactly one new immutable entry. by is nil
// for system-initiated entries, such as the initial entry at creation. The
// history list is the authoritative record; the derived per-status timestamp
// fields on the entity are set-once conveniences maintained by the callers.
func AppendStatus(history []models.StatusEntry, status string, by *primitive.ObjectID, remarks string, at time.Time) []models.StatusEntry {
	out := make([]models.StatusEntry, len(history), len(history)+1)
	copy(out, history)
	return append(out, models.StatusEntry{
		Status:  status,
		By:      by,
		At:      at,
		Remarks: remarks,
	})
}

// SeenStatus reports whether status already appears in history, which is how
// callers decide whether a derived timestamp field may still be set
func SeenStatus(history []models.StatusEntry, status string) bool {
	for _, e := range history {
		if e.Status == status {
			return true
		}
	}
	return false
}
