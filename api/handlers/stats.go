package handlers

import (
	"net/http"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/civicgrid/civic-report-api/api"
	"github.com/civicgrid/civic-report-api/config"
	"github.com/civicgrid/civic-report-api/databases"
)

// Stats exposes the admin overview handler
type Stats struct {
	RDB databases.ReportDatabase
	EDB databases.EmergencyDatabase
}

type statusCount struct {
	Status string `bson:"_id" json:"status"`
	Count  int64  `bson:"count" json:"count"`
}

type typeCount struct {
	Type  string `bson:"_id" json:"type"`
	Count int64  `bson:"count" json:"count"`
}

type overviewResponse struct {
	Reports          []statusCount `json:"reports"`
	Emergencies      []statusCount `json:"emergencies"`
	EmergenciesByType []typeCount  `json:"emergenciesByType"`
}

// OverviewHandler returns report and emergency counts grouped by status
func (h Stats) OverviewHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	pipeline := []bson.M{
		{"$match": bson.M{"deleted": bson.M{"$ne": true}}},
		{"$group": bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}},
		{"$sort": bson.M{"_id": 1}},
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	var reports []statusCount
	if err := h.RDB.Aggregate(ctx, pipeline, &reports); err != nil {
		config.ErrorStatus("failed to compute report stats", http.StatusInternalServerError, w, err)
		return
	}
	var emergencies []statusCount
	if err := h.EDB.Aggregate(ctx, pipeline, &emergencies); err != nil {
		config.ErrorStatus("failed to compute emergency stats", http.StatusInternalServerError, w, err)
		return
	}

	byType := []bson.M{
		{"$match": bson.M{"deleted": bson.M{"$ne": true}}},
		{"$group": bson.M{"_id": "$type", "count": bson.M{"$sum": 1}}},
		{"$sort": bson.M{"_id": 1}},
	}
	var emergencyTypes []typeCount
	if err := h.EDB.Aggregate(ctx, byType, &emergencyTypes); err != nil {
		config.ErrorStatus("failed to compute emergency stats", http.StatusInternalServerError, w, err)
		return
	}

	if reports == nil {
		reports = []statusCount{}
	}
	if emergencies == nil {
		emergencies = []statusCount{}
	}
	if emergencyTypes == nil {
		emergencyTypes = []typeCount{}
	}
	respondJSON(w, http.StatusOK, overviewResponse{Reports: reports, Emergencies: emergencies, EmergenciesByType: emergencyTypes})
}
