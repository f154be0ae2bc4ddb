package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/civicgrid/civic-report-api/api"
	"github.com/civicgrid/civic-report-api/config"
	"github.com/civicgrid/civic-report-api/databases"
	"github.com/civicgrid/civic-report-api/models"
	"github.com/civicgrid/civic-report-api/policy"
)

// Geocoder resolves coordinates to a human-readable address
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

// Report exposes the citizen report handlers
type Report struct {
	DB  databases.ReportDatabase
	DDB databases.DepartmentDatabase
	Geo Geocoder
	Hub *Hub
}

type createReportRequest struct {
	Department  string       `json:"department" validate:"required"`
	Title       string       `json:"title" validate:"required,min=5,max=140"`
	Description string       `json:"description" validate:"required,min=10,max=4000"`
	Latitude    float64      `json:"latitude" validate:"min=-90,max=90"`
	Longitude   float64      `json:"longitude" validate:"min=-180,max=180"`
	Address     string       `json:"address" validate:"omitempty,max=500"`
	Landmark    string       `json:"landmark" validate:"omitempty,max=240"`
	Media       models.Media `json:"media"`
}

// CreateReportHandler files a new report for the authenticated citizen. The
// report gets a date-scoped identifier and an initial audit entry.
func (h Report) CreateReportHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	actor, ok := api.ActorFromContext(r.Context())
	if !ok {
		config.ErrorStatus("missing identity", http.StatusUnauthorized, w, errors.New("no actor in context"))
		return
	}

	var req createReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		config.ErrorFields("validation failed", http.StatusBadRequest, w, fieldErrors(err))
		return
	}
	if len(req.Media.Images) == 0 {
		config.ErrorFields("validation failed", http.StatusBadRequest, w, map[string]string{"media.images": "at least one image is required"})
		return
	}

	deptID, err := primitive.ObjectIDFromHex(req.Department)
	if err != nil {
		config.ErrorStatus("invalid department id", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dept, err := h.DDB.FindOne(ctx, bson.M{"_id": deptID})
	if err != nil {
		config.ErrorStatus("department not found", http.StatusNotFound, w, err)
		return
	}
	if !dept.Active {
		config.ErrorStatus("department is not accepting reports", http.StatusBadRequest, w, errors.New("department inactive"))
		return
	}

	now := time.Now()
	start, end := policy.DayRange(now)
	seq, err := h.DB.CountDocuments(ctx, bson.M{"createdAt": bson.M{"$gte": start, "$lt": end}})
	if err != nil {
		config.ErrorStatus("failed to assign report identifier", http.StatusInternalServerError, w, err)
		return
	}

	location := models.Location{
		Type:        "Point",
		Coordinates: []float64{req.Longitude, req.Latitude},
		Address:     req.Address,
		Landmark:    req.Landmark,
	}
	// only geocode when the citizen did not supply an address, and best
	// effort at that, the report is filed either way
	if location.Address == "" && h.Geo != nil {
		if address, err := h.Geo.Reverse(ctx, req.Latitude, req.Longitude); err == nil {
			location.Address = address
		} else {
			zap.S().With(err).Warn("reverse geocode failed")
		}
	}

	report := models.Report{
		ReportID:      policy.ReportID(now, seq+1),
		Citizen:       actor.ID,
		Department:    deptID,
		Title:         req.Title,
		Description:   req.Description,
		Location:      location,
		Media:         req.Media,
		Status:        models.ReportSubmitted,
		StatusHistory: policy.AppendStatus(nil, models.ReportSubmitted, nil, "submitted", now),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.DB.InsertOne(ctx, report); err != nil {
		if databases.IsDuplicateKey(err) {
			config.ErrorStatus("report identifier collision, please retry", http.StatusConflict, w, err)
			return
		}
		config.ErrorStatus("failed to create report", http.StatusInternalServerError, w, err)
		return
	}

	if err := h.DDB.UpdateOne(ctx, bson.M{"_id": deptID}, bson.M{
		"$inc": bson.M{"totalReports": 1, "activeReports": 1},
		"$set": bson.M{"updatedAt": now},
	}); err != nil {
		zap.S().With(err).Error("failed to bump department counters")
	}

	created, err := h.DB.FindOne(ctx, bson.M{"reportId": report.ReportID})
	if err != nil {
		config.ErrorStatus("failed to fetch created report", http.StatusInternalServerError, w, err)
		return
	}

	h.Hub.Broadcast(Event{Kind: "report", Action: "created", ID: created.ReportID, Status: created.Status, At: now})
	zap.S().Infow("report created", "reportId", created.ReportID, "department", dept.Code)
	respondJSON(w, http.StatusCreated, created)
}

// ReportsHandler lists reports visible to the actor. Citizens see their own,
// officers see their departments, admins see everything.
func (h Report) ReportsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	actor, ok := api.ActorFromContext(r.Context())
	if !ok {
		config.ErrorStatus("missing identity", http.StatusUnauthorized, w, errors.New("no actor in context"))
		return
	}

	filter := policy.ReportScope(actor)
	if status := r.URL.Query().Get("status"); status != "" {
		filter["status"] = status
	}
	if dept := r.URL.Query().Get("department"); dept != "" {
		deptID, err := primitive.ObjectIDFromHex(dept)
		if err != nil {
			config.ErrorStatus("invalid department id", http.StatusBadRequest, w, err)
			return
		}
		filter["department"] = deptID
	}

	limit, page := pageParams(r)
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	reports, err := h.DB.Find(ctx, filter, databases.Paginate(limit, page))
	if err != nil {
		config.ErrorStatus("failed to get reports", http.StatusInternalServerError, w, err)
		return
	}
	if reports == nil {
		reports = []models.Report{}
	}
	respondJSON(w, http.StatusOK, reports)
}

// ReportsNearbyHandler lists visible reports within a radius of a point
func (h Report) ReportsNearbyHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	actor, ok := api.ActorFromContext(r.Context())
	if !ok {
		config.ErrorStatus("missing identity", http.StatusUnauthorized, w, errors.New("no actor in context"))
		return
	}

	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if latErr != nil || lonErr != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		config.ErrorFields("validation failed", http.StatusBadRequest, w, map[string]string{"lat": "required", "lon": "required"})
		return
	}
	radius, err := strconv.ParseFloat(r.URL.Query().Get("radius"), 64)
	if err != nil || radius <= 0 {
		radius = 1000
	}

	filter := policy.ReportScope(actor)
	filter["location"] = bson.M{"$near": bson.M{
		"$geometry":    bson.M{"type": "Point", "coordinates": []float64{lon, lat}},
		"$maxDistance": radius,
	}}

	limit, page := pageParams(r)
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	reports, err := h.DB.Find(ctx, filter, databases.Paginate(limit, page))
	if err != nil {
		config.ErrorStatus("failed to get nearby reports", http.StatusInternalServerError, w, err)
		return
	}
	if reports == nil {
		reports = []models.Report{}
	}
	respondJSON(w, http.StatusOK, reports)
}

// ReportByIDHandler returns a single report by its public identifier
func (h Report) ReportByIDHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	actor, ok := api.ActorFromContext(r.Context())
	if !ok {
		config.ErrorStatus("missing identity", http.StatusUnauthorized, w, errors.New("no actor in context"))
		return
	}

	reportID := mux.Vars(r)["report_id"]
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	report, err := h.DB.FindOne(ctx, bson.M{"reportId": reportID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			config.ErrorStatus("report not found", http.StatusNotFound, w, err)
			return
		}
		config.ErrorStatus("failed to get report", http.StatusInternalServerError, w, err)
		return
	}
	if !policy.CanAccessReport(actor, *report) {
		// existence is not leaked to actors outside the report's scope
		config.ErrorStatus("report not found", http.StatusNotFound, w, errors.New("out of scope"))
		return
	}
	respondJSON(w, http.StatusOK, report)
}

type updateReportStatusRequest struct {
	Status  string `json:"status" validate:"required,oneof=in_progress resolved"`
	Remarks string `json:"remarks" validate:"omitempty,max=1000"`
}

// UpdateReportStatusHandler advances a report through its status machine.
// Rejections go through the dedicated reject endpoint so a reason is always
// captured.
func (h Report) UpdateReportStatusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	actor, ok := api.ActorFromContext(r.Context())
	if !ok {
		config.ErrorStatus("missing identity", http.StatusUnauthorized, w, errors.New("no actor in context"))
		return
	}

	var req updateReportStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		config.ErrorFields("validation failed", http.StatusBadRequest, w, fieldErrors(err))
		return
	}

	reportID := mux.Vars(r)["report_id"]
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	report, err := h.DB.FindOne(ctx, bson.M{"reportId": reportID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			config.ErrorStatus("report not found", http.StatusNotFound, w, err)
			return
		}
		config.ErrorStatus("failed to get report", http.StatusInternalServerError, w, err)
		return
	}

	if actor.IsOfficer() && !actor.AssignedTo(report.Department) {
		config.ErrorStatus("report belongs to another department", http.StatusForbidden, w, errors.New("department mismatch"))
		return
	}
	if !policy.IsValidReportTransition(report.Status, req.Status) {
		config.ErrorStatus("invalid status transition", http.StatusBadRequest, w,
			errors.New(report.Status+" -> "+req.Status))
		return
	}

	now := time.Now()
	set := bson.M{
		"status":        req.Status,
		"statusHistory": policy.AppendStatus(report.StatusHistory, req.Status, &actor.ID, req.Remarks, now),
		"updatedAt":     now,
	}
	if req.Status == models.ReportInProgress && report.AssignedOfficer == nil && actor.IsOfficer() {
		set["assignedOfficer"] = actor.ID
	}
	if req.Status == models.ReportResolved && !policy.SeenStatus(report.StatusHistory, models.ReportResolved) {
		set["resolvedAt"] = now
	}

	if err := h.DB.UpdateOne(ctx, bson.M{"reportId": reportID}, bson.M{"$set": set}); err != nil {
		config.ErrorStatus("failed to update report", http.StatusInternalServerError, w, err)
		return
	}

	if req.Status == models.ReportResolved {
		if err := h.DDB.UpdateOne(ctx, bson.M{"_id": report.Department}, bson.M{
			"$inc": bson.M{"activeReports": -1, "resolvedReports": 1},
			"$set": bson.M{"updatedAt": now},
		}); err != nil {
			zap.S().With(err).Error("failed to bump department counters")
		}
	}

	updated, err := h.DB.FindOne(ctx, bson.M{"reportId": reportID})
	if err != nil {
		config.ErrorStatus("failed to fetch updated report", http.StatusInternalServerError, w, err)
		return
	}

	h.Hub.Broadcast(Event{Kind: "report", Action: "status", ID: reportID, Status: req.Status, At: now})
	respondJSON(w, http.StatusOK, updated)
}

type rejectReportRequest struct {
	Reason string `json:"reason" validate:"required,min=5,max=1000"`
}

// RejectReportHandler closes a report as rejected with a mandatory reason
func (h Report) RejectReportHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	actor, ok := api.ActorFromContext(r.Context())
	if !ok {
		config.ErrorStatus("missing identity", http.StatusUnauthorized, w, errors.New("no actor in context"))
		return
	}

	var req rejectReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		config.ErrorFields("validation failed", http.StatusBadRequest, w, fieldErrors(err))
		return
	}

	reportID := mux.Vars(r)["report_id"]
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	report, err := h.DB.FindOne(ctx, bson.M{"reportId": reportID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			config.ErrorStatus("report not found", http.StatusNotFound, w, err)
			return
		}
		config.ErrorStatus("failed to get report", http.StatusInternalServerError, w, err)
		return
	}

	if actor.IsOfficer() && !actor.AssignedTo(report.Department) {
		config.ErrorStatus("report belongs to another department", http.StatusForbidden, w, errors.New("department mismatch"))
		return
	}
	if !policy.IsValidReportTransition(report.Status, models.ReportRejected) {
		config.ErrorStatus("invalid status transition", http.StatusBadRequest, w,
			errors.New(report.Status+" -> "+models.ReportRejected))
		return
	}

	now := time.Now()
	set := bson.M{
		"status":        models.ReportRejected,
		"statusHistory": policy.AppendStatus(report.StatusHistory, models.ReportRejected, &actor.ID, req.Reason, now),
		"rejection":     models.Rejection{Reason: req.Reason, By: actor.ID, At: now},
		"updatedAt":     now,
	}
	if err := h.DB.UpdateOne(ctx, bson.M{"reportId": reportID}, bson.M{"$set": set}); err != nil {
		config.ErrorStatus("failed to update report", http.StatusInternalServerError, w, err)
		return
	}

	if err := h.DDB.UpdateOne(ctx, bson.M{"_id": report.Department}, bson.M{
		"$inc": bson.M{"activeReports": -1},
		"$set": bson.M{"updatedAt": now},
	}); err != nil {
		zap.S().With(err).Error("failed to bump department counters")
	}

	updated, err := h.DB.FindOne(ctx, bson.M{"reportId": reportID})
	if err != nil {
		config.ErrorStatus("failed to fetch updated report", http.StatusInternalServerError, w, err)
		return
	}

	h.Hub.Broadcast(Event{Kind: "report", Action: "status", ID: reportID, Status: models.ReportRejected, At: now})
	respondJSON(w, http.StatusOK, updated)
}
