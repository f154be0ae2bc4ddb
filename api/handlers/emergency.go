package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/civicgrid/civic-report-api/api"
	"github.com/civicgrid/civic-report-api/config"
	"github.com/civicgrid/civic-report-api/databases"
	"github.com/civicgrid/civic-report-api/models"
	"github.com/civicgrid/civic-report-api/policy"
)

// Emergency exposes the emergency dispatch handlers
type Emergency struct {
	DB  databases.EmergencyDatabase
	Hub *Hub
}

type createEmergencyRequest struct {
	Type          string       `json:"type" validate:"required,oneof=police medical fire disaster"`
	Title         string       `json:"title" validate:"required,min=5,max=140"`
	Description   string       `json:"description" validate:"omitempty,max=4000"`
	ContactNumber string       `json:"contactNumber" validate:"required,min=7,max=20"`
	Latitude      float64      `json:"latitude" validate:"min=-90,max=90"`
	Longitude     float64      `json:"longitude" validate:"min=-180,max=180"`
	Landmark      string       `json:"landmark" validate:"omitempty,max=240"`
	Severity      int          `json:"severity" validate:"required,min=1,max=5"`
	Media         models.Media `json:"media"`
}

func priorityFor(severity int) string {
	switch {
	case severity >= 5:
		return "critical"
	case severity == 4:
		return "high"
	case severity == 3:
		return "medium"
	default:
		return "low"
	}
}

// CreateEmergencyHandler files an emergency. Location and a callback number
// are mandatory, media is not, speed wins over completeness here.
func (h Emergency) CreateEmergencyHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	actor, ok := api.ActorFromContext(r.Context())
	if !ok {
		config.ErrorStatus("missing identity", http.StatusUnauthorized, w, errors.New("no actor in context"))
		return
	}

	var req createEmergencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		config.ErrorFields("validation failed", http.StatusBadRequest, w, fieldErrors(err))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	now := time.Now()
	start, end := policy.DayRange(now)
	seq, err := h.DB.CountDocuments(ctx, bson.M{
		"type":      req.Type,
		"createdAt": bson.M{"$gte": start, "$lt": end},
	})
	if err != nil {
		config.ErrorStatus("failed to assign emergency identifier", http.StatusInternalServerError, w, err)
		return
	}

	emergency := models.Emergency{
		EmergencyID:   policy.EmergencyID(req.Type, now, seq+1),
		Citizen:       actor.ID,
		Type:          req.Type,
		Title:         req.Title,
		Description:   req.Description,
		ContactNumber: req.ContactNumber,
		Location: models.Location{
			Type:        "Point",
			Coordinates: []float64{req.Longitude, req.Latitude},
			Landmark:    req.Landmark,
		},
		Media:         req.Media,
		Status:        models.EmergencyReported,
		StatusHistory: policy.AppendStatus(nil, models.EmergencyReported, nil, "reported", now),
		Priority:      priorityFor(req.Severity),
		Severity:      req.Severity,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.DB.InsertOne(ctx, emergency); err != nil {
		if databases.IsDuplicateKey(err) {
			config.ErrorStatus("emergency identifier collision, please retry", http.StatusConflict, w, err)
			return
		}
		config.ErrorStatus("failed to create emergency", http.StatusInternalServerError, w, err)
		return
	}

	created, err := h.DB.FindOne(ctx, bson.M{"emergencyId": emergency.EmergencyID})
	if err != nil {
		config.ErrorStatus("failed to fetch created emergency", http.StatusInternalServerError, w, err)
		return
	}

	h.Hub.Broadcast(Event{Kind: "emergency", Action: "created", ID: created.EmergencyID, Status: created.Status, At: now})
	zap.S().Infow("emergency created", "emergencyId", created.EmergencyID, "type", created.Type, "priority", created.Priority)
	respondJSON(w, http.StatusCreated, created)
}

// EmergenciesHandler lists emergencies visible to the actor
func (h Emergency) EmergenciesHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	actor, ok := api.ActorFromContext(r.Context())
	if !ok {
		config.ErrorStatus("missing identity", http.StatusUnauthorized, w, errors.New("no actor in context"))
		return
	}

	filter := policy.EmergencyScope(actor)
	if status := r.URL.Query().Get("status"); status != "" {
		filter["status"] = status
	}
	if typ := r.URL.Query().Get("type"); typ != "" {
		filter["type"] = typ
	}

	limit, page := pageParams(r)
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	emergencies, err := h.DB.Find(ctx, filter, databases.Paginate(limit, page))
	if err != nil {
		config.ErrorStatus("failed to get emergencies", http.StatusInternalServerError, w, err)
		return
	}
	if emergencies == nil {
		emergencies = []models.Emergency{}
	}
	respondJSON(w, http.StatusOK, emergencies)
}

// ActiveEmergenciesHandler lists every unresolved emergency for responders
func (h Emergency) ActiveEmergenciesHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	filter := bson.M{"status": bson.M{"$ne": models.EmergencyResolved}}
	if typ := r.URL.Query().Get("type"); typ != "" {
		filter["type"] = typ
	}

	limit, page := pageParams(r)
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	emergencies, err := h.DB.Find(ctx, filter, databases.Paginate(limit, page).SetSort(bson.M{"createdAt": -1}))
	if err != nil {
		config.ErrorStatus("failed to get active emergencies", http.StatusInternalServerError, w, err)
		return
	}
	if emergencies == nil {
		emergencies = []models.Emergency{}
	}
	respondJSON(w, http.StatusOK, emergencies)
}

// EmergencyByIDHandler returns a single emergency by its public identifier
func (h Emergency) EmergencyByIDHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	actor, ok := api.ActorFromContext(r.Context())
	if !ok {
		config.ErrorStatus("missing identity", http.StatusUnauthorized, w, errors.New("no actor in context"))
		return
	}

	emergencyID := mux.Vars(r)["emergency_id"]
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	emergency, err := h.DB.FindOne(ctx, bson.M{"emergencyId": emergencyID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			config.ErrorStatus("emergency not found", http.StatusNotFound, w, err)
			return
		}
		config.ErrorStatus("failed to get emergency", http.StatusInternalServerError, w, err)
		return
	}
	if !policy.CanAccessEmergency(actor, *emergency) {
		config.ErrorStatus("emergency not found", http.StatusNotFound, w, errors.New("out of scope"))
		return
	}
	respondJSON(w, http.StatusOK, emergency)
}

type updateEmergencyStatusRequest struct {
	Status  string `json:"status" validate:"required,oneof=received dispatched resolved"`
	Remarks string `json:"remarks" validate:"omitempty,max=1000"`
}

// UpdateEmergencyStatusHandler advances an emergency along its linear
// lifecycle. The first responder to acknowledge becomes the responding
// officer.
func (h Emergency) UpdateEmergencyStatusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	actor, ok := api.ActorFromContext(r.Context())
	if !ok {
		config.ErrorStatus("missing identity", http.StatusUnauthorized, w, errors.New("no actor in context"))
		return
	}

	var req updateEmergencyStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		config.ErrorFields("validation failed", http.StatusBadRequest, w, fieldErrors(err))
		return
	}

	emergencyID := mux.Vars(r)["emergency_id"]
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	emergency, err := h.DB.FindOne(ctx, bson.M{"emergencyId": emergencyID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			config.ErrorStatus("emergency not found", http.StatusNotFound, w, err)
			return
		}
		config.ErrorStatus("failed to get emergency", http.StatusInternalServerError, w, err)
		return
	}

	if !policy.IsValidEmergencyTransition(emergency.Status, req.Status) {
		config.ErrorStatus("invalid status transition", http.StatusBadRequest, w,
			errors.New(emergency.Status+" -> "+req.Status))
		return
	}

	now := time.Now()
	set := bson.M{
		"status":        req.Status,
		"statusHistory": policy.AppendStatus(emergency.StatusHistory, req.Status, &actor.ID, req.Remarks, now),
		"updatedAt":     now,
	}
	switch req.Status {
	case models.EmergencyReceived:
		if emergency.RespondingOfficer == nil && actor.IsOfficer() {
			set["respondingOfficer"] = actor.ID
		}
		if !policy.SeenStatus(emergency.StatusHistory, models.EmergencyReceived) {
			set["receivedAt"] = now
		}
	case models.EmergencyDispatched:
		if !policy.SeenStatus(emergency.StatusHistory, models.EmergencyDispatched) {
			set["dispatchedAt"] = now
		}
	case models.EmergencyResolved:
		if !policy.SeenStatus(emergency.StatusHistory, models.EmergencyResolved) {
			set["resolvedAt"] = now
		}
	}

	if err := h.DB.UpdateOne(ctx, bson.M{"emergencyId": emergencyID}, bson.M{"$set": set}); err != nil {
		config.ErrorStatus("failed to update emergency", http.StatusInternalServerError, w, err)
		return
	}

	updated, err := h.DB.FindOne(ctx, bson.M{"emergencyId": emergencyID})
	if err != nil {
		config.ErrorStatus("failed to fetch updated emergency", http.StatusInternalServerError, w, err)
		return
	}

	h.Hub.Broadcast(Event{Kind: "emergency", Action: "status", ID: emergencyID, Status: req.Status, At: now})
	respondJSON(w, http.StatusOK, updated)
}
