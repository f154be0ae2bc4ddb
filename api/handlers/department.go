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

// Department exposes the admin department handlers
type Department struct {
	DB  databases.DepartmentDatabase
	RDB databases.ReportDatabase
	UDB databases.UserDatabase
}

type createDepartmentRequest struct {
	Name        string `json:"name" validate:"required,min=3,max=120"`
	Description string `json:"description" validate:"omitempty,max=1000"`
}

// CreateDepartmentHandler creates a department. The routing code is derived
// from the name, never supplied by the caller.
func (h Department) CreateDepartmentHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req createDepartmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		config.ErrorFields("validation failed", http.StatusBadRequest, w, fieldErrors(err))
		return
	}

	now := time.Now()
	department := models.Department{
		Name:        req.Name,
		Code:        policy.DepartmentCode(req.Name),
		Description: req.Description,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	if err := h.DB.InsertOne(ctx, department); err != nil {
		if databases.IsDuplicateKey(err) {
			config.ErrorStatus("a department with this name already exists", http.StatusConflict, w, err)
			return
		}
		config.ErrorStatus("failed to create department", http.StatusInternalServerError, w, err)
		return
	}

	created, err := h.DB.FindOne(ctx, bson.M{"name": req.Name})
	if err != nil {
		config.ErrorStatus("failed to fetch created department", http.StatusInternalServerError, w, err)
		return
	}

	zap.S().Infow("department created", "name", created.Name, "code", created.Code)
	respondJSON(w, http.StatusCreated, created)
}

// DepartmentsHandler lists departments. Citizens use this to pick a target
// for a report, so inactive departments are included only for admins.
func (h Department) DepartmentsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	actor, ok := api.ActorFromContext(r.Context())
	if !ok {
		config.ErrorStatus("missing identity", http.StatusUnauthorized, w, errors.New("no actor in context"))
		return
	}

	filter := bson.M{}
	if !actor.IsAdmin() {
		filter["active"] = true
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	departments, err := h.DB.Find(ctx, filter)
	if err != nil {
		config.ErrorStatus("failed to get departments", http.StatusInternalServerError, w, err)
		return
	}
	if departments == nil {
		departments = []models.Department{}
	}
	respondJSON(w, http.StatusOK, departments)
}

// DepartmentByIDHandler returns a single department
func (h Department) DepartmentByIDHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	deptID, ok := objectIDParam(mux.Vars(r), "department_id")
	if !ok {
		config.ErrorStatus("invalid department id", http.StatusBadRequest, w, errors.New("malformed object id"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	department, err := h.DB.FindOne(ctx, bson.M{"_id": deptID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			config.ErrorStatus("department not found", http.StatusNotFound, w, err)
			return
		}
		config.ErrorStatus("failed to get department", http.StatusInternalServerError, w, err)
		return
	}
	respondJSON(w, http.StatusOK, department)
}

type updateDepartmentRequest struct {
	Name        string `json:"name" validate:"omitempty,min=3,max=120"`
	Description string `json:"description" validate:"omitempty,max=1000"`
	Active      *bool  `json:"active"`
}

// UpdateDepartmentHandler patches a department. Renaming regenerates the
// routing code, existing report identifiers are never rewritten.
func (h Department) UpdateDepartmentHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	deptID, ok := objectIDParam(mux.Vars(r), "department_id")
	if !ok {
		config.ErrorStatus("invalid department id", http.StatusBadRequest, w, errors.New("malformed object id"))
		return
	}

	var req updateDepartmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		config.ErrorFields("validation failed", http.StatusBadRequest, w, fieldErrors(err))
		return
	}

	set := bson.M{"updatedAt": time.Now()}
	if req.Name != "" {
		set["name"] = req.Name
		set["code"] = policy.DepartmentCode(req.Name)
	}
	if req.Description != "" {
		set["description"] = req.Description
	}
	if req.Active != nil {
		set["active"] = *req.Active
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	if err := h.DB.UpdateOne(ctx, bson.M{"_id": deptID}, bson.M{"$set": set}); err != nil {
		if databases.IsDuplicateKey(err) {
			config.ErrorStatus("a department with this name already exists", http.StatusConflict, w, err)
			return
		}
		config.ErrorStatus("failed to update department", http.StatusInternalServerError, w, err)
		return
	}

	department, err := h.DB.FindOne(ctx, bson.M{"_id": deptID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			config.ErrorStatus("department not found", http.StatusNotFound, w, err)
			return
		}
		config.ErrorStatus("failed to get department", http.StatusInternalServerError, w, err)
		return
	}
	respondJSON(w, http.StatusOK, department)
}

// DeleteDepartmentHandler soft deletes a department and unassigns its
// officers. Reports keep their department reference for history.
func (h Department) DeleteDepartmentHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	deptID, ok := objectIDParam(mux.Vars(r), "department_id")
	if !ok {
		config.ErrorStatus("invalid department id", http.StatusBadRequest, w, errors.New("malformed object id"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	department, err := h.DB.FindOne(ctx, bson.M{"_id": deptID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			config.ErrorStatus("department not found", http.StatusNotFound, w, err)
			return
		}
		config.ErrorStatus("failed to get department", http.StatusInternalServerError, w, err)
		return
	}
	if department.ActiveReports > 0 {
		config.ErrorStatus("department still has open reports", http.StatusConflict, w, errors.New("open reports remain"))
		return
	}

	now := time.Now()
	if err := h.DB.UpdateOne(ctx, bson.M{"_id": deptID}, bson.M{
		"$set": bson.M{"deleted": true, "active": false, "updatedAt": now},
	}); err != nil {
		config.ErrorStatus("failed to delete department", http.StatusInternalServerError, w, err)
		return
	}

	unassigned, err := h.UDB.UpdateMany(ctx,
		bson.M{"departments": deptID},
		bson.M{"$pull": bson.M{"departments": deptID}, "$set": bson.M{"updatedAt": now}},
	)
	if err != nil {
		zap.S().With(err).Error("failed to unassign officers from deleted department")
	}

	zap.S().Infow("department deleted", "name", department.Name, "officersUnassigned", unassigned)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":            "department deleted",
		"officersUnassigned": unassigned,
	})
}

// DepartmentStatsHandler returns true report counts grouped by status,
// computed from the reports collection rather than the cached counters.
func (h Department) DepartmentStatsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	actor, ok := api.ActorFromContext(r.Context())
	if !ok {
		config.ErrorStatus("missing identity", http.StatusUnauthorized, w, errors.New("no actor in context"))
		return
	}

	deptID, ok := objectIDParam(mux.Vars(r), "department_id")
	if !ok {
		config.ErrorStatus("invalid department id", http.StatusBadRequest, w, errors.New("malformed object id"))
		return
	}
	if actor.IsOfficer() && !actor.AssignedTo(deptID) {
		config.ErrorStatus("department is not assigned to you", http.StatusForbidden, w, errors.New("department mismatch"))
		return
	}

	pipeline := []bson.M{
		{"$match": bson.M{"department": deptID, "deleted": bson.M{"$ne": true}}},
		{"$group": bson.M{
			"_id":         "$department",
			"submitted":   bson.M{"$sum": bson.M{"$cond": []interface{}{bson.M{"$eq": []string{"$status", models.ReportSubmitted}}, 1, 0}}},
			"in_progress": bson.M{"$sum": bson.M{"$cond": []interface{}{bson.M{"$eq": []string{"$status", models.ReportInProgress}}, 1, 0}}},
			"resolved":    bson.M{"$sum": bson.M{"$cond": []interface{}{bson.M{"$eq": []string{"$status", models.ReportResolved}}, 1, 0}}},
			"rejected":    bson.M{"$sum": bson.M{"$cond": []interface{}{bson.M{"$eq": []string{"$status", models.ReportRejected}}, 1, 0}}},
			"total":       bson.M{"$sum": 1},
		}},
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	var results []models.DepartmentStats
	if err := h.RDB.Aggregate(ctx, pipeline, &results); err != nil {
		config.ErrorStatus("failed to compute department stats", http.StatusInternalServerError, w, err)
		return
	}
	if len(results) == 0 {
		respondJSON(w, http.StatusOK, models.DepartmentStats{DepartmentID: deptID})
		return
	}
	respondJSON(w, http.StatusOK, results[0])
}
