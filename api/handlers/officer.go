package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/civicgrid/civic-report-api/api"
	"github.com/civicgrid/civic-report-api/config"
	"github.com/civicgrid/civic-report-api/databases"
	"github.com/civicgrid/civic-report-api/models"
)

// Officer exposes the admin handlers for provisioning officer accounts
type Officer struct {
	DB     databases.UserDatabase
	DDB    databases.DepartmentDatabase
	Mailer *Mailer
}

type createOfficerRequest struct {
	Name        string   `json:"name" validate:"required,min=2,max=120"`
	Email       string   `json:"email" validate:"required,email"`
	Phone       string   `json:"phone" validate:"omitempty,e164"`
	Departments []string `json:"departments" validate:"required,min=1,dive,required"`
}

func (h Officer) resolveDepartments(r *http.Request, hexIDs []string) ([]primitive.ObjectID, error) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	ids := make([]primitive.ObjectID, 0, len(hexIDs))
	for _, raw := range hexIDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return nil, errors.New("malformed department id " + raw)
		}
		if _, err := h.DDB.FindOne(ctx, bson.M{"_id": id}); err != nil {
			return nil, errors.New("unknown department " + raw)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// CreateOfficerHandler provisions an officer account with a generated
// temporary password, emailed to the officer.
func (h Officer) CreateOfficerHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req createOfficerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		config.ErrorFields("validation failed", http.StatusBadRequest, w, fieldErrors(err))
		return
	}

	deptIDs, err := h.resolveDepartments(r, req.Departments)
	if err != nil {
		config.ErrorStatus("invalid departments", http.StatusBadRequest, w, err)
		return
	}

	tempPassword := uuid.New().String()
	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}

	now := time.Now()
	officer := models.User{
		Name:          req.Name,
		Email:         strings.ToLower(req.Email),
		Password:      string(hash),
		Phone:         req.Phone,
		Role:          models.RoleOfficer,
		AccountStatus: models.AccountActive,
		Departments:   deptIDs,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	if err := h.DB.InsertOne(ctx, officer); err != nil {
		if databases.IsDuplicateKey(err) {
			config.ErrorStatus("an account with this email already exists", http.StatusConflict, w, err)
			return
		}
		config.ErrorStatus("failed to create officer", http.StatusInternalServerError, w, err)
		return
	}

	for _, id := range deptIDs {
		if err := h.DDB.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
			"$inc": bson.M{"officersCount": 1},
			"$set": bson.M{"updatedAt": now},
		}); err != nil {
			zap.S().With(err).Error("failed to bump department officer count")
		}
	}

	created, err := h.DB.FindOne(ctx, bson.M{"email": officer.Email})
	if err != nil {
		config.ErrorStatus("failed to fetch created officer", http.StatusInternalServerError, w, err)
		return
	}

	go h.Mailer.SendOfficerWelcome(created.Name, created.Email, tempPassword)
	zap.S().Infow("officer created", "email", created.Email, "departments", len(deptIDs))
	respondJSON(w, http.StatusCreated, created)
}

// OfficersHandler lists officer accounts, optionally filtered by department
func (h Officer) OfficersHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	filter := bson.M{"role": models.RoleOfficer}
	if dept := r.URL.Query().Get("department"); dept != "" {
		deptID, err := primitive.ObjectIDFromHex(dept)
		if err != nil {
			config.ErrorStatus("invalid department id", http.StatusBadRequest, w, err)
			return
		}
		filter["departments"] = deptID
	}

	limit, page := pageParams(r)
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	officers, err := h.DB.Find(ctx, filter, databases.Paginate(limit, page))
	if err != nil {
		config.ErrorStatus("failed to get officers", http.StatusInternalServerError, w, err)
		return
	}
	if officers == nil {
		officers = []models.User{}
	}
	respondJSON(w, http.StatusOK, officers)
}

type updateOfficerStatusRequest struct {
	AccountStatus string `json:"accountStatus" validate:"required,oneof=active inactive suspended"`
}

// UpdateOfficerStatusHandler activates, deactivates or suspends an officer.
// Suspended and inactive officers fail authentication on the next request.
func (h Officer) UpdateOfficerStatusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	officerID, ok := objectIDParam(mux.Vars(r), "officer_id")
	if !ok {
		config.ErrorStatus("invalid officer id", http.StatusBadRequest, w, errors.New("malformed object id"))
		return
	}

	var req updateOfficerStatusRequest
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
	if _, err := h.DB.FindOne(ctx, bson.M{"_id": officerID, "role": models.RoleOfficer}); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			config.ErrorStatus("officer not found", http.StatusNotFound, w, err)
			return
		}
		config.ErrorStatus("failed to get officer", http.StatusInternalServerError, w, err)
		return
	}

	if err := h.DB.UpdateOne(ctx, bson.M{"_id": officerID}, bson.M{
		"$set": bson.M{"accountStatus": req.AccountStatus, "updatedAt": time.Now()},
	}); err != nil {
		config.ErrorStatus("failed to update officer", http.StatusInternalServerError, w, err)
		return
	}

	updated, err := h.DB.FindOne(ctx, bson.M{"_id": officerID})
	if err != nil {
		config.ErrorStatus("failed to fetch updated officer", http.StatusInternalServerError, w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

type updateOfficerDepartmentsRequest struct {
	Departments []string `json:"departments" validate:"required,min=1,dive,required"`
}

// UpdateOfficerDepartmentsHandler replaces an officer's department
// assignments and keeps the per-department officer counts in step.
func (h Officer) UpdateOfficerDepartmentsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	officerID, ok := objectIDParam(mux.Vars(r), "officer_id")
	if !ok {
		config.ErrorStatus("invalid officer id", http.StatusBadRequest, w, errors.New("malformed object id"))
		return
	}

	var req updateOfficerDepartmentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		config.ErrorFields("validation failed", http.StatusBadRequest, w, fieldErrors(err))
		return
	}

	deptIDs, err := h.resolveDepartments(r, req.Departments)
	if err != nil {
		config.ErrorStatus("invalid departments", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	officer, err := h.DB.FindOne(ctx, bson.M{"_id": officerID, "role": models.RoleOfficer})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			config.ErrorStatus("officer not found", http.StatusNotFound, w, err)
			return
		}
		config.ErrorStatus("failed to get officer", http.StatusInternalServerError, w, err)
		return
	}

	now := time.Now()
	if err := h.DB.UpdateOne(ctx, bson.M{"_id": officerID}, bson.M{
		"$set": bson.M{"departments": deptIDs, "updatedAt": now},
	}); err != nil {
		config.ErrorStatus("failed to update officer", http.StatusInternalServerError, w, err)
		return
	}

	for _, id := range officer.Departments {
		if err := h.DDB.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
			"$inc": bson.M{"officersCount": -1},
			"$set": bson.M{"updatedAt": now},
		}); err != nil {
			zap.S().With(err).Error("failed to bump department officer count")
		}
	}
	for _, id := range deptIDs {
		if err := h.DDB.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
			"$inc": bson.M{"officersCount": 1},
			"$set": bson.M{"updatedAt": now},
		}); err != nil {
			zap.S().With(err).Error("failed to bump department officer count")
		}
	}

	updated, err := h.DB.FindOne(ctx, bson.M{"_id": officerID})
	if err != nil {
		config.ErrorStatus("failed to fetch updated officer", http.StatusInternalServerError, w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}
