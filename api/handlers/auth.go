package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/civicgrid/civic-report-api/api"
	"github.com/civicgrid/civic-report-api/config"
	"github.com/civicgrid/civic-report-api/databases"
	"github.com/civicgrid/civic-report-api/models"
)

const resetTokenTTL = time.Hour

// Account exposes registration, login and self-service profile handlers
type Account struct {
	DB     databases.UserDatabase
	PRDB   databases.PasswordResetDatabase
	Config *config.Config
	Mailer *Mailer
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Phone    string `json:"phone" validate:"omitempty,e164"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterHandler creates a citizen account. Officer and admin accounts are
// provisioned by admins, never by open registration.
func (a Account) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		config.ErrorFields("validation failed", http.StatusBadRequest, w, fieldErrors(err))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}

	now := time.Now()
	user := models.User{
		Name:          req.Name,
		Email:         strings.ToLower(req.Email),
		Password:      string(hash),
		Phone:         req.Phone,
		Role:          models.RoleCitizen,
		AccountStatus: models.AccountActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	if err := a.DB.InsertOne(ctx, user); err != nil {
		if databases.IsDuplicateKey(err) {
			config.ErrorStatus("an account with this email already exists", http.StatusConflict, w, err)
			return
		}
		config.ErrorStatus("failed to create account", http.StatusInternalServerError, w, err)
		return
	}

	created, err := a.DB.FindOne(ctx, bson.M{"email": user.Email})
	if err != nil {
		config.ErrorStatus("failed to fetch created account", http.StatusInternalServerError, w, err)
		return
	}

	zap.S().Infow("citizen registered", "email", user.Email)
	respondJSON(w, http.StatusCreated, created)
}

// LoginHandler verifies credentials and returns a signed JWT
func (a Account) LoginHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req loginRequest
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
	user, err := a.DB.FindOne(ctx, bson.M{"email": strings.ToLower(req.Email)})
	if err != nil {
		config.ErrorStatus("invalid email or password", http.StatusUnauthorized, w, err)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		config.ErrorStatus("invalid email or password", http.StatusUnauthorized, w, err)
		return
	}
	if user.AccountStatus != models.AccountActive {
		config.ErrorStatus("account is not active", http.StatusForbidden, w, errors.New(user.AccountStatus))
		return
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  user.ID.Hex(),
		"role": user.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(24 * time.Hour).Unix(),
	}
	if user.Role == models.RoleAdmin {
		claims["scope"] = "admin"
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.Config.JWTSecret))
	if err != nil {
		config.ErrorStatus("failed to sign token", http.StatusInternalServerError, w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token": signed,
		"user":  user,
	})
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ForgotPasswordHandler issues a single-use reset token. The response is the
// same whether or not the email exists, to avoid account enumeration.
func (a Account) ForgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		config.ErrorFields("validation failed", http.StatusBadRequest, w, fieldErrors(err))
		return
	}

	accepted := map[string]string{"message": "if the account exists, a reset email has been sent"}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	user, err := a.DB.FindOne(ctx, bson.M{"email": strings.ToLower(req.Email)})
	if err != nil {
		respondJSON(w, http.StatusAccepted, accepted)
		return
	}

	token := uuid.New().String()
	sum := sha256.Sum256([]byte(token))
	reset := models.PasswordReset{
		UserID:    user.ID,
		TokenHash: hex.EncodeToString(sum[:]),
		ExpiresAt: time.Now().Add(resetTokenTTL),
		CreatedAt: time.Now(),
	}
	if err := a.PRDB.InsertOne(ctx, reset); err != nil {
		config.ErrorStatus("failed to store reset token", http.StatusInternalServerError, w, err)
		return
	}

	go a.Mailer.SendPasswordReset(user.Name, user.Email, token)
	respondJSON(w, http.StatusAccepted, accepted)
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// ResetPasswordHandler redeems a reset token and replaces the password
func (a Account) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		config.ErrorFields("validation failed", http.StatusBadRequest, w, fieldErrors(err))
		return
	}

	sum := sha256.Sum256([]byte(req.Token))
	hash := hex.EncodeToString(sum[:])

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	reset, err := a.PRDB.FindOne(ctx, bson.M{
		"tokenHash": hash,
		"expiresAt": bson.M{"$gt": time.Now()},
		"usedAt":    bson.M{"$exists": false},
	})
	if err != nil {
		config.ErrorStatus("invalid or expired reset token", http.StatusBadRequest, w, err)
		return
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}

	now := time.Now()
	if err := a.DB.UpdateOne(ctx, bson.M{"_id": reset.UserID}, bson.M{
		"$set": bson.M{"password": string(newHash), "updatedAt": now},
	}); err != nil {
		config.ErrorStatus("failed to update password", http.StatusInternalServerError, w, err)
		return
	}
	if err := a.PRDB.UpdateOne(ctx, bson.M{"_id": reset.ID}, bson.M{
		"$set": bson.M{"usedAt": now},
	}); err != nil {
		zap.S().With(err).Error("failed to mark reset token used")
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// MeHandler returns the authenticated user's profile
func (a Account) MeHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	actor, ok := api.ActorFromContext(r.Context())
	if !ok {
		config.ErrorStatus("missing identity", http.StatusUnauthorized, w, errors.New("no actor in context"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	user, err := a.DB.FindOne(ctx, bson.M{"_id": actor.ID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			config.ErrorStatus("user not found", http.StatusNotFound, w, err)
			return
		}
		config.ErrorStatus("failed to get user", http.StatusInternalServerError, w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

type updateMeRequest struct {
	Name  string `json:"name" validate:"omitempty,min=2,max=120"`
	Phone string `json:"phone" validate:"omitempty,e164"`
}

// UpdateMeHandler updates the mutable parts of the authenticated user's
// profile. Email, role and account status are not self-service.
func (a Account) UpdateMeHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	actor, ok := api.ActorFromContext(r.Context())
	if !ok {
		config.ErrorStatus("missing identity", http.StatusUnauthorized, w, errors.New("no actor in context"))
		return
	}

	var req updateMeRequest
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
	}
	if req.Phone != "" {
		set["phone"] = req.Phone
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	if err := a.DB.UpdateOne(ctx, bson.M{"_id": actor.ID}, bson.M{"$set": set}); err != nil {
		config.ErrorStatus("failed to update user", http.StatusInternalServerError, w, err)
		return
	}

	user, err := a.DB.FindOne(ctx, bson.M{"_id": actor.ID})
	if err != nil {
		config.ErrorStatus("failed to get user", http.StatusInternalServerError, w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}
