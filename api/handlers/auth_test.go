package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/civicgrid/civic-report-api/api/handlers"
	"github.com/civicgrid/civic-report-api/config"
	"github.com/civicgrid/civic-report-api/databases"
	"github.com/civicgrid/civic-report-api/databases/mocks"
	"github.com/civicgrid/civic-report-api/models"
)

func newAccountHandler(db databases.DatabaseHelper) handlers.Account {
	return handlers.Account{
		DB:     databases.NewUserDatabase(db),
		PRDB:   databases.NewPasswordResetDatabase(db),
		Config: &config.Config{JWTSecret: "test-secret"},
		Mailer: handlers.NewMailer(&config.Config{}),
	}
}

func TestAccount_RegisterHandlerValidation(t *testing.T) {
	db := &MockDatabaseHelper{}
	h := newAccountHandler(db)

	body, _ := json.Marshal(map[string]string{
		"name":     "A",
		"email":    "not-an-email",
		"password": "short",
	})
	req, err := http.NewRequest("POST", "/api/v1/auth/register", bytes.NewReader(body))
	assert.NoError(t, err)

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.RegisterHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), `"success":false`)
	assert.Contains(t, rr.Body.String(), "email")
}

func TestAccount_RegisterHandlerDuplicateEmail(t *testing.T) {
	db := &MockDatabaseHelper{}
	conn := &mocks.CollectionHelper{}

	conn.On("InsertOne", mock.Anything, mock.Anything).
		Return(mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}})
	db.On("Collection", "users").Return(conn)

	h := newAccountHandler(db)

	body, _ := json.Marshal(map[string]string{
		"name":     "Asha Verma",
		"email":    "asha@example.com",
		"password": "hunter2hunter2",
	})
	req, err := http.NewRequest("POST", "/api/v1/auth/register", bytes.NewReader(body))
	assert.NoError(t, err)

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.RegisterHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "already exists")
}

func TestAccount_RegisterHandlerAssignsCitizenRole(t *testing.T) {
	db := &MockDatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	sr := &mocks.SingleResultHelper{}

	conn.On("InsertOne", mock.Anything, mock.Anything).Return(nil)
	sr.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.User)
		(*arg).Email = "asha@example.com"
		(*arg).Role = models.RoleCitizen
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(sr)
	db.On("Collection", "users").Return(conn)

	h := newAccountHandler(db)

	// the request cannot choose its own role
	body, _ := json.Marshal(map[string]string{
		"name":     "Asha Verma",
		"email":    "Asha@Example.com",
		"password": "hunter2hunter2",
		"role":     "admin",
	})
	req, err := http.NewRequest("POST", "/api/v1/auth/register", bytes.NewReader(body))
	assert.NoError(t, err)

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.RegisterHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	inserted := conn.Calls[0].Arguments.Get(1).(models.User)
	assert.Equal(t, models.RoleCitizen, inserted.Role)
	assert.Equal(t, "asha@example.com", inserted.Email)
	assert.NotEqual(t, "hunter2hunter2", inserted.Password)
}

func TestAccount_LoginHandlerWrongPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)

	db := &MockDatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	sr := &mocks.SingleResultHelper{}

	sr.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.User)
		(*arg).Email = "asha@example.com"
		(*arg).Password = string(hash)
		(*arg).AccountStatus = models.AccountActive
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(sr)
	db.On("Collection", "users").Return(conn)

	h := newAccountHandler(db)

	body, _ := json.Marshal(map[string]string{"email": "asha@example.com", "password": "wrong"})
	req, err := http.NewRequest("POST", "/api/v1/auth/login", bytes.NewReader(body))
	assert.NoError(t, err)

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.LoginHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAccount_LoginHandlerSuspendedAccount(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)

	db := &MockDatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	sr := &mocks.SingleResultHelper{}

	sr.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.User)
		(*arg).Email = "asha@example.com"
		(*arg).Password = string(hash)
		(*arg).AccountStatus = models.AccountSuspended
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(sr)
	db.On("Collection", "users").Return(conn)

	h := newAccountHandler(db)

	body, _ := json.Marshal(map[string]string{"email": "asha@example.com", "password": "correct-horse"})
	req, err := http.NewRequest("POST", "/api/v1/auth/login", bytes.NewReader(body))
	assert.NoError(t, err)

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.LoginHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestAccount_LoginHandlerSuccess(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)

	db := &MockDatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	sr := &mocks.SingleResultHelper{}

	sr.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.User)
		(*arg).ID = primitive.NewObjectID()
		(*arg).Email = "asha@example.com"
		(*arg).Password = string(hash)
		(*arg).Role = models.RoleCitizen
		(*arg).AccountStatus = models.AccountActive
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(sr)
	db.On("Collection", "users").Return(conn)

	h := newAccountHandler(db)

	body, _ := json.Marshal(map[string]string{"email": "asha@example.com", "password": "correct-horse"})
	req, err := http.NewRequest("POST", "/api/v1/auth/login", bytes.NewReader(body))
	assert.NoError(t, err)

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.LoginHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"token"`)
	// the password hash never leaves the api
	assert.NotContains(t, rr.Body.String(), string(hash))
}

func TestAccount_ForgotPasswordHandlerUnknownEmail(t *testing.T) {
	db := &MockDatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	sr := &mocks.SingleResultHelper{}

	sr.On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)
	conn.On("FindOne", mock.Anything, mock.Anything).Return(sr)
	db.On("Collection", "users").Return(conn)

	h := newAccountHandler(db)

	body, _ := json.Marshal(map[string]string{"email": "ghost@example.com"})
	req, err := http.NewRequest("POST", "/api/v1/auth/forgot-password", bytes.NewReader(body))
	assert.NoError(t, err)

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.ForgotPasswordHandler).ServeHTTP(rr, req)

	// same response whether or not the account exists
	assert.Equal(t, http.StatusAccepted, rr.Code)
}

func TestAccount_MeHandlerSuccess(t *testing.T) {
	userID := primitive.NewObjectID()

	db := &MockDatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	sr := &mocks.SingleResultHelper{}

	sr.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.User)
		(*arg).ID = userID
		(*arg).Name = "Asha Verma"
		(*arg).Role = models.RoleCitizen
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(sr)
	db.On("Collection", "users").Return(conn)

	h := newAccountHandler(db)

	req, err := http.NewRequest("GET", "/api/v1/me", nil)
	assert.NoError(t, err)
	req = withActor(req, models.Actor{ID: userID, Role: models.RoleCitizen})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.MeHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Asha Verma")
}
