package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/civicgrid/civic-report-api/api"
	"github.com/civicgrid/civic-report-api/api/handlers"
	"github.com/civicgrid/civic-report-api/databases"
	"github.com/civicgrid/civic-report-api/databases/mocks"
	"github.com/civicgrid/civic-report-api/models"
)

type MockDatabaseHelper struct {
	mock.Mock
}

// Client provides a mock function.
func (_m *MockDatabaseHelper) Client() databases.ClientHelper {
	ret := _m.Called()

	var r0 databases.ClientHelper
	if rf, ok := ret.Get(0).(func() databases.ClientHelper); ok {
		r0 = rf()
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(databases.ClientHelper)
		}
	}

	return r0
}

// Collection provides a mock function.
func (_m *MockDatabaseHelper) Collection(name string) databases.CollectionHelper {
	ret := _m.Called(name)

	var r0 databases.CollectionHelper
	if rf, ok := ret.Get(0).(func(string) databases.CollectionHelper); ok {
		r0 = rf(name)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(databases.CollectionHelper)
		}
	}

	return r0
}

// EnsureIndexes provides a mock function.
func (_m *MockDatabaseHelper) EnsureIndexes(ctx context.Context) error {
	return nil
}

func withActor(req *http.Request, actor models.Actor) *http.Request {
	return req.WithContext(api.WithActor(req.Context(), actor))
}

func newReportHandler(db databases.DatabaseHelper) handlers.Report {
	return handlers.Report{
		DB:  databases.NewReportDatabase(db),
		DDB: databases.NewDepartmentDatabase(db),
		Hub: handlers.NewHub(),
	}
}

func TestReport_ReportByIDHandlerNotFound(t *testing.T) {
	db := &MockDatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	sr := &mocks.SingleResultHelper{}

	sr.On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)
	conn.On("FindOne", mock.Anything, mock.Anything).Return(sr)
	db.On("Collection", "reports").Return(conn)

	h := newReportHandler(db)

	req, err := http.NewRequest("GET", "/api/v1/reports/RPT-20250601-0001", nil)
	assert.NoError(t, err)
	req = mux.SetURLVars(req, map[string]string{"report_id": "RPT-20250601-0001"})
	req = withActor(req, models.Actor{ID: primitive.NewObjectID(), Role: models.RoleAdmin})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.ReportByIDHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), `"success":false`)
}

func TestReport_ReportByIDHandlerHiddenOutsideScope(t *testing.T) {
	owner := primitive.NewObjectID()
	stranger := primitive.NewObjectID()

	db := &MockDatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	sr := &mocks.SingleResultHelper{}

	sr.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Report)
		(*arg).ReportID = "RPT-20250601-0001"
		(*arg).Citizen = owner
		(*arg).Status = models.ReportSubmitted
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(sr)
	db.On("Collection", "reports").Return(conn)

	h := newReportHandler(db)

	req, err := http.NewRequest("GET", "/api/v1/reports/RPT-20250601-0001", nil)
	assert.NoError(t, err)
	req = mux.SetURLVars(req, map[string]string{"report_id": "RPT-20250601-0001"})
	req = withActor(req, models.Actor{ID: stranger, Role: models.RoleCitizen})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.ReportByIDHandler).ServeHTTP(rr, req)

	// a citizen probing someone else's report cannot learn it exists
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestReport_ReportByIDHandlerOwnerSuccess(t *testing.T) {
	owner := primitive.NewObjectID()

	db := &MockDatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	sr := &mocks.SingleResultHelper{}

	sr.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Report)
		(*arg).ReportID = "RPT-20250601-0001"
		(*arg).Citizen = owner
		(*arg).Status = models.ReportSubmitted
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(sr)
	db.On("Collection", "reports").Return(conn)

	h := newReportHandler(db)

	req, err := http.NewRequest("GET", "/api/v1/reports/RPT-20250601-0001", nil)
	assert.NoError(t, err)
	req = mux.SetURLVars(req, map[string]string{"report_id": "RPT-20250601-0001"})
	req = withActor(req, models.Actor{ID: owner, Role: models.RoleCitizen})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.ReportByIDHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "RPT-20250601-0001")
}

func TestReport_CreateReportHandlerRequiresImage(t *testing.T) {
	db := &MockDatabaseHelper{}
	h := newReportHandler(db)

	body, _ := json.Marshal(map[string]interface{}{
		"department":  primitive.NewObjectID().Hex(),
		"title":       "Broken streetlight",
		"description": "The light on the corner has been out for a week",
		"latitude":    12.97,
		"longitude":   77.59,
	})
	req, err := http.NewRequest("POST", "/api/v1/reports", bytes.NewReader(body))
	assert.NoError(t, err)
	req = withActor(req, models.Actor{ID: primitive.NewObjectID(), Role: models.RoleCitizen})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.CreateReportHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "media.images")
}

func TestReport_CreateReportHandlerSuccess(t *testing.T) {
	citizen := primitive.NewObjectID()
	deptID := primitive.NewObjectID()

	db := &MockDatabaseHelper{}
	reports := &mocks.CollectionHelper{}
	depts := &mocks.CollectionHelper{}
	deptSR := &mocks.SingleResultHelper{}
	reportSR := &mocks.SingleResultHelper{}

	deptSR.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Department)
		(*arg).ID = deptID
		(*arg).Name = "Roads and Transport"
		(*arg).Code = "ROADS_TRANSPORT"
		(*arg).Active = true
	})
	depts.On("FindOne", mock.Anything, mock.Anything).Return(deptSR)
	depts.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(int64(1), nil)

	reports.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(2), nil)
	reports.On("InsertOne", mock.Anything, mock.Anything).Return(nil)
	reportSR.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Report)
		(*arg).ReportID = "RPT-20250601-0003"
		(*arg).Citizen = citizen
		(*arg).Department = deptID
		(*arg).Status = models.ReportSubmitted
	})
	reports.On("FindOne", mock.Anything, mock.Anything).Return(reportSR)

	db.On("Collection", "reports").Return(reports)
	db.On("Collection", "departments").Return(depts)

	h := newReportHandler(db)

	body, _ := json.Marshal(map[string]interface{}{
		"department":  deptID.Hex(),
		"title":       "Broken streetlight",
		"description": "The light on the corner has been out for a week",
		"latitude":    12.97,
		"longitude":   77.59,
		"media": map[string]interface{}{
			"images": []map[string]string{{"url": "https://cdn.example/x.jpg", "providerId": "x"}},
		},
	})
	req, err := http.NewRequest("POST", "/api/v1/reports", bytes.NewReader(body))
	assert.NoError(t, err)
	req = withActor(req, models.Actor{ID: citizen, Role: models.RoleCitizen})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.CreateReportHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), "RPT-20250601-0003")

	// the insert carried a submitted status and a single audit entry
	inserted := reports.Calls[1].Arguments.Get(1).(models.Report)
	assert.Equal(t, models.ReportSubmitted, inserted.Status)
	assert.Len(t, inserted.StatusHistory, 1)
	assert.Nil(t, inserted.StatusHistory[0].By)
}

type fakeGeocoder struct {
	calls   int
	address string
}

func (g *fakeGeocoder) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	g.calls++
	return g.address, nil
}

func TestReport_CreateReportHandlerClientAddressSkipsGeocode(t *testing.T) {
	citizen := primitive.NewObjectID()
	deptID := primitive.NewObjectID()

	db := &MockDatabaseHelper{}
	reports := &mocks.CollectionHelper{}
	depts := &mocks.CollectionHelper{}
	deptSR := &mocks.SingleResultHelper{}
	reportSR := &mocks.SingleResultHelper{}

	deptSR.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Department)
		(*arg).ID = deptID
		(*arg).Name = "Roads and Transport"
		(*arg).Code = "ROADS_TRANSPORT"
		(*arg).Active = true
	})
	depts.On("FindOne", mock.Anything, mock.Anything).Return(deptSR)
	depts.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(int64(1), nil)

	reports.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(0), nil)
	reports.On("InsertOne", mock.Anything, mock.Anything).Return(nil)
	reportSR.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Report)
		(*arg).ReportID = "RPT-20250601-0001"
		(*arg).Citizen = citizen
		(*arg).Department = deptID
		(*arg).Status = models.ReportSubmitted
	})
	reports.On("FindOne", mock.Anything, mock.Anything).Return(reportSR)

	db.On("Collection", "reports").Return(reports)
	db.On("Collection", "departments").Return(depts)

	geo := &fakeGeocoder{address: "should not be used"}
	h := newReportHandler(db)
	h.Geo = geo

	body, _ := json.Marshal(map[string]interface{}{
		"department":  deptID.Hex(),
		"title":       "Broken streetlight",
		"description": "The light on the corner has been out for a week",
		"latitude":    12.97,
		"longitude":   77.59,
		"address":     "14 MG Road, Bengaluru",
		"media": map[string]interface{}{
			"images": []map[string]string{{"url": "https://cdn.example/x.jpg", "providerId": "x"}},
		},
	})
	req, err := http.NewRequest("POST", "/api/v1/reports", bytes.NewReader(body))
	assert.NoError(t, err)
	req = withActor(req, models.Actor{ID: citizen, Role: models.RoleCitizen})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.CreateReportHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, 0, geo.calls)

	inserted := reports.Calls[1].Arguments.Get(1).(models.Report)
	assert.Equal(t, "14 MG Road, Bengaluru", inserted.Location.Address)
}

func TestReport_UpdateReportStatusHandlerInvalidTransition(t *testing.T) {
	officer := primitive.NewObjectID()
	deptID := primitive.NewObjectID()

	db := &MockDatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	sr := &mocks.SingleResultHelper{}

	sr.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Report)
		(*arg).ReportID = "RPT-20250601-0001"
		(*arg).Department = deptID
		(*arg).Status = models.ReportSubmitted
		(*arg).StatusHistory = []models.StatusEntry{{Status: models.ReportSubmitted, At: time.Now()}}
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(sr)
	db.On("Collection", "reports").Return(conn)

	h := newReportHandler(db)

	// submitted cannot jump straight to resolved
	body, _ := json.Marshal(map[string]string{"status": "resolved"})
	req, err := http.NewRequest("PUT", "/api/v1/reports/RPT-20250601-0001/status", bytes.NewReader(body))
	assert.NoError(t, err)
	req = mux.SetURLVars(req, map[string]string{"report_id": "RPT-20250601-0001"})
	req = withActor(req, models.Actor{ID: officer, Role: models.RoleOfficer, Departments: []primitive.ObjectID{deptID}})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.UpdateReportStatusHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid status transition")
}

func TestReport_ClosedReportRejectsStatusAndRejectAlike(t *testing.T) {
	officer := primitive.NewObjectID()
	deptID := primitive.NewObjectID()

	db := &MockDatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	sr := &mocks.SingleResultHelper{}

	sr.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Report)
		(*arg).ReportID = "RPT-20250601-0001"
		(*arg).Department = deptID
		(*arg).Status = models.ReportResolved
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(sr)
	db.On("Collection", "reports").Return(conn)

	h := newReportHandler(db)
	actor := models.Actor{ID: officer, Role: models.RoleOfficer, Departments: []primitive.ObjectID{deptID}}

	// a resolved report refuses any status change with the same error,
	// whether it comes through the status endpoint or the reject endpoint
	body, _ := json.Marshal(map[string]string{"status": "in_progress"})
	req, err := http.NewRequest("PUT", "/api/v1/reports/RPT-20250601-0001/status", bytes.NewReader(body))
	assert.NoError(t, err)
	req = mux.SetURLVars(req, map[string]string{"report_id": "RPT-20250601-0001"})
	req = withActor(req, actor)

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.UpdateReportStatusHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid status transition")

	body, _ = json.Marshal(map[string]string{"reason": "duplicate of another report"})
	req, err = http.NewRequest("PUT", "/api/v1/reports/RPT-20250601-0001/reject", bytes.NewReader(body))
	assert.NoError(t, err)
	req = mux.SetURLVars(req, map[string]string{"report_id": "RPT-20250601-0001"})
	req = withActor(req, actor)

	rr = httptest.NewRecorder()
	http.HandlerFunc(h.RejectReportHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid status transition")
}

func TestReport_UpdateReportStatusHandlerWrongDepartment(t *testing.T) {
	officer := primitive.NewObjectID()

	db := &MockDatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	sr := &mocks.SingleResultHelper{}

	sr.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Report)
		(*arg).ReportID = "RPT-20250601-0001"
		(*arg).Department = primitive.NewObjectID()
		(*arg).Status = models.ReportSubmitted
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(sr)
	db.On("Collection", "reports").Return(conn)

	h := newReportHandler(db)

	body, _ := json.Marshal(map[string]string{"status": "in_progress"})
	req, err := http.NewRequest("PUT", "/api/v1/reports/RPT-20250601-0001/status", bytes.NewReader(body))
	assert.NoError(t, err)
	req = mux.SetURLVars(req, map[string]string{"report_id": "RPT-20250601-0001"})
	req = withActor(req, models.Actor{ID: officer, Role: models.RoleOfficer})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.UpdateReportStatusHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestReport_RejectReportHandlerRequiresReason(t *testing.T) {
	db := &MockDatabaseHelper{}
	h := newReportHandler(db)

	body, _ := json.Marshal(map[string]string{})
	req, err := http.NewRequest("PUT", "/api/v1/reports/RPT-20250601-0001/reject", bytes.NewReader(body))
	assert.NoError(t, err)
	req = mux.SetURLVars(req, map[string]string{"report_id": "RPT-20250601-0001"})
	req = withActor(req, models.Actor{ID: primitive.NewObjectID(), Role: models.RoleAdmin})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.RejectReportHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "reason")
}
