package scheduler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/civicgrid/civic-report-api/api/scheduler"
	"github.com/civicgrid/civic-report-api/databases"
	"github.com/civicgrid/civic-report-api/databases/mocks"
	"github.com/civicgrid/civic-report-api/models"
)

func newScheduler(db databases.DatabaseHelper) *scheduler.Scheduler {
	return scheduler.New(
		databases.NewDepartmentDatabase(db),
		databases.NewReportDatabase(db),
		databases.NewUserDatabase(db),
		databases.NewPasswordResetDatabase(db),
	)
}

func TestExpireResetTokens(t *testing.T) {
	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}

	conn.On("UpdateMany", mock.Anything, mock.Anything, mock.Anything).Return(int64(3), nil)
	db.On("Collection", "password_resets").Return(conn)

	s := newScheduler(db)
	s.ExpireResetTokens()

	conn.AssertCalled(t, "UpdateMany", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcileDepartmentCounters(t *testing.T) {
	db := &mocks.DatabaseHelper{}
	reports := &mocks.CollectionHelper{}
	users := &mocks.CollectionHelper{}
	depts := &mocks.CollectionHelper{}
	statsCur := &mocks.CursorHelper{}
	deptCur := &mocks.CursorHelper{}

	busy := primitive.NewObjectID()
	idle := primitive.NewObjectID()

	statsCur.On("All", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(1).(*[]models.DepartmentStats)
		*arg = []models.DepartmentStats{{
			DepartmentID: busy,
			Submitted:    2,
			InProgress:   1,
			Resolved:     4,
			Rejected:     1,
			Total:        8,
		}}
	})
	statsCur.On("Close", mock.Anything).Return(nil)
	reports.On("Aggregate", mock.Anything, mock.Anything).Return(statsCur, nil)

	// a department with no reports at all still gets reconciled
	deptCur.On("All", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(1).(*[]models.Department)
		*arg = []models.Department{{ID: busy}, {ID: idle}}
	})
	deptCur.On("Close", mock.Anything).Return(nil)
	depts.On("Find", mock.Anything, mock.Anything).Return(deptCur, nil)

	users.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(5), nil)
	depts.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(int64(1), nil)

	db.On("Collection", "reports").Return(reports)
	db.On("Collection", "users").Return(users)
	db.On("Collection", "departments").Return(depts)

	s := newScheduler(db)
	s.ReconcileDepartmentCounters()

	depts.AssertNumberOfCalls(t, "UpdateOne", 2)

	// first update is the department that had reports, second had none
	busySet := depts.Calls[1].Arguments.Get(2).(bson.M)["$set"].(bson.M)
	assert.Equal(t, int64(3), busySet["activeReports"])
	assert.Equal(t, int64(4), busySet["resolvedReports"])
	assert.Equal(t, int64(8), busySet["totalReports"])
	assert.Equal(t, int64(5), busySet["officersCount"])

	idleSet := depts.Calls[2].Arguments.Get(2).(bson.M)["$set"].(bson.M)
	assert.Equal(t, int64(0), idleSet["activeReports"])
	assert.Equal(t, int64(0), idleSet["resolvedReports"])
	assert.Equal(t, int64(0), idleSet["totalReports"])
	assert.Equal(t, int64(5), idleSet["officersCount"])
}
