package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/civicgrid/civic-report-api/databases"
	"github.com/civicgrid/civic-report-api/models"
)

const jobTimeout = 2 * time.Minute

// Scheduler runs the recurring maintenance jobs. Department counters are
// cheap denormalized values bumped inline by the handlers; the nightly job
// re-derives them from the source collections so drift never accumulates.
type Scheduler struct {
	cron *cron.Cron
	ddb  databases.DepartmentDatabase
	rdb  databases.ReportDatabase
	udb  databases.UserDatabase
	prdb databases.PasswordResetDatabase
}

func New(ddb databases.DepartmentDatabase, rdb databases.ReportDatabase, udb databases.UserDatabase, prdb databases.PasswordResetDatabase) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		ddb:  ddb,
		rdb:  rdb,
		udb:  udb,
		prdb: prdb,
	}
}

// Start registers the jobs and starts the cron loop in its own goroutine
func (s *Scheduler) Start() {
	_, err := s.cron.AddFunc("15 2 * * *", s.ReconcileDepartmentCounters)
	if err != nil {
		zap.S().With(err).Error("failed to register counter reconciliation job")
	}
	_, err = s.cron.AddFunc("@hourly", s.ExpireResetTokens)
	if err != nil {
		zap.S().With(err).Error("failed to register reset token cleanup job")
	}
	s.cron.Start()
	zap.S().Info("scheduler started")
}

// Stop stops the cron loop, letting running jobs finish
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// ReconcileDepartmentCounters recomputes every department's report and
// officer counters from the reports and users collections.
func (s *Scheduler) ReconcileDepartmentCounters() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	pipeline := []bson.M{
		{"$match": bson.M{"deleted": bson.M{"$ne": true}}},
		{"$group": bson.M{
			"_id":         "$department",
			"submitted":   bson.M{"$sum": bson.M{"$cond": []interface{}{bson.M{"$eq": []string{"$status", models.ReportSubmitted}}, 1, 0}}},
			"in_progress": bson.M{"$sum": bson.M{"$cond": []interface{}{bson.M{"$eq": []string{"$status", models.ReportInProgress}}, 1, 0}}},
			"resolved":    bson.M{"$sum": bson.M{"$cond": []interface{}{bson.M{"$eq": []string{"$status", models.ReportResolved}}, 1, 0}}},
			"rejected":    bson.M{"$sum": bson.M{"$cond": []interface{}{bson.M{"$eq": []string{"$status", models.ReportRejected}}, 1, 0}}},
			"total":       bson.M{"$sum": 1},
		}},
	}

	var stats []models.DepartmentStats
	if err := s.rdb.Aggregate(ctx, pipeline, &stats); err != nil {
		zap.S().With(err).Error("counter reconciliation failed to aggregate reports")
		return
	}
	byDept := make(map[string]models.DepartmentStats, len(stats))
	for _, st := range stats {
		byDept[st.DepartmentID.Hex()] = st
	}

	// walk every department so ones with zero reports still get their
	// counters zeroed and their officersCount refreshed
	departments, err := s.ddb.Find(ctx, bson.M{})
	if err != nil {
		zap.S().With(err).Error("counter reconciliation failed to list departments")
		return
	}

	reconciled := 0
	for _, dept := range departments {
		st := byDept[dept.ID.Hex()]
		officers, err := s.udb.CountDocuments(ctx, bson.M{
			"role":        models.RoleOfficer,
			"departments": dept.ID,
		})
		if err != nil {
			zap.S().With(err).Errorw("counter reconciliation failed to count officers", "department", dept.ID.Hex())
			continue
		}
		if err := s.ddb.UpdateOne(ctx, bson.M{"_id": dept.ID}, bson.M{
			"$set": bson.M{
				"totalReports":    st.Total,
				"activeReports":   st.Submitted + st.InProgress,
				"resolvedReports": st.Resolved,
				"officersCount":   officers,
				"updatedAt":       time.Now(),
			},
		}); err != nil {
			zap.S().With(err).Errorw("counter reconciliation failed to update department", "department", dept.ID.Hex())
			continue
		}
		reconciled++
	}
	zap.S().Infow("department counters reconciled", "departments", reconciled)
}

// ExpireResetTokens invalidates password reset tokens past their expiry
func (s *Scheduler) ExpireResetTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.prdb.DeleteExpired(ctx)
	if err != nil {
		zap.S().With(err).Error("failed to expire reset tokens")
		return
	}
	if n > 0 {
		zap.S().Infow("expired reset tokens invalidated", "count", n)
	}
}
