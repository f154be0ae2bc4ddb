package databases

// go generate: mockery --name ReportDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/civicgrid/civic-report-api/models"
)

const reportName = "reports"

// ReportDatabase contains the methods to use with the report database
type ReportDatabase interface {
	FindOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*models.Report, error)
	Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Report, error)
	InsertOne(ctx context.Context, report models.Report) error
	UpdateOne(ctx context.Context, filter bson.M, update interface{}, opts ...*options.UpdateOptions) error
	CountDocuments(ctx context.Context, filter bson.M, opts ...*options.CountOptions) (int64, error)
	Aggregate(ctx context.Context, pipeline interface{}, results interface{}) error
}

type reportDatabase struct {
	db DatabaseHelper
}

// NewReportDatabase initializes a new instance of report database with the provided db connection
func NewReportDatabase(db DatabaseHelper) ReportDatabase {
	return &reportDatabase{
		db: db,
	}
}

func (r *reportDatabase) FindOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*models.Report, error) {
	report := &models.Report{}
	err := r.db.Collection(reportName).FindOne(ctx, notDeleted(filter), opts...).Decode(&report)
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (r *reportDatabase) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Report, error) {
	var reports []models.Report
	cur, err := r.db.Collection(reportName).Find(ctx, notDeleted(filter), opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	if err = cur.All(ctx, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *reportDatabase) InsertOne(ctx context.Context, report models.Report) error {
	return r.db.Collection(reportName).InsertOne(ctx, report)
}

func (r *reportDatabase) UpdateOne(ctx context.Context, filter bson.M, update interface{}, opts ...*options.UpdateOptions) error {
	_, err := r.db.Collection(reportName).UpdateOne(ctx, notDeleted(filter), update, opts...)
	return err
}

func (r *reportDatabase) CountDocuments(ctx context.Context, filter bson.M, opts ...*options.CountOptions) (int64, error) {
	return r.db.Collection(reportName).CountDocuments(ctx, notDeleted(filter), opts...)
}

func (r *reportDatabase) Aggregate(ctx context.Context, pipeline interface{}, results interface{}) error {
	cur, err := r.db.Collection(reportName).Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	defer cur.Close(ctx)
	return cur.All(ctx, results)
}
