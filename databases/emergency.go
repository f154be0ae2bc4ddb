package databases

// go generate: mockery --name EmergencyDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/civicgrid/civic-report-api/models"
)

const emergencyName = "emergencies"

// EmergencyDatabase contains the methods to use with the emergency database
type EmergencyDatabase interface {
	FindOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*models.Emergency, error)
	Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Emergency, error)
	InsertOne(ctx context.Context, emergency models.Emergency) error
	UpdateOne(ctx context.Context, filter bson.M, update interface{}, opts ...*options.UpdateOptions) error
	CountDocuments(ctx context.Context, filter bson.M, opts ...*options.CountOptions) (int64, error)
	Aggregate(ctx context.Context, pipeline interface{}, results interface{}) error
}

type emergencyDatabase struct {
	db DatabaseHelper
}

// NewEmergencyDatabase initializes a new instance of emergency database with the provided db connection
func NewEmergencyDatabase(db DatabaseHelper) EmergencyDatabase {
	return &emergencyDatabase{
		db: db,
	}
}

func (e *emergencyDatabase) FindOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*models.Emergency, error) {
	emergency := &models.Emergency{}
	err := e.db.Collection(emergencyName).FindOne(ctx, notDeleted(filter), opts...).Decode(&emergency)
	if err != nil {
		return nil, err
	}
	return emergency, nil
}

func (e *emergencyDatabase) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Emergency, error) {
	var emergencies []models.Emergency
	cur, err := e.db.Collection(emergencyName).Find(ctx, notDeleted(filter), opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	if err = cur.All(ctx, &emergencies); err != nil {
		return nil, err
	}
	return emergencies, nil
}

func (e *emergencyDatabase) InsertOne(ctx context.Context, emergency models.Emergency) error {
	return e.db.Collection(emergencyName).InsertOne(ctx, emergency)
}

func (e *emergencyDatabase) UpdateOne(ctx context.Context, filter bson.M, update interface{}, opts ...*options.UpdateOptions) error {
	_, err := e.db.Collection(emergencyName).UpdateOne(ctx, notDeleted(filter), update, opts...)
	return err
}

func (e *emergencyDatabase) CountDocuments(ctx context.Context, filter bson.M, opts ...*options.CountOptions) (int64, error) {
	return e.db.Collection(emergencyName).CountDocuments(ctx, notDeleted(filter), opts...)
}

func (e *emergencyDatabase) Aggregate(ctx context.Context, pipeline interface{}, results interface{}) error {
	cur, err := e.db.Collection(emergencyName).Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	defer cur.Close(ctx)
	return cur.All(ctx, results)
}
