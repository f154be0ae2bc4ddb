package databases

// go generate: mockery --name DepartmentDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/civicgrid/civic-report-api/models"
)

const departmentName = "departments"

// DepartmentDatabase contains the methods to use with the department database
type DepartmentDatabase interface {
	FindOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*models.Department, error)
	Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Department, error)
	InsertOne(ctx context.Context, department models.Department) error
	UpdateOne(ctx context.Context, filter bson.M, update interface{}, opts ...*options.UpdateOptions) error
}

type departmentDatabase struct {
	db DatabaseHelper
}

// NewDepartmentDatabase initializes a new instance of department database with the provided db connection
func NewDepartmentDatabase(db DatabaseHelper) DepartmentDatabase {
	return &departmentDatabase{
		db: db,
	}
}

func (d *departmentDatabase) FindOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*models.Department, error) {
	department := &models.Department{}
	err := d.db.Collection(departmentName).FindOne(ctx, notDeleted(filter), opts...).Decode(&department)
	if err != nil {
		return nil, err
	}
	return department, nil
}

func (d *departmentDatabase) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Department, error) {
	var departments []models.Department
	cur, err := d.db.Collection(departmentName).Find(ctx, notDeleted(filter), opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	if err = cur.All(ctx, &departments); err != nil {
		return nil, err
	}
	return departments, nil
}

func (d *departmentDatabase) InsertOne(ctx context.Context, department models.Department) error {
	return d.db.Collection(departmentName).InsertOne(ctx, department)
}

func (d *departmentDatabase) UpdateOne(ctx context.Context, filter bson.M, update interface{}, opts ...*options.UpdateOptions) error {
	_, err := d.db.Collection(departmentName).UpdateOne(ctx, notDeleted(filter), update, opts...)
	return err
}
