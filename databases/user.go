package databases

// go generate: mockery --name UserDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/civicgrid/civic-report-api/models"
)

const userName = "users"

// UserDatabase contains the methods to use with the user database
type UserDatabase interface {
	FindOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*models.User, error)
	Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.User, error)
	InsertOne(ctx context.Context, user models.User) error
	UpdateOne(ctx context.Context, filter bson.M, update interface{}, opts ...*options.UpdateOptions) error
	UpdateMany(ctx context.Context, filter bson.M, update interface{}, opts ...*options.UpdateOptions) (int64, error)
	CountDocuments(ctx context.Context, filter bson.M, opts ...*options.CountOptions) (int64, error)
}

type userDatabase struct {
	db DatabaseHelper
}

// NewUserDatabase initializes a new instance of user database with the provided db connection
func NewUserDatabase(db DatabaseHelper) UserDatabase {
	return &userDatabase{
		db: db,
	}
}

func (u *userDatabase) FindOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*models.User, error) {
	user := &models.User{}
	err := u.db.Collection(userName).FindOne(ctx, notDeleted(filter), opts...).Decode(&user)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (u *userDatabase) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.User, error) {
	var users []models.User
	cur, err := u.db.Collection(userName).Find(ctx, notDeleted(filter), opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	if err = cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (u *userDatabase) InsertOne(ctx context.Context, user models.User) error {
	return u.db.Collection(userName).InsertOne(ctx, user)
}

func (u *userDatabase) UpdateOne(ctx context.Context, filter bson.M, update interface{}, opts ...*options.UpdateOptions) error {
	_, err := u.db.Collection(userName).UpdateOne(ctx, notDeleted(filter), update, opts...)
	return err
}

func (u *userDatabase) UpdateMany(ctx context.Context, filter bson.M, update interface{}, opts ...*options.UpdateOptions) (int64, error) {
	return u.db.Collection(userName).UpdateMany(ctx, notDeleted(filter), update, opts...)
}

func (u *userDatabase) CountDocuments(ctx context.Context, filter bson.M, opts ...*options.CountOptions) (int64, error) {
	return u.db.Collection(userName).CountDocuments(ctx, notDeleted(filter), opts...)
}
