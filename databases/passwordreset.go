package databases

// go generate: mockery --name PasswordResetDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/civicgrid/civic-report-api/models"
)

const passwordResetName = "password_resets"

// PasswordResetDatabase contains the methods to use with the password reset database
type PasswordResetDatabase interface {
	FindOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*models.PasswordReset, error)
	InsertOne(ctx context.Context, reset models.PasswordReset) error
	UpdateOne(ctx context.Context, filter bson.M, update interface{}, opts ...*options.UpdateOptions) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type passwordResetDatabase struct {
	db DatabaseHelper
}

// NewPasswordResetDatabase initializes a new instance of password reset database with the provided db connection
func NewPasswordResetDatabase(db DatabaseHelper) PasswordResetDatabase {
	return &passwordResetDatabase{
		db: db,
	}
}

func (p *passwordResetDatabase) FindOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*models.PasswordReset, error) {
	reset := &models.PasswordReset{}
	err := p.db.Collection(passwordResetName).FindOne(ctx, filter, opts...).Decode(&reset)
	if err != nil {
		return nil, err
	}
	return reset, nil
}

func (p *passwordResetDatabase) InsertOne(ctx context.Context, reset models.PasswordReset) error {
	return p.db.Collection(passwordResetName).InsertOne(ctx, reset)
}

func (p *passwordResetDatabase) UpdateOne(ctx context.Context, filter bson.M, update interface{}, opts ...*options.UpdateOptions) error {
	_, err := p.db.Collection(passwordResetName).UpdateOne(ctx, filter, update, opts...)
	return err
}

// DeleteExpired marks expired unused tokens as used so they can never redeem.
// Called by the scheduler.
func (p *passwordResetDatabase) DeleteExpired(ctx context.Context) (int64, error) {
	return p.db.Collection(passwordResetName).UpdateMany(ctx,
		bson.M{"expiresAt": bson.M{"$lt": nowFunc()}, "usedAt": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"usedAt": nowFunc()}},
	)
}
