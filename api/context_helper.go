package api

import (
	"context"
	"time"

	"github.com/civicgrid/civic-report-api/models"
)

// QueryTimeout is the default timeout for database queries
const QueryTimeout = 10 * time.Second

type contextKey string

const actorContextKey contextKey = "actor"

// WithQueryTimeout creates a context with query timeout
func WithQueryTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, QueryTimeout)
}

// WithActor stores the authenticated actor on the request context
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// ActorFromContext retrieves the authenticated actor set by the auth middleware
func ActorFromContext(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(models.Actor)
	return actor, ok
}
