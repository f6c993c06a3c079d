package middleware

import (
	"context"

	"github.com/garagebid/garagebid-backend/pkg/enums"
)

type contextKey string

const (
	ctxActorID   contextKey = "actor_id"
	ctxActorRole contextKey = "actor_role"
)

func ActorIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxActorID).(string); ok {
		return v
	}
	return ""
}

func ActorRoleFromContext(ctx context.Context) enums.ActorType {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxActorRole).(enums.ActorType); ok {
		return v
	}
	return ""
}

// WithActor injects the acting party into the context for downstream handlers.
func WithActor(ctx context.Context, actorID string, role enums.ActorType) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxActorID, actorID)
	return context.WithValue(ctx, ctxActorRole, role)
}
