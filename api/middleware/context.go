package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/tramar/pcbuilder-backend/pkg/enums"
	pkgerrors "github.com/tramar/pcbuilder-backend/pkg/errors"
	"github.com/tramar/pcbuilder-backend/pkg/types"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxRole   contextKey = "actor_role"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// ActorFromContext rebuilds the authenticated caller. ok is false when the
// request did not pass through Auth.
func ActorFromContext(ctx context.Context) (types.Actor, bool) {
	userID, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil || userID == uuid.Nil {
		return types.Actor{}, false
	}
	role, err := enums.ParseRole(RoleFromContext(ctx))
	if err != nil {
		return types.Actor{}, false
	}
	return types.Actor{UserID: userID, Role: role}, true
}

// WithActor injects the caller identity into the context.
func WithActor(ctx context.Context, actor types.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, actor.UserID.String())
	return context.WithValue(ctx, ctxRole, actor.Role.String())
}

// RequireActor is ActorFromContext for handlers behind Auth; a missing actor
// is reported as an Unauthorized error.
func RequireActor(ctx context.Context) (types.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return types.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "not authorized")
	}
	return actor, nil
}
