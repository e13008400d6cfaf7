package types

import (
	"context"
	"strings"
)

// ActorType identifies the kind of authenticated entity making a request.
type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeAPIKey ActorType = "api_key"
)

// Actor represents the authenticated entity performing an operation.
// It is resolved exactly once per request by the auth middleware and
// passed to handlers through the context; handlers never re-derive it.
type Actor struct {
	UserID string
	Type   ActorType
	Plan   PlanTier
	KeyID  string // set when Type == ActorTypeAPIKey
}

// Context Keys
type contextKey string

const (
	actorKey     contextKey = "actor"
	requestIDKey contextKey = "request_id"
)

// WithActor stores the Actor in the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// GetActor retrieves the Actor from the context.
func GetActor(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// IsAPIKeyToken reports whether a presented credential looks like a QR Studio
// API key rather than a session token.
func IsAPIKeyToken(token string) bool {
	return strings.HasPrefix(token, "qrs_")
}
