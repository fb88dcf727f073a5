package inventory

import "context"

// DefaultActor is recorded when no actor is attached to the context.
const DefaultActor = "system"

type actorKey struct{}

// WithActor attaches the identity recorded in operation log entries.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor attached to ctx, or DefaultActor.
func ActorFrom(ctx context.Context) string {
	if a, ok := ctx.Value(actorKey{}).(string); ok && a != "" {
		return a
	}
	return DefaultActor
}
