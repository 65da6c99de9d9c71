package thread

import "context"

type actorKey struct{}

// WithActor records the user performing a mutation. Stores attribute
// activity entries to this user.
func WithActor(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// ActorFrom returns the acting user stored by WithActor.
func ActorFrom(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(actorKey{}).(int64)
	return id, ok
}

// ActorOr returns the acting user, or fallback when none was recorded.
func ActorOr(ctx context.Context, fallback int64) int64 {
	if id, ok := ActorFrom(ctx); ok {
		return id
	}
	return fallback
}
