package adapter

import "context"

// userIDKey is unexported so only this package can mint the key value;
// WithUserID/UserIDFromContext are the sole accessors.
type userIDKey struct{}

// WithUserID attaches a user id to ctx. This is how per-call operations
// carry "which user's config/workspace applies here" without the adapter
// caching anything on its own (process-global) instance — spec §4.3's
// "configuration is not cached on the adapter instance. Every call reads
// the caller's per-user config freshly through context.user_id."
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext retrieves the user id WithUserID attached, if any.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(userIDKey{}).(int64)
	return v, ok
}
