package core

import "context"

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	sessionIDKey contextKey = "session-id"
)

// WithSessionID returns a new context carrying the client session id sent with every request.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// GetSessionID retrieves the client session id from the context.
// Returns empty string if not found.
func GetSessionID(ctx context.Context) string {
	if v := ctx.Value(sessionIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
