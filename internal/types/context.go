package types

type contextKey string

// UserIDKey stores the authenticated caller id in a request context.
const UserIDKey contextKey = "user_id"
