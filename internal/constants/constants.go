package constants

// ContextKeyUserID is the key under which the authenticated user's ID is
// stored both in the session and in the gin context.
const ContextKeyUserID = "user_id"

// SessionCookieName is the name of the session cookie.
const SessionCookieName = "checkmate_session"

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// Pagination limits for list endpoints.
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)
