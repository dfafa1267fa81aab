package constants

// contextKey keeps request-scoped values from colliding with other packages.
type contextKey string

const (
	HeaderXRequestId      = "X-Request-Id"
	HeaderXIdempotencyKey = "X-Idempotency-Key"
	HeaderXAPIKey         = "X-API-Key"

	// QueryLang overrides Accept-Language for localized error messages.
	QueryLang = "lang"

	ContextKeyRequestID      contextKey = "request_id"
	ContextKeyIdempotencyKey contextKey = "idempotency_key"
	ContextKeyLanguage       contextKey = "language"
)
