package ratelimit

import "errors"

var (
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrOriginNotAllowed  = errors.New("origin not allowed")

	// ErrStoreUnavailable marks a backend failure. Callers treat it as a
	// denial (fail closed), never as an admission.
	ErrStoreUnavailable = errors.New("rate limit store unavailable")

	ErrQuotaNotConfigured = errors.New("no quota configured for route")
)
