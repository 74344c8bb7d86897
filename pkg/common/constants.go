package common

import "time"

const (
	RouteAIFacts       = "ai_facts"
	RouteAISuggestions = "ai_suggestions"

	RateLimitKeyPrefix = "rate_limit"

	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"

	DefaultSweepInterval = 10 * time.Minute
	DefaultMaxEntries    = 1000

	EnvDevelopment = "development"
	EnvProduction  = "production"
)
