package ratelimit

import (
	"context"
	"time"
)

// Quota is a per-route admission budget, fixed at configuration time.
type Quota struct {
	Limit  int
	Window time.Duration
}

// Result is the outcome of a single admission decision.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Store tracks admission counts per key. CheckAndIncrement must be atomic
// with respect to concurrent callers sharing the same key: no two callers may
// both observe a count below the limit and both be admitted past it.
type Store interface {
	CheckAndIncrement(ctx context.Context, key string, quota Quota, now time.Time) (Result, error)
	Start()
	Stop() error
}

// Health reports reachability of a store backend, used by the operational
// health surface and never by the admission path.
type Health struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// Healthchecker is implemented by stores with an external backend.
type Healthchecker interface {
	Healthcheck(ctx context.Context) Health
}
