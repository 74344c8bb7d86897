package ratelimit

import (
	"fmt"
	"time"

	"github.com/cinescope/aiguard/pkg/config"
	domain "github.com/cinescope/aiguard/pkg/domain/ratelimit"
	"github.com/sirupsen/logrus"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// NewLimiterFromConfig selects the store backend and builds the limiter.
// Production with a configured Redis URL gets the shared sliding-window
// store; everything else runs on the process-local fixed-window store.
func NewLimiterFromConfig(cfg *config.Config, logger *logrus.Logger) (*Limiter, error) {
	routeQuotas, err := cfg.RouteQuotas()
	if err != nil {
		return nil, err
	}

	quotas := make(map[string]domain.Quota, len(routeQuotas))
	for route, rq := range routeQuotas {
		window, err := time.ParseDuration(rq.Window)
		if err != nil {
			return nil, fmt.Errorf("invalid window for route %s: %w", route, err)
		}
		quotas[route] = domain.Quota{Limit: rq.Limit, Window: window}
	}

	backend := cfg.RateLimit.Backend
	if backend == "" {
		if cfg.IsProduction() && cfg.Redis.URL != "" {
			backend = BackendRedis
		} else {
			backend = BackendMemory
		}
	}

	var store domain.Store
	switch backend {
	case BackendRedis:
		if cfg.Redis.URL == "" {
			return nil, fmt.Errorf("redis backend selected but no redis url configured")
		}
		store = NewRedisStore(logger, cfg.Redis.URL, nil)
	case BackendMemory:
		if cfg.IsProduction() {
			logger.Warn("memory rate limit backend in production: counters are not shared across instances")
		}
		opts := &MemoryStoreOpts{MaxEntries: cfg.RateLimit.MaxEntries}
		if cfg.RateLimit.SweepInterval != "" {
			interval, err := time.ParseDuration(cfg.RateLimit.SweepInterval)
			if err != nil {
				return nil, fmt.Errorf("invalid sweep_interval: %w", err)
			}
			opts.SweepInterval = interval
		}
		store = NewMemoryStore(logger, opts)
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", backend)
	}

	logger.WithField("backend", backend).Info("rate limiter initialized")
	return NewLimiter(logger, store, quotas), nil
}
