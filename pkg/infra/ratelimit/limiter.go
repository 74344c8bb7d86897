package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cinescope/aiguard/pkg/common"
	"github.com/cinescope/aiguard/pkg/domain/client"
	domain "github.com/cinescope/aiguard/pkg/domain/ratelimit"
	"github.com/cinescope/aiguard/pkg/infra/prometheus"
	"github.com/sirupsen/logrus"
)

// Limiter owns the store and its lifecycle and decides admission for a
// route-scoped quota. It is constructed once at process start and injected
// into the HTTP layer; nothing else mutates the store.
type Limiter struct {
	logger *logrus.Logger
	store  domain.Store
	quotas map[string]domain.Quota
}

func NewLimiter(logger *logrus.Logger, store domain.Store, quotas map[string]domain.Quota) *Limiter {
	return &Limiter{
		logger: logger,
		store:  store,
		quotas: quotas,
	}
}

// Admit decides allow/deny for one request from identity against the
// route's quota. Store failures are translated into denials here so the
// handlers only ever see a yes/no plus retry metadata.
func (l *Limiter) Admit(ctx context.Context, identity client.Identity, route string) (domain.Result, error) {
	quota, ok := l.quotas[route]
	if !ok {
		return domain.Result{}, fmt.Errorf("%w: %s", domain.ErrQuotaNotConfigured, route)
	}

	key := fmt.Sprintf("%s:%s:%s", common.RateLimitKeyPrefix, route, identity.Value)

	result, err := l.store.CheckAndIncrement(ctx, key, quota, time.Now())
	if err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			prometheus.StoreFailures.Inc()
			// Fail closed: the store already shaped result as a denial.
			return result, nil
		}
		return result, err
	}

	if result.Allowed {
		prometheus.RequestsAdmitted.WithLabelValues(route).Inc()
	} else {
		prometheus.RequestsDenied.WithLabelValues(route, "rate_limit").Inc()
	}
	return result, nil
}

// Healthcheck reports backend reachability. A store without an external
// backend is always healthy.
func (l *Limiter) Healthcheck(ctx context.Context) domain.Health {
	if checker, ok := l.store.(domain.Healthchecker); ok {
		return checker.Healthcheck(ctx)
	}
	return domain.Health{Healthy: true}
}

func (l *Limiter) Start() {
	l.store.Start()
}

func (l *Limiter) Stop() error {
	return l.store.Stop()
}
