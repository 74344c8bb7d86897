package ratelimit_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cinescope/aiguard/pkg/domain/client"
	domain "github.com/cinescope/aiguard/pkg/domain/ratelimit"
	"github.com/cinescope/aiguard/pkg/infra/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	lastKey string
	result  domain.Result
	err     error
}

func (s *stubStore) CheckAndIncrement(
	_ context.Context,
	key string,
	_ domain.Quota,
	_ time.Time,
) (domain.Result, error) {
	s.lastKey = key
	return s.result, s.err
}

func (s *stubStore) Start()      {}
func (s *stubStore) Stop() error { return nil }

func TestLimiter_AdmitScopesKeyByRoute(t *testing.T) {
	store := &stubStore{result: domain.Result{Allowed: true, Limit: 10, Remaining: 9}}
	limiter := ratelimit.NewLimiter(newTestLogger(), store, map[string]domain.Quota{
		"ai_facts": {Limit: 10, Window: time.Hour},
	})

	id := client.NewIPIdentity("8.8.8.8")
	res, err := limiter.Admit(context.Background(), id, "ai_facts")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, "rate_limit:ai_facts:ip:8.8.8.8", store.lastKey)
}

func TestLimiter_UnknownRoute(t *testing.T) {
	limiter := ratelimit.NewLimiter(newTestLogger(), &stubStore{}, map[string]domain.Quota{})

	_, err := limiter.Admit(context.Background(), client.NewIPIdentity("8.8.8.8"), "nope")
	assert.ErrorIs(t, err, domain.ErrQuotaNotConfigured)
}

func TestLimiter_StoreFailureBecomesDenial(t *testing.T) {
	store := &stubStore{
		result: domain.Result{Allowed: false, Limit: 10, Remaining: 0, ResetAt: time.Now().Add(time.Hour)},
		err:    fmt.Errorf("%w: connection refused", domain.ErrStoreUnavailable),
	}
	limiter := ratelimit.NewLimiter(newTestLogger(), store, map[string]domain.Quota{
		"ai_facts": {Limit: 10, Window: time.Hour},
	})

	res, err := limiter.Admit(context.Background(), client.NewIPIdentity("8.8.8.8"), "ai_facts")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestLimiter_HealthcheckWithoutBackend(t *testing.T) {
	limiter := ratelimit.NewLimiter(newTestLogger(), &stubStore{}, nil)
	health := limiter.Healthcheck(context.Background())
	assert.True(t, health.Healthy)
}
