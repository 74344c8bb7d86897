package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	domain "github.com/cinescope/aiguard/pkg/domain/ratelimit"
	"github.com/cinescope/aiguard/pkg/infra/breaker"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	dialTimeout    = 5 * time.Second
	requestTimeout = 5 * time.Second
	dialAttempts   = 3
	dialBackoffMin = 250 * time.Millisecond
	dialBackoffMax = 2 * time.Second

	// Extra key lifetime beyond the window so slow clocks never observe a
	// key vanishing while its window is still open.
	expirySafetyBufferSec = 60

	truncatedKeyLen = 24
)

// checkAndIncrementScript implements the sliding-window decision as one
// atomic server-side evaluation: prune, count, conditionally admit. Members
// are scored in milliseconds and tie-broken by a uuid suffix so two requests
// landing on the same millisecond stay distinct.
//
// Returns {allowed, remaining, resetAtMs}.
var checkAndIncrementScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]
local ttl = tonumber(ARGV[5])

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)

local reset = now + window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  reset = tonumber(oldest[2]) + window
end

if count < limit then
  redis.call('ZADD', key, now, member)
  redis.call('EXPIRE', key, ttl)
  return {1, limit - count - 1, reset}
end
return {0, 0, reset}
`)

// RedisStore is the shared sliding-window counter used when multiple
// instances sit behind a load balancer. Every failure path fails closed:
// the protected endpoints cost money per call, so an unreachable backend
// must read as "denied", never "allowed".
type RedisStore struct {
	logger *logrus.Logger
	url    string

	mu     sync.RWMutex
	client *redis.Client

	dialGroup singleflight.Group
	breaker   breaker.CircuitBreaker

	uuidProvider func() uuid.UUID
}

type RedisStoreOpts struct {
	UuidProvider func() uuid.UUID
}

// NewRedisStore builds a store that dials url lazily on first use.
func NewRedisStore(logger *logrus.Logger, url string, opts *RedisStoreOpts) *RedisStore {
	s := &RedisStore{
		logger:       logger,
		url:          url,
		breaker:      breaker.New("redis_rate_limit", 30*time.Second, 3),
		uuidProvider: uuid.New,
	}
	if opts != nil && opts.UuidProvider != nil {
		s.uuidProvider = opts.UuidProvider
	}
	return s
}

// NewRedisStoreWithClient wires an already-connected client, used by tests
// and by deployments that manage the connection elsewhere.
func NewRedisStoreWithClient(logger *logrus.Logger, client *redis.Client, opts *RedisStoreOpts) *RedisStore {
	s := NewRedisStore(logger, "", opts)
	s.client = client
	return s
}

func (s *RedisStore) CheckAndIncrement(
	ctx context.Context,
	key string,
	quota domain.Quota,
	now time.Time,
) (domain.Result, error) {
	denied := domain.Result{
		Allowed:   false,
		Limit:     quota.Limit,
		Remaining: 0,
		ResetAt:   now.Add(quota.Window),
	}

	client, err := s.getClient(ctx)
	if err != nil {
		s.logFailure(key, "connect", err)
		return denied, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	nowMs := now.UnixMilli()
	windowMs := quota.Window.Milliseconds()
	member := fmt.Sprintf("%d:%s", nowMs, s.uuidProvider().String())
	ttlSec := int64(math.Ceil(quota.Window.Seconds())) + expirySafetyBufferSec

	res, err := s.breaker.Execute(func() (interface{}, error) {
		scriptCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		return checkAndIncrementScript.Run(
			scriptCtx,
			client,
			[]string{key},
			nowMs,
			windowMs,
			quota.Limit,
			member,
			ttlSec,
		).Result()
	})
	if err != nil {
		s.logFailure(key, "script", err)
		return denied, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	allowed, remaining, resetAtMs, err := parseScriptReply(res)
	if err != nil {
		s.logFailure(key, "reply", err)
		return denied, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	return domain.Result{
		Allowed:   allowed,
		Limit:     quota.Limit,
		Remaining: remaining,
		ResetAt:   time.UnixMilli(resetAtMs),
	}, nil
}

// Healthcheck pings the backend and reports latency. It never runs on the
// admission path.
func (s *RedisStore) Healthcheck(ctx context.Context) domain.Health {
	client, err := s.getClient(ctx)
	if err != nil {
		return domain.Health{Healthy: false, Error: "backend unreachable"}
	}

	pingCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	start := time.Now()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return domain.Health{Healthy: false, Latency: time.Since(start), Error: "ping failed"}
	}
	return domain.Health{Healthy: true, Latency: time.Since(start)}
}

func (s *RedisStore) Start() {}

func (s *RedisStore) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

// getClient returns the cached connection, dialing it on first use.
// Concurrent callers share one in-flight dial instead of racing to open
// duplicate connections.
func (s *RedisStore) getClient(ctx context.Context) (*redis.Client, error) {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client != nil {
		return client, nil
	}

	v, err, _ := s.dialGroup.Do("dial", func() (interface{}, error) {
		return s.dial(ctx)
	})
	if err != nil {
		return nil, err
	}
	dialed, ok := v.(*redis.Client)
	if !ok {
		return nil, fmt.Errorf("unexpected dial result type %T", v)
	}
	return dialed, nil
}

func (s *RedisStore) dial(ctx context.Context) (*redis.Client, error) {
	opts, err := redis.ParseURL(s.url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.DialTimeout = dialTimeout

	client := redis.NewClient(opts)

	var lastErr error
	delay := dialBackoffMin
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			s.mu.Lock()
			s.client = client
			s.mu.Unlock()
			s.logger.WithField("attempt", attempt).Info("connected to redis rate limit backend")
			return client, nil
		}
		lastErr = err
		if attempt < dialAttempts {
			time.Sleep(delay)
			delay *= 2
			if delay > dialBackoffMax {
				delay = dialBackoffMax
			}
		}
	}

	_ = client.Close()
	return nil, fmt.Errorf("redis unreachable after %d attempts: %w", dialAttempts, lastErr)
}

// logFailure records a diagnostic with a truncated key. Full identity values
// never reach the logs.
func (s *RedisStore) logFailure(key, op string, err error) {
	if len(key) > truncatedKeyLen {
		key = key[:truncatedKeyLen] + "..."
	}
	s.logger.WithFields(logrus.Fields{
		"key": key,
		"op":  op,
	}).WithError(err).Warn("rate limit store failure, failing closed")
}

func parseScriptReply(res interface{}) (allowed bool, remaining int, resetAtMs int64, err error) {
	values, ok := res.([]interface{})
	if !ok || len(values) != 3 {
		return false, 0, 0, fmt.Errorf("malformed script reply: %v", res)
	}
	flag, ok1 := values[0].(int64)
	rem, ok2 := values[1].(int64)
	reset, ok3 := values[2].(int64)
	if !ok1 || !ok2 || !ok3 {
		return false, 0, 0, fmt.Errorf("malformed script reply values: %v", res)
	}
	return flag == 1, int(rem), reset, nil
}
