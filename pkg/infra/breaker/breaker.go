package breaker

import (
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// CircuitBreaker shields callers from repeatedly hammering an unhealthy
// dependency. An open breaker rejects immediately, which the rate-limit
// admission path then treats as a denial.
type CircuitBreaker interface {
	Execute(fn func() (interface{}, error)) (interface{}, error)
}

type circuitBreakerWrapper struct {
	breaker *gobreaker.CircuitBreaker
}

func New(name string, timeout time.Duration, maxFailures uint32) CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
	}
	return &circuitBreakerWrapper{
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (g *circuitBreakerWrapper) Execute(fn func() (interface{}, error)) (interface{}, error) {
	res, err := g.breaker.Execute(fn)
	if err != nil {
		return nil, fmt.Errorf("breaker (%s): %w", g.breaker.Name(), err)
	}
	return res, nil
}
