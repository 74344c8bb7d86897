package middleware

import (
	"strconv"
	"time"

	"github.com/cinescope/aiguard/pkg/common"
	"github.com/cinescope/aiguard/pkg/infra/ratelimit"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// rateLimitMiddleware applies one route's quota to requests that already
// carry a client identity. Every response, allowed or denied, carries the
// X-RateLimit headers; denials add Retry-After.
type rateLimitMiddleware struct {
	logger      *logrus.Logger
	limiter     *ratelimit.Limiter
	route       string
	exposeReset bool
}

func NewRateLimitMiddleware(
	logger *logrus.Logger,
	limiter *ratelimit.Limiter,
	route string,
	exposeReset bool,
) Middleware {
	return &rateLimitMiddleware{
		logger:      logger,
		limiter:     limiter,
		route:       route,
		exposeReset: exposeReset,
	}
}

func (m *rateLimitMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := IdentityFromCtx(c)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "unable to identify client",
				"success": false,
			})
		}

		result, err := m.limiter.Admit(c.UserContext(), id, m.route)
		if err != nil {
			// Misconfiguration or an unexpected limiter failure. Fail closed.
			m.logger.WithField("route", m.route).WithError(err).Error("rate limit admission failed")
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "rate limit exceeded",
				"success": false,
			})
		}

		c.Set(common.HeaderRateLimitLimit, strconv.Itoa(result.Limit))
		c.Set(common.HeaderRateLimitRemaining, strconv.Itoa(result.Remaining))
		if m.exposeReset && !result.ResetAt.IsZero() {
			c.Set(common.HeaderRateLimitReset, strconv.FormatInt(result.ResetAt.Unix(), 10))
		}

		if !result.Allowed {
			c.Set(common.HeaderRetryAfter, strconv.Itoa(retryAfterSeconds(result.ResetAt)))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "rate limit exceeded",
				"success": false,
			})
		}

		return c.Next()
	}
}

func retryAfterSeconds(resetAt time.Time) int {
	seconds := int(time.Until(resetAt).Round(time.Second).Seconds())
	if seconds < 1 {
		return 1
	}
	return seconds
}
