package middleware

import (
	"github.com/avct/uasurfer"
	"github.com/cinescope/aiguard/pkg/infra/identity"
	"github.com/cinescope/aiguard/pkg/infra/prometheus"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// originGuardMiddleware enforces the Origin allow-list before a request
// reaches identification or rate limiting. Requests without an Origin header
// pass (same-origin navigation, non-browser callers); a present Origin must
// exactly match an allow-list entry. An empty allow-list rejects every
// present Origin.
type originGuardMiddleware struct {
	logger    *logrus.Logger
	allowList map[string]struct{}
}

func NewOriginGuardMiddleware(logger *logrus.Logger, allowedOrigins []string) Middleware {
	allowList := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowList[origin] = struct{}{}
	}
	return &originGuardMiddleware{
		logger:    logger,
		allowList: allowList,
	}
}

func (m *originGuardMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)
		if origin == "" {
			return c.Next()
		}

		if _, ok := m.allowList[origin]; !ok {
			m.logSecurityEvent(c, origin)
			prometheus.OriginRejections.Inc()
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "origin not allowed",
				"success": false,
			})
		}

		c.Set(fiber.HeaderVary, fiber.HeaderOrigin)
		c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
		return c.Next()
	}
}

func (m *originGuardMiddleware) logSecurityEvent(c *fiber.Ctx, origin string) {
	rawUA := c.Get(fiber.HeaderUserAgent)
	ua := uasurfer.Parse(rawUA)

	// The IP here is best effort for the log line only; it is never used as
	// the rate-limit identity.
	clientIP := identity.FirstForwardedAddr(c.Get("X-Forwarded-For"))
	if clientIP == "" {
		clientIP = c.Get("X-Real-IP")
	}
	if clientIP == "" {
		clientIP = c.IP()
	}

	m.logger.WithFields(logrus.Fields{
		"event":      "origin_rejected",
		"origin":     origin,
		"client_ip":  clientIP,
		"user_agent": rawUA,
		"browser":    ua.Browser.Name.String(),
		"os":         ua.OS.Name.String(),
		"path":       c.Path(),
	}).Warn("request rejected by origin allow-list")
}
