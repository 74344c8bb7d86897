package http

import (
	"github.com/cinescope/aiguard/pkg/infra/ratelimit"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// preflightHandler answers OPTIONS on the AI routes. A ?health=1 query
// additionally reports store reachability without consuming any quota.
type preflightHandler struct {
	logger  *logrus.Logger
	limiter *ratelimit.Limiter
}

func NewPreflightHandler(logger *logrus.Logger, limiter *ratelimit.Limiter) Handler {
	return &preflightHandler{
		logger:  logger,
		limiter: limiter,
	}
}

func (h *preflightHandler) Handle(c *fiber.Ctx) error {
	c.Set(fiber.HeaderAccessControlAllowMethods, "POST, OPTIONS")
	c.Set(fiber.HeaderAccessControlAllowHeaders, "Content-Type")
	c.Set(fiber.HeaderAccessControlMaxAge, "86400")

	if c.Query("health") == "1" {
		health := h.limiter.Healthcheck(c.UserContext())
		status := fiber.StatusOK
		if !health.Healthy {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"healthy":    health.Healthy,
			"latency_ms": health.Latency.Milliseconds(),
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
