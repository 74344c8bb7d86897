package middleware

import (
	"context"

	"github.com/cinescope/aiguard/pkg/common"
	"github.com/cinescope/aiguard/pkg/domain/client"
	"github.com/cinescope/aiguard/pkg/infra/identity"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type clientIdentityMiddleware struct {
	logger     *logrus.Logger
	identifier *identity.Identifier
}

func NewClientIdentityMiddleware(logger *logrus.Logger, identifier *identity.Identifier) Middleware {
	return &clientIdentityMiddleware{
		logger:     logger,
		identifier: identifier,
	}
}

// fiberHeaderReader adapts fiber's request context to the identifier's
// header capability interface.
type fiberHeaderReader struct {
	c *fiber.Ctx
}

func (r fiberHeaderReader) Get(key string) string {
	return r.c.Get(key)
}

func (m *clientIdentityMiddleware) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		id, err := m.identifier.Identify(fiberHeaderReader{c: ctx})
		if err != nil {
			m.logger.WithFields(logrus.Fields{
				"path":   ctx.Path(),
				"method": ctx.Method(),
			}).Debug("client could not be identified")
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "unable to identify client",
				"success": false,
			})
		}

		ctx.Locals(common.ClientIdentityKey, id)

		traceID := uuid.New().String()
		ctx.Locals(common.TraceIdKey, traceID)

		c := context.WithValue(ctx.Context(), common.ClientIdentityKey, id)
		c = context.WithValue(c, common.TraceIdKey, traceID)
		ctx.SetUserContext(c)
		return ctx.Next()
	}
}

// IdentityFromCtx extracts the identity stored by the middleware.
func IdentityFromCtx(c *fiber.Ctx) (client.Identity, bool) {
	id, ok := c.Locals(common.ClientIdentityKey).(client.Identity)
	return id, ok && !id.IsZero()
}
