package server

import "github.com/gofiber/fiber/v2"

func (s *Server) buildRoutes() {
	mw := s.middlewareTransport
	h := s.handlerTransport

	s.app.Use(mw.PanicRecoverMiddleware.Middleware())

	s.app.Get("/health", h.HealthHandler.Handle)

	api := s.app.Group("/api")
	{
		api.Post("/ai-facts",
			mw.OriginGuardMiddleware.Middleware(),
			mw.ClientIdentityMiddleware.Middleware(),
			mw.AIFactsRateLimitMiddleware.Middleware(),
			h.AIFactsHandler.Handle,
		)
		api.Options("/ai-facts",
			mw.OriginGuardMiddleware.Middleware(),
			h.PreflightHandler.Handle,
		)

		// ai-suggestions deliberately skips the allow-list: it serves
		// embedded widgets and ships a permissive CORS policy instead.
		api.Post("/ai-suggestions",
			permissiveCORS,
			mw.ClientIdentityMiddleware.Middleware(),
			mw.AISuggestionsRateLimitMiddleware.Middleware(),
			h.AISuggestionsHandler.Handle,
		)
		api.Options("/ai-suggestions",
			permissiveCORS,
			h.PreflightHandler.Handle,
		)
	}
}

func permissiveCORS(c *fiber.Ctx) error {
	if c.Get(fiber.HeaderOrigin) != "" {
		c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
	}
	return c.Next()
}
