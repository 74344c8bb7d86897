package http

import "github.com/gofiber/fiber/v2"

type Handler interface {
	Handle(c *fiber.Ctx) error
}

type Transport struct {
	AIFactsHandler       Handler
	AISuggestionsHandler Handler
	PreflightHandler     Handler
	HealthHandler        Handler
}
