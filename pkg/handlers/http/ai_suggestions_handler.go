package http

import (
	"strings"

	"github.com/cinescope/aiguard/pkg/infra/ai"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type aiSuggestionsHandler struct {
	logger    *logrus.Logger
	generator ai.Generator
}

func NewAISuggestionsHandler(logger *logrus.Logger, generator ai.Generator) Handler {
	return &aiSuggestionsHandler{
		logger:    logger,
		generator: generator,
	}
}

type aiSuggestionsRequest struct {
	Query string `json:"query"`
}

func (h *aiSuggestionsHandler) Handle(c *fiber.Ctx) error {
	var req aiSuggestionsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid request body",
			"success": false,
		})
	}

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "query is required",
			"success": false,
		})
	}

	suggestions, err := h.generator.GenerateSuggestions(c.UserContext(), req.Query)
	if err != nil {
		h.logger.WithError(err).Error("suggestion generation failed")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "suggestions are temporarily unavailable",
			"success": false,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":     true,
		"suggestions": suggestions,
	})
}
