package http

import (
	"strings"

	"github.com/cinescope/aiguard/pkg/infra/ai"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type aiFactsHandler struct {
	logger    *logrus.Logger
	generator ai.Generator
}

func NewAIFactsHandler(logger *logrus.Logger, generator ai.Generator) Handler {
	return &aiFactsHandler{
		logger:    logger,
		generator: generator,
	}
}

type aiFactsRequest struct {
	Title     string `json:"title"`
	MediaType string `json:"mediaType"`
}

// Handle generates facts about one title. Origin validation, client
// identification and rate limiting have all run before this point.
func (h *aiFactsHandler) Handle(c *fiber.Ctx) error {
	var req aiFactsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid request body",
			"success": false,
		})
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "title is required",
			"success": false,
		})
	}
	if req.MediaType != "movie" && req.MediaType != "tv" {
		req.MediaType = "movie"
	}

	facts, err := h.generator.GenerateFacts(c.UserContext(), req.Title, req.MediaType)
	if err != nil {
		h.logger.WithField("title", req.Title).WithError(err).Error("fact generation failed")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "fact generation is temporarily unavailable",
			"success": false,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"facts":   facts,
	})
}
