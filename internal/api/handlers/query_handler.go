package handlers

import (
	"errors"

	"github.com/asadollahi99/temple-law-chatbot/internal/dto"
	"github.com/asadollahi99/temple-law-chatbot/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type QueryHandler struct {
	resolver *service.ResolverService
	logger   *zap.Logger
}

func NewQueryHandler(resolver *service.ResolverService, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{
		resolver: resolver,
		logger:   logger,
	}
}

// Query godoc
// @Summary Ask a question
// @Description Answer a natural-language question against the indexed site
// @Tags query
// @Accept json
// @Produce json
// @Param request body dto.QueryRequest true "Question and optional session id"
// @Success 200 {object} dto.QueryResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/query [post]
func (h *QueryHandler) Query(c *fiber.Ctx) error {
	var req dto.QueryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	result, err := h.resolver.Resolve(c.Context(), &service.QueryRequest{
		Question:  req.Question,
		SID:       req.SessionID,
		IP:        c.IP(),
		UserAgent: c.Get("User-Agent"),
	})
	if err != nil {
		if errors.Is(err, service.ErrEmptyQuestion) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Question is required",
			})
		}
		h.logger.Error("Failed to resolve query", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to answer question",
		})
	}

	return c.JSON(dto.QueryResponse{
		SessionID: result.SID,
		Answer:    result.Answer,
		Sources:   result.Sources,
		TurnID:    result.MID,
	})
}
