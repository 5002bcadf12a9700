package handlers

import (
	"errors"

	"github.com/asadollahi99/temple-law-chatbot/internal/dto"
	"github.com/asadollahi99/temple-law-chatbot/internal/repository"
	"github.com/asadollahi99/temple-law-chatbot/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type SessionHandler struct {
	sessions *service.SessionService
	logger   *zap.Logger
}

func NewSessionHandler(sessions *service.SessionService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// Get godoc
// @Summary Get a session
// @Description Full turn history for one conversation
// @Tags sessions
// @Produce json
// @Param sid path string true "Session ID"
// @Success 200 {object} models.Session
// @Failure 404 {object} map[string]string
// @Router /api/v1/sessions/{sid} [get]
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	session, err := h.sessions.Get(c.Context(), c.Params("sid"))
	if err != nil {
		return h.sessionError(c, err, "Failed to get session")
	}
	return c.JSON(session)
}

// Delete godoc
// @Summary Delete a session
// @Tags sessions
// @Param sid path string true "Session ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /api/v1/sessions/{sid} [delete]
func (h *SessionHandler) Delete(c *fiber.Ctx) error {
	if err := h.sessions.Delete(c.Context(), c.Params("sid")); err != nil {
		return h.sessionError(c, err, "Failed to delete session")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Feedback godoc
// @Summary Rate an answer
// @Description Attach a correct/incorrect verdict to a turn by its id
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body dto.FeedbackRequest true "Verdict"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/feedback [post]
func (h *SessionHandler) Feedback(c *fiber.Ctx) error {
	var req dto.FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	err := h.sessions.Feedback(c.Context(), req.SessionID, req.TurnID, req.Correct, req.Comment)
	if err != nil {
		if errors.Is(err, repository.ErrTurnNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Turn not found",
			})
		}
		return h.sessionError(c, err, "Failed to attach feedback")
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// AttachFeedback godoc
// @Summary Attach feedback to a turn
// @Description Reviewer verdict on a specific turn, addressed by path
// @Tags admin
// @Accept json
// @Produce json
// @Param sid path string true "Session ID"
// @Param mid path string true "Turn ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /admin/sessions/{sid}/turns/{mid}/feedback [post]
func (h *SessionHandler) AttachFeedback(c *fiber.Ctx) error {
	var req struct {
		Correct bool   `json:"correct"`
		Comment string `json:"comment,omitempty"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	err := h.sessions.Feedback(c.Context(), c.Params("sid"), c.Params("mid"), req.Correct, req.Comment)
	if err != nil {
		if errors.Is(err, repository.ErrTurnNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Turn not found",
			})
		}
		return h.sessionError(c, err, "Failed to attach feedback")
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// List godoc
// @Summary List sessions
// @Description Admin view: sessions with turn and feedback counts
// @Tags admin
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.SessionSummary
// @Router /admin/sessions [get]
func (h *SessionHandler) List(c *fiber.Ctx) error {
	summaries, err := h.sessions.List(c.Context(), c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		h.logger.Error("Failed to list sessions", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list sessions",
		})
	}
	return c.JSON(summaries)
}

// Export godoc
// @Summary Export all sessions
// @Description Dump every session with full histories, for offline review
// @Tags admin
// @Produce json
// @Success 200 {array} models.Session
// @Router /admin/sessions/export [get]
func (h *SessionHandler) Export(c *fiber.Ctx) error {
	sessions, err := h.sessions.Export(c.Context())
	if err != nil {
		h.logger.Error("Failed to export sessions", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to export sessions",
		})
	}
	return c.JSON(sessions)
}

func (h *SessionHandler) sessionError(c *fiber.Ctx, err error, msg string) error {
	switch {
	case errors.Is(err, service.ErrEmptySID):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Session ID is required",
		})
	case errors.Is(err, repository.ErrSessionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not found",
		})
	default:
		h.logger.Error(msg, zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": msg,
		})
	}
}
