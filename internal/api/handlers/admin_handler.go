package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/asadollahi99/temple-law-chatbot/internal/dto"
	"github.com/asadollahi99/temple-law-chatbot/internal/models"
	"github.com/asadollahi99/temple-law-chatbot/internal/repository"
	"github.com/asadollahi99/temple-law-chatbot/internal/service"
	"github.com/asadollahi99/temple-law-chatbot/pkg/auth"
	"github.com/asadollahi99/temple-law-chatbot/pkg/config"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AdminHandler struct {
	overrides  *service.OverrideService
	indexer    *service.IndexerService
	jwtManager *auth.JWTManager
	cfg        *config.Config
	logger     *zap.Logger
}

func NewAdminHandler(
	overrides *service.OverrideService,
	indexer *service.IndexerService,
	jwtManager *auth.JWTManager,
	cfg *config.Config,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		overrides:  overrides,
		indexer:    indexer,
		jwtManager: jwtManager,
		cfg:        cfg,
		logger:     logger,
	}
}

// Login godoc
// @Summary Reviewer login
// @Description Exchange the admin credential for a short-lived JWT
// @Tags admin
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Admin credential"
// @Success 200 {object} dto.LoginResponse
// @Failure 401 {object} map[string]string
// @Router /admin/login [post]
func (h *AdminHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if !auth.VerifyAdminToken(h.cfg.Admin.Token, req.Token) {
		h.logger.Warn("Rejected admin login", zap.String("ip", c.IP()))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	reviewer := req.Reviewer
	if reviewer == "" {
		reviewer = "admin"
	}

	token, err := h.jwtManager.GenerateToken(reviewer)
	if err != nil {
		h.logger.Error("Failed to generate token", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate token",
		})
	}

	return c.JSON(dto.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.jwtManager.GetTokenDuration().Seconds()),
	})
}

// UpsertOverride godoc
// @Summary Pin an answer
// @Description Create or update a curated answer keyed by the normalized question
// @Tags admin
// @Accept json
// @Produce json
// @Param request body dto.OverrideRequest true "Question/answer pin"
// @Success 200 {object} dto.OverrideResponse
// @Failure 400 {object} map[string]string
// @Router /admin/overrides [post]
func (h *AdminHandler) UpsertOverride(c *fiber.Ctx) error {
	var req dto.OverrideRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	reviewer, _ := c.Locals("reviewer").(string)
	override, err := h.overrides.Upsert(c.Context(), &models.Override{
		Question:     req.Question,
		Answer:       req.Answer,
		Force:        req.Force,
		Reviewer:     reviewer,
		SID:          req.SessionID,
		AssistantMID: req.AssistantMID,
	})
	if err != nil {
		if errors.Is(err, service.ErrEmptyOverride) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Question and answer are required",
			})
		}
		h.logger.Error("Failed to upsert override", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save override",
		})
	}

	return c.JSON(overrideResponse(override))
}

// ListOverrides godoc
// @Summary List pinned answers
// @Tags admin
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} dto.OverrideResponse
// @Router /admin/overrides [get]
func (h *AdminHandler) ListOverrides(c *fiber.Ctx) error {
	overrides, err := h.overrides.List(c.Context(), c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		h.logger.Error("Failed to list overrides", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list overrides",
		})
	}

	out := make([]dto.OverrideResponse, 0, len(overrides))
	for i := range overrides {
		out = append(out, overrideResponse(&overrides[i]))
	}
	return c.JSON(out)
}

// DeleteOverride godoc
// @Summary Remove a pinned answer
// @Tags admin
// @Param id path string true "Override ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /admin/overrides/{id} [delete]
func (h *AdminHandler) DeleteOverride(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid override id",
		})
	}

	if err := h.overrides.Delete(c.Context(), id); err != nil {
		if errors.Is(err, repository.ErrOverrideNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Override not found",
			})
		}
		h.logger.Error("Failed to delete override", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete override",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// TriggerIndex godoc
// @Summary Re-index the site
// @Description Start a sitemap crawl in the background
// @Tags admin
// @Accept json
// @Produce json
// @Param request body dto.IndexRequest false "Crawl parameters"
// @Success 202 {object} map[string]string
// @Router /admin/index [post]
func (h *AdminHandler) TriggerIndex(c *fiber.Ctx) error {
	var req dto.IndexRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}

	sitemapURL := req.SitemapURL
	if sitemapURL == "" {
		sitemapURL = h.cfg.Index.SitemapURL
	}
	maxURLs := req.MaxURLs
	if maxURLs <= 0 {
		maxURLs = h.cfg.Index.MaxURLs
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
		defer cancel()

		summary, err := h.indexer.RunSitemap(ctx, sitemapURL, maxURLs)
		if err != nil {
			h.logger.Error("Background index run failed",
				zap.String("sitemap_url", sitemapURL),
				zap.Error(err))
			return
		}
		h.logger.Info("Background index run finished",
			zap.String("sitemap_url", sitemapURL),
			zap.Int("total", summary.Total),
			zap.Any("counts", summary.Counts))
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":      "started",
		"sitemap_url": sitemapURL,
	})
}

// Stats godoc
// @Summary Corpus size
// @Tags admin
// @Produce json
// @Success 200 {object} dto.CorpusStatsResponse
// @Router /admin/stats [get]
func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.indexer.Stats(c.Context())
	if err != nil {
		h.logger.Error("Failed to collect corpus stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to collect stats",
		})
	}
	return c.JSON(dto.CorpusStatsResponse{Pages: stats.Pages})
}

// PageChunks godoc
// @Summary Inspect a page's chunks
// @Description List the stored chunks of one indexed URL, in chunk order
// @Tags admin
// @Produce json
// @Param url query string true "Page URL"
// @Success 200 {array} dto.ChunkResponse
// @Failure 400 {object} map[string]string
// @Router /admin/chunks [get]
func (h *AdminHandler) PageChunks(c *fiber.Ctx) error {
	chunks, err := h.indexer.PageChunks(c.Context(), c.Query("url"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidPageURL) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "A valid url query parameter is required",
			})
		}
		h.logger.Error("Failed to load page chunks", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load chunks",
		})
	}

	out := make([]dto.ChunkResponse, 0, len(chunks))
	for _, chunk := range chunks {
		out = append(out, dto.ChunkResponse{
			ID:        chunk.ID.String(),
			URL:       chunk.URL,
			Index:     chunk.Index,
			Text:      chunk.Text,
			CreatedAt: chunk.CreatedAt.Format(time.RFC3339),
		})
	}
	return c.JSON(out)
}

func overrideResponse(o *models.Override) dto.OverrideResponse {
	return dto.OverrideResponse{
		ID:           o.ID.String(),
		Question:     o.Question,
		NormQuestion: o.NormQuestion,
		Answer:       o.Answer,
		Force:        o.Force,
		Reviewer:     o.Reviewer,
		Embedded:     len(o.QuestionEmbedding) > 0,
		CreatedAt:    o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    o.UpdatedAt.Format(time.RFC3339),
	}
}
