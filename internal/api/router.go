package api

import (
	"time"

	"github.com/asadollahi99/temple-law-chatbot/internal/api/handlers"
	"github.com/asadollahi99/temple-law-chatbot/pkg/auth"
	"github.com/asadollahi99/temple-law-chatbot/pkg/config"
	"github.com/asadollahi99/temple-law-chatbot/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

type Router struct {
	app *fiber.App
}

func NewRouter(
	cfg *config.Config,
	queryHandler *handlers.QueryHandler,
	sessionHandler *handlers.SessionHandler,
	adminHandler *handlers.AdminHandler,
	jwtManager *auth.JWTManager,
	logger *zap.Logger,
) *Router {
	app := fiber.New(fiber.Config{
		AppName:      "temple-law-chatbot",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1 := app.Group("/api/v1")
	v1.Post("/query", queryHandler.Query)
	v1.Post("/feedback", sessionHandler.Feedback)
	v1.Get("/sessions/:sid", sessionHandler.Get)
	v1.Delete("/sessions/:sid", sessionHandler.Delete)

	admin := app.Group("/admin")
	admin.Post("/login", adminHandler.Login)

	protected := admin.Group("", middleware.AdminAuth(jwtManager, logger))
	protected.Get("/overrides", adminHandler.ListOverrides)
	protected.Post("/overrides", adminHandler.UpsertOverride)
	protected.Delete("/overrides/:id", adminHandler.DeleteOverride)
	protected.Get("/sessions", sessionHandler.List)
	protected.Get("/sessions/export", sessionHandler.Export)
	protected.Delete("/sessions/:sid", sessionHandler.Delete)
	protected.Post("/sessions/:sid/turns/:mid/feedback", sessionHandler.AttachFeedback)
	protected.Post("/index", adminHandler.TriggerIndex)
	protected.Get("/stats", adminHandler.Stats)
	protected.Get("/chunks", adminHandler.PageChunks)

	return &Router{app: app}
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown(timeout time.Duration) error {
	return r.app.ShutdownWithTimeout(timeout)
}
