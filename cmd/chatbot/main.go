package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asadollahi99/temple-law-chatbot/internal/api"
	"github.com/asadollahi99/temple-law-chatbot/internal/api/handlers"
	"github.com/asadollahi99/temple-law-chatbot/internal/llm"
	"github.com/asadollahi99/temple-law-chatbot/internal/repository"
	"github.com/asadollahi99/temple-law-chatbot/internal/search"
	"github.com/asadollahi99/temple-law-chatbot/internal/service"
	"github.com/asadollahi99/temple-law-chatbot/pkg/auth"
	"github.com/asadollahi99/temple-law-chatbot/pkg/config"
	"github.com/asadollahi99/temple-law-chatbot/pkg/logger"
	"github.com/asadollahi99/temple-law-chatbot/pkg/postgres"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	if err := logger.Init(cfg.Logger.Level); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()
	zl := logger.Get()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := postgres.NewPool(ctx, &cfg.Database, zl)
	if err != nil {
		zl.Fatal("Failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := postgres.Bootstrap(ctx, pool); err != nil {
		zl.Fatal("Failed to bootstrap schema", zap.Error(err))
	}

	pageRepo := repository.NewPageRepository(pool, zl)
	chunkRepo := repository.NewChunkRepository(pool, zl)
	sessionRepo := repository.NewSessionRepository(pool, zl)
	overrideRepo := repository.NewOverrideRepository(pool, zl)

	searcher := search.New(&cfg.Search, chunkRepo, zl)
	if closer, ok := searcher.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	embedder, err := llm.NewOpenAIProvider(&cfg.OpenAI, zl)
	if err != nil {
		zl.Fatal("Failed to init embedding provider", zap.Error(err))
	}

	generator, err := llm.NewGenerator(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("Failed to init generation provider", zap.Error(err))
	}
	if closer, ok := generator.(interface{ Close() }); ok {
		defer closer.Close()
	}

	overrideSvc := service.NewOverrideService(overrideRepo, embedder, cfg.Retrieval.OverrideThreshold, zl)
	sessionSvc := service.NewSessionService(sessionRepo, zl)
	resolverSvc := service.NewResolverService(
		chunkRepo, searcher, sessionRepo, overrideSvc,
		embedder, generator, &cfg.Retrieval, zl,
	)
	indexerSvc := service.NewIndexerService(
		pageRepo, chunkRepo, embedder, searcher, nil, &cfg.Index, zl,
	)

	jwtManager := auth.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.Expiration)

	router := api.NewRouter(
		cfg,
		handlers.NewQueryHandler(resolverSvc, zl),
		handlers.NewSessionHandler(sessionSvc, zl),
		handlers.NewAdminHandler(overrideSvc, indexerSvc, jwtManager, cfg, zl),
		jwtManager,
		zl,
	)

	go func() {
		zl.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := router.Listen(":" + cfg.Server.Port); err != nil {
			zl.Fatal("Server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("Shutting down")
	if err := router.Shutdown(10 * time.Second); err != nil {
		zl.Error("Graceful shutdown failed", zap.Error(err))
	}
}
