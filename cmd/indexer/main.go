package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/asadollahi99/temple-law-chatbot/internal/llm"
	"github.com/asadollahi99/temple-law-chatbot/internal/repository"
	"github.com/asadollahi99/temple-law-chatbot/internal/search"
	"github.com/asadollahi99/temple-law-chatbot/internal/service"
	"github.com/asadollahi99/temple-law-chatbot/pkg/config"
	"github.com/asadollahi99/temple-law-chatbot/pkg/logger"
	"github.com/asadollahi99/temple-law-chatbot/pkg/postgres"

	"go.uber.org/zap"
)

func main() {
	var (
		sitemapURL = flag.String("sitemap", "", "sitemap URL (defaults to SITEMAP_URL)")
		maxURLs    = flag.Int("max", 0, "max URLs to index (defaults to INDEX_MAX_URLS)")
		timeout    = flag.Duration("timeout", 2*time.Hour, "overall run deadline")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Logger.Level); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()
	zl := logger.Get()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
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

	searcher := search.New(&cfg.Search, chunkRepo, zl)
	if closer, ok := searcher.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	embedder, err := llm.NewOpenAIProvider(&cfg.OpenAI, zl)
	if err != nil {
		zl.Fatal("Failed to init embedding provider", zap.Error(err))
	}

	indexer := service.NewIndexerService(
		pageRepo, chunkRepo, embedder, searcher, nil, &cfg.Index, zl,
	)

	root := *sitemapURL
	if root == "" {
		root = cfg.Index.SitemapURL
	}
	limit := *maxURLs
	if limit <= 0 {
		limit = cfg.Index.MaxURLs
	}

	zl.Info("Starting index run",
		zap.String("sitemap_url", root),
		zap.Int("max_urls", limit))

	summary, err := indexer.RunSitemap(ctx, root, limit)
	if err != nil {
		zl.Fatal("Index run failed", zap.Error(err))
	}

	fmt.Printf("Indexed %d pages\n", summary.Total)
	for status, count := range summary.Counts {
		fmt.Printf("  %-20s %d\n", status, count)
	}

	if summary.Counts[service.StatusError] > 0 {
		os.Exit(1)
	}
}
