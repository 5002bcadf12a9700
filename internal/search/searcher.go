// Package search provides the lexical prefilter over the chunk store as a
// pluggable capability with two interchangeable strategies: an index-backed
// one (bleve) and a linear scan (ILIKE over Postgres). The strategy is
// selected once at startup by a capability probe.
package search

import (
	"context"

	"github.com/asadollahi99/temple-law-chatbot/internal/models"
	"github.com/asadollahi99/temple-law-chatbot/internal/repository"
	"github.com/asadollahi99/temple-law-chatbot/pkg/config"

	"go.uber.org/zap"
)

type Searcher interface {
	// Search returns chunks lexically matching any of the tokens.
	Search(ctx context.Context, tokens []string, limit int) ([]models.Chunk, error)
	// IndexChunks makes freshly stored chunks findable.
	IndexChunks(ctx context.Context, chunks []models.Chunk) error
	// DeleteURL drops every indexed chunk of the URL.
	DeleteURL(ctx context.Context, url string) error
	Name() string
}

// New probes for the index-backed strategy and falls back to the linear
// scan when the index cannot be opened.
func New(cfg *config.SearchConfig, chunkRepo *repository.ChunkRepository, logger *zap.Logger) Searcher {
	if cfg.BlevePath != "" {
		searcher, err := NewBleveSearcher(cfg.BlevePath, chunkRepo, logger)
		if err == nil {
			logger.Info("Lexical search strategy selected", zap.String("strategy", searcher.Name()))
			return searcher
		}
		logger.Warn("Bleve index unavailable, falling back to linear scan", zap.Error(err))
	}

	searcher := NewScanSearcher(chunkRepo)
	logger.Info("Lexical search strategy selected", zap.String("strategy", searcher.Name()))
	return searcher
}
