package search

import (
	"context"

	"github.com/asadollahi99/temple-law-chatbot/internal/models"
	"github.com/asadollahi99/temple-law-chatbot/internal/repository"
)

// ScanSearcher is the fallback strategy: a per-token ILIKE disjunction over
// the chunk store. No side index to maintain, so the write hooks are no-ops.
type ScanSearcher struct {
	chunkRepo *repository.ChunkRepository
}

func NewScanSearcher(chunkRepo *repository.ChunkRepository) *ScanSearcher {
	return &ScanSearcher{chunkRepo: chunkRepo}
}

func (s *ScanSearcher) Name() string { return "scan" }

func (s *ScanSearcher) Search(ctx context.Context, tokens []string, limit int) ([]models.Chunk, error) {
	return s.chunkRepo.LexicalSearch(ctx, tokens, limit)
}

func (s *ScanSearcher) IndexChunks(context.Context, []models.Chunk) error {
	return nil
}

func (s *ScanSearcher) DeleteURL(context.Context, string) error {
	return nil
}
