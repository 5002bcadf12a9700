package search

import (
	"context"
	"fmt"
	"os"

	"github.com/asadollahi99/temple-law-chatbot/internal/models"
	"github.com/asadollahi99/temple-law-chatbot/internal/repository"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/analysis/analyzer/keyword"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// chunkDoc is the indexed shape: text analyzed for full-text matching, url
// kept verbatim so per-URL deletes hit exactly.
type chunkDoc struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// BleveSearcher is the index-backed lexical strategy. Hits carry chunk ids;
// full rows are fetched back from the chunk store.
type BleveSearcher struct {
	index     bleve.Index
	chunkRepo *repository.ChunkRepository
	logger    *zap.Logger
}

func NewBleveSearcher(path string, chunkRepo *repository.ChunkRepository, logger *zap.Logger) (*BleveSearcher, error) {
	index, err := bleve.Open(path)
	if err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, fmt.Errorf("failed to open bleve index: %w", err)
		}

		urlField := bleve.NewTextFieldMapping()
		urlField.Analyzer = keyword.Name
		docMapping := bleve.NewDocumentMapping()
		docMapping.AddFieldMappingsAt("url", urlField)
		mapping := bleve.NewIndexMapping()
		mapping.DefaultMapping = docMapping

		index, err = bleve.New(path, mapping)
		if err != nil {
			return nil, fmt.Errorf("failed to create bleve index: %w", err)
		}
	}

	return &BleveSearcher{
		index:     index,
		chunkRepo: chunkRepo,
		logger:    logger,
	}, nil
}

func (s *BleveSearcher) Name() string { return "bleve" }

func (s *BleveSearcher) Search(ctx context.Context, tokens []string, limit int) ([]models.Chunk, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	disjunction := bleve.NewDisjunctionQuery()
	for _, token := range tokens {
		match := bleve.NewMatchQuery(token)
		match.SetField("text")
		disjunction.AddQuery(match)
	}

	req := bleve.NewSearchRequestOptions(disjunction, limit, 0, false)
	res, err := s.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := uuid.Parse(hit.ID)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	return s.chunkRepo.GetByIDs(ctx, ids)
}

func (s *BleveSearcher) IndexChunks(_ context.Context, chunks []models.Chunk) error {
	batch := s.index.NewBatch()
	for _, chunk := range chunks {
		if err := batch.Index(chunk.ID.String(), chunkDoc{URL: chunk.URL, Text: chunk.Text}); err != nil {
			return fmt.Errorf("failed to batch chunk %s: %w", chunk.ID, err)
		}
	}
	return s.index.Batch(batch)
}

func (s *BleveSearcher) DeleteURL(_ context.Context, url string) error {
	term := bleve.NewTermQuery(url)
	term.SetField("url")

	req := bleve.NewSearchRequestOptions(term, 1000, 0, false)
	res, err := s.index.Search(req)
	if err != nil {
		return fmt.Errorf("bleve delete lookup failed: %w", err)
	}

	batch := s.index.NewBatch()
	for _, hit := range res.Hits {
		batch.Delete(hit.ID)
	}
	return s.index.Batch(batch)
}

func (s *BleveSearcher) Close() error {
	return s.index.Close()
}
