package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/asadollahi99/temple-law-chatbot/internal/llm"
	"github.com/asadollahi99/temple-law-chatbot/internal/models"
	"github.com/asadollahi99/temple-law-chatbot/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrEmptyOverride = errors.New("override requires a question and an answer")

// OverrideStore is the repository surface the accessor needs.
type OverrideStore interface {
	Upsert(ctx context.Context, override *models.Override) error
	GetExact(ctx context.Context, normQuestion string) (*models.Override, error)
	ListEmbedded(ctx context.Context) ([]models.Override, error)
	List(ctx context.Context, limit, offset int) ([]models.Override, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// OverrideMatch is the result of a lookup. Exact marks a whole-string hit
// on the normalized question; Similarity is set for semantic hits.
type OverrideMatch struct {
	Override   *models.Override
	Exact      bool
	Similarity float64
}

// Authoritative reports whether this match pre-empts retrieval and
// generation: the override must be forced and carry a non-empty answer.
func (m *OverrideMatch) Authoritative() bool {
	return m != nil && m.Override.Force && strings.TrimSpace(m.Override.Answer) != ""
}

var reNormSpace = regexp.MustCompile(`\s+`)

// NormalizeQuestion case-folds, trims, and collapses whitespace; the result
// is the override lookup key.
func NormalizeQuestion(question string) string {
	return reNormSpace.ReplaceAllString(strings.ToLower(strings.TrimSpace(question)), " ")
}

// OverrideService is the accessor over human-curated question pins: exact
// and semantic lookup at query time, embedding-at-write on the review path.
type OverrideService struct {
	repo      OverrideStore
	embedder  llm.Embedder
	threshold float64
	logger    *zap.Logger
}

func NewOverrideService(repo OverrideStore, embedder llm.Embedder, threshold float64, logger *zap.Logger) *OverrideService {
	return &OverrideService{
		repo:      repo,
		embedder:  embedder,
		threshold: threshold,
		logger:    logger,
	}
}

// Upsert stores a reviewer's pin keyed by the normalized question,
// computing its embedding at write time. Embedding failure is logged and
// tolerated: the record still participates in exact matching.
func (s *OverrideService) Upsert(ctx context.Context, override *models.Override) (*models.Override, error) {
	question := strings.TrimSpace(override.Question)
	if question == "" || strings.TrimSpace(override.Answer) == "" {
		return nil, ErrEmptyOverride
	}

	override.Question = question
	override.NormQuestion = NormalizeQuestion(question)
	if override.ID == uuid.Nil {
		override.ID = uuid.New()
	}

	if len(override.QuestionEmbedding) == 0 {
		embedding, err := s.embedder.Embed(ctx, override.NormQuestion)
		if err != nil {
			s.logger.Warn("Failed to embed override question, exact matching only",
				zap.String("norm_question", override.NormQuestion),
				zap.Error(err),
			)
		} else {
			override.QuestionEmbedding = embedding
		}
	}

	if err := s.repo.Upsert(ctx, override); err != nil {
		return nil, fmt.Errorf("failed to upsert override: %w", err)
	}

	return override, nil
}

// Match looks for an override for the raw query: exact whole-string match
// on the normalized question first, then the best semantic match at or
// above the threshold. Semantic matching needs the query embedding and is
// skipped without one.
func (s *OverrideService) Match(ctx context.Context, rawQuery string, queryEmbedding []float32) (*OverrideMatch, error) {
	norm := NormalizeQuestion(rawQuery)
	if norm == "" {
		return nil, nil
	}

	exact, err := s.repo.GetExact(ctx, norm)
	if err != nil && !errors.Is(err, repository.ErrOverrideNotFound) {
		return nil, err
	}
	if exact != nil {
		match := &OverrideMatch{Override: exact, Exact: true}
		if match.Authoritative() {
			return match, nil
		}
		// A non-forced exact hit is informational; a forced semantic one
		// below could still pre-empt.
		if semantic, err := s.bestSemantic(ctx, queryEmbedding); err == nil && semantic.Authoritative() {
			return semantic, nil
		}
		return match, nil
	}

	semantic, err := s.bestSemantic(ctx, queryEmbedding)
	if err != nil {
		return nil, err
	}
	return semantic, nil
}

func (s *OverrideService) List(ctx context.Context, limit, offset int) ([]models.Override, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

func (s *OverrideService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *OverrideService) bestSemantic(ctx context.Context, queryEmbedding []float32) (*OverrideMatch, error) {
	if len(queryEmbedding) == 0 {
		return nil, nil
	}

	candidates, err := s.repo.ListEmbedded(ctx)
	if err != nil {
		return nil, err
	}

	var best *OverrideMatch
	for i := range candidates {
		candidate := &candidates[i]
		if len(candidate.QuestionEmbedding) == 0 {
			continue
		}
		score, err := llm.Cosine(queryEmbedding, candidate.QuestionEmbedding)
		if err != nil {
			s.logger.Warn("Skipping override with incompatible embedding",
				zap.String("norm_question", candidate.NormQuestion),
				zap.Error(err),
			)
			continue
		}
		if best == nil || score > best.Similarity {
			best = &OverrideMatch{Override: candidate, Similarity: score}
		}
	}

	if best == nil || best.Similarity < s.threshold {
		return nil, nil
	}

	return best, nil
}
