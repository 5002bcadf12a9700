package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/asadollahi99/temple-law-chatbot/internal/llm"
	"github.com/asadollahi99/temple-law-chatbot/internal/models"
	"github.com/asadollahi99/temple-law-chatbot/internal/repository"
	"github.com/asadollahi99/temple-law-chatbot/pkg/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrEmptyQuestion = errors.New("question must not be empty")

// FallbackAnswer is returned when generation fails outright.
const FallbackAnswer = "I'm sorry, I could not find relevant information to answer your question. Please try rephrasing it or browse the site directly."

const systemInstruction = `You are the assistant for the Temple University Beasley School of Law website. Answer the user's question using ONLY the numbered context sources provided below. Cite nothing outside them and do not invent facts. If the context does not contain the answer, say so briefly and suggest the most relevant source page from the context instead. Keep answers concise and written in plain prose.`

const normalizeInstruction = `Rewrite the user's question with correct grammar and spelling. Preserve its meaning exactly. Reply with the rewritten question only.`

var (
	reContinuation = regexp.MustCompile(`(?i)^\s*((please\s+)?(say|tell(\s+me)?|explain|elaborate)\s+.*\bmore\b|more\s+(detail|details|info|information)\b|\bmore\b\s*[.!?]?\s*$)`)
	reDontKnow     = regexp.MustCompile(`(?i)i\s+(don'?t|do\s+not)\s+know|could\s*n[o']t\s+find|no\s+relevant\s+information`)
)

// ChunkStore is the retrieval surface of the chunk repository.
type ChunkStore interface {
	LexicalSearch(ctx context.Context, tokens []string, limit int) ([]models.Chunk, error)
	SearchSubstring(ctx context.Context, phrase string, limit int) ([]models.Chunk, error)
	SearchByURLPattern(ctx context.Context, pattern string, limit int) ([]models.Chunk, error)
	Sample(ctx context.Context, limit int) ([]models.Chunk, error)
}

// Journal is the session surface the resolver writes through.
type Journal interface {
	AppendTurn(ctx context.Context, sid string, turn *models.Turn) error
	GetBySID(ctx context.Context, sid string) (*models.Session, error)
}

// OverrideLookup finds a reviewer pin for a query, if any.
type OverrideLookup interface {
	Match(ctx context.Context, rawQuery string, queryEmbedding []float32) (*OverrideMatch, error)
}

// LexicalSearcher is the pluggable prefilter strategy.
type LexicalSearcher interface {
	Search(ctx context.Context, tokens []string, limit int) ([]models.Chunk, error)
}

type QueryRequest struct {
	Question  string
	SID       string
	IP        string
	UserAgent string
}

type QueryResult struct {
	SID     string
	Answer  string
	Sources []string
	MID     string
}

// ResolverService runs a question through the pipeline:
// Received -> Expanded -> Normalized -> Embedded -> Retrieved -> Resolved -> Persisted.
type ResolverService struct {
	chunks    ChunkStore
	lexical   LexicalSearcher
	journal   Journal
	overrides OverrideLookup
	embedder  llm.Embedder
	generator llm.Generator
	cfg       *config.RetrievalConfig
	logger    *zap.Logger
}

func NewResolverService(
	chunks ChunkStore,
	lexical LexicalSearcher,
	journal Journal,
	overrides OverrideLookup,
	embedder llm.Embedder,
	generator llm.Generator,
	cfg *config.RetrievalConfig,
	logger *zap.Logger,
) *ResolverService {
	return &ResolverService{
		chunks:    chunks,
		lexical:   lexical,
		journal:   journal,
		overrides: overrides,
		embedder:  embedder,
		generator: generator,
		cfg:       cfg,
		logger:    logger,
	}
}

func (s *ResolverService) Resolve(ctx context.Context, req *QueryRequest) (*QueryResult, error) {
	// Received: validate before any side effect.
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	sid := req.SID
	if sid == "" {
		sid = uuid.NewString()
	}

	userTurn := &models.Turn{
		MID:     uuid.NewString(),
		Role:    models.RoleUser,
		Content: question,
		TS:      time.Now(),
	}
	if req.IP != "" || req.UserAgent != "" {
		userTurn.Meta = &models.TurnMeta{IP: req.IP, UserAgent: req.UserAgent}
	}
	if err := s.journal.AppendTurn(ctx, sid, userTurn); err != nil {
		return nil, fmt.Errorf("failed to record question: %w", err)
	}

	// Expanded.
	expanded := s.expandContinuation(ctx, sid, question)

	// Normalized: best-effort grammar pass, falling back to the expanded
	// query unchanged.
	normalized := s.normalizeQuery(ctx, expanded)

	// Embedded: a failed or mis-sized embedding degrades ranking, it does
	// not fail the request.
	queryEmbedding, err := s.embedder.Embed(ctx, normalized)
	if err != nil {
		s.logger.Warn("Query embedding failed", zap.Error(err))
		queryEmbedding = nil
	} else if len(queryEmbedding) != s.embedder.Dims() {
		s.logger.Warn("Query embedding has unexpected dimension",
			zap.Int("got", len(queryEmbedding)),
			zap.Int("want", s.embedder.Dims()),
		)
	}

	// Retrieved.
	ranked := s.retrieve(ctx, sid, normalized, queryEmbedding)
	selected := s.selectContext(ranked)

	// Resolved: forced overrides pre-empt everything else.
	match, err := s.overrides.Match(ctx, question, queryEmbedding)
	if err != nil {
		s.logger.Warn("Override lookup failed", zap.Error(err))
		match = nil
	}

	var answer string
	var sources []string
	meta := &models.TurnMeta{}

	if match.Authoritative() {
		answer = match.Override.Answer
		sources = []string{models.ReviewedAnswerSource}
		meta.Overridden = true
	} else {
		if match != nil {
			// Informational only; recorded for reviewer adjudication,
			// never substituted for the generated answer.
			meta.OverrideCandidate = match.Override.NormQuestion
		}
		answer = s.generate(ctx, sid, normalized, selected)
		sources = sourceURLs(selected)
	}

	// Persisted.
	assistantTurn := &models.Turn{
		MID:     uuid.NewString(),
		Role:    models.RoleAssistant,
		Content: answer,
		Sources: sources,
		TS:      time.Now(),
	}
	if meta.Overridden || meta.OverrideCandidate != "" {
		assistantTurn.Meta = meta
	}
	if err := s.journal.AppendTurn(ctx, sid, assistantTurn); err != nil {
		// The user turn is already journaled; clients treat the missing
		// assistant reply as failed, not as a silent drop.
		return nil, fmt.Errorf("failed to record answer: %w", err)
	}

	return &QueryResult{
		SID:     sid,
		Answer:  answer,
		Sources: sources,
		MID:     assistantTurn.MID,
	}, nil
}

// expandContinuation rewrites "tell me more"-style follow-ups into a
// self-contained query referencing the prior exchange.
func (s *ResolverService) expandContinuation(ctx context.Context, sid, question string) string {
	if !reContinuation.MatchString(question) {
		return question
	}

	session, err := s.journal.GetBySID(ctx, sid)
	if err != nil {
		if !errors.Is(err, repository.ErrSessionNotFound) {
			s.logger.Warn("Failed to load session for continuation", zap.Error(err))
		}
		return question
	}

	var lastAssistant, lastUser string
	for i := len(session.History) - 1; i >= 0; i-- {
		turn := session.History[i]
		switch {
		case lastAssistant == "" && turn.Role == models.RoleAssistant:
			lastAssistant = turn.Content
		case lastUser == "" && turn.Role == models.RoleUser && turn.Content != question:
			lastUser = turn.Content
		}
		if lastAssistant != "" && lastUser != "" {
			break
		}
	}

	if lastAssistant == "" && lastUser == "" {
		return question
	}

	return fmt.Sprintf(
		"The user previously asked: %q and received the answer: %q. They now say: %q. Elaborate on the previous answer with more detail.",
		lastUser, lastAssistant, question,
	)
}

func (s *ResolverService) normalizeQuery(ctx context.Context, query string) string {
	normalized, err := s.generator.Generate(ctx, normalizeInstruction, nil, query)
	if err != nil || strings.TrimSpace(normalized) == "" {
		if err != nil {
			s.logger.Warn("Query normalization failed", zap.Error(err))
		}
		return query
	}
	return strings.TrimSpace(normalized)
}

// retrieve runs the multi-stage candidate search and ranks the result by
// similarity against the query embedding.
func (s *ResolverService) retrieve(ctx context.Context, sid, normalized string, queryEmbedding []float32) []scoredChunk {
	tokens := ExpandTokens(Tokenize(normalized))

	candidates, err := s.lexical.Search(ctx, tokens, lexicalPrefilterCap)
	if err != nil {
		s.logger.Warn("Lexical prefilter failed, scanning instead", zap.Error(err))
		candidates, err = s.chunks.LexicalSearch(ctx, tokens, lexicalPrefilterCap)
		if err != nil {
			s.logger.Warn("Lexical scan failed", zap.Error(err))
			candidates = nil
		}
	}

	if len(candidates) < minLexicalCandidates {
		if generic, err := s.chunks.LexicalSearch(ctx, genericKeywordPool, genericPoolCap); err == nil {
			candidates = unionChunks(candidates, generic)
		}
		for _, steer := range topicSteering {
			if !steer.trigger.MatchString(normalized) {
				continue
			}
			if steered, err := s.chunks.SearchByURLPattern(ctx, steer.pattern, genericPoolCap); err == nil {
				candidates = unionChunks(candidates, steered)
			}
		}
	}

	if len(candidates) == 0 {
		if sample, err := s.chunks.Sample(ctx, lexicalPrefilterCap); err == nil {
			candidates = sample
		}
	}

	ranked := rankBySimilarity(candidates, queryEmbedding)

	// Escalation: a weak best score widens the scan; a prior "I don't
	// know" answer widens it to the whole store.
	if len(ranked) == 0 || ranked[0].score < s.cfg.SiteConfidence {
		scanCap := rescanCap
		if s.lastAnswerWasDontKnow(ctx, sid) {
			scanCap = deepScanCap
		}
		if rescan, err := s.chunks.SearchSubstring(ctx, normalized, scanCap); err == nil && len(rescan) > 0 {
			rescored := rankBySimilarity(rescan, queryEmbedding)
			if len(rescored) > rescoreMergeTop {
				rescored = rescored[:rescoreMergeTop]
			}
			ranked = mergeScored(ranked, rescored)
		}
	}

	return ranked
}

func (s *ResolverService) lastAnswerWasDontKnow(ctx context.Context, sid string) bool {
	session, err := s.journal.GetBySID(ctx, sid)
	if err != nil {
		return false
	}
	for i := len(session.History) - 1; i >= 0; i-- {
		if session.History[i].Role == models.RoleAssistant {
			return reDontKnow.MatchString(session.History[i].Content)
		}
	}
	return false
}

// selectContext keeps candidates at or above the score floor, capped; when
// none qualify it keeps the top candidates regardless so generation always
// sees context.
func (s *ResolverService) selectContext(ranked []scoredChunk) []scoredChunk {
	var selected []scoredChunk
	for _, sc := range ranked {
		if sc.score < s.cfg.MinScore {
			break
		}
		selected = append(selected, sc)
		if len(selected) == s.cfg.MaxContextChunks {
			break
		}
	}

	if len(selected) == 0 {
		if len(ranked) > s.cfg.MaxContextChunks {
			ranked = ranked[:s.cfg.MaxContextChunks]
		}
		selected = ranked
	}

	return selected
}

func (s *ResolverService) generate(ctx context.Context, sid, normalized string, selected []scoredChunk) string {
	history := s.conversationHistory(ctx, sid)

	prompt := fmt.Sprintf("Context sources:\n\n%sQuestion: %s", buildContext(selected), normalized)

	answer, err := s.generator.Generate(ctx, systemInstruction, history, prompt)
	if err != nil || strings.TrimSpace(answer) == "" {
		if err != nil {
			s.logger.Error("Generation failed", zap.Error(err))
		}
		return FallbackAnswer
	}

	return strings.TrimSpace(answer)
}

// conversationHistory returns recent prior turns for grounding, excluding
// the just-appended user turn.
func (s *ResolverService) conversationHistory(ctx context.Context, sid string) []llm.Message {
	session, err := s.journal.GetBySID(ctx, sid)
	if err != nil {
		return nil
	}

	history := session.History
	if len(history) > 0 && history[len(history)-1].Role == models.RoleUser {
		history = history[:len(history)-1]
	}

	const maxHistoryTurns = 6
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}

	messages := make([]llm.Message, 0, len(history))
	for _, turn := range history {
		role := llm.RoleUser
		if turn.Role == models.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Content})
	}

	return messages
}
