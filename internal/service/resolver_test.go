package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/asadollahi99/temple-law-chatbot/internal/llm"
	"github.com/asadollahi99/temple-law-chatbot/internal/models"
	"github.com/asadollahi99/temple-law-chatbot/internal/repository"
	"github.com/asadollahi99/temple-law-chatbot/pkg/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type fakeChunkStore struct {
	lexical        []models.Chunk
	substring      []models.Chunk
	substringLimit int
	sample         []models.Chunk
}

func (f *fakeChunkStore) LexicalSearch(_ context.Context, _ []string, _ int) ([]models.Chunk, error) {
	return f.lexical, nil
}

func (f *fakeChunkStore) SearchSubstring(_ context.Context, _ string, limit int) ([]models.Chunk, error) {
	f.substringLimit = limit
	return f.substring, nil
}

func (f *fakeChunkStore) SearchByURLPattern(_ context.Context, _ string, _ int) ([]models.Chunk, error) {
	return nil, nil
}

func (f *fakeChunkStore) Sample(_ context.Context, _ int) ([]models.Chunk, error) {
	return f.sample, nil
}

type fakeLexical struct {
	chunks []models.Chunk
}

func (f *fakeLexical) Search(_ context.Context, _ []string, _ int) ([]models.Chunk, error) {
	return f.chunks, nil
}

type fakeJournal struct {
	sessions map[string]*models.Session
	appends  []*models.Turn
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{sessions: make(map[string]*models.Session)}
}

func (f *fakeJournal) AppendTurn(_ context.Context, sid string, turn *models.Turn) error {
	session, ok := f.sessions[sid]
	if !ok {
		session = &models.Session{SID: sid}
		f.sessions[sid] = session
	}
	session.History = append(session.History, *turn)
	f.appends = append(f.appends, turn)
	return nil
}

func (f *fakeJournal) GetBySID(_ context.Context, sid string) (*models.Session, error) {
	session, ok := f.sessions[sid]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	return session, nil
}

type fakeOverrideLookup struct {
	match *OverrideMatch
}

func (f *fakeOverrideLookup) Match(_ context.Context, _ string, _ []float32) (*OverrideMatch, error) {
	return f.match, nil
}

type fakeGenerator struct {
	answer      string
	err         error
	answerCalls int
	lastPrompt  string
	lastHistory int
}

func (f *fakeGenerator) Generate(_ context.Context, systemInstr string, history []llm.Message, userMessage string) (string, error) {
	if systemInstr == normalizeInstruction {
		// Pass the query through unchanged.
		return userMessage, nil
	}
	f.answerCalls++
	f.lastPrompt = userMessage
	f.lastHistory = len(history)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func retrievalConfig() *config.RetrievalConfig {
	return &config.RetrievalConfig{
		SiteConfidence:    0.45,
		MinScore:          0.12,
		MaxContextChunks:  12,
		OverrideThreshold: 0.82,
	}
}

func newResolver(chunks *fakeChunkStore, journal *fakeJournal, overrides *fakeOverrideLookup, generator *fakeGenerator) *ResolverService {
	return NewResolverService(
		chunks,
		&fakeLexical{},
		journal,
		overrides,
		&fakeEmbedder{},
		generator,
		retrievalConfig(),
		zap.NewNop(),
	)
}

func calendarChunk(text string) models.Chunk {
	return models.Chunk{
		ID:        uuid.New(),
		URL:       "https://law.temple.edu/academics/calendar/",
		Text:      text,
		Embedding: []float32{1, 0, 0},
	}
}

func TestResolveEmptyQuestion(t *testing.T) {
	journal := newFakeJournal()
	svc := newResolver(&fakeChunkStore{}, journal, &fakeOverrideLookup{}, &fakeGenerator{answer: "x"})

	_, err := svc.Resolve(context.Background(), &QueryRequest{Question: "   "})
	if !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("expected ErrEmptyQuestion, got %v", err)
	}
	if len(journal.appends) != 0 {
		t.Fatal("a rejected question must not be journaled")
	}
}

func TestResolveMintsSessionAndJournalsBothTurns(t *testing.T) {
	journal := newFakeJournal()
	chunks := &fakeChunkStore{lexical: []models.Chunk{calendarChunk("The semester starts August 24.")}}
	generator := &fakeGenerator{answer: "The semester starts August 24."}
	svc := newResolver(chunks, journal, &fakeOverrideLookup{}, generator)

	result, err := svc.Resolve(context.Background(), &QueryRequest{
		Question:  "When does the semester start?",
		IP:        "10.0.0.1",
		UserAgent: "test-agent",
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if result.SID == "" {
		t.Fatal("expected a minted session id")
	}
	if len(journal.appends) != 2 {
		t.Fatalf("expected 2 journaled turns, got %d", len(journal.appends))
	}

	user, assistant := journal.appends[0], journal.appends[1]
	if user.Role != models.RoleUser || assistant.Role != models.RoleAssistant {
		t.Fatal("turns journaled in the wrong order")
	}
	if user.MID == assistant.MID {
		t.Fatal("turn ids must be unique")
	}
	if user.Meta == nil || user.Meta.IP != "10.0.0.1" || user.Meta.UserAgent != "test-agent" {
		t.Fatalf("user turn is missing request metadata: %+v", user.Meta)
	}
	if result.MID != assistant.MID {
		t.Fatal("result must reference the assistant turn")
	}
	if result.Answer != "The semester starts August 24." {
		t.Fatalf("unexpected answer %q", result.Answer)
	}
	if len(result.Sources) == 0 {
		t.Fatal("expected sources for a generated answer")
	}
}

func TestResolveForcedOverrideShortCircuits(t *testing.T) {
	journal := newFakeJournal()
	generator := &fakeGenerator{answer: "should not be used"}
	overrides := &fakeOverrideLookup{match: &OverrideMatch{
		Override: &models.Override{
			NormQuestion: "when does the semester start?",
			Answer:       "The fall semester starts August 24, 2026.",
			Force:        true,
		},
		Exact: true,
	}}
	svc := newResolver(&fakeChunkStore{}, journal, overrides, generator)

	result, err := svc.Resolve(context.Background(), &QueryRequest{Question: "When does the semester start?"})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if result.Answer != "The fall semester starts August 24, 2026." {
		t.Fatalf("expected the pinned answer verbatim, got %q", result.Answer)
	}
	if len(result.Sources) != 1 || result.Sources[0] != models.ReviewedAnswerSource {
		t.Fatalf("expected sources [%q], got %v", models.ReviewedAnswerSource, result.Sources)
	}
	if generator.answerCalls != 0 {
		t.Fatal("a forced override must pre-empt generation")
	}

	assistant := journal.appends[1]
	if assistant.Meta == nil || !assistant.Meta.Overridden {
		t.Fatal("assistant turn must be flagged as overridden")
	}
}

func TestResolveNonForcedOverrideIsCandidateOnly(t *testing.T) {
	journal := newFakeJournal()
	chunks := &fakeChunkStore{lexical: []models.Chunk{calendarChunk("Semester dates.")}}
	generator := &fakeGenerator{answer: "Generated answer."}
	overrides := &fakeOverrideLookup{match: &OverrideMatch{
		Override: &models.Override{
			NormQuestion: "when does the semester start?",
			Answer:       "Pinned answer.",
			Force:        false,
		},
		Exact: true,
	}}
	svc := newResolver(chunks, journal, overrides, generator)

	result, err := svc.Resolve(context.Background(), &QueryRequest{Question: "When does the semester start?"})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if result.Answer != "Generated answer." {
		t.Fatalf("a non-forced override must not replace the answer, got %q", result.Answer)
	}
	if generator.answerCalls != 1 {
		t.Fatalf("expected 1 generation call, got %d", generator.answerCalls)
	}

	assistant := journal.appends[1]
	if assistant.Meta == nil || assistant.Meta.OverrideCandidate != "when does the semester start?" {
		t.Fatalf("expected the candidate recorded on the turn, got %+v", assistant.Meta)
	}
	if assistant.Meta.Overridden {
		t.Fatal("a candidate must not be flagged as overridden")
	}
}

func TestResolveGenerationFailureFallsBack(t *testing.T) {
	journal := newFakeJournal()
	chunks := &fakeChunkStore{lexical: []models.Chunk{calendarChunk("Semester dates.")}}
	generator := &fakeGenerator{err: errors.New("provider down")}
	svc := newResolver(chunks, journal, &fakeOverrideLookup{}, generator)

	result, err := svc.Resolve(context.Background(), &QueryRequest{Question: "When does the semester start?"})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if result.Answer != FallbackAnswer {
		t.Fatalf("expected the fallback answer, got %q", result.Answer)
	}
}

func TestResolvePromptContainsContext(t *testing.T) {
	journal := newFakeJournal()
	chunks := &fakeChunkStore{lexical: []models.Chunk{calendarChunk("The fall semester begins August 24.")}}
	generator := &fakeGenerator{answer: "ok"}
	svc := newResolver(chunks, journal, &fakeOverrideLookup{}, generator)

	if _, err := svc.Resolve(context.Background(), &QueryRequest{Question: "When does the semester start?"}); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if !strings.Contains(generator.lastPrompt, "The fall semester begins August 24.") {
		t.Fatalf("prompt is missing retrieved context: %q", generator.lastPrompt)
	}
	if !strings.Contains(generator.lastPrompt, "https://law.temple.edu/academics/calendar/") {
		t.Fatalf("prompt is missing the source url: %q", generator.lastPrompt)
	}
}

func TestResolveSecondTurnCarriesHistory(t *testing.T) {
	journal := newFakeJournal()
	chunks := &fakeChunkStore{lexical: []models.Chunk{calendarChunk("Semester dates.")}}
	generator := &fakeGenerator{answer: "First answer."}
	svc := newResolver(chunks, journal, &fakeOverrideLookup{}, generator)

	first, err := svc.Resolve(context.Background(), &QueryRequest{Question: "When does the semester start?"})
	if err != nil {
		t.Fatalf("first Resolve returned error: %v", err)
	}

	generator.answer = "Second answer."
	if _, err := svc.Resolve(context.Background(), &QueryRequest{
		Question: "And when does it end?",
		SID:      first.SID,
	}); err != nil {
		t.Fatalf("second Resolve returned error: %v", err)
	}

	// The second generation sees the first exchange but not its own user turn.
	if generator.lastHistory != 2 {
		t.Fatalf("expected 2 history messages, got %d", generator.lastHistory)
	}
	if len(journal.sessions[first.SID].History) != 4 {
		t.Fatalf("expected 4 journaled turns, got %d", len(journal.sessions[first.SID].History))
	}
}

func TestSelectContextScoreFloor(t *testing.T) {
	svc := newResolver(&fakeChunkStore{}, newFakeJournal(), &fakeOverrideLookup{}, &fakeGenerator{})

	ranked := []scoredChunk{
		{chunk: models.Chunk{URL: "a"}, score: 0.9},
		{chunk: models.Chunk{URL: "b"}, score: 0.5},
		{chunk: models.Chunk{URL: "c"}, score: 0.05},
	}

	selected := svc.selectContext(ranked)
	if len(selected) != 2 {
		t.Fatalf("expected 2 chunks above the floor, got %d", len(selected))
	}
}

func TestSelectContextBelowFloorKeepsTop(t *testing.T) {
	svc := newResolver(&fakeChunkStore{}, newFakeJournal(), &fakeOverrideLookup{}, &fakeGenerator{})

	var ranked []scoredChunk
	for i := 0; i < 20; i++ {
		ranked = append(ranked, scoredChunk{chunk: models.Chunk{Index: i}, score: 0.01})
	}

	selected := svc.selectContext(ranked)
	if len(selected) != 12 {
		t.Fatalf("expected the top 12 kept when nothing clears the floor, got %d", len(selected))
	}
}

func TestSelectContextCap(t *testing.T) {
	svc := newResolver(&fakeChunkStore{}, newFakeJournal(), &fakeOverrideLookup{}, &fakeGenerator{})

	var ranked []scoredChunk
	for i := 0; i < 20; i++ {
		ranked = append(ranked, scoredChunk{chunk: models.Chunk{Index: i}, score: 0.9})
	}

	selected := svc.selectContext(ranked)
	if len(selected) != 12 {
		t.Fatalf("expected the context capped at 12, got %d", len(selected))
	}
}

func TestRetrieveEscalationWidensScan(t *testing.T) {
	// All candidates score zero against the query, so the best score is
	// below the confidence gate and the substring rescan kicks in.
	chunks := &fakeChunkStore{
		lexical: []models.Chunk{{ID: uuid.New(), URL: "u", Embedding: []float32{0, 1, 0}}},
	}
	journal := newFakeJournal()
	svc := newResolver(chunks, journal, &fakeOverrideLookup{}, &fakeGenerator{})

	svc.retrieve(context.Background(), "sid-1", "obscure question", []float32{1, 0, 0})
	if chunks.substringLimit != rescanCap {
		t.Fatalf("expected rescan limit %d, got %d", rescanCap, chunks.substringLimit)
	}
}

func TestRetrieveDeepScanAfterDontKnow(t *testing.T) {
	chunks := &fakeChunkStore{
		lexical: []models.Chunk{{ID: uuid.New(), URL: "u", Embedding: []float32{0, 1, 0}}},
	}
	journal := newFakeJournal()
	journal.sessions["sid-1"] = &models.Session{
		SID: "sid-1",
		History: []models.Turn{
			{Role: models.RoleUser, Content: "q"},
			{Role: models.RoleAssistant, Content: "I don't know the answer to that."},
		},
	}
	svc := newResolver(chunks, journal, &fakeOverrideLookup{}, &fakeGenerator{})

	svc.retrieve(context.Background(), "sid-1", "obscure question", []float32{1, 0, 0})
	if chunks.substringLimit != deepScanCap {
		t.Fatalf("expected deep scan limit %d, got %d", deepScanCap, chunks.substringLimit)
	}
}

func TestExpandContinuation(t *testing.T) {
	journal := newFakeJournal()
	journal.sessions["sid-1"] = &models.Session{
		SID: "sid-1",
		History: []models.Turn{
			{Role: models.RoleUser, Content: "When does the semester start?"},
			{Role: models.RoleAssistant, Content: "August 24."},
			{Role: models.RoleUser, Content: "tell me more"},
		},
	}
	svc := newResolver(&fakeChunkStore{}, journal, &fakeOverrideLookup{}, &fakeGenerator{})

	expanded := svc.expandContinuation(context.Background(), "sid-1", "tell me more")
	if expanded == "tell me more" {
		t.Fatal("expected the continuation to be rewritten")
	}
	if !strings.Contains(expanded, "When does the semester start?") {
		t.Fatalf("expansion is missing the prior question: %q", expanded)
	}
	if !strings.Contains(expanded, "August 24.") {
		t.Fatalf("expansion is missing the prior answer: %q", expanded)
	}
}

func TestExpandContinuationPassThrough(t *testing.T) {
	svc := newResolver(&fakeChunkStore{}, newFakeJournal(), &fakeOverrideLookup{}, &fakeGenerator{})

	question := "When does the semester start?"
	if got := svc.expandContinuation(context.Background(), "nope", question); got != question {
		t.Fatalf("a regular question must pass through unchanged, got %q", got)
	}
}
