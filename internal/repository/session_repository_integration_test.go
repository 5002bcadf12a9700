package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/asadollahi99/temple-law-chatbot/internal/models"
	"github.com/asadollahi99/temple-law-chatbot/internal/repository"
	"github.com/asadollahi99/temple-law-chatbot/pkg/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func startPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pgC, err := tcPostgres.RunContainer(ctx,
		tcPostgres.WithDatabase("chatbot"),
		tcPostgres.WithUsername("chatbot"),
		tcPostgres.WithPassword("chatbot"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		),
	)
	if err != nil {
		t.Fatalf("postgres container: %v", err)
	}
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	port, err := pgC.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://chatbot:chatbot@%s:%s/chatbot?sslmode=disable", host, port.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := postgres.Bootstrap(ctx, pool); err != nil {
		t.Fatalf("bootstrap schema: %v", err)
	}

	return pool
}

func TestSessionRepositoryFeedbackIsolation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	pool := startPostgres(t, ctx)
	repo := repository.NewSessionRepository(pool, zap.NewNop())

	const sid = "integration-session"
	mids := []string{"m-1", "m-2", "m-3"}
	roles := []models.TurnRole{models.RoleUser, models.RoleAssistant, models.RoleAssistant}
	for i, mid := range mids {
		turn := &models.Turn{
			MID:     mid,
			Role:    roles[i],
			Content: fmt.Sprintf("turn %d", i),
			TS:      time.Now().UTC(),
		}
		if err := repo.AppendTurn(ctx, sid, turn); err != nil {
			t.Fatalf("append turn %d: %v", i, err)
		}
	}

	fb := &models.Feedback{Correct: true, Comment: "helpful", TS: time.Now().UTC()}
	if err := repo.AttachFeedback(ctx, sid, "m-2", fb); err != nil {
		t.Fatalf("attach feedback: %v", err)
	}

	session, err := repo.GetBySID(ctx, sid)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if len(session.History) != len(mids) {
		t.Fatalf("expected %d turns, got %d", len(mids), len(session.History))
	}
	for i, turn := range session.History {
		if turn.MID != mids[i] {
			t.Fatalf("turn %d has mid %q, want %q: order not preserved", i, turn.MID, mids[i])
		}
		if turn.Content != fmt.Sprintf("turn %d", i) {
			t.Fatalf("turn %d content rewritten to %q", i, turn.Content)
		}
		if mids[i] == "m-2" {
			if turn.Feedback == nil {
				t.Fatal("feedback missing on the targeted turn")
			}
			if !turn.Feedback.Correct || turn.Feedback.Comment != "helpful" {
				t.Fatalf("unexpected feedback %+v", turn.Feedback)
			}
			continue
		}
		if turn.Feedback != nil {
			t.Fatalf("turn %q mutated by feedback on m-2", turn.MID)
		}
	}
}

func TestSessionRepositoryFeedbackUnknownTurn(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	pool := startPostgres(t, ctx)
	repo := repository.NewSessionRepository(pool, zap.NewNop())

	const sid = "integration-session"
	if err := repo.AppendTurn(ctx, sid, &models.Turn{MID: "m-1", Role: models.RoleUser, Content: "hi", TS: time.Now().UTC()}); err != nil {
		t.Fatalf("append turn: %v", err)
	}

	fb := &models.Feedback{Correct: false, TS: time.Now().UTC()}
	if err := repo.AttachFeedback(ctx, sid, "missing", fb); !errors.Is(err, repository.ErrTurnNotFound) {
		t.Fatalf("expected ErrTurnNotFound for unknown mid, got %v", err)
	}
	if err := repo.AttachFeedback(ctx, "no-such-session", "m-1", fb); !errors.Is(err, repository.ErrTurnNotFound) {
		t.Fatalf("expected ErrTurnNotFound for unknown sid, got %v", err)
	}

	session, err := repo.GetBySID(ctx, sid)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session.History[0].Feedback != nil {
		t.Fatal("failed attach must not touch any turn")
	}
}
