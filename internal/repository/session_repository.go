package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/asadollahi99/temple-law-chatbot/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTurnNotFound    = errors.New("turn not found")
)

// SessionRepository is the session journal: an append-only per-conversation
// turn log stored as a jsonb history array keyed by sid.
type SessionRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewSessionRepository(db *pgxpool.Pool, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{
		db:     db,
		logger: logger,
	}
}

// AppendTurn appends one turn to the session history in a single atomic
// upsert, creating the session when it does not exist. Concurrent appends
// for the same sid serialize on the row.
func (r *SessionRepository) AppendTurn(ctx context.Context, sid string, turn *models.Turn) error {
	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	now := time.Now()
	query := squirrel.Insert("sessions").
		Columns("sid", "history", "created_at", "updated_at").
		Values(sid, squirrel.Expr("jsonb_build_array(?::jsonb)", string(payload)), now, now).
		Suffix("ON CONFLICT (sid) DO UPDATE SET history = sessions.history || EXCLUDED.history, updated_at = EXCLUDED.updated_at").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *SessionRepository) GetBySID(ctx context.Context, sid string) (*models.Session, error) {
	query := squirrel.Select("sid", "history", "created_at", "updated_at").
		From("sessions").
		Where(squirrel.Eq{"sid": sid}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var session models.Session
	var history []byte
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&session.SID, &history, &session.CreatedAt, &session.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(history, &session.History); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}

	return &session, nil
}

// AttachFeedback sets the feedback field of the single turn matching mid
// and leaves every other turn untouched.
func (r *SessionRepository) AttachFeedback(ctx context.Context, sid, mid string, feedback *models.Feedback) error {
	payload, err := json.Marshal(feedback)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback: %w", err)
	}

	// jsonb surgery: rebuild the array, rewriting only the matching turn.
	const sql = `
		UPDATE sessions SET history = (
			SELECT jsonb_agg(
				CASE WHEN turn->>'mid' = $2 THEN jsonb_set(turn, '{feedback}', $3::jsonb) ELSE turn END
				ORDER BY ord
			)
			FROM jsonb_array_elements(history) WITH ORDINALITY AS t(turn, ord)
		), updated_at = now()
		WHERE sid = $1
		  AND EXISTS (
			SELECT 1 FROM jsonb_array_elements(history) AS e WHERE e->>'mid' = $2
		  )`

	tag, err := r.db.Exec(ctx, sql, sid, mid, string(payload))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTurnNotFound
	}

	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, sid string) error {
	query := squirrel.Delete("sessions").
		Where(squirrel.Eq{"sid": sid}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}

	return nil
}

// List returns paginated session summaries with aggregate feedback counts.
func (r *SessionRepository) List(ctx context.Context, limit, offset int) ([]models.SessionSummary, error) {
	const sql = `
		SELECT sid, created_at, updated_at,
			jsonb_array_length(history) AS turns,
			(SELECT count(*) FROM jsonb_array_elements(history) AS e
				WHERE (e->'feedback'->>'correct')::bool) AS correct_count,
			(SELECT count(*) FROM jsonb_array_elements(history) AS e
				WHERE e->'feedback' IS NOT NULL AND NOT (e->'feedback'->>'correct')::bool) AS incorrect_count
		FROM sessions
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, sql, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []models.SessionSummary
	for rows.Next() {
		var s models.SessionSummary
		if err := rows.Scan(
			&s.SID, &s.CreatedAt, &s.UpdatedAt, &s.Turns, &s.CorrectCount, &s.IncorrectCount,
		); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

// ExportAll returns every session with full history, newest first.
func (r *SessionRepository) ExportAll(ctx context.Context) ([]models.Session, error) {
	query := squirrel.Select("sid", "history", "created_at", "updated_at").
		From("sessions").
		OrderBy("updated_at DESC").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var session models.Session
		var history []byte
		if err := rows.Scan(&session.SID, &history, &session.CreatedAt, &session.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(history, &session.History); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history for %s: %w", session.SID, err)
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}
