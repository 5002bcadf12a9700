package repository

import (
	"context"
	"errors"
	"time"

	"github.com/asadollahi99/temple-law-chatbot/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var ErrOverrideNotFound = errors.New("override not found")

type OverrideRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewOverrideRepository(db *pgxpool.Pool, logger *zap.Logger) *OverrideRepository {
	return &OverrideRepository{
		db:     db,
		logger: logger,
	}
}

var overrideColumns = []string{
	"id", "question", "norm_question", "answer",
	"COALESCE(question_embedding, '{}')", "force", "reviewer", "sid", "assistant_mid",
	"created_at", "updated_at",
}

// Upsert creates or replaces the override keyed by its normalized question.
func (r *OverrideRepository) Upsert(ctx context.Context, override *models.Override) error {
	var embedding interface{}
	if len(override.QuestionEmbedding) > 0 {
		embedding = pgtype.FlatArray[float32](override.QuestionEmbedding)
	}

	now := time.Now()
	query := squirrel.Insert("faq_overrides").
		Columns("id", "question", "norm_question", "answer", "question_embedding",
			"force", "reviewer", "sid", "assistant_mid", "created_at", "updated_at").
		Values(override.ID, override.Question, override.NormQuestion, override.Answer, embedding,
			override.Force, override.Reviewer, override.SID, override.AssistantMID, now, now).
		Suffix(`ON CONFLICT (norm_question) DO UPDATE SET
			question = EXCLUDED.question,
			answer = EXCLUDED.answer,
			question_embedding = EXCLUDED.question_embedding,
			force = EXCLUDED.force,
			reviewer = EXCLUDED.reviewer,
			sid = EXCLUDED.sid,
			assistant_mid = EXCLUDED.assistant_mid,
			updated_at = EXCLUDED.updated_at`).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// GetExact matches the normalized query against norm_question, falling
// back to a case-insensitive whole-string match on the raw question.
func (r *OverrideRepository) GetExact(ctx context.Context, normQuestion string) (*models.Override, error) {
	override, err := r.getOne(ctx, squirrel.Eq{"norm_question": normQuestion})
	if err == nil || !errors.Is(err, ErrOverrideNotFound) {
		return override, err
	}
	return r.getOne(ctx, squirrel.Expr("lower(trim(question)) = ?", normQuestion))
}

func (r *OverrideRepository) getOne(ctx context.Context, cond interface{}) (*models.Override, error) {
	query := squirrel.Select(overrideColumns...).
		From("faq_overrides").
		Where(cond).
		Limit(1).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	override, err := scanOverride(r.db.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOverrideNotFound
	}
	return override, err
}

// ListEmbedded returns every override carrying a question embedding, the
// candidate set for semantic matching.
func (r *OverrideRepository) ListEmbedded(ctx context.Context) ([]models.Override, error) {
	query := squirrel.Select(overrideColumns...).
		From("faq_overrides").
		Where("question_embedding IS NOT NULL").
		PlaceholderFormat(squirrel.Dollar)

	return r.queryOverrides(ctx, query)
}

func (r *OverrideRepository) List(ctx context.Context, limit, offset int) ([]models.Override, error) {
	query := squirrel.Select(overrideColumns...).
		From("faq_overrides").
		OrderBy("updated_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		PlaceholderFormat(squirrel.Dollar)

	return r.queryOverrides(ctx, query)
}

func (r *OverrideRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := squirrel.Delete("faq_overrides").
		Where(squirrel.Eq{"id": id}).
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
		return ErrOverrideNotFound
	}

	return nil
}

func (r *OverrideRepository) queryOverrides(ctx context.Context, query squirrel.SelectBuilder) ([]models.Override, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overrides []models.Override
	for rows.Next() {
		override, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, *override)
	}

	return overrides, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOverride(row rowScanner) (*models.Override, error) {
	var override models.Override
	var embedding pgtype.FlatArray[float32]

	err := row.Scan(
		&override.ID, &override.Question, &override.NormQuestion, &override.Answer,
		&embedding, &override.Force, &override.Reviewer, &override.SID, &override.AssistantMID,
		&override.CreatedAt, &override.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	override.QuestionEmbedding = []float32(embedding)
	return &override, nil
}
