package repository

import (
	"context"
	"errors"
	"time"

	"github.com/asadollahi99/temple-law-chatbot/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type PageRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPageRepository(db *pgxpool.Pool, logger *zap.Logger) *PageRepository {
	return &PageRepository{
		db:     db,
		logger: logger,
	}
}

// GetByURL returns the stored page or nil when the URL has never been
// indexed.
func (r *PageRepository) GetByURL(ctx context.Context, url string) (*models.Page, error) {
	query := squirrel.Select("url", "title", "content_hash", "updated_at").
		From("pages").
		Where(squirrel.Eq{"url": url}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var page models.Page
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&page.URL, &page.Title, &page.ContentHash, &page.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &page, nil
}

// Upsert inserts or overwrites the page keyed by URL.
func (r *PageRepository) Upsert(ctx context.Context, page *models.Page) error {
	query := squirrel.Insert("pages").
		Columns("url", "title", "content_hash", "updated_at").
		Values(page.URL, page.Title, page.ContentHash, page.UpdatedAt).
		Suffix("ON CONFLICT (url) DO UPDATE SET title = EXCLUDED.title, content_hash = EXCLUDED.content_hash, updated_at = EXCLUDED.updated_at").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// Touch bumps updated_at without changing content. Used when a re-index
// finds the content hash unchanged.
func (r *PageRepository) Touch(ctx context.Context, url string, at time.Time) error {
	query := squirrel.Update("pages").
		Set("updated_at", at).
		Where(squirrel.Eq{"url": url}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *PageRepository) Count(ctx context.Context) (int, error) {
	query := squirrel.Select("count(*)").From("pages").PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}
