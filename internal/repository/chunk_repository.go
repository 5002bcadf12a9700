package repository

import (
	"context"
	"fmt"

	"github.com/asadollahi99/temple-law-chatbot/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type ChunkRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewChunkRepository(db *pgxpool.Pool, logger *zap.Logger) *ChunkRepository {
	return &ChunkRepository{
		db:     db,
		logger: logger,
	}
}

var chunkColumns = []string{"id", "url", "chunk_index", "text", "embedding", "created_at"}

// ReplaceForURL deletes every chunk of the URL and inserts the new set in
// one transaction. Chunks are never partially updated.
func (r *ChunkRepository) ReplaceForURL(ctx context.Context, url string, chunks []models.Chunk) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	delQuery := squirrel.Delete("chunks").
		Where(squirrel.Eq{"url": url}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := delQuery.ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to delete old chunks: %w", err)
	}

	for _, chunk := range chunks {
		embedding := pgtype.FlatArray[float32](chunk.Embedding)

		insQuery := squirrel.Insert("chunks").
			Columns(chunkColumns...).
			Values(chunk.ID, chunk.URL, chunk.Index, chunk.Text, embedding, chunk.CreatedAt).
			PlaceholderFormat(squirrel.Dollar)

		sql, args, err := insQuery.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", chunk.Index, err)
		}
	}

	return tx.Commit(ctx)
}

func (r *ChunkRepository) GetByURL(ctx context.Context, url string) ([]models.Chunk, error) {
	query := squirrel.Select(chunkColumns...).
		From("chunks").
		Where(squirrel.Eq{"url": url}).
		OrderBy("chunk_index ASC").
		PlaceholderFormat(squirrel.Dollar)

	return r.queryChunks(ctx, query)
}

func (r *ChunkRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := squirrel.Select(chunkColumns...).
		From("chunks").
		Where(squirrel.Eq{"id": ids}).
		PlaceholderFormat(squirrel.Dollar)

	return r.queryChunks(ctx, query)
}

// LexicalSearch returns chunks whose text contains any of the tokens,
// case-insensitively. This is the linear-scan strategy of the lexical
// prefilter.
func (r *ChunkRepository) LexicalSearch(ctx context.Context, tokens []string, limit int) ([]models.Chunk, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	or := squirrel.Or{}
	for _, token := range tokens {
		or = append(or, squirrel.ILike{"text": "%" + token + "%"})
	}

	query := squirrel.Select(chunkColumns...).
		From("chunks").
		Where(or).
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar)

	return r.queryChunks(ctx, query)
}

// SearchSubstring returns chunks containing the whole phrase. Used by the
// deep-retrieval escalation.
func (r *ChunkRepository) SearchSubstring(ctx context.Context, phrase string, limit int) ([]models.Chunk, error) {
	query := squirrel.Select(chunkColumns...).
		From("chunks").
		Where(squirrel.ILike{"text": "%" + phrase + "%"}).
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar)

	return r.queryChunks(ctx, query)
}

// SearchByURLPattern returns chunks whose page URL matches the pattern.
// Used for topic steering.
func (r *ChunkRepository) SearchByURLPattern(ctx context.Context, pattern string, limit int) ([]models.Chunk, error) {
	query := squirrel.Select(chunkColumns...).
		From("chunks").
		Where(squirrel.ILike{"url": "%" + pattern + "%"}).
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar)

	return r.queryChunks(ctx, query)
}

// Sample returns an unfiltered slice of the chunk store, the retrieval
// fallback of last resort.
func (r *ChunkRepository) Sample(ctx context.Context, limit int) ([]models.Chunk, error) {
	query := squirrel.Select(chunkColumns...).
		From("chunks").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar)

	return r.queryChunks(ctx, query)
}

func (r *ChunkRepository) queryChunks(ctx context.Context, query squirrel.SelectBuilder) ([]models.Chunk, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var chunk models.Chunk
		var embedding pgtype.FlatArray[float32]

		if err := rows.Scan(
			&chunk.ID, &chunk.URL, &chunk.Index, &chunk.Text, &embedding, &chunk.CreatedAt,
		); err != nil {
			return nil, err
		}

		chunk.Embedding = []float32(embedding)
		chunks = append(chunks, chunk)
	}

	return chunks, rows.Err()
}
