package models

import (
	"time"

	"github.com/google/uuid"
)

// Page is one crawled URL of the site. The content hash is a digest of the
// extracted text and drives change detection during re-indexing.
type Page struct {
	URL         string    `db:"url"`
	Title       string    `db:"title"`
	ContentHash string    `db:"content_hash"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Chunk is an overlapping window of a page's extracted text, individually
// embedded. Chunks for a URL are replaced wholesale whenever the page's
// content hash changes.
type Chunk struct {
	ID        uuid.UUID `db:"id"`
	URL       string    `db:"url"`
	Index     int       `db:"chunk_index"`
	Text      string    `db:"text"`
	Embedding []float32 `db:"embedding"`
	CreatedAt time.Time `db:"created_at"`
}
