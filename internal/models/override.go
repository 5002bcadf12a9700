package models

import (
	"time"

	"github.com/google/uuid"
)

// Override is a human-curated question/answer pin. NormQuestion is the
// lookup key; a forced override pre-empts retrieval and generation
// unconditionally.
type Override struct {
	ID                uuid.UUID `db:"id"`
	Question          string    `db:"question"`
	NormQuestion      string    `db:"norm_question"`
	Answer            string    `db:"answer"`
	QuestionEmbedding []float32 `db:"question_embedding"`
	Force             bool      `db:"force"`
	Reviewer          string    `db:"reviewer"`
	SID               string    `db:"sid"`
	AssistantMID      string    `db:"assistant_mid"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}
