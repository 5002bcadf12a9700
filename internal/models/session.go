package models

import "time"

type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
)

// ReviewedAnswerSource is the sentinel source attached to answers served
// verbatim from a forced override.
const ReviewedAnswerSource = "Reviewed Answer"

// Feedback is attached to a turn after the fact by its mid.
type Feedback struct {
	Correct bool      `json:"correct"`
	Comment string    `json:"comment,omitempty"`
	TS      time.Time `json:"ts"`
}

// TurnMeta carries request metadata and override flags for review tooling.
type TurnMeta struct {
	IP                string `json:"ip,omitempty"`
	UserAgent         string `json:"user_agent,omitempty"`
	Overridden        bool   `json:"overridden,omitempty"`
	OverrideCandidate string `json:"override_candidate,omitempty"`
}

// Turn is one message of a conversation. Immutable once appended, except
// for attaching feedback.
type Turn struct {
	MID      string    `json:"mid"`
	Role     TurnRole  `json:"role"`
	Content  string    `json:"content"`
	Sources  []string  `json:"sources,omitempty"`
	TS       time.Time `json:"ts"`
	Feedback *Feedback `json:"feedback,omitempty"`
	Meta     *TurnMeta `json:"meta,omitempty"`
}

// Session is a conversation: an append-only, chronologically ordered
// history of turns keyed by sid.
type Session struct {
	SID       string    `db:"sid"`
	History   []Turn    `db:"history"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// SessionSummary is the admin list view: session identity plus aggregate
// feedback counts over its turns.
type SessionSummary struct {
	SID            string    `json:"sid"`
	Turns          int       `json:"turns"`
	CorrectCount   int       `json:"correct_count"`
	IncorrectCount int       `json:"incorrect_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
