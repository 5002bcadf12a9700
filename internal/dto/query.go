package dto

type QueryRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

type QueryResponse struct {
	SessionID string   `json:"session_id"`
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources"`
	TurnID    string   `json:"turn_id"`
}

type FeedbackRequest struct {
	SessionID string `json:"session_id"`
	TurnID    string `json:"turn_id"`
	Correct   bool   `json:"correct"`
	Comment   string `json:"comment,omitempty"`
}
