package dto

type LoginRequest struct {
	Token    string `json:"token"`
	Reviewer string `json:"reviewer,omitempty"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type OverrideRequest struct {
	Question     string `json:"question"`
	Answer       string `json:"answer"`
	Force        bool   `json:"force"`
	SessionID    string `json:"session_id,omitempty"`
	AssistantMID string `json:"assistant_mid,omitempty"`
}

type OverrideResponse struct {
	ID           string `json:"id"`
	Question     string `json:"question"`
	NormQuestion string `json:"norm_question"`
	Answer       string `json:"answer"`
	Force        bool   `json:"force"`
	Reviewer     string `json:"reviewer"`
	Embedded     bool   `json:"embedded"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type IndexRequest struct {
	SitemapURL string `json:"sitemap_url,omitempty"`
	MaxURLs    int    `json:"max_urls,omitempty"`
}

type CorpusStatsResponse struct {
	Pages int `json:"pages"`
}

type ChunkResponse struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Index     int    `json:"index"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}
