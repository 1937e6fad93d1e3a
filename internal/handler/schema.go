package handler

// Request/response shapes of the API boundary.

type chatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

type chatResponse struct {
	Content   string `json:"content"`
	UserID    string `json:"user_id"`
	MessageID string `json:"message_id"`
}

type searchRequest struct {
	Query string `json:"query"`
	Limit *int   `json:"limit"`
}

type searchResult struct {
	NodeID   string            `json:"node_id"`
	Text     string            `json:"text"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata"`
}

type searchResponse struct {
	Results      []searchResult `json:"results"`
	Query        string         `json:"query"`
	TotalResults int            `json:"total_results"`
}

// streamErrorFrame replaces further content frames when a stream fails.
type streamErrorFrame struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}
