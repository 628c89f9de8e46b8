package models

// ChatRequest is the body of POST /chat/query.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	IsStream  bool   `json:"is_stream"`
}

// ChatResponse is the non-streaming answer payload.
type ChatResponse struct {
	SessionID       string    `json:"session_id"`
	Response        string    `json:"response"`
	Context         []string  `json:"context"`
	SourceDocuments []Passage `json:"source_documents"`
}

// MessageResponse wraps a plain confirmation message.
type MessageResponse struct {
	Message string `json:"message"`
}

// IngestResponse reports the outcome of an indexing run.
type IngestResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	ChunkCount int    `json:"chunk_count"`
}
