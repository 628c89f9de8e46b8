package models

import "time"

// Turn captures one completed exchange in a conversation.
type Turn struct {
	UserText   string    `json:"user_text"`
	AnswerText string    `json:"answer_text"`
	Passages   []Passage `json:"passages,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Passage is a retrieved unit of supporting text. Read-only once produced.
type Passage struct {
	PageContent string         `json:"page_content"`
	Metadata    map[string]any `json:"metadata"`
	Score       float64        `json:"-"`
}
