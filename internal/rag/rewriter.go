package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"scholarbot/internal/models"
)

// Rewriter turns a follow-up question into a standalone search query
// by folding in conversation history.
type Rewriter struct {
	chatModel model.BaseChatModel
}

func NewRewriter(chatModel model.BaseChatModel) *Rewriter {
	return &Rewriter{chatModel: chatModel}
}

// Rewrite returns the retrieval query for the utterance. With no prior
// turns the utterance passes through untouched and no model call is
// made. An empty completion falls back to the raw utterance.
func (r *Rewriter) Rewrite(ctx context.Context, utterance string, history []models.Turn) (string, error) {
	if len(history) == 0 {
		return utterance, nil
	}

	messages := make([]*schema.Message, 0, len(history)*2+2)
	messages = append(messages, &schema.Message{Role: schema.System, Content: historyPrompt})
	messages = append(messages, historyMessages(history)...)
	messages = append(messages, &schema.Message{Role: schema.User, Content: utterance})

	resp, err := r.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("rewrite query: %w", err)
	}
	rewritten := strings.TrimSpace(resp.Content)
	if rewritten == "" {
		return utterance, nil
	}
	return rewritten, nil
}

// historyMessages renders turns as alternating user/assistant messages.
func historyMessages(history []models.Turn) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history)*2)
	for _, turn := range history {
		messages = append(messages,
			&schema.Message{Role: schema.User, Content: turn.UserText},
			&schema.Message{Role: schema.Assistant, Content: turn.AnswerText},
		)
	}
	return messages
}
