package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"scholarbot/internal/models"
)

// Composer assembles the grounded prompt and runs the generative model,
// either as one completion or as a fragment stream.
type Composer struct {
	chatModel model.BaseChatModel
}

func NewComposer(chatModel model.BaseChatModel) *Composer {
	return &Composer{chatModel: chatModel}
}

// Compose produces the full answer in one model call.
func (c *Composer) Compose(ctx context.Context, query string, passages []models.Passage, history []models.Turn) (string, error) {
	resp, err := c.chatModel.Generate(ctx, c.promptMessages(query, passages, history))
	if err != nil {
		return "", fmt.Errorf("compose answer: %w", err)
	}
	return resp.Content, nil
}

// ComposeStream produces the answer as a pull-based fragment stream.
// The reader terminates with io.EOF; any other Recv error means the
// stream broke mid-way and already-yielded fragments stand.
func (c *Composer) ComposeStream(ctx context.Context, query string, passages []models.Passage, history []models.Turn) (*schema.StreamReader[string], error) {
	streamReader, err := c.chatModel.Stream(ctx, c.promptMessages(query, passages, history))
	if err != nil {
		return nil, fmt.Errorf("compose stream: %w", err)
	}
	return schema.StreamReaderWithConvert(streamReader, func(msg *schema.Message) (string, error) {
		if msg.Content == "" {
			return "", schema.ErrNoValue
		}
		return msg.Content, nil
	}), nil
}

// promptMessages builds: system instruction, windowed history, then one
// user turn carrying the concatenated passages and the query.
func (c *Composer) promptMessages(query string, passages []models.Passage, history []models.Turn) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history)*2+2)
	messages = append(messages, &schema.Message{Role: schema.System, Content: systemPrompt})
	messages = append(messages, historyMessages(history)...)
	messages = append(messages, &schema.Message{
		Role:    schema.User,
		Content: fmt.Sprintf("Context: %s\nQuery: %s", joinPassages(passages), query),
	})
	return messages
}

func joinPassages(passages []models.Passage) string {
	parts := make([]string, 0, len(passages))
	for _, p := range passages {
		parts = append(parts, p.PageContent)
	}
	return strings.Join(parts, "\n\n")
}
