package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/WessleyAI/condo-ledger/engine/answer"
)

// ChatClient implements answer.Completer over Ollama's /api/chat.
type ChatClient struct {
	baseURL     string
	model       string
	temperature float64
	client      *http.Client
}

var _ answer.Completer = (*ChatClient)(nil)

// NewChatClient creates a chat client for model.
func NewChatClient(baseURL, model string, temperature float64, timeout time.Duration) *ChatClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ChatClient{
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
		client:      &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

// Complete sends the system prompt and messages and returns the reply text.
func (c *ChatClient) Complete(ctx context.Context, system string, messages []answer.Message) (string, error) {
	msgs := make([]chatMessage, 0, len(messages)+1)
	if system != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: system})
	}
	for _, m := range messages {
		msgs = append(msgs, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	var result chatResponse
	req := chatRequest{
		Model:    c.model,
		Messages: msgs,
		Options:  map[string]any{"temperature": c.temperature},
	}
	if err := postJSON(ctx, c.client, c.baseURL+"/api/chat", req, &result); err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return strings.TrimSpace(result.Message.Content), nil
}
