package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions tunes a single chat call.
type ChatOptions struct {
	// Format "json" asks the model to emit a JSON object.
	Format      string
	Temperature float64
}

// ChatClient calls /api/chat without streaming.
type ChatClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewChatClient creates an Ollama chat client.
func NewChatClient(baseURL, model string) *ChatClient {
	return &ChatClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{},
	}
}

// Model returns the configured model name.
func (c *ChatClient) Model() string { return c.model }

type chatReq struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResp struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

// Chat sends messages and returns the assistant reply.
func (c *ChatClient) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	req := chatReq{
		Model:    c.model,
		Messages: messages,
		Format:   opts.Format,
		Options:  map[string]any{"temperature": opts.Temperature},
	}
	var resp chatResp
	if err := postJSON(ctx, c.client, c.baseURL+"/api/chat", req, &resp); err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return resp.Message.Content, nil
}
