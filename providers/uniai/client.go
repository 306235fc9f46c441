// Package uniai adapts the uniai multi-provider chat library to the
// llm.Client interface.
package uniai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ikhorlabs/chanbot/internal/llm"
	uniaiapi "github.com/quailyquaily/uniai"
)

const (
	DefaultProvider    = "gemini"
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 600
)

// Config selects the upstream provider. Endpoint is optional; empty means
// the provider's default endpoint.
type Config struct {
	Provider       string
	Endpoint       string
	APIKey         string
	RequestTimeout time.Duration
}

type Client struct {
	ai *uniaiapi.Client
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing llm api key")
	}
	provider := strings.TrimSpace(cfg.Provider)
	if provider == "" {
		provider = DefaultProvider
	}
	ai, err := uniaiapi.NewClient(uniaiapi.ClientConfig{
		Provider: provider,
		Endpoint: strings.TrimSpace(cfg.Endpoint),
		APIKey:   strings.TrimSpace(cfg.APIKey),
		Timeout:  cfg.RequestTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("uniai client: %w", err)
	}
	return &Client{ai: ai}, nil
}

func (c *Client) Chat(ctx context.Context, req llm.Request) (llm.Response, error) {
	if strings.TrimSpace(req.Model) == "" {
		return llm.Response{}, fmt.Errorf("model is required")
	}
	if len(req.Messages) == 0 {
		return llm.Response{}, fmt.Errorf("at least one message is required")
	}
	res, err := c.ai.Chat(ctx, buildChatOptions(req)...)
	if err != nil {
		return llm.Response{}, err
	}
	return llm.Response{Text: strings.TrimSpace(res.Text)}, nil
}

// buildChatOptions maps the request onto uniai chat options. WithMessages
// replaces any previously set messages, so the request's history always
// wins over options applied earlier.
func buildChatOptions(req llm.Request) []uniaiapi.ChatOption {
	msgs := make([]uniaiapi.Message, 0, len(req.Messages)+1)
	if strings.TrimSpace(req.System) != "" {
		msgs = append(msgs, uniaiapi.System(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "assistant":
			msgs = append(msgs, uniaiapi.Assistant(m.Content))
		default:
			msgs = append(msgs, uniaiapi.User(m.Content))
		}
	}

	temperature := req.Temperature
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return []uniaiapi.ChatOption{
		uniaiapi.WithModel(req.Model),
		uniaiapi.WithMessages(msgs...),
		uniaiapi.WithTemperature(temperature),
		uniaiapi.WithMaxTokens(maxTokens),
	}
}
