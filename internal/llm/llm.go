// Package llm defines the small text-generation surface the bots use.
// Providers live under providers/.
package llm

import "context"

type Message struct {
	Role    string `json:"role"` // user or assistant
	Content string `json:"content"`
}

type Request struct {
	Model       string
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

type Response struct {
	Text string
}

type Client interface {
	Chat(ctx context.Context, req Request) (Response, error)
}
