package llm

import (
	"context"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Result struct {
	Text     string
	Duration time.Duration
}

type Request struct {
	Model    string
	Messages []Message
}

type Client interface {
	Chat(ctx context.Context, req Request) (Result, error)
}
