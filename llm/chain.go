package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Named pairs a provider tag with its client so replies can record
// which provider produced them.
type Named struct {
	Name   string
	Client Client
}

// Chain tries providers in order and returns the first non-empty answer.
// A provider that errors or returns an empty payload is skipped; the chain
// fails only when every attempt is exhausted.
type Chain struct {
	attempts []Named
	logger   *slog.Logger
}

func NewChain(logger *slog.Logger, attempts ...Named) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{attempts: attempts, logger: logger}
}

func (c *Chain) Chat(ctx context.Context, req Request) (Result, string, error) {
	if c == nil || len(c.attempts) == 0 {
		return Result{}, "", fmt.Errorf("llm chain: no providers configured")
	}
	var lastErr error
	for _, a := range c.attempts {
		res, err := a.Client.Chat(ctx, req)
		if err != nil {
			c.logger.Warn("llm_provider_error", "provider", a.Name, "error", err.Error())
			lastErr = err
			continue
		}
		if strings.TrimSpace(res.Text) == "" {
			c.logger.Warn("llm_provider_empty", "provider", a.Name)
			lastErr = fmt.Errorf("%s: empty completion", a.Name)
			continue
		}
		return res, a.Name, nil
	}
	return Result{}, "", fmt.Errorf("llm chain: all providers failed: %w", lastErr)
}
