// Package llm implements the LLM extraction channel (§4.7 waterfall step 4,
// §4.15 selector regeneration): a thin wrapper over the Anthropic Messages
// API, gated by a daily token budget and a per-minute call limiter.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/pricewatch/pricewatch/internal/domain"
)

const (
	defaultModel = anthropic.ModelClaude3_5HaikuLatest

	// rateLimitKey and callsPerMinute bound the sliding window shared by
	// every LLM caller in the process (§5).
	rateLimitKey   = "llm:calls"
	callsPerMinute = 30
)

// Config holds the client's tunables, sourced from config.LLMConfig.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int64
	RequestTimeout time.Duration
}

// Client wraps the Anthropic SDK behind the strategies.LLMClient and
// healing.Completer contracts, charging every call against a
// shared domain.TokenBudget before it is issued.
type Client struct {
	sdk    anthropic.Client
	model  anthropic.Model
	maxTok int64
	budget domain.TokenBudget
	limit  domain.RateLimiter
	timeout time.Duration
}

// New constructs a Client. budget and limit may be nil in tests, in which
// case calls are never throttled.
func New(cfg Config, budget domain.TokenBudget, limiter domain.RateLimiter) *Client {
	model := anthropic.Model(cfg.Model)
	if cfg.Model == "" {
		model = defaultModel
	}
	maxTok := cfg.MaxTokens
	if maxTok <= 0 {
		maxTok = 1024
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		sdk:     anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:   model,
		maxTok:  maxTok,
		budget:  budget,
		limit:   limiter,
		timeout: timeout,
	}
}

// estimatedCost is a conservative characters-per-token estimate used to
// reserve budget before the call is made.
func estimatedCost(prompt string, maxTokens int64) int64 {
	return int64(len(prompt)/4) + maxTokens
}

// Complete satisfies strategies.LLMClient: send prompt as a single user
// message, return the concatenated text blocks of the response.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.limit != nil {
		if err := c.limit.Acquire(ctx, rateLimitKey, callsPerMinute, time.Minute); err != nil {
			return "", domain.WrapScrapeError(domain.ErrKindLLMRateLimit, err)
		}
	}

	reserved := estimatedCost(prompt, c.maxTok)
	if c.budget != nil {
		if err := c.budget.Reserve(ctx, int(reserved)); err != nil {
			if err == domain.ErrBudgetExceeded {
				return "", domain.NewScrapeError(domain.ErrKindTokenLimit, "daily token budget exhausted")
			}
			return "", fmt.Errorf("llm: reserve budget: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg, err := c.sdk.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTok,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", domain.WrapScrapeError(domain.ErrKindNetwork, err)
	}

	var out string
	for _, block := range msg.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out, nil
}
