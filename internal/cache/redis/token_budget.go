package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pricewatch/pricewatch/internal/domain"
)

//go:embed scripts/token_reserve.lua
var tokenReserveLua string

// TokenBudget implements domain.TokenBudget as a single Redis counter keyed
// by UTC calendar day, so the ceiling resets naturally at midnight UTC
// without a scheduled job (§5).
type TokenBudget struct {
	rdb          *redis.Client
	reserveSc    *redis.Script
	dailyLimit   int
}

// NewTokenBudget creates a TokenBudget backed by the given Client, capping
// daily spend at dailyLimit tokens.
func NewTokenBudget(c *Client, dailyLimit int) *TokenBudget {
	return &TokenBudget{
		rdb:        c.Underlying(),
		reserveSc:  redis.NewScript(tokenReserveLua),
		dailyLimit: dailyLimit,
	}
}

func tokenBudgetKey(day string) string {
	return "llm:tokens:" + day
}

func today() string {
	return time.Now().UTC().Format("2006-01-02")
}

// Reserve debits n tokens from today's remaining budget. It returns
// domain.ErrBudgetExceeded if n would exceed what remains today.
func (b *TokenBudget) Reserve(ctx context.Context, n int) error {
	key := tokenBudgetKey(today())

	result, err := b.reserveSc.Run(ctx, b.rdb, []string{key}, n, b.dailyLimit, 172800).Int64()
	if err != nil {
		return fmt.Errorf("redis: reserve tokens: %w", err)
	}
	if result == 0 {
		return domain.ErrBudgetExceeded
	}
	return nil
}

// Remaining returns the number of tokens left in today's budget.
func (b *TokenBudget) Remaining(ctx context.Context) (int, error) {
	key := tokenBudgetKey(today())
	spent, err := b.rdb.Get(ctx, key).Int()
	if err != nil {
		if err == redis.Nil {
			return b.dailyLimit, nil
		}
		return 0, fmt.Errorf("redis: get token spend: %w", err)
	}
	remaining := b.dailyLimit - spent
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Compile-time interface check.
var _ domain.TokenBudget = (*TokenBudget)(nil)
