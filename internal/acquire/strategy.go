// internal/acquire/strategy.go

// Package acquire extracts a persistent unique identifier from a board via a
// chain of independent strategies, each with its own wire protocol and
// timing assumptions. Boards arrive in heterogeneous states (blank silicon,
// vendor bootloader, custom firmware) and the technician cannot be expected
// to know which; the chain makes "read the UID" a single idempotent
// operation regardless of board state.
package acquire

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"board-service/internal/model"
)

// minUIDHexDigits is the minimum accepted identifier length: 24 hex digits,
// a 96-bit value, consistent with typical silicon UIDs.
const minUIDHexDigits = 24

// Target identifies the board a strategy probes.
type Target struct {
	Port string
	Kind model.BoardKind
}

// Strategy is one self-contained method of obtaining a UID. A failed attempt
// returns an error; it never panics and never blocks past its own timeout.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, target Target) (string, error)
}

// Chain tries strategies in fixed priority order, stopping at the first
// success. Strategies run strictly sequentially: the bootloader exchange and
// CLI probes can leave the target port-busy or mode-switched, which would
// corrupt a concurrently running alternative on the same port.
type Chain struct {
	strategies []Strategy
	logger     *zap.Logger
}

// NewChain builds a chain over the given strategies.
func NewChain(logger *zap.Logger, strategies ...Strategy) *Chain {
	return &Chain{
		strategies: strategies,
		logger:     logger.With(zap.String("component", "uid-chain")),
	}
}

// Acquire returns the first UID any strategy yields, or "" and false when
// every strategy fails. Failure of one strategy never prevents the next.
func (c *Chain) Acquire(ctx context.Context, target Target) (string, bool) {
	for _, s := range c.strategies {
		if ctx.Err() != nil {
			return "", false
		}

		uid, err := s.Attempt(ctx, target)
		if err != nil {
			c.logger.Debug("UID strategy failed",
				zap.String("strategy", s.Name()),
				zap.String("port", target.Port),
				zap.Error(err),
			)
			continue
		}
		if uid != "" {
			c.logger.Debug("UID acquired",
				zap.String("strategy", s.Name()),
				zap.String("port", target.Port),
				zap.String("uid", uid),
			)
			return uid, true
		}
	}
	return "", false
}

// NormalizeUID canonicalizes a raw identifier token: strips a 0x prefix and
// any ":" or "-" separators, uppercases, and validates that the result is at
// least 24 hex digits. Returns "" for anything shorter or non-hex.
func NormalizeUID(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.NewReplacer(":", "", "-", "").Replace(s)
	s = strings.ToUpper(s)

	if len(s) < minUIDHexDigits {
		return ""
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'A' || r > 'F') {
			return ""
		}
	}
	return s
}
