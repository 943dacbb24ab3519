package storage

import (
	"context"

	"github.com/testforge/cardforge/internal/resilience"
)

// GuardedMirror stops calling a failing mirror until its breaker cools down
type GuardedMirror struct {
	next    Mirror
	breaker *resilience.Breaker
}

// NewGuardedMirror wraps next with breaker
func NewGuardedMirror(next Mirror, breaker *resilience.Breaker) *GuardedMirror {
	return &GuardedMirror{next: next, breaker: breaker}
}

// Put implements Mirror
func (g *GuardedMirror) Put(ctx context.Context, key string, data []byte, contentType string) error {
	return g.breaker.Do(ctx, func(ctx context.Context) error {
		return g.next.Put(ctx, key, data, contentType)
	})
}
