// Package ports defines shared interfaces for the ratelimit module.
// Interfaces are placed here when consumed by multiple services to avoid duplication.
package ports

import (
	"context"
	"time"

	"diyetlenio/internal/ratelimit/models"
)

//go:generate mockgen -source=ports.go -destination=../service/mocks/mocks.go -package=mocks

// CounterStore holds fixed-window counters in a TTL-capable shared store.
type CounterStore interface {
	// Admit atomically admits one request against the window at key.
	// A missing or expired window is created with the given TTL and a count of
	// one. When the window already holds limit requests the count is left
	// untouched and Admitted is false. Check and increment are one operation:
	// no two callers can both observe count < limit for the last slot.
	Admit(ctx context.Context, key string, limit int, window time.Duration) (models.WindowState, error)

	// Peek returns the window at key without modifying it.
	// A missing window reports a zero count and TTL.
	Peek(ctx context.Context, key string) (models.WindowState, error)
}
