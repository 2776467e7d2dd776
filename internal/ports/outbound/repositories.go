// Package outbound defines the interfaces for outbound ports (secondary/driven adapters)
// These are the interfaces that the application uses to interact with external systems
package outbound

import (
	"context"
	"errors"
	"time"

	"github.com/alchemorsel/pantrylens/internal/domain/kitchen"
)

// ErrCacheMiss is returned by CacheRepository.Get for absent or expired keys.
var ErrCacheMiss = errors.New("cache miss")

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// SessionRepository stores the board of each browser session
type SessionRepository interface {
	// Load returns the stored board, or a fresh idle board for an unknown
	// session.
	Load(ctx context.Context, sessionID string) (*kitchen.Board, error)
	Save(ctx context.Context, board *kitchen.Board) error
	Delete(ctx context.Context, sessionID string) error
}
