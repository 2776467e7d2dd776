// Package session stores the board of each browser session in a cache
// repository.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alchemorsel/pantrylens/internal/domain/kitchen"
	"github.com/alchemorsel/pantrylens/internal/ports/outbound"
	"go.uber.org/zap"
)

const keyPrefix = "session:"

// Store implements outbound.SessionRepository. Every save renews the TTL so
// a session expires after TTL of inactivity.
type Store struct {
	cache  outbound.CacheRepository
	ttl    time.Duration
	logger *zap.Logger
}

var _ outbound.SessionRepository = (*Store)(nil)

// NewStore creates a session store
func NewStore(cache outbound.CacheRepository, ttl time.Duration, logger *zap.Logger) *Store {
	return &Store{cache: cache, ttl: ttl, logger: logger.Named("session-store")}
}

// Load returns the stored board or a fresh one
func (s *Store) Load(ctx context.Context, sessionID string) (*kitchen.Board, error) {
	raw, err := s.cache.Get(ctx, key(sessionID))
	if errors.Is(err, outbound.ErrCacheMiss) {
		return kitchen.NewBoard(sessionID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	var board kitchen.Board
	if err := json.Unmarshal(raw, &board); err != nil {
		// A board written by an incompatible build is dropped.
		s.logger.Warn("Discarding unreadable session",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return kitchen.NewBoard(sessionID), nil
	}
	board.SessionID = sessionID
	return &board, nil
}

// Save stores the board and renews its TTL
func (s *Store) Save(ctx context.Context, board *kitchen.Board) error {
	raw, err := json.Marshal(board)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", board.SessionID, err)
	}
	if err := s.cache.Set(ctx, key(board.SessionID), raw, s.ttl); err != nil {
		return fmt.Errorf("save session %s: %w", board.SessionID, err)
	}
	return nil
}

// Delete removes a session
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.cache.Delete(ctx, key(sessionID)); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

func key(sessionID string) string {
	return keyPrefix + sessionID
}
