package store

import (
	"murmur/internal/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Option mutates Store during Open
type Option func(*Store) error

// WithLogger sets the logger used by subclients
func WithLogger(log logger.Logger) Option {
	return func(s *Store) error {
		s.Log = log
		return nil
	}
}

// WithPoolConfig lets the caller tweak the pgx pool before it connects
func WithPoolConfig(fn func(*pgxpool.Config)) Option {
	return func(s *Store) error {
		s.poolMut = fn
		return nil
	}
}
