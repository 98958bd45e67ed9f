package session

import (
	"context"
	"strings"
	"time"
)

// Store persists spelling sessions. Implementations enforce optimistic
// concurrency: Save succeeds only when the session's Version matches the
// stored one, and bumps it on success.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	ListByStudent(ctx context.Context, studentName string) ([]*Session, error)
	DeleteExpired(ctx context.Context, olderThan time.Time) (int, error)
	Close() error
}

// NewStore creates a postgres-backed store when configured, otherwise
// in-memory.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewInMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}
