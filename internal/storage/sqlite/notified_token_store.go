package sqlite

import (
	"context"
	"fmt"
	"time"

	"wallet-signal/internal/domain"
	"wallet-signal/internal/storage"
)

// NotifiedTokenStore implements storage.NotifiedTokenStore using SQLite.
type NotifiedTokenStore struct {
	db *DB
}

// NewNotifiedTokenStore creates a new NotifiedTokenStore.
func NewNotifiedTokenStore(db *DB) *NotifiedTokenStore {
	return &NotifiedTokenStore{db: db}
}

var _ storage.NotifiedTokenStore = (*NotifiedTokenStore)(nil)

// Insert records a delivered notification.
func (s *NotifiedTokenStore) Insert(ctx context.Context, n *domain.NotifiedToken) error {
	if n == nil || n.TokenAddress == "" {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO token_notify (token_id, notify_time) VALUES (?, ?)",
		n.TokenAddress, toMillis(n.NotifiedAt),
	)
	observe("insert_token_notify", start, err)
	if err != nil {
		return fmt.Errorf("insert token notify: %w", err)
	}
	return nil
}

// Exists reports whether any notification was recorded for the token.
func (s *NotifiedTokenStore) Exists(ctx context.Context, tokenAddress string) (bool, error) {
	start := time.Now()
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM token_notify WHERE token_id = ?)",
		tokenAddress,
	).Scan(&exists)
	observe("exists_token_notify", start, err)
	if err != nil {
		return false, fmt.Errorf("check token notify: %w", err)
	}
	return exists, nil
}

// GetByToken retrieves all notifications for a token, ordered by NotifiedAt ASC.
func (s *NotifiedTokenStore) GetByToken(ctx context.Context, tokenAddress string) ([]*domain.NotifiedToken, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT token_id, notify_time FROM token_notify WHERE token_id = ? ORDER BY notify_time ASC, id ASC",
		tokenAddress,
	)
	if err != nil {
		return nil, fmt.Errorf("get token notify: %w", err)
	}
	defer rows.Close()

	var result []*domain.NotifiedToken
	for rows.Next() {
		var (
			n  domain.NotifiedToken
			ms int64
		)
		if err := rows.Scan(&n.TokenAddress, &ms); err != nil {
			return nil, fmt.Errorf("scan token notify: %w", err)
		}
		n.NotifiedAt = fromMillis(ms)
		result = append(result, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token notify: %w", err)
	}
	return result, nil
}
