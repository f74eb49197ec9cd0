package postgres

import (
	"context"
	"fmt"
	"time"

	"wallet-signal/internal/domain"
	"wallet-signal/internal/storage"
)

// NotifiedTokenStore implements storage.NotifiedTokenStore using PostgreSQL.
type NotifiedTokenStore struct {
	pool *Pool
}

// NewNotifiedTokenStore creates a new NotifiedTokenStore.
func NewNotifiedTokenStore(pool *Pool) *NotifiedTokenStore {
	return &NotifiedTokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.NotifiedTokenStore = (*NotifiedTokenStore)(nil)

// Insert records a delivered notification.
func (s *NotifiedTokenStore) Insert(ctx context.Context, n *domain.NotifiedToken) error {
	if n == nil || n.TokenAddress == "" {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO token_notify (token_id, notify_time) VALUES ($1, $2)`,
		n.TokenAddress, n.NotifiedAt,
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
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM token_notify WHERE token_id = $1)`,
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
	rows, err := s.pool.Query(ctx, `
		SELECT token_id, notify_time
		FROM token_notify
		WHERE token_id = $1
		ORDER BY notify_time ASC, id ASC
	`, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("get token notify: %w", err)
	}
	defer rows.Close()

	var result []*domain.NotifiedToken
	for rows.Next() {
		var n domain.NotifiedToken
		if err := rows.Scan(&n.TokenAddress, &n.NotifiedAt); err != nil {
			return nil, fmt.Errorf("scan token notify: %w", err)
		}
		result = append(result, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token notify: %w", err)
	}
	return result, nil
}
