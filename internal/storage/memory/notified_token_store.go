package memory

import (
	"context"
	"sort"
	"sync"

	"wallet-signal/internal/domain"
	"wallet-signal/internal/storage"
)

// NotifiedTokenStore is an in-memory implementation of storage.NotifiedTokenStore.
type NotifiedTokenStore struct {
	mu   sync.RWMutex
	data map[string][]domain.NotifiedToken // keyed by token address
}

// NewNotifiedTokenStore creates a new in-memory notified token store.
func NewNotifiedTokenStore() *NotifiedTokenStore {
	return &NotifiedTokenStore{
		data: make(map[string][]domain.NotifiedToken),
	}
}

var _ storage.NotifiedTokenStore = (*NotifiedTokenStore)(nil)

// Insert records a delivered notification.
func (s *NotifiedTokenStore) Insert(_ context.Context, n *domain.NotifiedToken) error {
	if n == nil || n.TokenAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[n.TokenAddress] = append(s.data[n.TokenAddress], *n)
	return nil
}

// Exists reports whether any notification was recorded for the token.
func (s *NotifiedTokenStore) Exists(_ context.Context, tokenAddress string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data[tokenAddress]) > 0, nil
}

// GetByToken retrieves all notifications for a token, ordered by NotifiedAt ASC.
func (s *NotifiedTokenStore) GetByToken(_ context.Context, tokenAddress string) ([]*domain.NotifiedToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.NotifiedToken, 0, len(s.data[tokenAddress]))
	for _, n := range s.data[tokenAddress] {
		nCopy := n
		result = append(result, &nCopy)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].NotifiedAt.Before(result[j].NotifiedAt)
	})
	return result, nil
}
