package memory

import (
	"context"
	"sort"
	"sync"

	"wallet-signal/internal/domain"
	"wallet-signal/internal/storage"
)

// TradeReceiptStore is an in-memory implementation of storage.TradeReceiptStore.
type TradeReceiptStore struct {
	mu   sync.RWMutex
	data []domain.TradeReceipt
}

// NewTradeReceiptStore creates a new in-memory trade receipt store.
func NewTradeReceiptStore() *TradeReceiptStore {
	return &TradeReceiptStore{}
}

var _ storage.TradeReceiptStore = (*TradeReceiptStore)(nil)

// Insert records a placed trade.
func (s *TradeReceiptStore) Insert(_ context.Context, r *domain.TradeReceipt) error {
	if r == nil || r.TokenAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = append(s.data, *r)
	return nil
}

// Exists reports whether a matching trade was placed.
func (s *TradeReceiptStore) Exists(_ context.Context, tokenAddress string, mode domain.TradeMode, side domain.TradeSide) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.data {
		if r.TokenAddress == tokenAddress && r.Mode == mode && r.Side == side {
			return true, nil
		}
	}
	return false, nil
}

// GetByToken retrieves all trades for a token, ordered by ExecutedAt ASC.
func (s *TradeReceiptStore) GetByToken(_ context.Context, tokenAddress string) ([]*domain.TradeReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeReceipt
	for _, r := range s.data {
		if r.TokenAddress == tokenAddress {
			rCopy := r
			result = append(result, &rCopy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ExecutedAt.Before(result[j].ExecutedAt)
	})
	return result, nil
}
