package memory

import (
	"context"
	"sort"
	"sync"

	"wallet-signal/internal/domain"
	"wallet-signal/internal/storage"
)

// SignalStore is an in-memory implementation of storage.SignalStore.
type SignalStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SignalRecord // keyed by signal_id
}

// NewSignalStore creates a new in-memory signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{
		data: make(map[string]*domain.SignalRecord),
	}
}

var _ storage.SignalStore = (*SignalStore)(nil)

// Insert adds a scored signal. Returns ErrDuplicateKey if signal_id exists.
func (s *SignalStore) Insert(_ context.Context, r *domain.SignalRecord) error {
	if r == nil || r.SignalID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.SignalID]; exists {
		return storage.ErrDuplicateKey
	}

	rCopy := *r
	s.data[r.SignalID] = &rCopy
	return nil
}

// GetByID retrieves a signal by its ID. Returns ErrNotFound if not exists.
func (s *SignalStore) GetByID(_ context.Context, signalID string) (*domain.SignalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[signalID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	rCopy := *r
	return &rCopy, nil
}

// GetByToken retrieves all signals for a token, ordered by event_time ASC.
func (s *SignalStore) GetByToken(_ context.Context, tokenAddress string) ([]*domain.SignalRecord, error) {
	return s.filter(func(r *domain.SignalRecord) bool {
		return r.TokenAddress == tokenAddress
	}), nil
}

// GetByTimeRange retrieves signals with event_time within [start, end] (inclusive).
func (s *SignalStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.SignalRecord, error) {
	return s.filter(func(r *domain.SignalRecord) bool {
		return r.EventTime >= start && r.EventTime <= end
	}), nil
}

func (s *SignalStore) filter(keep func(*domain.SignalRecord) bool) []*domain.SignalRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SignalRecord
	for _, r := range s.data {
		if keep(r) {
			rCopy := *r
			result = append(result, &rCopy)
		}
	}

	// Sort by event_time ASC, signal_id ASC for determinism
	sort.Slice(result, func(i, j int) bool {
		if result[i].EventTime != result[j].EventTime {
			return result[i].EventTime < result[j].EventTime
		}
		return result[i].SignalID < result[j].SignalID
	})
	return result
}
