package auth

import (
	"errors"
	"sync/atomic"

	"wallet-signal/internal/domain"
)

// ErrUnknownAccount is returned for an address that is not tracked.
var ErrUnknownAccount = errors.New("unknown account")

// Store caches one bearer credential per tracked account.
// The key set is fixed at construction; each slot is replaced atomically,
// last write wins.
type Store struct {
	slots map[string]*atomic.Pointer[domain.Credential]
	order []string
}

// NewStore creates a store with an empty slot for every address.
func NewStore(addresses ...string) *Store {
	s := &Store{slots: make(map[string]*atomic.Pointer[domain.Credential], len(addresses))}
	for _, addr := range addresses {
		if _, ok := s.slots[addr]; ok {
			continue
		}
		s.slots[addr] = new(atomic.Pointer[domain.Credential])
		s.order = append(s.order, addr)
	}
	return s
}

// Get returns the cached credential, nil when none has been acquired yet.
func (s *Store) Get(address string) (*domain.Credential, error) {
	slot, ok := s.slots[address]
	if !ok {
		return nil, ErrUnknownAccount
	}
	return slot.Load(), nil
}

// Replace swaps in a new credential for address.
func (s *Store) Replace(address string, cred *domain.Credential) error {
	slot, ok := s.slots[address]
	if !ok {
		return ErrUnknownAccount
	}
	slot.Store(cred)
	return nil
}

// Addresses returns tracked addresses in registration order.
func (s *Store) Addresses() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Tokens returns address -> token for every account holding a credential.
// Two snapshots differ exactly when some credential was rotated.
func (s *Store) Tokens() map[string]string {
	out := make(map[string]string, len(s.slots))
	for addr, slot := range s.slots {
		if cred := slot.Load(); cred != nil {
			out[addr] = cred.Token
		}
	}
	return out
}

// SameTokens reports whether two Tokens snapshots are identical.
func SameTokens(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}
