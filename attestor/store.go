package attestor

import (
	"sync"

	"github.com/attestlabs/attestor/types"
)

// DefaultStoreCapacity bounds retained attestations when the config does not
// set one.
const DefaultStoreCapacity = 512

type storeEntry struct {
	height      uint64
	attestation *types.SignedAttestation
}

// Store is a bounded, height-ordered buffer of this node's signed
// attestations. When full, pushing evicts the oldest entry. The attestor
// only ever attests non-decreasing heights, so insertion order is height
// order.
type Store struct {
	mu       sync.RWMutex
	entries  []storeEntry
	start    int
	count    int
	capacity int
}

// NewStore creates a store retaining at most capacity attestations.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultStoreCapacity
	}
	return &Store{
		entries:  make([]storeEntry, capacity),
		capacity: capacity,
	}
}

// Push records an attestation for the given height, evicting the oldest
// entry if the store is full.
func (s *Store) Push(height uint64, att *types.SignedAttestation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := (s.start + s.count) % s.capacity
	s.entries[idx] = storeEntry{height: height, attestation: att}

	if s.count < s.capacity {
		s.count++
	} else {
		s.start = (s.start + 1) % s.capacity
	}
}

// RangeFrom returns all stored attestations with height >= minHeight, in
// ascending height order. The returned slice is a snapshot.
func (s *Store) RangeFrom(minHeight uint64) []*types.SignedAttestation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.SignedAttestation, 0, s.count)
	for i := 0; i < s.count; i++ {
		entry := s.entries[(s.start+i)%s.capacity]
		if entry.height >= minHeight {
			out = append(out, entry.attestation)
		}
	}
	return out
}

// Latest returns the newest stored attestation, or nil if the store is
// empty.
func (s *Store) Latest() *types.SignedAttestation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.count == 0 {
		return nil
	}
	return s.entries[(s.start+s.count-1)%s.capacity].attestation
}

// Len returns the number of stored attestations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}
