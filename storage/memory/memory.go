// Package memory is an in-memory implementation of storage.ClientStore.
package memory

import (
	"sync"

	"github.com/attestlabs/attestor/types"
)

// Store is an in-memory client store. Values are copied on the way in and
// out so committed states are never observed mid-write.
type Store struct {
	mu          sync.RWMutex
	clientState *types.ClientState
	consensus   map[uint64]*types.ConsensusState
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		consensus: make(map[uint64]*types.ConsensusState),
	}
}

func (m *Store) GetClientState() (*types.ClientState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.clientState == nil {
		return nil, false
	}
	return copyClientState(m.clientState), true
}

func (m *Store) PutClientState(cs *types.ClientState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clientState = copyClientState(cs)
	return nil
}

func (m *Store) GetConsensusState(height uint64) (*types.ConsensusState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cons, ok := m.consensus[height]
	if !ok {
		return nil, false
	}
	cp := *cons
	return &cp, true
}

func (m *Store) PutConsensusState(cons *types.ConsensusState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *cons
	m.consensus[cons.Height] = &cp
	return nil
}

func (m *Store) Close() error { return nil }

func copyClientState(cs *types.ClientState) *types.ClientState {
	cp := *cs
	cp.TrustedKeys = append([]types.PublicKey(nil), cs.TrustedKeys...)
	return &cp
}
