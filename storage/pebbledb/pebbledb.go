// Package pebbledb is a persistent implementation of storage.ClientStore
// backed by a pebble key-value store.
package pebbledb

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/attestlabs/attestor/types"
)

var (
	clientStateKey      = []byte("client_state")
	consensusStatePfx   = []byte("consensus/")
	consensusStateKeyLn = len(consensusStatePfx) + 8
)

// Store persists one client's state in a pebble database.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) the database at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble db: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) GetClientState() (*types.ClientState, bool) {
	data, ok := s.get(clientStateKey)
	if !ok {
		return nil, false
	}
	var cs types.ClientState
	if err := cs.UnmarshalSSZ(data); err != nil {
		return nil, false
	}
	return &cs, true
}

func (s *Store) PutClientState(cs *types.ClientState) error {
	data, err := cs.MarshalSSZ()
	if err != nil {
		return fmt.Errorf("marshal client state: %w", err)
	}
	if err := s.db.Set(clientStateKey, data, pebble.Sync); err != nil {
		return fmt.Errorf("put client state: %w", err)
	}
	return nil
}

func (s *Store) GetConsensusState(height uint64) (*types.ConsensusState, bool) {
	data, ok := s.get(consensusStateKey(height))
	if !ok {
		return nil, false
	}
	var cons types.ConsensusState
	if err := cons.UnmarshalSSZ(data); err != nil {
		return nil, false
	}
	return &cons, true
}

func (s *Store) PutConsensusState(cons *types.ConsensusState) error {
	data, err := cons.MarshalSSZ()
	if err != nil {
		return fmt.Errorf("marshal consensus state: %w", err)
	}
	if err := s.db.Set(consensusStateKey(cons.Height), data, pebble.Sync); err != nil {
		return fmt.Errorf("put consensus state: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(key []byte) ([]byte, bool) {
	val, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false
	}
	if err != nil {
		return nil, false
	}
	data := append([]byte(nil), val...)
	_ = closer.Close()
	return data, true
}

// consensusStateKey orders consensus entries by big-endian height so they
// iterate in ascending height order.
func consensusStateKey(height uint64) []byte {
	key := make([]byte, consensusStateKeyLn)
	copy(key, consensusStatePfx)
	binary.BigEndian.PutUint64(key[len(consensusStatePfx):], height)
	return key
}
