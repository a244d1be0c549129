// Package storage defines the persistence contract consumed by the light
// client: single-key atomic puts, height-indexed consensus state lookup.
package storage

import "github.com/attestlabs/attestor/types"

// ClientStore is a key-value view over one client's state.
type ClientStore interface {
	GetClientState() (*types.ClientState, bool)
	PutClientState(cs *types.ClientState) error
	GetConsensusState(height uint64) (*types.ConsensusState, bool)
	PutConsensusState(cons *types.ConsensusState) error
	Close() error
}
