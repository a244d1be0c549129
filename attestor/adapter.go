// Package attestor implements the attestor node: it polls an observed chain
// through a ChainAdapter, signs canonical state attestations, retains them in
// a bounded store, and serves them to aggregators.
package attestor

import (
	"context"

	"github.com/attestlabs/attestor/types"
)

// ChainState is one observed snapshot of the remote chain.
type ChainState struct {
	Height    uint64
	Timestamp uint64
	StateRoot types.Root
}

// ChainAdapter reads state snapshots from one remote chain. Implementations
// wrap a chain-specific RPC client; which chain is observed is fixed at
// construction.
type ChainAdapter interface {
	// LatestFinalizedState returns the most recent finalized snapshot.
	LatestFinalizedState(ctx context.Context) (*ChainState, error)

	// LatestUnfinalizedState returns the chain head, finalized or not.
	LatestUnfinalizedState(ctx context.Context) (*ChainState, error)
}
