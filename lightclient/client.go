package lightclient

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/attestlabs/attestor/storage"
	"github.com/attestlabs/attestor/types"
)

// Status of a client. Frozen is terminal within this package; clearing it is
// an out-of-band governance action against the store.
type Status string

const (
	StatusActive  Status = "Active"
	StatusFrozen  Status = "Frozen"
	StatusUnknown Status = "Unknown"
)

// Client binds the pure verification core to a ClientStore and enforces the
// single-writer-per-client discipline. Reads return committed states only.
type Client struct {
	mu     sync.Mutex
	store  storage.ClientStore
	logger *slog.Logger
}

// NewClient creates a client over the given store.
func NewClient(store storage.ClientStore, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{store: store, logger: logger}
}

// Initialize validates and persists the initial client and consensus states.
func (c *Client) Initialize(cs *types.ClientState, cons *types.ConsensusState) error {
	if err := cs.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAttestedData, err)
	}
	if err := cons.ValidateBasic(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAttestedData, err)
	}
	if cons.Height != cs.LatestHeight {
		return fmt.Errorf("%w: initial consensus height %d does not match client height %d", ErrHeaderMismatch, cons.Height, cs.LatestHeight)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.PutConsensusState(cons); err != nil {
		return err
	}
	return c.store.PutClientState(cs)
}

// UpdateClient verifies the header against the stored client state and the
// consensus state at its trusted height, then commits the results. Returns
// the newly verified height.
func (c *Client) UpdateClient(header *types.Header) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cs, found := c.store.GetClientState()
	if !found {
		return 0, ErrClientNotFound
	}
	trusted, found := c.store.GetConsensusState(header.TrustedHeight)
	if !found {
		return 0, fmt.Errorf("%w: height %d", ErrConsensusStateNotFound, header.TrustedHeight)
	}

	cons, updated, err := Update(cs, trusted, header)
	if err != nil {
		return 0, err
	}

	if err := c.store.PutConsensusState(cons); err != nil {
		return 0, err
	}
	if updated != nil {
		if err := c.store.PutClientState(updated); err != nil {
			return 0, err
		}
	}

	c.logger.Info("client updated",
		"height", cons.Height,
		"digest", cons.StateDigest.Short(),
		"latest_bumped", updated != nil,
	)
	return cons.Height, nil
}

// VerifyMembership proves (path, value) present in the claim set committed at
// height. The consensus state at that height must already be verified.
func (c *Client) VerifyMembership(height uint64, proof, path, value []byte) error {
	cons, found := c.store.GetConsensusState(height)
	if !found {
		return fmt.Errorf("%w: height %d", ErrConsensusStateNotFound, height)
	}
	return VerifyMembership(cons, proof, path, value)
}

// VerifyNonMembership proves path absent from the claim set committed at height.
func (c *Client) VerifyNonMembership(height uint64, proof, path []byte) error {
	cons, found := c.store.GetConsensusState(height)
	if !found {
		return fmt.Errorf("%w: height %d", ErrConsensusStateNotFound, height)
	}
	return VerifyNonMembership(cons, proof, path)
}

// SubmitMisbehaviour checks the evidence and, if it proves a conflict,
// freezes the client. Freezing is irreversible here; only external
// governance can clear it.
func (c *Client) SubmitMisbehaviour(misbehaviour *types.Misbehaviour) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cs, found := c.store.GetClientState()
	if !found {
		return false, ErrClientNotFound
	}

	misbehaved, err := CheckMisbehaviour(cs, misbehaviour)
	if err != nil {
		return false, err
	}
	if !misbehaved {
		return false, nil
	}

	cs.IsFrozen = true
	if err := c.store.PutClientState(cs); err != nil {
		return false, err
	}

	c.logger.Error("misbehaviour detected, client frozen",
		"latest_height", cs.LatestHeight,
	)
	return true, nil
}

// Status reports whether the client is active, frozen, or missing.
func (c *Client) Status() Status {
	cs, found := c.store.GetClientState()
	if !found {
		return StatusUnknown
	}
	if cs.IsFrozen {
		return StatusFrozen
	}
	return StatusActive
}

// LatestHeight returns the client's latest verified height, or 0 when no
// client state exists.
func (c *Client) LatestHeight() uint64 {
	cs, found := c.store.GetClientState()
	if !found {
		return 0
	}
	return cs.LatestHeight
}

// TimestampAtHeight returns the timestamp of the consensus state at height.
func (c *Client) TimestampAtHeight(height uint64) (uint64, error) {
	cons, found := c.store.GetConsensusState(height)
	if !found {
		return 0, fmt.Errorf("%w: height %d", ErrConsensusStateNotFound, height)
	}
	return cons.Timestamp, nil
}
