// Package lightclient implements the attestation light client verification
// core: a pure state machine over ClientState/ConsensusState records. None of
// the functions here perform I/O, so the same logic is replayable inside a
// deterministic proving environment.
package lightclient

import (
	"fmt"

	"github.com/attestlabs/attestor/types"
)

// VerifyHeader checks every update precondition in order: the client is not
// frozen, the signature set is well formed and meets quorum, every signer is
// trusted and every signature verifies, and the header advances height from
// the supplied trusted consensus state.
func VerifyHeader(cs *types.ClientState, trusted *types.ConsensusState, header *types.Header) error {
	if cs.IsFrozen {
		return ErrClientFrozen
	}

	if err := verifyHeaderSignatures(cs, header); err != nil {
		return err
	}

	attestation, err := header.StateAttestation()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAttestedData, err)
	}

	if header.TrustedHeight != trusted.Height {
		return fmt.Errorf("%w: header anchored at %d, consensus state at %d", ErrHeaderMismatch, header.TrustedHeight, trusted.Height)
	}
	if attestation.Height <= header.TrustedHeight {
		return fmt.Errorf("%w: new height %d must exceed trusted height %d", ErrInvalidHeightProgression, attestation.Height, header.TrustedHeight)
	}

	return nil
}

// Update runs VerifyHeader and computes the resulting states. It always
// returns the consensus state for the attested height. The returned client
// state is non-nil only when the attested height exceeds the client's latest
// height; re-submitting a known height fills the consensus slot without
// touching the client state.
func Update(cs *types.ClientState, trusted *types.ConsensusState, header *types.Header) (*types.ConsensusState, *types.ClientState, error) {
	if err := VerifyHeader(cs, trusted, header); err != nil {
		return nil, nil, err
	}

	attestation, err := header.StateAttestation()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidAttestedData, err)
	}

	cons := &types.ConsensusState{
		Height:      attestation.Height,
		Timestamp:   attestation.Timestamp,
		StateDigest: attestation.StateRoot,
	}

	if attestation.Height <= cs.LatestHeight {
		return cons, nil, nil
	}

	updated := *cs
	updated.TrustedKeys = append([]types.PublicKey(nil), cs.TrustedKeys...)
	updated.LatestHeight = attestation.Height
	return cons, &updated, nil
}
