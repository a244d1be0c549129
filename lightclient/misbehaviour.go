package lightclient

import (
	"fmt"

	"github.com/attestlabs/attestor/types"
)

// CheckMisbehaviour decides whether two headers prove the attestor set signed
// conflicting state. Both headers must independently pass the full signature
// quorum validation before the comparison is meaningful; a header that fails
// it returns an error rather than a verdict. Differing heights are not a
// conflict: the result is (false, nil), not an error.
//
// This is the only operation that remains reachable once a client is frozen,
// so the frozen flag is deliberately not checked here.
func CheckMisbehaviour(cs *types.ClientState, misbehaviour *types.Misbehaviour) (bool, error) {
	h1, h2 := misbehaviour.Header1, misbehaviour.Header2
	if h1 == nil || h2 == nil {
		return false, fmt.Errorf("%w: misbehaviour requires two headers", ErrInvalidAttestedData)
	}

	if err := verifyHeaderSignatures(cs, h1); err != nil {
		return false, fmt.Errorf("first header: %w", err)
	}
	if err := verifyHeaderSignatures(cs, h2); err != nil {
		return false, fmt.Errorf("second header: %w", err)
	}

	a1, err := h1.StateAttestation()
	if err != nil {
		return false, fmt.Errorf("%w: first header: %v", ErrInvalidAttestedData, err)
	}
	a2, err := h2.StateAttestation()
	if err != nil {
		return false, fmt.Errorf("%w: second header: %v", ErrInvalidAttestedData, err)
	}

	if a1.Height != a2.Height {
		return false, nil
	}
	if h1.Digest() == h2.Digest() {
		return false, nil
	}
	return true, nil
}
