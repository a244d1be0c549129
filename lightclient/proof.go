package lightclient

import (
	"crypto/sha256"
	"fmt"

	"github.com/attestlabs/attestor/types"
)

// VerifyMembership checks that (path, value) is present byte-exact in the
// claim set carried by proof. The proof anchors to the consensus state by
// digest: its SHA-256 must equal the StateDigest attested when the height was
// updated. Signatures are not re-checked here; they were verified by Update.
func VerifyMembership(cons *types.ConsensusState, proof, path, value []byte) error {
	attestation, err := decodeAnchoredProof(cons, proof, path)
	if err != nil {
		return err
	}
	if len(value) != types.RootLength {
		return fmt.Errorf("%w: value must be %d bytes, got %d", ErrVerificationFailed, types.RootLength, len(value))
	}

	claimPath := types.NormalizePath(path)
	var commitment types.Root
	copy(commitment[:], value)

	for _, claim := range attestation.Claims {
		if claim.Path == claimPath && claim.Commitment == commitment {
			return nil
		}
	}
	return fmt.Errorf("%w: path %s not committed with the given value", ErrVerificationFailed, claimPath.Short())
}

// VerifyNonMembership checks that path is absent from the claim set carried
// by proof. The digest anchor check is what prevents an adversary from
// presenting an empty forged set: only the exact claim set whose hash the
// quorum signed can be decoded here.
func VerifyNonMembership(cons *types.ConsensusState, proof, path []byte) error {
	attestation, err := decodeAnchoredProof(cons, proof, path)
	if err != nil {
		return err
	}

	claimPath := types.NormalizePath(path)
	for _, claim := range attestation.Claims {
		if claim.Path == claimPath {
			return fmt.Errorf("%w: path %s is committed at height %d", ErrVerificationFailed, claimPath.Short(), cons.Height)
		}
	}
	return nil
}

func decodeAnchoredProof(cons *types.ConsensusState, proof, path []byte) (*types.PacketAttestation, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: path cannot be empty", ErrVerificationFailed)
	}
	if len(proof) == 0 {
		return nil, fmt.Errorf("%w: proof cannot be empty", ErrVerificationFailed)
	}

	if digest := types.Root(sha256.Sum256(proof)); digest != cons.StateDigest {
		return nil, fmt.Errorf("%w: proof digest %s does not match attested state digest %s", ErrVerificationFailed, digest.Short(), cons.StateDigest.Short())
	}

	var attestation types.PacketAttestation
	if err := attestation.UnmarshalSSZ(proof); err != nil {
		return nil, fmt.Errorf("%w: decode proof: %v", ErrVerificationFailed, err)
	}
	if attestation.Height != cons.Height {
		return nil, fmt.Errorf("%w: proof height %d does not match consensus height %d", ErrVerificationFailed, attestation.Height, cons.Height)
	}
	return &attestation, nil
}
