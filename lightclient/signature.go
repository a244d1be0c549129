package lightclient

import (
	"crypto/sha256"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/attestlabs/attestor/types"
)

// verifyHeaderSignatures checks that the header carries a duplicate-free set
// of (signature, public key) pairs meeting the client's quorum, that every
// key is trusted, and that every signature verifies over
// SHA256(AttestationData) under its paired key. Input-shape failures are
// rejected before any cryptographic work.
func verifyHeaderSignatures(cs *types.ClientState, header *types.Header) error {
	if len(header.AttestationData) == 0 {
		return fmt.Errorf("%w: attestation data cannot be empty", ErrInvalidAttestedData)
	}
	if len(header.Signatures) != len(header.PublicKeys) {
		return fmt.Errorf("%w: %d signatures for %d public keys", ErrInvalidAttestedData, len(header.Signatures), len(header.PublicKeys))
	}

	seenSigs := make(map[types.Signature]bool, len(header.Signatures))
	for _, sig := range header.Signatures {
		if seenSigs[sig] {
			return fmt.Errorf("%w: duplicate signature", ErrInvalidAttestedData)
		}
		seenSigs[sig] = true
	}
	seenKeys := make(map[types.PublicKey]bool, len(header.PublicKeys))
	for _, pk := range header.PublicKeys {
		if seenKeys[pk] {
			return fmt.Errorf("%w: duplicate signer %s", ErrInvalidAttestedData, pk)
		}
		seenKeys[pk] = true
	}

	if len(seenSigs) < int(cs.MinRequiredSigs) || len(seenKeys) < int(cs.MinRequiredSigs) {
		return fmt.Errorf("%w: quorum not met, required %d got %d", ErrInvalidAttestedData, cs.MinRequiredSigs, len(seenKeys))
	}

	digest := sha256.Sum256(header.AttestationData)
	for i, pk := range header.PublicKeys {
		if !cs.HasTrustedKey(pk) {
			return fmt.Errorf("%w: signer %s is not in trusted set", ErrUnknownPublicKey, pk)
		}
		sig := header.Signatures[i]
		if !crypto.VerifySignature(pk[:], digest[:], sig[:types.SignatureLength-1]) {
			return fmt.Errorf("%w: signature %d does not verify under %s", ErrInvalidSignature, i, pk)
		}
	}

	return nil
}
