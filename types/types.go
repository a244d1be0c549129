// Package types defines the primitive and composite types shared by the
// attestor, aggregator and light client packages.
package types

import (
	"encoding/hex"
	"fmt"
)

// Primitive types.
type Root [32]byte

// PublicKey is a 33-byte compressed SEC1 secp256k1 point.
type PublicKey [33]byte

// Signature is a 65-byte recoverable ECDSA signature (r || s || v).
type Signature [65]byte

const (
	RootLength      = 32
	PublicKeyLength = 33
	SignatureLength = 65

	// MaxClaims bounds the committed claim set attested at a single height.
	MaxClaims = 4096
	// MaxAttestors bounds the trusted key set of a client.
	MaxAttestors = 256
)

func (r Root) IsZero() bool { return r == Root{} }

// Short returns a short hex representation of the root (first 4 bytes).
func (r Root) Short() string {
	return fmt.Sprintf("%x", r[:4])
}

func (p PublicKey) String() string {
	return hex.EncodeToString(p[:])
}

// ParsePublicKey converts a hex string (with or without 0x prefix) to a PublicKey.
func ParsePublicKey(s string) (PublicKey, error) {
	if len(s) >= 2 && s[:2] == "0x" {
		s = s[2:]
	}
	if len(s) != PublicKeyLength*2 {
		return PublicKey{}, fmt.Errorf("invalid pubkey length: got %d hex chars, want %d", len(s), PublicKeyLength*2)
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("decoding hex: %w", err)
	}
	var pk PublicKey
	copy(pk[:], decoded)
	return pk, nil
}

// ClientState tracks what a light client knows about one remote chain.
// Mutated only by updates (height may only increase) and misbehaviour
// detection (may only set IsFrozen).
type ClientState struct {
	LatestHeight    uint64
	MinRequiredSigs uint32
	IsFrozen        bool
	TrustedKeys     []PublicKey `ssz-max:"256" ssz-size:"?,33"`
}

// NewClientState creates a new ClientState instance.
func NewClientState(trustedKeys []PublicKey, minRequiredSigs uint32, latestHeight uint64) *ClientState {
	return &ClientState{
		LatestHeight:    latestHeight,
		MinRequiredSigs: minRequiredSigs,
		IsFrozen:        false,
		TrustedKeys:     trustedKeys,
	}
}

// Validate performs basic validation of the client state fields.
func (cs *ClientState) Validate() error {
	if len(cs.TrustedKeys) == 0 {
		return fmt.Errorf("trusted keys cannot be empty")
	}
	if len(cs.TrustedKeys) > MaxAttestors {
		return fmt.Errorf("too many trusted keys: %d > %d", len(cs.TrustedKeys), MaxAttestors)
	}
	if cs.MinRequiredSigs == 0 {
		return fmt.Errorf("min required sigs cannot be 0")
	}
	if cs.MinRequiredSigs > uint32(len(cs.TrustedKeys)) {
		return fmt.Errorf("min required sigs %d cannot exceed number of trusted keys %d", cs.MinRequiredSigs, len(cs.TrustedKeys))
	}

	seen := make(map[PublicKey]bool, len(cs.TrustedKeys))
	for _, pk := range cs.TrustedKeys {
		if pk == (PublicKey{}) {
			return fmt.Errorf("trusted key cannot be zero")
		}
		if seen[pk] {
			return fmt.Errorf("duplicate trusted key %s", pk)
		}
		seen[pk] = true
	}

	if cs.LatestHeight == 0 {
		return fmt.Errorf("latest height must be greater than 0")
	}

	return nil
}

// HasTrustedKey reports whether pk is a member of the trusted key set.
func (cs *ClientState) HasTrustedKey(pk PublicKey) bool {
	for _, k := range cs.TrustedKeys {
		if k == pk {
			return true
		}
	}
	return false
}

// ConsensusState records one verified remote height. Immutable once written;
// keyed by height in the client store.
type ConsensusState struct {
	Height    uint64
	Timestamp uint64
	// StateDigest is the SHA-256 of the canonical encoding of the claim set
	// committed at Height. Membership proofs anchor against it.
	StateDigest Root `ssz-size:"32"`
}

// ValidateBasic checks that the consensus state fields are well formed.
func (cs *ConsensusState) ValidateBasic() error {
	if cs.Height == 0 {
		return fmt.Errorf("height must be greater than 0")
	}
	if cs.Timestamp == 0 {
		return fmt.Errorf("timestamp must be greater than 0")
	}
	return nil
}
