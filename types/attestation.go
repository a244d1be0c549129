package types

import (
	"crypto/sha256"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// StateAttestation is the canonical payload every attestor signs for a given
// observed height. Independent attestors observing the same state produce
// byte-identical encodings.
type StateAttestation struct {
	Height    uint64
	Timestamp uint64
	StateRoot Root `ssz-size:"32"`
}

// Claim is one committed (path, commitment) entry of a height's claim set.
// Paths longer than 32 bytes are normalized with NormalizePath before signing.
type Claim struct {
	Path       Root `ssz-size:"32"`
	Commitment Root `ssz-size:"32"`
}

// PacketAttestation is the membership proof payload: the full claim set
// committed at Height. Its SHA-256 must equal the StateRoot attested in the
// StateAttestation for the same height.
type PacketAttestation struct {
	Height uint64
	Claims []Claim `ssz-max:"4096"`
}

// SignedAttestation is one attestor's observation: the canonical payload
// bytes, the signature over SHA256(Data) and the signer's public key. It is
// both the req/resp response chunk and the gossip envelope.
type SignedAttestation struct {
	Height    uint64
	Data      []byte    `ssz-max:"262144"`
	Signature Signature `ssz-size:"65"`
	PublicKey PublicKey `ssz-size:"33"`
}

// Digest returns the state digest of the attestation, SHA256(Data).
func (sa *SignedAttestation) Digest() Root {
	return sha256.Sum256(sa.Data)
}

// Verify reports whether the signature verifies over SHA256(Data) under the
// embedded public key.
func (sa *SignedAttestation) Verify() bool {
	digest := sa.Digest()
	return crypto.VerifySignature(sa.PublicKey[:], digest[:], sa.Signature[:64])
}

// Header is the multi-signer client message consumed by a light client
// update. Signatures and PublicKeys are parallel arrays: Signatures[i] must
// verify over SHA256(AttestationData) under PublicKeys[i].
type Header struct {
	TrustedHeight   uint64
	AttestationData []byte      `ssz-max:"262144"`
	Signatures      []Signature `ssz-max:"256" ssz-size:"?,65"`
	PublicKeys      []PublicKey `ssz-max:"256" ssz-size:"?,33"`
}

// Digest returns the state digest of the header payload, SHA256(AttestationData).
func (h *Header) Digest() Root {
	return sha256.Sum256(h.AttestationData)
}

// StateAttestation decodes the header payload.
func (h *Header) StateAttestation() (*StateAttestation, error) {
	var sa StateAttestation
	if err := sa.UnmarshalSSZ(h.AttestationData); err != nil {
		return nil, fmt.Errorf("decode state attestation: %w", err)
	}
	return &sa, nil
}

// Misbehaviour carries two independently quorum-signed headers claiming
// conflicting state at the same height.
type Misbehaviour struct {
	Header1 *Header
	Header2 *Header
}

// AggregatedAttestation is the aggregator's output: a single claim backed by
// a quorum of distinct trusted signers agreeing on (Height, StateDigest).
// Constructed fresh per aggregation round and consumed immediately.
type AggregatedAttestation struct {
	Height          uint64
	StateDigest     Root   `ssz-size:"32"`
	AttestationData []byte `ssz-max:"262144"`
	Signatures      []Signature `ssz-max:"256" ssz-size:"?,65"`
	PublicKeys      []PublicKey `ssz-max:"256" ssz-size:"?,33"`
}

// ToHeader converts the aggregate into an update header anchored at the
// given trusted height.
func (aa *AggregatedAttestation) ToHeader(trustedHeight uint64) *Header {
	return &Header{
		TrustedHeight:   trustedHeight,
		AttestationData: aa.AttestationData,
		Signatures:      aa.Signatures,
		PublicKeys:      aa.PublicKeys,
	}
}

// NormalizePath maps an arbitrary commitment path to the fixed 32-byte form
// used in claims: 32-byte paths pass through, anything else is hashed.
func NormalizePath(raw []byte) Root {
	if len(raw) == RootLength {
		var r Root
		copy(r[:], raw)
		return r
	}
	return sha256.Sum256(raw)
}
