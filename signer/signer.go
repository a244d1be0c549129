// Package signer holds one attestor's secp256k1 key and produces detached
// signatures over canonical attestation payloads.
package signer

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/attestlabs/attestor/types"
)

// Signer signs canonical payload bytes with a held secp256k1 secret key.
type Signer struct {
	key    *ecdsa.PrivateKey
	pubkey types.PublicKey
}

// New wraps an existing private key.
func New(key *ecdsa.PrivateKey) *Signer {
	var pk types.PublicKey
	copy(pk[:], crypto.CompressPubkey(&key.PublicKey))
	return &Signer{key: key, pubkey: pk}
}

// Load reads a raw hex-encoded 32-byte secret key from path.
// Failure here is fatal to the attestor process.
func Load(path string) (*Signer, error) {
	key, err := crypto.LoadECDSA(path)
	if err != nil {
		return nil, fmt.Errorf("load key %s: %w", path, err)
	}
	return New(key), nil
}

// Generate creates a signer with a fresh key, for tests and local devnets.
func Generate() (*Signer, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return New(key), nil
}

// Sign produces a 65-byte recoverable signature over SHA256(data).
func (s *Signer) Sign(data []byte) (types.Signature, error) {
	digest := sha256.Sum256(data)
	sig, err := crypto.Sign(digest[:], s.key)
	if err != nil {
		return types.Signature{}, fmt.Errorf("sign: %w", err)
	}
	var out types.Signature
	copy(out[:], sig)
	return out, nil
}

// PublicKey returns the compressed public key paired with the held secret.
func (s *Signer) PublicKey() types.PublicKey {
	return s.pubkey
}
