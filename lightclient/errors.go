package lightclient

import "errors"

// Sentinel errors for client verification.
// Callers may use errors.Is to check for specific failure types.
var (
	ErrClientFrozen             = errors.New("client is frozen")                  // misbehaviour was detected; updates rejected
	ErrInvalidAttestedData      = errors.New("invalid attested data")             // malformed, duplicated or below-quorum signature sets
	ErrUnknownPublicKey         = errors.New("unknown public key submitted")      // valid signature from a key outside the trusted set
	ErrInvalidSignature         = errors.New("invalid signature")                 // signature fails cryptographic verification
	ErrInvalidHeightProgression = errors.New("invalid height progression")       // new height does not exceed trusted height
	ErrHeaderMismatch           = errors.New("header trusted height mismatch")   // header anchored at a different consensus state
	ErrVerificationFailed       = errors.New("verification failed")              // membership/non-membership proof rejected
	ErrClientNotFound           = errors.New("client state not found")           // store has no client state
	ErrConsensusStateNotFound   = errors.New("consensus state not found")        // store has no consensus state at the height
)
