package aggregator

import (
	"errors"
	"fmt"
)

// ErrZeroQuorum rejects quorum selection with an empty required signer set.
var ErrZeroQuorum = errors.New("quorum must be positive")

// InsufficientResponsesError reports that fewer attestors responded than the
// quorum requires. It is a soft failure: the caller retries with backoff.
type InsufficientResponsesError struct {
	Received int
	Required int
}

func (e *InsufficientResponsesError) Error() string {
	return fmt.Sprintf("insufficient attestor responses: received %d, quorum requires %d", e.Received, e.Required)
}
