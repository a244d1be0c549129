package attestor

import "errors"

var (
	// ErrBeforeGenesis is returned while the observed chain has not produced
	// its first attestable state.
	ErrBeforeGenesis = errors.New("chain has no attestable state yet")
)
