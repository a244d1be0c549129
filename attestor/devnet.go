package attestor

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"time"

	"github.com/attestlabs/attestor/types"
)

// DefaultBlockTime is the devnet block interval in seconds.
const DefaultBlockTime = 4

// DevnetAdapter simulates an observed chain advancing on wall-clock time.
// Heights and state roots are pure functions of the genesis time, so every
// attestor pointed at the same genesis observes identical states and a
// quorum forms without a real chain. Used for local devnets and tests.
type DevnetAdapter struct {
	genesisTime uint64
	blockTime   uint64

	// Injectable for testing.
	timeFunc func() time.Time
}

// NewDevnetAdapter creates a simulated chain starting at genesisTime with
// one block every blockTime seconds.
func NewDevnetAdapter(genesisTime, blockTime uint64) *DevnetAdapter {
	if blockTime == 0 {
		blockTime = DefaultBlockTime
	}
	return &DevnetAdapter{
		genesisTime: genesisTime,
		blockTime:   blockTime,
		timeFunc:    time.Now,
	}
}

// currentHeight returns blocks elapsed since genesis, starting at height 1.
func (d *DevnetAdapter) currentHeight() uint64 {
	now := uint64(d.timeFunc().Unix())
	if now < d.genesisTime {
		return 0
	}
	return (now-d.genesisTime)/d.blockTime + 1
}

// stateAt derives the deterministic snapshot for a height.
func (d *DevnetAdapter) stateAt(height uint64) *ChainState {
	var heightBytes [8]byte
	binary.LittleEndian.PutUint64(heightBytes[:], height)

	h := sha256.New()
	h.Write([]byte("devnet-state"))
	h.Write(heightBytes[:])

	var root types.Root
	copy(root[:], h.Sum(nil))

	return &ChainState{
		Height:    height,
		Timestamp: d.genesisTime + (height-1)*d.blockTime,
		StateRoot: root,
	}
}

func (d *DevnetAdapter) LatestUnfinalizedState(_ context.Context) (*ChainState, error) {
	height := d.currentHeight()
	if height == 0 {
		return nil, ErrBeforeGenesis
	}
	return d.stateAt(height), nil
}

// LatestFinalizedState lags the head by two blocks.
func (d *DevnetAdapter) LatestFinalizedState(_ context.Context) (*ChainState, error) {
	height := d.currentHeight()
	if height <= 2 {
		return nil, ErrBeforeGenesis
	}
	return d.stateAt(height - 2), nil
}
