package aggregator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/attestlabs/attestor/types"
)

// HeightTracker follows attestation announcements on gossip and keeps the
// latest announced height per trusted attestor. It feeds the coarse liveness
// bound (QuorumHeight); it carries no state digests and never gates an
// update.
type HeightTracker struct {
	mu      sync.RWMutex
	heights map[types.PublicKey]uint64

	trustedKeys map[types.PublicKey]struct{}
	quorum      uint32
	logger      *slog.Logger
}

// NewHeightTracker creates a tracker for the given trusted attestor set.
func NewHeightTracker(trustedKeys []types.PublicKey, quorum uint32, logger *slog.Logger) *HeightTracker {
	if logger == nil {
		logger = slog.Default()
	}
	trusted := make(map[types.PublicKey]struct{}, len(trustedKeys))
	for _, pk := range trustedKeys {
		trusted[pk] = struct{}{}
	}
	return &HeightTracker{
		heights:     make(map[types.PublicKey]uint64),
		trustedKeys: trusted,
		quorum:      quorum,
		logger:      logger,
	}
}

// OnAttestation handles one gossip announcement. Untrusted signers and
// invalid signatures are dropped silently; gossip is an open surface.
func (t *HeightTracker) OnAttestation(_ context.Context, att *types.SignedAttestation, from peer.ID) error {
	if _, ok := t.trustedKeys[att.PublicKey]; !ok {
		return nil
	}
	if !att.Verify() {
		t.logger.Debug("announcement with invalid signature", "peer", from, "height", att.Height)
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if att.Height > t.heights[att.PublicKey] {
		t.heights[att.PublicKey] = att.Height
	}
	return nil
}

// QuorumHeight returns the height that at least quorum trusted attestors
// have announced reaching.
func (t *HeightTracker) QuorumHeight() (uint64, error) {
	t.mu.RLock()
	heights := make([]uint64, 0, len(t.heights))
	for _, h := range t.heights {
		heights = append(heights, h)
	}
	t.mu.RUnlock()

	return SelectQuorumHeight(heights, t.quorum)
}

// Tracked returns how many trusted attestors have announced at least once.
func (t *HeightTracker) Tracked() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.heights)
}
