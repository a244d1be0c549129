package aggregator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/attestlabs/attestor/signer"
	"github.com/attestlabs/attestor/types"
)

// fakeFetcher serves canned per-endpoint responses.
type fakeFetcher struct {
	responses map[peer.ID][]*types.SignedAttestation
	failures  map[peer.ID]error
}

func (f *fakeFetcher) FetchAttestations(_ context.Context, endpoint peer.AddrInfo, minHeight uint64) ([]*types.SignedAttestation, error) {
	if err, ok := f.failures[endpoint.ID]; ok {
		return nil, err
	}
	var out []*types.SignedAttestation
	for _, att := range f.responses[endpoint.ID] {
		if att.Height >= minHeight {
			out = append(out, att)
		}
	}
	return out, nil
}

type testAttestors struct {
	signers   []*signer.Signer
	keys      []types.PublicKey
	endpoints []peer.AddrInfo
}

func newTestAttestors(t *testing.T, n int) *testAttestors {
	t.Helper()
	ta := &testAttestors{}
	for i := 0; i < n; i++ {
		s, err := signer.Generate()
		if err != nil {
			t.Fatalf("generate signer %d: %v", i, err)
		}
		ta.signers = append(ta.signers, s)
		ta.keys = append(ta.keys, s.PublicKey())
		ta.endpoints = append(ta.endpoints, peer.AddrInfo{ID: peer.ID(fmt.Sprintf("attestor-%d", i))})
	}
	return ta
}

func signAttestation(t *testing.T, s *signer.Signer, height uint64, root types.Root) *types.SignedAttestation {
	t.Helper()
	payload := &types.StateAttestation{Height: height, Timestamp: height * 10, StateRoot: root}
	data, err := payload.MarshalSSZ()
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	sig, err := s.Sign(data)
	if err != nil {
		t.Fatalf("sign payload: %v", err)
	}
	return &types.SignedAttestation{
		Height:    height,
		Data:      data,
		Signature: sig,
		PublicKey: s.PublicKey(),
	}
}

func newTestAggregator(t *testing.T, ta *testAttestors, fetcher AttestationFetcher, quorum uint32) *Aggregator {
	t.Helper()
	agg, err := New(Config{
		Fetcher:     fetcher,
		Endpoints:   ta.endpoints,
		TrustedKeys: ta.keys,
		Quorum:      quorum,
	})
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}
	return agg
}

func TestSelectQuorumHeight(t *testing.T) {
	tests := []struct {
		name    string
		heights []uint64
		quorum  uint32
		want    uint64
		wantErr *InsufficientResponsesError
	}{
		{name: "minimum of enough responses", heights: []uint64{100, 98, 99}, quorum: 2, want: 98},
		{name: "exact quorum", heights: []uint64{5, 7}, quorum: 2, want: 5},
		{name: "one response short", heights: []uint64{100}, quorum: 2, wantErr: &InsufficientResponsesError{Received: 1, Required: 2}},
		{name: "no responses", heights: nil, quorum: 1, wantErr: &InsufficientResponsesError{Received: 0, Required: 1}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SelectQuorumHeight(tc.heights, tc.quorum)
			if tc.wantErr != nil {
				var insufficient *InsufficientResponsesError
				if !errors.As(err, &insufficient) {
					t.Fatalf("expected InsufficientResponsesError, got %v", err)
				}
				if *insufficient != *tc.wantErr {
					t.Fatalf("error fields: got %+v want %+v", insufficient, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("height: got %d want %d", got, tc.want)
			}
		})
	}
}

func TestSelectQuorumHeightRejectsZeroQuorum(t *testing.T) {
	if _, err := SelectQuorumHeight([]uint64{100, 99}, 0); !errors.Is(err, ErrZeroQuorum) {
		t.Fatalf("expected ErrZeroQuorum, got %v", err)
	}
	if _, err := SelectQuorumHeight(nil, 0); !errors.Is(err, ErrZeroQuorum) {
		t.Fatalf("expected ErrZeroQuorum for empty heights, got %v", err)
	}
}

func TestAggregateSelectsHighestQuorumState(t *testing.T) {
	ta := newTestAttestors(t, 3)
	rootA := types.Root{0x0a}
	rootB := types.Root{0x0b}

	// All three agree at height 10; only the first two have seen height 11.
	fetcher := &fakeFetcher{responses: map[peer.ID][]*types.SignedAttestation{
		ta.endpoints[0].ID: {signAttestation(t, ta.signers[0], 10, rootA), signAttestation(t, ta.signers[0], 11, rootB)},
		ta.endpoints[1].ID: {signAttestation(t, ta.signers[1], 10, rootA), signAttestation(t, ta.signers[1], 11, rootB)},
		ta.endpoints[2].ID: {signAttestation(t, ta.signers[2], 10, rootA)},
	}}

	agg := newTestAggregator(t, ta, fetcher, 2)
	best, err := agg.Aggregate(context.Background(), 0, 2)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if best == nil {
		t.Fatal("expected an aggregate")
	}
	if best.Height != 11 {
		t.Fatalf("height: got %d want 11", best.Height)
	}
	if len(best.PublicKeys) != 2 || len(best.Signatures) != 2 {
		t.Fatalf("signer count: %d keys, %d sigs", len(best.PublicKeys), len(best.Signatures))
	}
}

func TestAggregateNoQuorumReturnsNil(t *testing.T) {
	ta := newTestAttestors(t, 3)

	// Same height, three different attested roots: no bucket reaches quorum.
	fetcher := &fakeFetcher{responses: map[peer.ID][]*types.SignedAttestation{
		ta.endpoints[0].ID: {signAttestation(t, ta.signers[0], 10, types.Root{0x01})},
		ta.endpoints[1].ID: {signAttestation(t, ta.signers[1], 10, types.Root{0x02})},
		ta.endpoints[2].ID: {signAttestation(t, ta.signers[2], 10, types.Root{0x03})},
	}}

	agg := newTestAggregator(t, ta, fetcher, 2)
	best, err := agg.Aggregate(context.Background(), 0, 2)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if best != nil {
		t.Fatalf("expected no aggregate, got height %d", best.Height)
	}
}

func TestAggregateInsufficientResponses(t *testing.T) {
	ta := newTestAttestors(t, 3)
	root := types.Root{0x01}

	fetcher := &fakeFetcher{
		responses: map[peer.ID][]*types.SignedAttestation{
			ta.endpoints[0].ID: {signAttestation(t, ta.signers[0], 10, root)},
		},
		failures: map[peer.ID]error{
			ta.endpoints[1].ID: errors.New("dial failed"),
			ta.endpoints[2].ID: errors.New("timeout"),
		},
	}

	agg := newTestAggregator(t, ta, fetcher, 2)
	_, err := agg.Aggregate(context.Background(), 0, 2)

	var insufficient *InsufficientResponsesError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientResponsesError, got %v", err)
	}
	if insufficient.Received != 1 || insufficient.Required != 2 {
		t.Fatalf("error fields: %+v", insufficient)
	}
}

func TestAggregateRejectsBadAttestations(t *testing.T) {
	ta := newTestAttestors(t, 2)
	rogue, err := signer.Generate()
	if err != nil {
		t.Fatalf("generate rogue signer: %v", err)
	}
	root := types.Root{0x0c}

	tampered := signAttestation(t, ta.signers[1], 10, root)
	tampered.Signature[5] ^= 0xff

	fetcher := &fakeFetcher{responses: map[peer.ID][]*types.SignedAttestation{
		// One honest signer, one rogue-key attestation, one tampered
		// signature and one duplicate of the honest signer.
		ta.endpoints[0].ID: {
			signAttestation(t, ta.signers[0], 10, root),
			signAttestation(t, rogue, 10, root),
			signAttestation(t, ta.signers[0], 10, root),
		},
		ta.endpoints[1].ID: {tampered},
	}}

	agg := newTestAggregator(t, ta, fetcher, 2)
	best, err := agg.Aggregate(context.Background(), 0, 2)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if best != nil {
		t.Fatalf("expected no aggregate from one distinct honest signer, got %d signers", len(best.PublicKeys))
	}
}

func TestAggregateHonorsMinHeight(t *testing.T) {
	ta := newTestAttestors(t, 2)
	root := types.Root{0x0d}

	fetcher := &fakeFetcher{responses: map[peer.ID][]*types.SignedAttestation{
		ta.endpoints[0].ID: {signAttestation(t, ta.signers[0], 5, root)},
		ta.endpoints[1].ID: {signAttestation(t, ta.signers[1], 5, root)},
	}}

	agg := newTestAggregator(t, ta, fetcher, 2)
	best, err := agg.Aggregate(context.Background(), 6, 2)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if best != nil {
		t.Fatalf("aggregate below min height: %d", best.Height)
	}
}

func TestHeightTracker(t *testing.T) {
	ta := newTestAttestors(t, 3)
	tracker := NewHeightTracker(ta.keys, 2, nil)

	ctx := context.Background()
	from := peer.ID("gossip-peer")

	if _, err := tracker.QuorumHeight(); err == nil {
		t.Fatal("expected error before any announcements")
	}

	root := types.Root{0x01}
	_ = tracker.OnAttestation(ctx, signAttestation(t, ta.signers[0], 100, root), from)
	_ = tracker.OnAttestation(ctx, signAttestation(t, ta.signers[1], 98, root), from)
	_ = tracker.OnAttestation(ctx, signAttestation(t, ta.signers[2], 99, root), from)

	h, err := tracker.QuorumHeight()
	if err != nil {
		t.Fatalf("quorum height: %v", err)
	}
	if h != 98 {
		t.Fatalf("quorum height: got %d want 98", h)
	}

	// Stale announcements never lower a tracked height.
	_ = tracker.OnAttestation(ctx, signAttestation(t, ta.signers[1], 90, root), from)
	if h, _ := tracker.QuorumHeight(); h != 98 {
		t.Fatalf("stale announcement lowered height to %d", h)
	}

	// Untrusted signers are ignored.
	rogue, err := signer.Generate()
	if err != nil {
		t.Fatalf("generate rogue signer: %v", err)
	}
	_ = tracker.OnAttestation(ctx, signAttestation(t, rogue, 500, root), from)
	if tracker.Tracked() != 3 {
		t.Fatalf("tracked %d attestors, want 3", tracker.Tracked())
	}

	// Tampered signatures are ignored.
	bad := signAttestation(t, ta.signers[0], 200, root)
	bad.Signature[3] ^= 0xff
	_ = tracker.OnAttestation(ctx, bad, from)
	if h, _ := tracker.QuorumHeight(); h != 98 {
		t.Fatalf("invalid announcement moved height to %d", h)
	}
}
