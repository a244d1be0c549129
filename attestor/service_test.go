package attestor

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/attestlabs/attestor/signer"
	"github.com/attestlabs/attestor/types"
)

// fakeAdapter serves scripted chain states and can be advanced or failed
// from the test.
type fakeAdapter struct {
	mu    sync.Mutex
	state ChainState
	err   error
}

func (f *fakeAdapter) set(height, timestamp uint64, root types.Root) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = ChainState{Height: height, Timestamp: timestamp, StateRoot: root}
	f.err = nil
}

func (f *fakeAdapter) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeAdapter) LatestFinalizedState(ctx context.Context) (*ChainState, error) {
	return f.LatestUnfinalizedState(ctx)
}

func (f *fakeAdapter) LatestUnfinalizedState(_ context.Context) (*ChainState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	state := f.state
	return &state, nil
}

// capturePublisher records announced attestations.
type capturePublisher struct {
	mu        sync.Mutex
	published []*types.SignedAttestation
}

func (p *capturePublisher) PublishAttestation(_ context.Context, att *types.SignedAttestation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, att)
	return nil
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func newTestService(t *testing.T, adapter ChainAdapter, pub Publisher) *Service {
	t.Helper()

	key, err := signer.Generate()
	if err != nil {
		t.Fatalf("generate signer: %v", err)
	}

	svc, err := NewService(context.Background(), Config{
		Signer:       key,
		Adapter:      adapter,
		Store:        NewStore(16),
		Publisher:    pub,
		PollInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestServiceAttestsNewHeights(t *testing.T) {
	adapter := &fakeAdapter{}
	adapter.set(10, 1000, types.Root{0xaa})
	pub := &capturePublisher{}

	svc := newTestService(t, adapter, pub)
	svc.Start()
	defer svc.Stop()

	waitFor(t, func() bool { return svc.Store().Len() >= 1 })

	atts, err := svc.AttestationsFrom(context.Background(), 0)
	if err != nil {
		t.Fatalf("attestations from: %v", err)
	}
	if len(atts) != 1 {
		t.Fatalf("got %d attestations, want 1", len(atts))
	}

	signed := atts[0]
	if signed.Height != 10 {
		t.Fatalf("height: got %d want 10", signed.Height)
	}

	var att types.StateAttestation
	if err := att.UnmarshalSSZ(signed.Data); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if att.Height != 10 || att.Timestamp != 1000 || att.StateRoot != (types.Root{0xaa}) {
		t.Fatalf("payload mismatch: %+v", att)
	}

	digest := sha256.Sum256(signed.Data)
	if !crypto.VerifySignature(signed.PublicKey[:], digest[:], signed.Signature[:64]) {
		t.Fatal("attestation signature does not verify")
	}

	waitFor(t, func() bool { return pub.count() >= 1 })
}

func TestServiceSkipsStaleHeights(t *testing.T) {
	adapter := &fakeAdapter{}
	adapter.set(10, 1000, types.Root{0x01})

	svc := newTestService(t, adapter, nil)
	svc.Start()
	defer svc.Stop()

	waitFor(t, func() bool { return svc.Store().Len() >= 1 })

	// Hold the adapter at the same height across several polls.
	time.Sleep(50 * time.Millisecond)
	if got := svc.Store().Len(); got != 1 {
		t.Fatalf("re-attested unchanged height: store has %d entries", got)
	}

	adapter.set(11, 1010, types.Root{0x02})
	waitFor(t, func() bool { return svc.Store().Len() == 2 })
}

func TestServiceRecoversFromAdapterFailure(t *testing.T) {
	adapter := &fakeAdapter{}
	adapter.fail(errors.New("rpc unavailable"))

	svc := newTestService(t, adapter, nil)
	svc.Start()
	defer svc.Stop()

	time.Sleep(50 * time.Millisecond)
	if got := svc.Store().Len(); got != 0 {
		t.Fatalf("attested during adapter outage: %d entries", got)
	}

	adapter.set(7, 700, types.Root{0x07})
	waitFor(t, func() bool { return svc.Store().Len() == 1 })

	latest := svc.Store().Latest()
	if latest.Height != 7 {
		t.Fatalf("height: got %d want 7", latest.Height)
	}
}
