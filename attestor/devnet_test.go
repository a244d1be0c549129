package attestor

import (
	"context"
	"errors"
	"testing"
	"time"
)

func devnetAt(genesis uint64, now int64) *DevnetAdapter {
	d := NewDevnetAdapter(genesis, 4)
	d.timeFunc = func() time.Time { return time.Unix(now, 0) }
	return d
}

func TestDevnetAdapterHeights(t *testing.T) {
	ctx := context.Background()

	// Before genesis there is nothing to attest.
	d := devnetAt(1000, 999)
	if _, err := d.LatestUnfinalizedState(ctx); !errors.Is(err, ErrBeforeGenesis) {
		t.Fatalf("expected ErrBeforeGenesis, got %v", err)
	}

	// At genesis the first block exists.
	d = devnetAt(1000, 1000)
	state, err := d.LatestUnfinalizedState(ctx)
	if err != nil {
		t.Fatalf("unfinalized: %v", err)
	}
	if state.Height != 1 || state.Timestamp != 1000 {
		t.Fatalf("genesis state: %+v", state)
	}

	// Three block times later the head is at height 4, finality lags by 2.
	d = devnetAt(1000, 1012)
	state, err = d.LatestUnfinalizedState(ctx)
	if err != nil {
		t.Fatalf("unfinalized: %v", err)
	}
	if state.Height != 4 {
		t.Fatalf("head height: got %d want 4", state.Height)
	}

	final, err := d.LatestFinalizedState(ctx)
	if err != nil {
		t.Fatalf("finalized: %v", err)
	}
	if final.Height != 2 {
		t.Fatalf("finalized height: got %d want 2", final.Height)
	}
}

func TestDevnetAdapterDeterministicRoots(t *testing.T) {
	ctx := context.Background()

	// Two adapters with the same genesis observe identical states.
	a := devnetAt(1000, 1020)
	b := devnetAt(1000, 1020)

	sa, err := a.LatestUnfinalizedState(ctx)
	if err != nil {
		t.Fatalf("adapter a: %v", err)
	}
	sb, err := b.LatestUnfinalizedState(ctx)
	if err != nil {
		t.Fatalf("adapter b: %v", err)
	}
	if sa.Height != sb.Height || sa.StateRoot != sb.StateRoot {
		t.Fatalf("adapters diverged: %+v vs %+v", sa, sb)
	}

	// Different heights commit to different roots.
	next := a.stateAt(sa.Height + 1)
	if next.StateRoot == sa.StateRoot {
		t.Fatal("consecutive heights share a state root")
	}
}
