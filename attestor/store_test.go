package attestor

import (
	"testing"

	"github.com/attestlabs/attestor/types"
)

func makeAttestation(t *testing.T, height uint64) *types.SignedAttestation {
	t.Helper()
	att := &types.StateAttestation{Height: height, Timestamp: height * 10}
	data, err := att.MarshalSSZ()
	if err != nil {
		t.Fatalf("marshal attestation: %v", err)
	}
	return &types.SignedAttestation{Height: height, Data: data}
}

func TestStorePushAndRange(t *testing.T) {
	store := NewStore(8)

	for h := uint64(1); h <= 5; h++ {
		store.Push(h, makeAttestation(t, h))
	}
	if store.Len() != 5 {
		t.Fatalf("len: got %d want 5", store.Len())
	}

	got := store.RangeFrom(3)
	if len(got) != 3 {
		t.Fatalf("range from 3: got %d attestations, want 3", len(got))
	}
	for i, att := range got {
		want := uint64(3 + i)
		if att.Height != want {
			t.Fatalf("attestation %d: height %d, want %d", i, att.Height, want)
		}
	}

	if got := store.RangeFrom(6); len(got) != 0 {
		t.Fatalf("range past latest: got %d attestations, want 0", len(got))
	}
}

func TestStoreEvictsOldest(t *testing.T) {
	store := NewStore(3)

	for h := uint64(1); h <= 5; h++ {
		store.Push(h, makeAttestation(t, h))
	}

	if store.Len() != 3 {
		t.Fatalf("len: got %d want 3", store.Len())
	}

	got := store.RangeFrom(0)
	heights := []uint64{3, 4, 5}
	if len(got) != len(heights) {
		t.Fatalf("got %d attestations, want %d", len(got), len(heights))
	}
	for i, att := range got {
		if att.Height != heights[i] {
			t.Fatalf("attestation %d: height %d, want %d", i, att.Height, heights[i])
		}
	}

	latest := store.Latest()
	if latest == nil || latest.Height != 5 {
		t.Fatalf("latest: got %+v, want height 5", latest)
	}
}

func TestStoreEmpty(t *testing.T) {
	store := NewStore(4)

	if store.Latest() != nil {
		t.Fatal("latest on empty store should be nil")
	}
	if got := store.RangeFrom(0); len(got) != 0 {
		t.Fatalf("range on empty store: got %d attestations", len(got))
	}
}
