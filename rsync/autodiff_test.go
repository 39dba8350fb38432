package rsync_test

import (
	"testing"

	"github.com/hobgoblin-net/spempe/rsync"
	"github.com/hobgoblin-net/spempe/wire/pkt"
)

type visibleState struct {
	X, Y int32
	Name string
	internal float64 `autodiff:"-"`
}

func TestAutodiffPackAppliesOnlyChangedFields(t *testing.T) {
	mirror := visibleState{X: 1, Y: 2, Name: "orig"}
	current := mirror

	current.X = 99 // one field changed

	w := pkt.New()
	if err := rsync.Pack(w, &mirror, &current); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	clone := mirror // clone starts as a pre-mutation copy, like a dummy's coasted baseline
	r := pkt.NewFromBytes(w.Bytes())
	if err := rsync.Apply(r, &clone); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if clone.X != current.X {
		t.Fatalf("clone.X = %d, want %d (the mutated field)", clone.X, current.X)
	}
	if clone.Y != mirror.Y || clone.Name != mirror.Name {
		t.Fatalf("untouched fields on clone should equal the pre-mutation mirror; got %+v", clone)
	}
}

func TestAutodiffCommitAdvancesMirror(t *testing.T) {
	mirror := visibleState{X: 1}
	current := visibleState{X: 5}

	if err := rsync.Commit(&mirror, &current); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if mirror.X != 5 {
		t.Fatalf("mirror.X = %d after Commit, want 5", mirror.X)
	}

	w := pkt.New()
	if err := rsync.Pack(w, &mirror, &current); err != nil {
		t.Fatalf("Pack: %v", err)
	}
	// nothing changed since Commit, so the bitmask alone (8 bytes) should
	// be the entire payload.
	if w.Len() != 8 {
		t.Fatalf("Pack after Commit wrote %d bytes, want 8 (bitmask only, no fields)", w.Len())
	}
}

func TestAutodiffRejectsNonStruct(t *testing.T) {
	var x int
	w := pkt.New()
	if err := rsync.Pack(w, &x, &x); err == nil {
		t.Fatalf("expected an error packing a non-struct")
	}
}
