package rsync_test

import (
	"testing"

	"github.com/hobgoblin-net/spempe/rsync"
)

func TestStateSchedulerZeroLength(t *testing.T) {
	s := rsync.NewStateScheduler(0)
	s.Put("a", 0)
	s.Advance()
	got, _ := s.Current()
	if got != "a" {
		t.Fatalf("Current() = %v, want %q", got, "a")
	}
}

func TestStateSchedulerFreshBit(t *testing.T) {
	s := rsync.NewStateScheduler(0)
	s.Put("a", 0)
	if _, fresh := s.Current(); !fresh {
		t.Fatalf("expected fresh=true immediately after Put")
	}
	s.Advance()
	if _, fresh := s.Current(); !fresh {
		t.Fatalf("expected fresh=true on the tick the put lands (L=0)")
	}
	s.Advance()
	if _, fresh := s.Current(); fresh {
		t.Fatalf("expected fresh=false once no new put has landed")
	}
}

func TestStateSchedulerCoastsAfterBufferDrains(t *testing.T) {
	const L = 2
	s := rsync.NewStateScheduler(L)
	s.Put("last", 0)

	for i := 0; i < L+1; i++ {
		s.Advance()
	}
	got, fresh := s.Current()
	if got != "last" {
		t.Fatalf("after %d advances with no put, Current() = %v, want %q", L+1, got, "last")
	}
	if fresh {
		t.Fatalf("after %d advances with no put, fresh should be false", L+1)
	}
}

func TestStateSchedulerDelayedPutEmergesOnSchedule(t *testing.T) {
	s := rsync.NewStateScheduler(3)
	s.Put("future", 2)

	s.Advance()
	if got, _ := s.Current(); got == "future" {
		t.Fatalf("put with delay=2 emerged one tick early")
	}
	s.Advance()
	got, fresh := s.Current()
	if got != "future" || !fresh {
		t.Fatalf("Current() = (%v, %v), want (\"future\", true) on the scheduled tick", got, fresh)
	}
}

func TestStateSchedulerSetBufferingLengthPreservesData(t *testing.T) {
	s := rsync.NewStateScheduler(1)
	s.Put("x", 1)
	s.SetBufferingLength(3)
	s.Advance() // resize applies here; pending value at relative offset 1 should survive

	got, _ := s.Current()
	if got != "x" {
		t.Fatalf("resize lost the in-flight value: Current() = %v, want %q", got, "x")
	}
}
