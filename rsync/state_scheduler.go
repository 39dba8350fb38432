// Package rsync implements the core's Synchronized Object Registry
// (§4.6/§4.7/§4.8): a per-entity delay buffer with freshness and
// blueprint fallback, a master/dummy replication registry driving
// create/update/destroy waves with per-recipient filter decisions,
// and autodiff state packing.
//
// Grounded on reb/status.go and reb/ec.go (wave/stage bookkeeping,
// per-recipient ack tracking generalized from per-target rebalance
// acks into per-recipient sync-filter decisions) and xact/xreg's
// renew/entries registry pattern (generalized from xaction renewal
// into sync-id to master lookup).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package rsync

// StateScheduler is the client-side delay buffer (§4.6): a FIFO of
// State values of configurable length L, smoothing network jitter at
// the cost of L ticks of presentation delay. Put/Advance/Current are
// the only mutators the spec names; SetBufferingLength is the §12
// supplement (lazy, data-preserving resize).
type StateScheduler struct {
	buf      []slot
	head     int
	pendingL int // requested length, applied at next Advance
	fresh    bool
}

type slot struct {
	state any
	set   bool
}

// NewStateScheduler returns a scheduler with buffering length l
// (l==0 means the dummy always reads the most recently put state
// with no delay at all).
func NewStateScheduler(l int) *StateScheduler {
	s := &StateScheduler{pendingL: l}
	s.buf = make([]slot, l+1)
	return s
}

// BufferingLength returns the scheduler's current (applied) length.
func (s *StateScheduler) BufferingLength() int { return len(s.buf) - 1 }

// SetBufferingLength requests a new buffering length; it takes effect
// at the next Advance, per §4.6's "changes take effect on the next
// advance()". Existing buffered entries that still fit the new length
// (indices relative to head) are preserved rather than discarded
// wholesale — the original's resize_preserving_data behavior (§12).
func (s *StateScheduler) SetBufferingLength(l int) {
	if l < 0 {
		l = 0
	}
	s.pendingL = l
}

// Put schedules state to emerge delay ticks after the current head.
// A slot already holding a scheduled state is overwritten; slots past
// it are filled with stale copies of state so Current returns
// plausible data if the stream stalls before they are reached.
func (s *StateScheduler) Put(state any, delay int) {
	if delay < 0 {
		delay = 0
	}
	n := len(s.buf)
	if delay >= n {
		delay = n - 1
	}
	idx := (s.head + delay) % n
	s.buf[idx] = slot{state: state, set: true}
	if delay == 0 {
		s.fresh = true
	}
	for d := delay + 1; d < n; d++ {
		i := (s.head + d) % n
		if !s.buf[i].set {
			s.buf[i] = slot{state: state, set: false}
		}
	}
}

// Advance shifts the head forward by one tick, clears the fresh bit,
// and — if the new head was never explicitly Put — coasts by
// duplicating the previous head's value. Applies any pending
// SetBufferingLength resize, preserving as many in-range entries as
// fit the new length.
func (s *StateScheduler) Advance() {
	if s.pendingL+1 != len(s.buf) {
		s.resize(s.pendingL)
	}
	n := len(s.buf)
	prev := s.buf[s.head]
	s.buf[s.head].set = false // leaving this slot: its freshness doesn't persist into future laps
	s.head = (s.head + 1) % n

	s.fresh = s.buf[s.head].set
	// Consumed: clear the explicit-set flag so a later wraparound back
	// to this index, with no intervening Put, coasts rather than
	// reporting a put from n ticks ago as fresh.
	s.buf[s.head].set = false
	if !s.fresh {
		s.buf[s.head].state = prev.state
	}
}

func (s *StateScheduler) resize(l int) {
	n := l + 1
	nb := make([]slot, n)
	old := len(s.buf)
	for d := 0; d < n && d < old; d++ {
		nb[d] = s.buf[(s.head+d)%old]
	}
	s.buf = nb
	s.head = 0
}

// Current returns the state at the head slot and whether a Put landed
// on it this tick. Per §5 of the testable properties, L+1 consecutive
// Advance calls with no Put leave Current equal to the last-put state
// with fresh==false.
func (s *StateScheduler) Current() (state any, fresh bool) {
	return s.buf[s.head].state, s.fresh
}
