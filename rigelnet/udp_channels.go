// Reliable and unreliable channel bookkeeping underlying the UDP
// session (§4.4). Grounded on transport/sendmsg.go's unacked-frame
// FIFO (same shape: enqueue, retire-by-ack, age-based retransmit),
// generalized to small RPC frames instead of bulk object chunks.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package rigelnet

import (
	"sync"
	"time"

	"github.com/hobgoblin-net/spempe/cmn/atomic"
)

type pendingFrame struct {
	ordinal  uint32
	payload  []byte
	lastSent time.Time
}

// reliableSend is the FIFO of unacknowledged reliable frames a UDP
// session's sender side keeps.
type reliableSend struct {
	mu          sync.Mutex
	nextOrdinal atomic.Uint32
	pending     []*pendingFrame
}

func (r *reliableSend) enqueue(payload []byte) uint32 {
	ord := r.nextOrdinal.Add(1) - 1 // first frame is ordinal 0, matching reliableRecv's zero-based head
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, &pendingFrame{ordinal: ord, payload: payload})
	return ord
}

func (r *reliableSend) retire(ordinal uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.pending {
		if p.ordinal == ordinal {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			return
		}
	}
}

// dueForRetransmit returns up to maxPerTick frames whose last-send
// age exceeds min(2*latency, 400ms), marking them as just sent.
func (r *reliableSend) dueForRetransmit(now time.Time, latency time.Duration, maxPerTick int) []*pendingFrame {
	age := 2 * latency
	if age == 0 || age > 400*time.Millisecond {
		age = 400 * time.Millisecond
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []*pendingFrame
	for _, p := range r.pending {
		if len(due) >= maxPerTick {
			break
		}
		if p.lastSent.IsZero() || now.Sub(p.lastSent) > age {
			p.lastSent = now
			due = append(due, p)
		}
	}
	return due
}

// reliableRecv is the receive-side sliding window: a map of not-yet-
// contiguous frames keyed by ordinal, plus the set of ordinals
// awaiting an outgoing ACK.
type reliableRecv struct {
	mu          sync.Mutex
	head        uint32
	window      map[uint32][]byte
	pendingAcks []uint32
}

func newReliableRecv() *reliableRecv {
	return &reliableRecv{window: make(map[uint32][]byte)}
}

// accept records ordinal/payload, ACKing it regardless of novelty,
// and returns the run of now-contiguous payloads (in order) the
// window head can release.
func (r *reliableRecv) accept(ordinal uint32, payload []byte) (delivered [][]byte, dup bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pendingAcks = append(r.pendingAcks, ordinal)

	if ordinal < r.head {
		return nil, true
	}
	if _, exists := r.window[ordinal]; exists {
		return nil, true
	}
	r.window[ordinal] = payload

	for {
		b, ok := r.window[r.head]
		if !ok {
			break
		}
		delivered = append(delivered, b)
		delete(r.window, r.head)
		r.head++
	}
	return delivered, false
}

func (r *reliableRecv) drainAcks() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pendingAcks) == 0 {
		return nil
	}
	out := r.pendingAcks
	r.pendingAcks = nil
	return out
}
