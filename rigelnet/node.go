/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package rigelnet

import (
	"sync"

	"github.com/hobgoblin-net/spempe/cmn/cos"
	"github.com/hobgoblin-net/spempe/wire/pkt"
)

// Node is the shared state every transport (TCP server/client, UDP
// session) wraps: application user-data and the event queue §6
// requires nodes to expose. Applications read PollEvents once per
// tick, mirroring how the teacher's nodes drain a bounded channel on
// the main thread instead of callbacks firing from I/O goroutines.
type Node struct {
	// ID identifies this node (a Server or a Client) in logs and
	// diagnostics, minted once at construction the way the teacher
	// mints a daemon ID.
	ID string

	UserData any
	Registry *Registry

	// Send routes a composed RpcBody to sender (a TCP slot index, or
	// ignored/-1 for a UDP session which has exactly one peer).
	// NewTCPServer and NewTCPClient populate this; the UDP types do
	// not set it.
	Send func(sender int, body *pkt.Packet) error

	// Hooks built-in handlers call into; nil means no-op. Transports
	// and applications wire these to whatever local state they track.
	OnSetUpdateNumber func(sender int, ordinal uint32)
	OnRegistryChanged func(kind string, key string)
	OnKicked          func()
	OnSetClientIndex  func(idx uint32)

	mu     sync.Mutex
	events []Event
}

// NewNode constructs a Node with a freshly minted ID, the way the
// teacher mints a daemon ID for every cluster member at startup.
func NewNode() *Node {
	return &Node{ID: cos.GenNodeID()}
}

// PushEvent enqueues ev; transports call this from their I/O
// goroutines, so it is safe for concurrent use. Repeated
// ConnectionTimedOut events for the same slot within one tick (i.e.
// since the last PollEvents drain) are coalesced into a single queued
// event rather than piling up one per retry.
func (n *Node) PushEvent(ev Event) {
	n.mu.Lock()
	if ev.Kind == EvConnectionTimedOut {
		for _, e := range n.events {
			if e.Kind == EvConnectionTimedOut && e.Slot == ev.Slot {
				n.mu.Unlock()
				return
			}
		}
	}
	n.events = append(n.events, ev)
	n.mu.Unlock()
}

// PollEvents drains and returns every event queued since the last
// call. Intended to be called once per tick from the main thread.
func (n *Node) PollEvents() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.events) == 0 {
		return nil
	}
	out := n.events
	n.events = nil
	return out
}
