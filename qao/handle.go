/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package qao

// Handle identifies a registered object for its lifetime; handles are
// never reused within a single Runtime's lifetime.
type Handle uint64

// Priority orders objects within a phase: higher runs first in the
// forward (non-draw) direction and last in the reverse (draw)
// direction, so a HUD drawn "on top" gets a low draw priority while
// still updating early.
type Priority int32

// NullHandle is returned by AddObject on failure and never assigned
// to a live registration.
const NullHandle Handle = 0

// Object is anything the runtime can step. Name is used by Find and
// in diagnostics; it need not be unique, though Find returns the
// first match in traversal order.
type Object interface {
	Name() string
	EventMask() EventMask
	OnEvent(ev Event) error
}

// Destroyer is an optional interface: objects removed by
// DestroyAllOwned (or individually via RemoveObject) that implement
// it get a teardown callback once unlinked from the registry.
type Destroyer interface {
	OnDestroy()
}
