// Package qao — Runtime: the registry and phase-stepping driver.
//
// Grounded on xact/xreg's registry bookkeeping (a live set keyed by
// handle, with create/remove under a single lock) and on
// transport/collect.go's fixed-order tick traversal. The teacher
// drives one flat collector loop off a min-heap of deadlines; this
// generalizes that into a priority-ordered live list walked once per
// phase, with mutations deferred to phase boundaries so a traversal
// in flight is never invalidated by a same-phase removal.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package qao

import (
	"sort"
	"sync"

	"github.com/hobgoblin-net/spempe/cmn/debug"
	"github.com/pkg/errors"
)

// ErrUnknownHandle is returned by operations addressing a handle the
// runtime has no record of (already removed, or never registered).
var ErrUnknownHandle = errors.New("qao: unknown handle")

type entry struct {
	obj      Object
	handle   Handle
	priority Priority
	ordinal  uint64
	owned    bool
	removing bool
}

// Runtime is the active object scheduler: one instance per host loop
// (§4.9 wires exactly one into its accumulator). Not safe for
// concurrent Add/Remove from multiple goroutines while a step is in
// flight; the host loop owns it single-threaded, matching the
// teacher's xreg registry discipline of one mutating owner at a time.
type Runtime struct {
	mu sync.Mutex

	all      map[Handle]*entry
	live     []*entry // committed, sorted, valid only between phase boundaries
	pendAdd  []*entry
	pendDrop map[Handle]struct{}

	nextHandle  Handle
	nextOrdinal uint64

	cursor  int
	stopped bool
}

// New returns an empty Runtime.
func New() *Runtime {
	return &Runtime{
		all:      make(map[Handle]*entry),
		pendDrop: make(map[Handle]struct{}),
	}
}

// AddObject registers obj at priority, returning the handle future
// RemoveObject/Find calls address it by. owned marks the object for
// inclusion in DestroyAllOwned; non-owned objects (e.g. the host
// itself, or objects whose lifetime some other subsystem manages)
// are skipped by that sweep.
//
// The registration is queued and takes effect at the next phase
// boundary — reachable starting with whichever phase AdvanceStep runs
// next, never mid-phase.
func (r *Runtime) AddObject(obj Object, priority Priority, owned bool) Handle {
	debug.Assert(obj != nil)
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextHandle++
	r.nextOrdinal++
	e := &entry{
		obj:      obj,
		handle:   r.nextHandle,
		priority: priority,
		ordinal:  r.nextOrdinal,
		owned:    owned,
	}
	r.all[e.handle] = e
	r.pendAdd = append(r.pendAdd, e)
	return e.handle
}

// RemoveObject marks handle for removal. Legal to call mid-phase: the
// committed traversal list for the phase in flight is left untouched;
// the entry is unlinked at the next phase boundary. Removing an
// already-removed or unknown handle is a no-op.
func (r *Runtime) RemoveObject(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.all[h]
	if !ok || e.removing {
		return
	}
	e.removing = true
	r.pendDrop[h] = struct{}{}
}

// DestroyAllOwned removes every owned object, in reverse insertion
// order, invoking OnDestroy on those that implement Destroyer. Takes
// effect immediately (not deferred to a phase boundary) since it is
// meant for shutdown, between steps.
func (r *Runtime) DestroyAllOwned() {
	r.mu.Lock()
	owned := make([]*entry, 0, len(r.all))
	for _, e := range r.all {
		if e.owned && !e.removing {
			owned = append(owned, e)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].ordinal > owned[j].ordinal })
	r.mu.Unlock()

	for _, e := range owned {
		r.RemoveObject(e.handle)
	}
	r.flushPending()
}

// Find returns the first live object (committed or pending-add) whose
// Name matches name, or nil.
func (r *Runtime) Find(name string) Object {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.live {
		if !e.removing && e.obj.Name() == name {
			return e.obj
		}
	}
	for _, e := range r.pendAdd {
		if e.obj.Name() == name {
			return e.obj
		}
	}
	return nil
}

// Stop requests that the running step abort at its next phase
// boundary; AdvanceStep observes it and returns done=true without
// running further phases.
func (r *Runtime) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
}

func (r *Runtime) Stopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

// StartStep begins a new step: flushes queued add/remove mutations
// into the committed, sorted live list, and resets the phase cursor
// to the start of phaseOrder.
func (r *Runtime) StartStep() {
	r.flushPending()
	r.mu.Lock()
	r.cursor = 0
	r.mu.Unlock()
}

// AdvanceStep runs the next phase in phaseOrder that is selected by
// mask, one phase per call, until the last phase mask selects has
// run — at which point done is true. Calling AdvanceStep again after
// done is a no-op returning (true, nil).
//
// A phase-handler error aborts that phase immediately: remaining
// objects in the phase are not visited, but the cursor still advances
// past it, so the runtime's own bookkeeping stays consistent and the
// caller decides whether to keep stepping.
//
// Queued add/remove mutations are committed before the phase runs.
func (r *Runtime) AdvanceStep(mask EventMask) (done bool, err error) {
	r.flushPending()
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return true, nil
	}
	for r.cursor < len(phaseOrder) {
		ev := phaseOrder[r.cursor]
		r.cursor++
		if ev&mask == 0 {
			continue
		}
		snapshot := r.snapshotLocked(ev)
		r.mu.Unlock()

		perr := r.runPhase(ev, snapshot)

		r.mu.Lock()
		done = r.cursor >= len(phaseOrder) || !r.hasMoreLocked(mask)
		r.mu.Unlock()
		return done, perr
	}
	r.mu.Unlock()
	return true, nil
}

func (r *Runtime) hasMoreLocked(mask EventMask) bool {
	for i := r.cursor; i < len(phaseOrder); i++ {
		if phaseOrder[i]&mask != 0 {
			return true
		}
	}
	return false
}

// snapshotLocked returns the ordered slice of live objects to visit
// for ev: forward priority order for non-draw phases, reverse for
// draw phases. Called with r.mu held; returns a copy so the caller
// may unlock before invoking user code.
func (r *Runtime) snapshotLocked(ev Event) []*entry {
	out := make([]*entry, 0, len(r.live))
	for _, e := range r.live {
		if !e.removing {
			out = append(out, e)
		}
	}
	if isDraw(ev) {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

func (r *Runtime) runPhase(ev Event, snapshot []*entry) error {
	for _, e := range snapshot {
		if e.obj.EventMask()&ev == 0 {
			continue
		}
		if err := e.obj.OnEvent(ev); err != nil {
			return errors.Wrapf(err, "qao: phase %s aborted at object %q", ev, e.obj.Name())
		}
	}
	return nil
}

// flushPending commits queued adds/removes into the sorted live list.
// Insertion order (ordinal) breaks priority ties, giving the FIFO
// tie-break the spec requires. OnDestroy runs newest-first (reverse
// insertion order).
func (r *Runtime) flushPending() {
	r.mu.Lock()

	destroyed := make([]*entry, 0, len(r.pendDrop))
	for h := range r.pendDrop {
		if e, ok := r.all[h]; ok {
			destroyed = append(destroyed, e)
		}
		delete(r.all, h)
	}
	r.pendDrop = make(map[Handle]struct{})
	sort.Slice(destroyed, func(i, j int) bool { return destroyed[i].ordinal > destroyed[j].ordinal })

	next := r.live[:0:0]
	for _, e := range r.live {
		if !e.removing {
			next = append(next, e)
		}
	}
	for _, e := range r.pendAdd {
		if !e.removing {
			next = append(next, e)
		}
	}
	r.pendAdd = nil

	sort.SliceStable(next, func(i, j int) bool {
		if next[i].priority != next[j].priority {
			return next[i].priority > next[j].priority
		}
		return next[i].ordinal < next[j].ordinal
	})
	r.live = next

	for _, e := range r.live {
		debug.Assertf(!e.removing, "flushed entry %s still marked removing", e.obj.Name())
	}
	r.mu.Unlock()

	for _, e := range destroyed {
		if d, ok := e.obj.(Destroyer); ok {
			d.OnDestroy()
		}
	}
}
