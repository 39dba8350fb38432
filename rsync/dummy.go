// Dummy-side bookkeeping (§4.7 "dummy side"): incoming create
// instantiates a dummy and zero-fills its state scheduler, incoming
// update decodes state and pushes it into the scheduler at the
// sender's pessimistic latency, incoming destroy schedules removal
// for the tick matching the sender's current update ordinal.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package rsync

import (
	"github.com/hobgoblin-net/spempe/cmn/nlog"
	"github.com/hobgoblin-net/spempe/wire/pkt"
	"github.com/pkg/errors"
)

// Dummy is the replica side of a synchronized object (§3).
type Dummy interface {
	SyncID() SyncID
	SetSyncID(SyncID)
	// Scheduler returns the dummy's state-scheduler buffer; the
	// registry Puts decoded states onto it and the application reads
	// Current() from its own tick logic.
	Scheduler() *StateScheduler
	// DecodeState reads one update/create payload into a State value
	// ready to be Put onto the scheduler.
	DecodeState(r *pkt.Packet) any
}

// DummyFactory instantiates a Dummy for typeName from a create wave's
// full-state payload.
type DummyFactory func(id SyncID, full *pkt.Packet) Dummy

type dummyEntry struct {
	d                Dummy
	pendingDestroy   bool
	destroyAtOrdinal uint32
	deactivated      bool
}

// RegisterDummyFactory installs the constructor used when a create
// wave names typeName. Registering the same name twice overwrites.
func (r *Registry) RegisterDummyFactory(typeName string, f DummyFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dummyFactory == nil {
		r.dummyFactory = make(map[string]DummyFactory)
	}
	r.dummyFactory[typeName] = f
}

// HandleCreate instantiates a dummy for id via the factory registered
// under typeName, registers the sync-id↔dummy mapping, and returns it.
// A duplicate create for an id already registered is a
// SyncProtocolViolation: logged and dropped (§7), not fatal.
func (r *Registry) HandleCreate(id SyncID, typeName string, full *pkt.Packet) (Dummy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.dummies[id]; exists {
		nlog.Warningf("rsync: duplicate create for sync-id %d (type %s), dropping", id, typeName)
		return nil, nil
	}
	factory, ok := r.dummyFactory[typeName]
	if !ok {
		return nil, errors.Errorf("rsync: no dummy factory registered for type %q", typeName)
	}
	d := factory(id, full)
	d.SetSyncID(id)
	r.dummies[id] = &dummyEntry{d: d}
	return d, nil
}

// HandleUpdate decodes body via the dummy's DecodeState and schedules
// it delayTicks ticks out (the sender's measured pessimistic latency,
// converted to ticks by the caller). Unknown sync-id is a
// SyncProtocolViolation (§7): logged and dropped.
func (r *Registry) HandleUpdate(id SyncID, body *pkt.Packet, delayTicks int) error {
	r.mu.Lock()
	e, ok := r.dummies[id]
	r.mu.Unlock()
	if !ok {
		nlog.Warningf("rsync: update for unknown sync-id %d, dropping", id)
		return nil
	}
	if e.deactivated {
		// A REGULAR_SYNC reactivate always precedes a post-deactivate
		// update; an update arriving while still marked deactivated
		// is a stale/reordered frame — coast rather than apply it.
		return nil
	}
	state := e.d.DecodeState(body)
	e.d.Scheduler().Put(state, delayTicks)
	return nil
}

// HandleDeactivate marks the dummy deactivated: its scheduler simply
// stops receiving Puts (coasting) until a matching Reactivate.
func (r *Registry) HandleDeactivate(id SyncID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.dummies[id]; ok {
		e.deactivated = true
	}
}

// HandleReactivate clears the deactivated mark and seeds the
// scheduler's current head with the accompanying full-state payload.
func (r *Registry) HandleReactivate(id SyncID, full *pkt.Packet) error {
	r.mu.Lock()
	e, ok := r.dummies[id]
	r.mu.Unlock()
	if !ok {
		nlog.Warningf("rsync: reactivate for unknown sync-id %d, dropping", id)
		return nil
	}
	e.deactivated = false
	state := e.d.DecodeState(full)
	e.d.Scheduler().Put(state, 0)
	return nil
}

// HandleDestroy queues id for removal at the tick the sender's
// update ordinal reaches atOrdinal (§4.7). Unknown sync-id: logged
// and dropped.
func (r *Registry) HandleDestroy(id SyncID, atOrdinal uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.dummies[id]
	if !ok {
		nlog.Warningf("rsync: destroy for unknown sync-id %d, dropping", id)
		return
	}
	e.pendingDestroy = true
	e.destroyAtOrdinal = atOrdinal
}

// AdvanceAllSchedulers calls Advance on every registered dummy's
// state scheduler once (§2: client-side POST_UPDATE "advances
// client-side state schedulers, popping the buffered state for the
// current tick").
func (r *Registry) AdvanceAllSchedulers() {
	r.mu.Lock()
	scheds := make([]*StateScheduler, 0, len(r.dummies))
	for _, e := range r.dummies {
		scheds = append(scheds, e.d.Scheduler())
	}
	r.mu.Unlock()
	for _, s := range scheds {
		s.Advance()
	}
}

// AdvanceOrdinal records the sender's current update ordinal and
// removes every dummy whose queued destroy ordinal has been reached,
// returning their ids so the caller can tear down any associated
// active-object wrapper. Intended to be called once per client tick
// (POST_UPDATE) with the ordinal the built-in setUpdateNumber handler
// last observed.
func (r *Registry) AdvanceOrdinal(ordinal uint32) []SyncID {
	r.mu.Lock()
	r.currentOrdinal = ordinal
	var removed []SyncID
	var destroyed []*dummyEntry
	for id, e := range r.dummies {
		if e.pendingDestroy && e.destroyAtOrdinal <= ordinal {
			removed = append(removed, id)
			destroyed = append(destroyed, e)
			delete(r.dummies, id)
		}
	}
	cb := r.OnDummyDestroyed
	r.mu.Unlock()

	if cb != nil {
		for i, id := range removed {
			cb(id, destroyed[i].d)
		}
	}
	return removed
}

// CurrentOrdinal returns the last ordinal recorded by AdvanceOrdinal.
func (r *Registry) CurrentOrdinal() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentOrdinal
}

// FindDummy returns the registered dummy for id, if any.
func (r *Registry) FindDummy(id SyncID) (Dummy, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.dummies[id]
	if !ok {
		return nil, false
	}
	return e.d, true
}
