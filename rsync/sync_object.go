// SynchronizedObject glue (§3, §4.7): a specialization of an active
// object, flagged master or dummy. MasterBase/DummyBase give
// application types the SyncID bookkeeping for free; Pacemaker is the
// qao.Object that pulses the registry once per tick from POST_UPDATE.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package rsync

import "github.com/hobgoblin-net/spempe/qao"

// MasterBase is embeddable in application master types: it satisfies
// the SyncID()/SetSyncID() half of the Master interface so concrete
// types only need to implement Filter/WriteFullState/WriteUpdate.
type MasterBase struct {
	id SyncID
}

func (b *MasterBase) SyncID() SyncID     { return b.id }
func (b *MasterBase) SetSyncID(id SyncID) { b.id = id }

// DummyBase is the dummy-side equivalent: SyncID bookkeeping plus the
// owned state scheduler every dummy holds (§3).
type DummyBase struct {
	id        SyncID
	scheduler *StateScheduler
}

// NewDummyBase constructs a DummyBase with a scheduler of the given
// buffering length, ready to be embedded by a concrete dummy type.
func NewDummyBase(bufferingLength int) DummyBase {
	return DummyBase{scheduler: NewStateScheduler(bufferingLength)}
}

func (b *DummyBase) SyncID() SyncID             { return b.id }
func (b *DummyBase) SetSyncID(id SyncID)        { b.id = id }
func (b *DummyBase) Scheduler() *StateScheduler { return b.scheduler }

// Pacemaker is the §4.7 "pacemaker pulses" qao.Object: one instance
// per node, registered with qao.EvPostUpdate. On a server/master node
// it drives RunWaves; on a client/dummy node it advances the update
// ordinal's pending destroys and every dummy's state scheduler.
//
// Grounded on transport/collect.go's tick-driven collector object,
// generalized from a single idle-connection sweep into the sync
// registry's per-tick wave/advance pulse.
type Pacemaker struct {
	name       string
	registry   *Registry
	isMaster   bool
	ordinalFn  func() uint32
}

// NewMasterPacemaker returns a Pacemaker that calls reg.RunWaves() each
// POST_UPDATE (authoritative/server role).
func NewMasterPacemaker(name string, reg *Registry) *Pacemaker {
	return &Pacemaker{name: name, registry: reg, isMaster: true}
}

// NewDummyPacemaker returns a Pacemaker that advances reg's dummy-side
// bookkeeping each POST_UPDATE (client role). ordinalFn must return
// the latest update ordinal observed from the server (typically fed
// by the setUpdateNumber built-in handler, §6).
func NewDummyPacemaker(name string, reg *Registry, ordinalFn func() uint32) *Pacemaker {
	return &Pacemaker{name: name, registry: reg, ordinalFn: ordinalFn}
}

func (p *Pacemaker) Name() string         { return p.name }
func (p *Pacemaker) EventMask() qao.EventMask { return qao.EvPostUpdate }

func (p *Pacemaker) OnEvent(ev qao.Event) error {
	if ev != qao.EvPostUpdate {
		return nil
	}
	if p.isMaster {
		return p.registry.RunWaves()
	}
	p.registry.AdvanceOrdinal(p.ordinalFn())
	p.registry.AdvanceAllSchedulers()
	return nil
}
