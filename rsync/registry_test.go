package rsync_test

import (
	"testing"

	"github.com/hobgoblin-net/spempe/rsync"
	"github.com/hobgoblin-net/spempe/wire/pkt"
)

type recordedSend struct {
	kind string
	r    rsync.RecipientID
	id   rsync.SyncID
}

type fakeComposer struct {
	sends []recordedSend
}

func (c *fakeComposer) SendCreate(r rsync.RecipientID, id rsync.SyncID, _ string, _ *pkt.Packet) error {
	c.sends = append(c.sends, recordedSend{"create", r, id})
	return nil
}
func (c *fakeComposer) SendUpdate(r rsync.RecipientID, id rsync.SyncID, _ *pkt.Packet) error {
	c.sends = append(c.sends, recordedSend{"update", r, id})
	return nil
}
func (c *fakeComposer) SendDestroy(r rsync.RecipientID, id rsync.SyncID) error {
	c.sends = append(c.sends, recordedSend{"destroy", r, id})
	return nil
}
func (c *fakeComposer) SendDeactivate(r rsync.RecipientID, id rsync.SyncID) error {
	c.sends = append(c.sends, recordedSend{"deactivate", r, id})
	return nil
}
func (c *fakeComposer) SendReactivate(r rsync.RecipientID, id rsync.SyncID, _ *pkt.Packet) error {
	c.sends = append(c.sends, recordedSend{"reactivate", r, id})
	return nil
}

func (c *fakeComposer) countKind(kind string) int {
	n := 0
	for _, s := range c.sends {
		if s.kind == kind {
			n++
		}
	}
	return n
}

type fakeMaster struct {
	rsync.MasterBase
	decision func(rsync.RecipientID) rsync.Decision
}

func (m *fakeMaster) TypeName() string { return "fake" }
func (m *fakeMaster) Filter(cd *rsync.ControlDelegate) {
	cd.Filter(m.decision)
}
func (m *fakeMaster) WriteFullState(w *pkt.Packet) { w.AppendI32(1) }
func (m *fakeMaster) WriteUpdate(w *pkt.Packet)    { w.AppendI32(2) }

func always(d rsync.Decision) func(rsync.RecipientID) rsync.Decision {
	return func(rsync.RecipientID) rsync.Decision { return d }
}

func TestRunWavesSendsCreateThenUpdate(t *testing.T) {
	c := &fakeComposer{}
	reg := rsync.NewRegistry(c)
	reg.Connect(1)
	reg.RunWaves() // flush the newcomer create wave with zero masters registered

	c.sends = nil
	m := &fakeMaster{decision: always(rsync.DecRegularSync)}
	reg.RegisterMaster(m)

	if err := reg.RunWaves(); err != nil {
		t.Fatalf("RunWaves: %v", err)
	}
	if c.countKind("create") != 1 {
		t.Fatalf("expected exactly one create, got %d sends: %+v", c.countKind("create"), c.sends)
	}

	c.sends = nil
	if err := reg.RunWaves(); err != nil {
		t.Fatalf("RunWaves: %v", err)
	}
	if c.countKind("update") != 1 || c.countKind("create") != 0 {
		t.Fatalf("expected one update and no further create, got %+v", c.sends)
	}
}

// S2 — destroy-while-in-contact: a master created and destroyed in the
// same tick still produces a create-then-destroy pair.
func TestRunWavesCreateThenDestroySameTick(t *testing.T) {
	c := &fakeComposer{}
	reg := rsync.NewRegistry(c)
	reg.Connect(1)
	reg.RunWaves()
	c.sends = nil

	m := &fakeMaster{decision: always(rsync.DecRegularSync)}
	id := reg.RegisterMaster(m)
	reg.UnregisterMaster(id)

	if err := reg.RunWaves(); err != nil {
		t.Fatalf("RunWaves: %v", err)
	}
	if c.countKind("create") != 1 || c.countKind("destroy") != 1 {
		t.Fatalf("expected one create and one destroy, got %+v", c.sends)
	}
}

// Filter that returns DEACTIVATE repeatedly sends exactly one
// deactivate RPC across N ticks.
func TestRunWavesDeactivateSentOnce(t *testing.T) {
	c := &fakeComposer{}
	reg := rsync.NewRegistry(c)
	reg.Connect(1)
	reg.RunWaves()
	c.sends = nil

	m := &fakeMaster{decision: always(rsync.DecRegularSync)}
	reg.RegisterMaster(m)
	reg.RunWaves() // create
	c.sends = nil

	m.decision = always(rsync.DecDeactivate)
	for i := 0; i < 5; i++ {
		if err := reg.RunWaves(); err != nil {
			t.Fatalf("RunWaves: %v", err)
		}
	}
	if c.countKind("deactivate") != 1 {
		t.Fatalf("expected exactly one deactivate across 5 ticks, got %d: %+v", c.countKind("deactivate"), c.sends)
	}
}

// S3 — deactivate then reactivate: resuming REGULAR_SYNC after a
// DEACTIVATE run sends a reactivate (full-state) RPC, not a plain
// update, on the first resumed tick.
func TestRunWavesReactivateAfterDeactivate(t *testing.T) {
	c := &fakeComposer{}
	reg := rsync.NewRegistry(c)
	reg.Connect(1)
	reg.RunWaves()
	c.sends = nil

	m := &fakeMaster{decision: always(rsync.DecRegularSync)}
	reg.RegisterMaster(m)
	reg.RunWaves() // create
	c.sends = nil

	m.decision = always(rsync.DecDeactivate)
	reg.RunWaves()
	reg.RunWaves()
	reg.RunWaves()
	c.sends = nil

	m.decision = always(rsync.DecRegularSync)
	if err := reg.RunWaves(); err != nil {
		t.Fatalf("RunWaves: %v", err)
	}
	if c.countKind("reactivate") != 1 {
		t.Fatalf("expected one reactivate on resume, got %+v", c.sends)
	}
	if c.countKind("update") != 0 {
		t.Fatalf("resume tick should reactivate, not plain-update: got %+v", c.sends)
	}
}

func TestNewcomerGetsSynthesizedCreateRegardlessOfFilter(t *testing.T) {
	c := &fakeComposer{}
	reg := rsync.NewRegistry(c)

	m := &fakeMaster{decision: always(rsync.DecDeactivate)}
	reg.RegisterMaster(m)
	reg.RunWaves() // no recipients yet; master's own create wave finds nothing to do
	c.sends = nil

	reg.Connect(7)
	if err := reg.RunWaves(); err != nil {
		t.Fatalf("RunWaves: %v", err)
	}
	if c.countKind("create") != 1 {
		t.Fatalf("newly-connected recipient should get a create regardless of filter, got %+v", c.sends)
	}
}
