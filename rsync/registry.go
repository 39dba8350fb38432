// Sync registry and control delegate (§4.7): the master/dummy
// replication engine. Grounded on reb/status.go's stage-tracked wave
// bookkeeping (create/update/destroy generalizes the rebalance
// mover's stage transitions) and xact/xreg's id→entry registry
// (renew/entries generalizes into sync-id→master).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package rsync

import (
	"sync"

	"github.com/OneOfOne/xxhash"
	"github.com/hobgoblin-net/spempe/cmn/nlog"
	"github.com/hobgoblin-net/spempe/stats"
	"github.com/hobgoblin-net/spempe/wire/pkt"
	"github.com/pkg/errors"
	cuckoo "github.com/seiflotfy/cuckoofilter"
)

// SyncID is the opaque 64-bit identifier pairing a master to its
// dummies. Bit 63 is reserved 0 for server-assigned ids, leaving the
// high bit free for a future client-originated id space (never
// exercised on the authoritative-server topology this core targets).
type SyncID uint64

const clientOriginatedBit = uint64(1) << 63

// RecipientID addresses one sync recipient — typically a transport
// slot index on the server side.
type RecipientID int

// Decision is the per-recipient classification a control delegate's
// Filter callback produces each wave.
type Decision int

const (
	DecRegularSync Decision = iota
	DecSkip
	DecDeactivate
)

func (d Decision) String() string {
	switch d {
	case DecRegularSync:
		return "REGULAR_SYNC"
	case DecSkip:
		return "SKIP"
	case DecDeactivate:
		return "DEACTIVATE"
	default:
		return "UNKNOWN"
	}
}

// Wave identifies which of the three per-tick passes is in flight.
type Wave int

const (
	WaveCreate Wave = iota
	WaveUpdate
	WaveDestroy
)

// ControlDelegate is handed to a master's Filter callback once per
// wave; Filter classifies every currently-known recipient.
type ControlDelegate struct {
	Wave       Wave
	recipients []RecipientID
	decisions  map[RecipientID]Decision
}

// Recipients returns the set this wave is classifying.
func (cd *ControlDelegate) Recipients() []RecipientID {
	return cd.recipients
}

// Filter applies fn to every recipient, recording its decision.
// Calling Filter more than once in the same callback re-decides
// every recipient (last call wins), matching a master that wants a
// blanket default followed by exceptions via Decide.
func (cd *ControlDelegate) Filter(fn func(RecipientID) Decision) {
	for _, r := range cd.recipients {
		cd.decisions[r] = fn(r)
	}
}

// Decide overrides a single recipient's decision.
func (cd *ControlDelegate) Decide(r RecipientID, d Decision) {
	cd.decisions[r] = d
}

func (cd *ControlDelegate) decisionOf(r RecipientID) Decision {
	if d, ok := cd.decisions[r]; ok {
		return d
	}
	return DecRegularSync
}

// Master is the authoritative side of a synchronized object (§3).
type Master interface {
	SyncID() SyncID
	SetSyncID(SyncID)
	TypeName() string
	// Filter is the sync-impl callback (§4.7): invoked once per wave,
	// classifying recipients via cd.
	Filter(cd *ControlDelegate)
	// WriteFullState serializes the complete visible state, used for
	// create waves and for reactivate-after-deactivate.
	WriteFullState(w *pkt.Packet)
	// WriteUpdate serializes the per-tick update payload (typically an
	// autodiff Pack of the master's visible state).
	WriteUpdate(w *pkt.Packet)
}

// Composer is the narrow capability the registry needs from a
// transport (§9's cyclic-relationship break): append a composed RPC
// to a recipient's send buffer.
type Composer interface {
	SendCreate(r RecipientID, id SyncID, typeName string, full *pkt.Packet) error
	SendUpdate(r RecipientID, id SyncID, body *pkt.Packet) error
	SendDestroy(r RecipientID, id SyncID) error
	SendDeactivate(r RecipientID, id SyncID) error
	SendReactivate(r RecipientID, id SyncID, full *pkt.Packet) error
}

type masterEntry struct {
	m              Master
	deactivated    map[RecipientID]struct{}
	pendingCreate  bool
	pendingDestroy bool
	paused         bool
}

// Registry maintains the bidirectional sync-id↔master map on the
// authoritative side and drives the three per-tick waves; the same
// type also holds the receiving-side dummy bookkeeping (§4.7's
// "dummies on the receiving side also register").
type Registry struct {
	mu sync.Mutex

	composer  Composer
	nextID    uint64
	masters   map[SyncID]*masterEntry
	known     map[RecipientID]struct{}
	newcomers map[RecipientID]struct{}

	// reconciliation pre-check: a cuckoo filter of (recipient,syncID)
	// pairs already known createdfor a newly-connected client, so the
	// hot path can skip the exact map lookup for definitely-absent
	// pairs before falling through to it.
	reconciled *cuckoo.Filter

	dummies       map[SyncID]*dummyEntry
	dummyFactory  map[string]DummyFactory
	currentOrdinal uint32

	// OnDummyDestroyed, if set, is invoked for every dummy AdvanceOrdinal
	// removes, so the application can tear down whatever wraps it (e.g.
	// a qao object), without the registry's internal lock held.
	OnDummyDestroyed func(SyncID, Dummy)
}

// NewRegistry returns an empty registry. composer may be nil for a
// registry used purely on the dummy/client side.
func NewRegistry(composer Composer) *Registry {
	return &Registry{
		composer:   composer,
		masters:    make(map[SyncID]*masterEntry),
		known:      make(map[RecipientID]struct{}),
		newcomers:  make(map[RecipientID]struct{}),
		reconciled: cuckoo.NewFilter(4096),
		dummies:    make(map[SyncID]*dummyEntry),
	}
}

func reconcileKey(r RecipientID, id SyncID) []byte {
	var b [12]byte
	b[0] = byte(r >> 24)
	b[1] = byte(r >> 16)
	b[2] = byte(r >> 8)
	b[3] = byte(r)
	for i := 0; i < 8; i++ {
		b[4+i] = byte(id >> (56 - 8*i))
	}
	return b[:]
}

// ---- server side ----

// AllocSyncID mints the next monotonic server-assigned id.
func (r *Registry) AllocSyncID() SyncID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	return SyncID(r.nextID &^ clientOriginatedBit)
}

// RegisterMaster assigns m a fresh sync-id (if it doesn't already
// have a nonzero one) and queues it for the next create wave.
func (r *Registry) RegisterMaster(m Master) SyncID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.SyncID() == 0 {
		r.nextID++
		m.SetSyncID(SyncID(r.nextID &^ clientOriginatedBit))
	}
	id := m.SyncID()
	r.masters[id] = &masterEntry{m: m, deactivated: make(map[RecipientID]struct{}), pendingCreate: true}
	return id
}

// UnregisterMaster queues id for the next destroy wave; from then on
// update waves skip it, and a master created and destroyed in the same
// tick still gets a create-then-destroy pair (testable property S2).
func (r *Registry) UnregisterMaster(id SyncID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.masters[id]; ok {
		e.pendingDestroy = true
	}
}

// SetSyncPaused implements the pacemaker "suspend" mode (§12): while
// paused, a master's sync-impl is not invoked at all for any wave,
// distinct from a per-recipient SKIP/DEACTIVATE decision.
func (r *Registry) SetSyncPaused(id SyncID, paused bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.masters[id]; ok {
		e.paused = paused
	}
}

// Connect registers a new recipient and marks it newly-connected: the
// next RunWaves sends it a synthesized create for every existing
// master regardless of that master's usual filter outcome.
func (r *Registry) Connect(rid RecipientID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.known[rid] = struct{}{}
	r.newcomers[rid] = struct{}{}
}

// Disconnect forgets rid: its deactivation marks are dropped from
// every master (nothing left to suppress updates for).
func (r *Registry) Disconnect(rid RecipientID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.known, rid)
	delete(r.newcomers, rid)
	for _, e := range r.masters {
		delete(e.deactivated, rid)
	}
}

// FilterSnapshot is the §12 composite-filter-status export: a
// read-only recipient→decision map for diagnostics/tests, reflecting
// each recipient's *deactivation* status (the only sticky decision;
// REGULAR_SYNC/SKIP are re-decided every wave and not retained).
func (r *Registry) FilterSnapshot(id SyncID) map[RecipientID]Decision {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.masters[id]
	if !ok {
		return nil
	}
	out := make(map[RecipientID]Decision, len(r.known))
	for rid := range r.known {
		if _, deact := e.deactivated[rid]; deact {
			out[rid] = DecDeactivate
		} else {
			out[rid] = DecRegularSync
		}
	}
	return out
}

// recipientList returns the known recipients as a slice copy, in map
// iteration order; the order is not sorted and can differ between
// calls.
func (r *Registry) recipientList() []RecipientID {
	out := make([]RecipientID, 0, len(r.known))
	for rid := range r.known {
		out = append(out, rid)
	}
	return out
}

// RunWaves drives one tick's create/update/destroy passes (§4.7,
// §2's POST_UPDATE). Intended to be called once per server tick from
// the sync registry's runtime object.
func (r *Registry) RunWaves() error {
	stats.SyncWaveRun()
	r.mu.Lock()
	recipients := r.recipientList()
	newcomers := make([]RecipientID, 0, len(r.newcomers))
	for rid := range r.newcomers {
		newcomers = append(newcomers, rid)
	}
	r.newcomers = make(map[RecipientID]struct{})
	entries := make([]*masterEntry, 0, len(r.masters))
	for _, e := range r.masters {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	if err := r.waveCreateForNewcomers(newcomers, entries); err != nil {
		return err
	}
	if err := r.waveCreate(recipients, entries); err != nil {
		return err
	}
	if err := r.waveUpdate(recipients, entries); err != nil {
		return err
	}
	if err := r.waveDestroy(recipients, entries); err != nil {
		return err
	}
	r.reportDeactivatedRecipients(entries)
	return nil
}

// reportDeactivatedRecipients updates the process-wide gauge with the
// total number of (master, recipient) pairs currently sitting in the
// DEACTIVATE state, summed across every master this registry drives.
func (r *Registry) reportDeactivatedRecipients(entries []*masterEntry) {
	r.mu.Lock()
	total := 0
	for _, e := range entries {
		total += len(e.deactivated)
	}
	r.mu.Unlock()
	stats.SetDeactivatedRecipients(total)
}

func (r *Registry) waveCreateForNewcomers(newcomers []RecipientID, entries []*masterEntry) error {
	if len(newcomers) == 0 {
		return nil
	}
	for _, e := range entries {
		if e.pendingDestroy || e.paused {
			continue
		}
		full := pkt.New()
		e.m.WriteFullState(full)
		for _, rid := range newcomers {
			if err := r.composer.SendCreate(rid, e.m.SyncID(), e.m.TypeName(), full); err != nil {
				return err
			}
			r.markReconciled(rid, e.m.SyncID())
		}
	}
	return nil
}

func (r *Registry) waveCreate(recipients []RecipientID, entries []*masterEntry) error {
	for _, e := range entries {
		if !e.pendingCreate || e.paused {
			continue
		}
		// Note: a master queued for destruction the same tick it was
		// created (S2) still runs its create wave — destruction is
		// handled separately by waveDestroy right after, producing the
		// create-then-destroy pair the receiver must observe.
		e.pendingCreate = false
		cd := &ControlDelegate{Wave: WaveCreate, recipients: recipients, decisions: make(map[RecipientID]Decision)}
		e.m.Filter(cd)

		var full *pkt.Packet
		for _, rid := range recipients {
			if r.alreadyReconciled(rid, e.m.SyncID()) {
				continue // already sent by the newcomer pass this tick
			}
			switch cd.decisionOf(rid) {
			case DecRegularSync:
				if full == nil {
					full = pkt.New()
					e.m.WriteFullState(full)
				}
				if err := r.composer.SendCreate(rid, e.m.SyncID(), e.m.TypeName(), full); err != nil {
					return err
				}
				r.markReconciled(rid, e.m.SyncID())
			case DecDeactivate:
				r.mu.Lock()
				e.deactivated[rid] = struct{}{}
				r.mu.Unlock()
			case DecSkip:
				// not yet created for this recipient; next create wave
				// (there isn't one — pendingCreate is now false) will
				// never retry it. A master that wants a delayed first
				// create should hold off calling RegisterMaster.
			}
		}
	}
	return nil
}

func (r *Registry) waveUpdate(recipients []RecipientID, entries []*masterEntry) error {
	for _, e := range entries {
		if e.pendingDestroy || e.paused {
			continue
		}
		cd := &ControlDelegate{Wave: WaveUpdate, recipients: recipients, decisions: make(map[RecipientID]Decision)}
		e.m.Filter(cd)

		var update, full *pkt.Packet
		for _, rid := range recipients {
			r.mu.Lock()
			_, wasDeactivated := e.deactivated[rid]
			r.mu.Unlock()

			switch cd.decisionOf(rid) {
			case DecRegularSync:
				if wasDeactivated {
					if full == nil {
						full = pkt.New()
						e.m.WriteFullState(full)
					}
					if err := r.composer.SendReactivate(rid, e.m.SyncID(), full); err != nil {
						return err
					}
					r.mu.Lock()
					delete(e.deactivated, rid)
					r.mu.Unlock()
					continue
				}
				if update == nil {
					update = pkt.New()
					e.m.WriteUpdate(update)
				}
				if err := r.composer.SendUpdate(rid, e.m.SyncID(), update); err != nil {
					return err
				}
			case DecSkip:
				// leave deactivation status unchanged either way
			case DecDeactivate:
				if !wasDeactivated {
					if err := r.composer.SendDeactivate(rid, e.m.SyncID()); err != nil {
						return err
					}
					r.mu.Lock()
					e.deactivated[rid] = struct{}{}
					chk := checksumRecipients(e.deactivated)
					r.mu.Unlock()
					nlog.Infof("rsync: sync-id %d deactivated for recipient %d (set checksum %x)", e.m.SyncID(), rid, chk)
				}
			}
		}
	}
	return nil
}

func (r *Registry) waveDestroy(recipients []RecipientID, entries []*masterEntry) error {
	for _, e := range entries {
		if !e.pendingDestroy {
			continue
		}
		for _, rid := range recipients {
			r.mu.Lock()
			_, deactivated := e.deactivated[rid]
			r.mu.Unlock()
			if deactivated {
				continue // recipient was never told this object exists
			}
			if err := r.composer.SendDestroy(rid, e.m.SyncID()); err != nil {
				return err
			}
		}
		r.mu.Lock()
		delete(r.masters, e.m.SyncID())
		r.mu.Unlock()
	}
	return nil
}

func (r *Registry) markReconciled(rid RecipientID, id SyncID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.reconciled.InsertUnique(reconcileKey(rid, id))
}

func (r *Registry) alreadyReconciled(rid RecipientID, id SyncID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	// The cuckoo filter is a probabilistic pre-check: a negative is
	// authoritative (never sent), a positive still needs the caller's
	// own bookkeeping (pendingCreate/newcomers handling above) — here
	// it's used only to dedupe the newcomer-pass + create-wave-pass
	// double send within one RunWaves call.
	return r.reconciled.Lookup(reconcileKey(rid, id))
}

// DeactivationChecksum is a diagnostic helper (xxhash, the teacher's
// checksum of choice throughout cmn/cos): a cheap digest of a
// master's deactivation set, useful for tests and logs asserting the
// set didn't change across a SKIP tick without comparing full maps.
func (r *Registry) DeactivationChecksum(id SyncID) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.masters[id]
	if !ok {
		return 0
	}
	return checksumRecipients(e.deactivated)
}

func checksumRecipients(ids map[RecipientID]struct{}) uint64 {
	sorted := make([]int, 0, len(ids))
	for rid := range ids {
		sorted = append(sorted, int(rid))
	}
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j] < sorted[i] {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}
	b := make([]byte, 8*len(sorted))
	for i, v := range sorted {
		for k := 0; k < 8; k++ {
			b[8*i+k] = byte(v >> (56 - 8*k))
		}
	}
	return xxhash.Checksum64(b)
}

// ErrUnknownSyncID is the SyncProtocolViolation taxonomy member (§7):
// an update/destroy arrived for a sync-id with no registered dummy.
var ErrUnknownSyncID = errors.New("rsync: unknown sync-id")
