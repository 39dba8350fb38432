// Package qao implements the core's Active Object Runtime (§4.1): a
// cooperative, event-phased scheduler over registered long-lived
// objects with deterministic ordering. Grounded on xact/xreg's
// registry (renew/entries/priority-ish active-list bookkeeping) and on
// transport/collect.go's tick-driven traversal, generalized from a
// single idle-timeout heap into the full fourteen-phase step the spec
// calls for.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package qao

// EventMask is a bitmask over Event values; an object's EventMask()
// declares which phases it participates in ("the set an implementer
// MUST expose"), matching the caller-supplied bitmask advanceStep
// filters against.
type EventMask = Event

// Event is the closed set of phases a step can run, one bit per
// phase, matching their fixed execution order within a step. Design
// note (§9): represented as a closed enum with explicit integer
// values, the same shape as the original QAO_Event enum.
type Event uint32

const (
	EvStartFrame Event = 1 << iota
	EvPreUpdate
	EvBeginUpdate
	EvUpdate1
	EvUpdate2
	EvEndUpdate
	EvPostUpdate
	EvPreDraw
	EvDraw1
	EvDraw2
	EvDrawGUI
	EvPostDraw
	EvDisplay
	EvEndFrame
)

// phaseOrder is the fixed, spec-mandated execution order within a step.
var phaseOrder = []Event{
	EvStartFrame, EvPreUpdate, EvBeginUpdate, EvUpdate1, EvUpdate2, EvEndUpdate, EvPostUpdate,
	EvPreDraw, EvDraw1, EvDraw2, EvDrawGUI, EvPostDraw, EvDisplay, EvEndFrame,
}

// isDraw reports whether ev belongs to the draw group (reverse
// traversal order) as opposed to the non-draw / forward group.
func isDraw(ev Event) bool {
	switch ev {
	case EvPreDraw, EvDraw1, EvDraw2, EvDrawGUI, EvPostDraw:
		return true
	default:
		return false
	}
}

// Open Question resolution (recorded in DESIGN.md): the spec's §4.9
// host loop calls a "non-draw step" once per catch-up tick, then "a
// draw step" once, then "DISPLAY" once. START_FRAME belongs to the
// non-draw mask and so fires once per catch-up tick; END_FRAME belongs
// to the display mask and fires once per host iteration. These three
// masks are how a host composes that loop against StartStep/
// AdvanceStep.
const (
	MaskUpdate  = EvStartFrame | EvPreUpdate | EvBeginUpdate | EvUpdate1 | EvUpdate2 | EvEndUpdate | EvPostUpdate
	MaskDraw    = EvPreDraw | EvDraw1 | EvDraw2 | EvDrawGUI | EvPostDraw
	MaskDisplay = EvDisplay | EvEndFrame
)

func (ev Event) String() string {
	switch ev {
	case EvStartFrame:
		return "START_FRAME"
	case EvPreUpdate:
		return "PRE_UPDATE"
	case EvBeginUpdate:
		return "BEGIN_UPDATE"
	case EvUpdate1:
		return "UPDATE_1"
	case EvUpdate2:
		return "UPDATE_2"
	case EvEndUpdate:
		return "END_UPDATE"
	case EvPostUpdate:
		return "POST_UPDATE"
	case EvPreDraw:
		return "PRE_DRAW"
	case EvDraw1:
		return "DRAW_1"
	case EvDraw2:
		return "DRAW_2"
	case EvDrawGUI:
		return "DRAW_GUI"
	case EvPostDraw:
		return "POST_DRAW"
	case EvDisplay:
		return "DISPLAY"
	case EvEndFrame:
		return "END_FRAME"
	default:
		return "UNKNOWN"
	}
}
