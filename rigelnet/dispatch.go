// RPC dispatcher (§4.5): a process-wide vector of handler slots
// indexed by a stable integer, decoding the wire shape §6 specifies.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package rigelnet

import (
	"time"

	"github.com/hobgoblin-net/spempe/stats"
	"github.com/hobgoblin-net/spempe/wire/pkt"
	"github.com/pkg/errors"
)

// ReservedHandlers is the count of built-in handler slots (§6's
// table, indices 0–19).
const ReservedHandlers = 20

// MaxHandlers bounds the process-wide handler vector.
const MaxHandlers = 4096

// ErrIllegalMessage is the taxonomy's IllegalMessage kind: a received
// frame violated the protocol (bad role, unknown handler, underflow).
var ErrIllegalMessage = errors.New("rigelnet: illegal message")

// HandlerFunc is the shape every RPC handler has: it reads its
// arguments from ctx and acts on ctx.Node.
type HandlerFunc func(ctx *RecvContext) error

var handlers [MaxHandlers]HandlerFunc

// RegisterHandler installs fn at index, overwriting any previous
// registration. Applications register handlers above ReservedHandlers;
// built-ins occupy [0, ReservedHandlers).
func RegisterHandler(index uint16, fn HandlerFunc) {
	handlers[index] = fn
}

// Role distinguishes which side of a session a node plays.
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// RecvContext is the receiver context §4.5 requires: visible to every
// handler body, it carries the node, the sender slot (server side) or
// -1 (client side), the application user-data, and the Latency value
// the transport passed to DecodeAndDispatch. The TCP and UDP
// transports in this package do not measure round-trip time, so every
// context they build has Latency 0.
type RecvContext struct {
	Node     *Node
	Role     Role
	Sender   int
	UserData any
	Latency  time.Duration

	body     *pkt.Packet
	argCount uint16
	argIdx   uint16
}

func (c *RecvContext) expect(n uint16, tag byte) error {
	if n != c.argIdx {
		return errors.Wrapf(ErrIllegalMessage, "arg %d requested out of order (expected %d)", n, c.argIdx)
	}
	if c.argIdx >= c.argCount {
		return errors.Wrapf(ErrIllegalMessage, "arg %d requested past argCount %d", n, c.argCount)
	}
	got := c.body.ExtractU8()
	if !c.body.IsValid() {
		return errors.Wrap(ErrIllegalMessage, "argument underflow")
	}
	if got != tag {
		return errors.Wrapf(ErrIllegalMessage, "arg %d: type tag mismatch, want %d got %d", n, tag, got)
	}
	c.argIdx++
	return nil
}

func (c *RecvContext) ArgI8(n uint16) (int8, error) {
	if err := c.expect(n, TagI8); err != nil {
		return 0, err
	}
	return c.body.ExtractI8(), nil
}

func (c *RecvContext) ArgU8(n uint16) (uint8, error) {
	if err := c.expect(n, TagU8); err != nil {
		return 0, err
	}
	return c.body.ExtractU8(), nil
}

func (c *RecvContext) ArgI16(n uint16) (int16, error) {
	if err := c.expect(n, TagI16); err != nil {
		return 0, err
	}
	return c.body.ExtractI16(), nil
}

func (c *RecvContext) ArgU16(n uint16) (uint16, error) {
	if err := c.expect(n, TagU16); err != nil {
		return 0, err
	}
	return c.body.ExtractU16(), nil
}

func (c *RecvContext) ArgI32(n uint16) (int32, error) {
	if err := c.expect(n, TagI32); err != nil {
		return 0, err
	}
	return c.body.ExtractI32(), nil
}

func (c *RecvContext) ArgU32(n uint16) (uint32, error) {
	if err := c.expect(n, TagU32); err != nil {
		return 0, err
	}
	return c.body.ExtractU32(), nil
}

func (c *RecvContext) ArgI64(n uint16) (int64, error) {
	if err := c.expect(n, TagI64); err != nil {
		return 0, err
	}
	return c.body.ExtractI64(), nil
}

func (c *RecvContext) ArgU64(n uint16) (uint64, error) {
	if err := c.expect(n, TagU64); err != nil {
		return 0, err
	}
	return c.body.ExtractU64(), nil
}

func (c *RecvContext) ArgF32(n uint16) (float32, error) {
	if err := c.expect(n, TagF32); err != nil {
		return 0, err
	}
	return c.body.ExtractF32(), nil
}

func (c *RecvContext) ArgF64(n uint16) (float64, error) {
	if err := c.expect(n, TagF64); err != nil {
		return 0, err
	}
	return c.body.ExtractF64(), nil
}

func (c *RecvContext) ArgBool(n uint16) (bool, error) {
	if err := c.expect(n, TagBool); err != nil {
		return false, err
	}
	return c.body.ExtractBool(), nil
}

func (c *RecvContext) ArgString(n uint16) (string, error) {
	if err := c.expect(n, TagString); err != nil {
		return "", err
	}
	return c.body.ExtractString(), nil
}

func (c *RecvContext) ArgPacket(n uint16) (*pkt.Packet, error) {
	if err := c.expect(n, TagPacket); err != nil {
		return nil, err
	}
	return c.body.ExtractPacket(), nil
}

// Reply composes handlerIdx(args...) and routes it back to whoever
// sent the message this context is handling.
func (c *RecvContext) Reply(handlerIdx uint16, args ...Arg) error {
	if c.Node.Send == nil {
		return errors.New("rigelnet: node has no Send wired")
	}
	return c.Node.Send(c.Sender, ComposeRPC(handlerIdx, args...))
}

// bodyTag distinguishes the two RpcBody framings §4.3 names: INT8 for
// tiny/zero-arg messages (handler index + argcount inlined directly),
// PACKET for a length-prefixed nested payload (used whenever there is
// at least one argument, so a malformed argument can't run past the
// frame boundary).
const (
	bodyTagInt8 byte = iota
	bodyTagPacket
)

// ComposeRPC builds one wire-ready RpcBody frame for handlerIdx with
// args, per §6's RpcBody grammar.
func ComposeRPC(handlerIdx uint16, args ...Arg) *pkt.Packet {
	inner := pkt.New()
	inner.AppendU16(handlerIdx)
	inner.AppendU16(uint16(len(args)))
	for _, a := range args {
		a.write(inner)
	}

	out := pkt.New()
	if len(args) == 0 {
		out.AppendI8(int8(bodyTagInt8))
		out.AppendBytes(inner.Bytes())
	} else {
		out.AppendI8(int8(bodyTagPacket))
		out.AppendPacket(inner)
	}
	return out
}

// DecodeAndDispatch reads one RpcBody from p and invokes its handler,
// populating role/sender/userData/latency into the RecvContext passed
// to it.
func DecodeAndDispatch(node *Node, p *pkt.Packet, role Role, sender int, latency time.Duration) error {
	stats.FrameReceived()
	tag := p.ExtractI8()
	if !p.IsValid() {
		return errors.Wrap(ErrIllegalMessage, "missing body tag")
	}

	var body *pkt.Packet
	switch byte(tag) {
	case bodyTagInt8:
		body = p
	case bodyTagPacket:
		body = p.ExtractPacket()
		if body == nil {
			return errors.Wrap(ErrIllegalMessage, "malformed nested body")
		}
	default:
		return errors.Wrapf(ErrIllegalMessage, "unknown body tag %d", tag)
	}

	handlerIdx := body.ExtractU16()
	argCount := body.ExtractU16()
	if !body.IsValid() {
		return errors.Wrap(ErrIllegalMessage, "truncated RPC header")
	}
	if int(handlerIdx) >= MaxHandlers || handlers[handlerIdx] == nil {
		return errors.Wrapf(ErrIllegalMessage, "unknown handler index %d", handlerIdx)
	}

	ctx := &RecvContext{
		Node:     node,
		Role:     role,
		Sender:   sender,
		UserData: node.UserData,
		Latency:  latency,
		body:     body,
		argCount: argCount,
	}
	return handlers[handlerIdx](ctx)
}
