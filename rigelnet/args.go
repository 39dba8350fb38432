/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package rigelnet

import "github.com/hobgoblin-net/spempe/wire/pkt"

// Tagged-argument type bytes, matching §6's `TaggedArg := u8(typeTag)
// Value`.
const (
	TagI8 byte = iota
	TagU8
	TagI16
	TagU16
	TagI32
	TagU32
	TagI64
	TagU64
	TagF32
	TagF64
	TagBool
	TagString
	TagPacket
)

// Arg is a composer-side tagged RPC argument. Construct with the
// typed helpers (I8, U8, ...) rather than the struct literal.
type Arg struct {
	tag byte
	i   int64
	f   float64
	s   string
	p   *pkt.Packet
}

func ArgI8(v int8) Arg       { return Arg{tag: TagI8, i: int64(v)} }
func ArgU8(v uint8) Arg      { return Arg{tag: TagU8, i: int64(v)} }
func ArgI16(v int16) Arg     { return Arg{tag: TagI16, i: int64(v)} }
func ArgU16(v uint16) Arg    { return Arg{tag: TagU16, i: int64(v)} }
func ArgI32(v int32) Arg     { return Arg{tag: TagI32, i: int64(v)} }
func ArgU32(v uint32) Arg    { return Arg{tag: TagU32, i: int64(v)} }
func ArgI64(v int64) Arg     { return Arg{tag: TagI64, i: v} }
func ArgU64(v uint64) Arg    { return Arg{tag: TagU64, i: int64(v)} }
func ArgF32(v float32) Arg   { return Arg{tag: TagF32, f: float64(v)} }
func ArgF64(v float64) Arg   { return Arg{tag: TagF64, f: v} }
func ArgBool(v bool) Arg     { return Arg{tag: TagBool, i: boolToI64(v)} }
func ArgString(v string) Arg { return Arg{tag: TagString, s: v} }
func ArgPacket(v *pkt.Packet) Arg { return Arg{tag: TagPacket, p: v} }

func boolToI64(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func (a Arg) write(p *pkt.Packet) {
	p.AppendU8(a.tag)
	switch a.tag {
	case TagI8:
		p.AppendI8(int8(a.i))
	case TagU8:
		p.AppendU8(uint8(a.i))
	case TagI16:
		p.AppendI16(int16(a.i))
	case TagU16:
		p.AppendU16(uint16(a.i))
	case TagI32:
		p.AppendI32(int32(a.i))
	case TagU32:
		p.AppendU32(uint32(a.i))
	case TagI64:
		p.AppendI64(a.i)
	case TagU64:
		p.AppendU64(uint64(a.i))
	case TagF32:
		p.AppendF32(float32(a.f))
	case TagF64:
		p.AppendF64(a.f)
	case TagBool:
		p.AppendBool(a.i != 0)
	case TagString:
		p.AppendString(a.s)
	case TagPacket:
		p.AppendPacket(a.p)
	}
}
