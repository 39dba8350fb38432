// Package pkt — typed writers/readers. Multi-byte scalars are network
// byte order (big-endian); 64-bit integers are split manually into
// eight bytes, most-significant first, per §4.2 ("do not depend on a
// platform htonll"). Floats/doubles reinterpret-cast to same-width
// integers, then big-endian encoded.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package pkt

import "math"

//
// 8-bit
//

func (p *Packet) AppendI8(v int8) { p.AppendBytes([]byte{byte(v)}) }
func (p *Packet) AppendU8(v uint8) { p.AppendBytes([]byte{v}) }

func (p *Packet) ExtractI8() int8 {
	b := p.ExtractBytes(1)
	if b == nil {
		return 0
	}
	return int8(b[0])
}

func (p *Packet) ExtractU8() uint8 {
	b := p.ExtractBytes(1)
	if b == nil {
		return 0
	}
	return b[0]
}

//
// 16-bit
//

func (p *Packet) AppendU16(v uint16) {
	p.AppendBytes([]byte{byte(v >> 8), byte(v)})
}
func (p *Packet) AppendI16(v int16) { p.AppendU16(uint16(v)) }

func (p *Packet) ExtractU16() uint16 {
	b := p.ExtractBytes(2)
	if b == nil {
		return 0
	}
	return uint16(b[0])<<8 | uint16(b[1])
}
func (p *Packet) ExtractI16() int16 { return int16(p.ExtractU16()) }

//
// 32-bit
//

func (p *Packet) AppendU32(v uint32) {
	p.AppendBytes([]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}
func (p *Packet) AppendI32(v int32) { p.AppendU32(uint32(v)) }

func (p *Packet) ExtractU32() uint32 {
	b := p.ExtractBytes(4)
	if b == nil {
		return 0
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
func (p *Packet) ExtractI32() int32 { return int32(p.ExtractU32()) }

//
// 64-bit — split manually, most-significant byte first
//

func (p *Packet) AppendU64(v uint64) {
	b := [8]byte{
		byte(v >> 56), byte(v >> 48), byte(v >> 40), byte(v >> 32),
		byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v),
	}
	p.AppendBytes(b[:])
}
func (p *Packet) AppendI64(v int64) { p.AppendU64(uint64(v)) }

func (p *Packet) ExtractU64() uint64 {
	b := p.ExtractBytes(8)
	if b == nil {
		return 0
	}
	return uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7])
}
func (p *Packet) ExtractI64() int64 { return int64(p.ExtractU64()) }

//
// floating point — reinterpret-cast to same-width integer, then
// big-endian encode exactly like the integer path above.
//

func (p *Packet) AppendF32(v float32) { p.AppendU32(math.Float32bits(v)) }
func (p *Packet) ExtractF32() float32 { return math.Float32frombits(p.ExtractU32()) }

func (p *Packet) AppendF64(v float64) { p.AppendU64(math.Float64bits(v)) }
func (p *Packet) ExtractF64() float64 { return math.Float64frombits(p.ExtractU64()) }

//
// bool — single byte, 0/1
//

func (p *Packet) AppendBool(v bool) {
	if v {
		p.AppendU8(1)
	} else {
		p.AppendU8(0)
	}
}

func (p *Packet) ExtractBool() bool { return p.ExtractU8() != 0 }

//
// strings — u32 length in bytes, then raw UTF-8. Unicode strings are
// transcoded to UTF-8 before this same encoding (Go strings are
// UTF-8 already, so AppendUnicode is an alias kept for call-site
// clarity at RPC boundaries that originate Unicode text).
//

func (p *Packet) AppendString(s string) {
	p.AppendU32(uint32(len(s)))
	p.AppendBytes([]byte(s))
}

func (p *Packet) AppendUnicode(s string) { p.AppendString(s) }

func (p *Packet) ExtractString() string {
	n := p.ExtractU32()
	if !p.valid {
		return ""
	}
	b := p.ExtractBytes(int(n))
	if b == nil {
		return ""
	}
	return string(b)
}

func (p *Packet) ExtractUnicode() string { return p.ExtractString() }

//
// nested packets — i32 byte length, then payload
//

func (p *Packet) AppendPacket(nested *Packet) {
	p.AppendI32(int32(nested.Len()))
	p.AppendBytes(nested.Bytes())
}

func (p *Packet) ExtractPacket() *Packet {
	n := p.ExtractI32()
	if !p.valid || n < 0 {
		return nil
	}
	b := p.ExtractBytes(int(n))
	if b == nil {
		return nil
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return NewFromBytes(cp)
}
