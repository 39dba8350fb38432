// Package pkt implements the core's type-tagged, big-endian,
// length-prefixed packet codec (§4.2): a growable byte buffer with a
// read cursor and a latched validity flag. Writes never fail; a
// failed extraction latches the packet invalid and every subsequent
// read becomes a no-op returning a zeroed value, until Clear resets
// it. Grounded on transport/pdu.go and transport/sendmsg.go's
// header pack/unpack (both big-endian, both length-prefixed), and on
// the two-path (non-throwing / throwing) split called for by the spec's
// §4.2/§7 "exceptions for packet validity" design note.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package pkt

const defaultCap = 64

// Packet is single-owner: concurrent reads from one goroutine while
// another writes are undefined, per the core's concurrency model (§5).
type Packet struct {
	buf   []byte
	roff  int
	valid bool
}

// New returns an empty, valid packet ready for appends.
func New() *Packet {
	return &Packet{buf: make([]byte, 0, defaultCap), valid: true}
}

// NewFromBytes wraps an already-received wire buffer for extraction;
// the read cursor starts at zero, the packet starts valid.
func NewFromBytes(b []byte) *Packet {
	return &Packet{buf: b, valid: true}
}

// Clear discards all content and cursor state and resets validity.
func (p *Packet) Clear() {
	p.buf = p.buf[:0]
	p.roff = 0
	p.valid = true
}

// IsValid reports whether the latched validity flag is still set.
func (p *Packet) IsValid() bool { return p.valid }

// Len returns the total number of bytes written so far.
func (p *Packet) Len() int { return len(p.buf) }

// Remaining returns the number of bytes not yet extracted.
func (p *Packet) Remaining() int { return len(p.buf) - p.roff }

// Bytes returns the full underlying wire buffer (not just the unread tail).
func (p *Packet) Bytes() []byte { return p.buf }

// invalidate latches the validity flag off; idempotent.
func (p *Packet) invalidate() { p.valid = false }

// need is the single underrun gate every extraction goes through:
// if the packet is already invalid, or fewer than n bytes remain,
// it latches invalid and reports false without advancing the cursor.
func (p *Packet) need(n int) bool {
	if !p.valid {
		return false
	}
	if p.Remaining() < n {
		p.invalidate()
		return false
	}
	return true
}

func (p *Packet) grow(n int) []byte {
	l := len(p.buf)
	if cap(p.buf)-l < n {
		nb := make([]byte, l, 2*(l+n)+defaultCap)
		copy(nb, p.buf)
		p.buf = nb
	}
	p.buf = p.buf[:l+n]
	return p.buf[l : l+n]
}

// AppendBytes appends a raw, unframed byte blob (no length prefix).
// Used internally by the fixed-width writers and exposed for callers
// that manage their own framing (e.g. a pre-serialized RPC body).
func (p *Packet) AppendBytes(b []byte) {
	dst := p.grow(len(b))
	copy(dst, b)
}

// ExtractBytes reads exactly n raw bytes, or latches invalid and
// returns nil if fewer than n remain.
func (p *Packet) ExtractBytes(n int) []byte {
	if !p.need(n) {
		return nil
	}
	b := p.buf[p.roff : p.roff+n]
	p.roff += n
	return b
}
