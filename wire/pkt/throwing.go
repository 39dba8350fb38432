// Package pkt — throwing facade. The hot extraction path never
// returns an error (§9 design note: "do not propagate exceptions out
// of the hot extraction path"); this type wraps the same *Packet for
// call sites that prefer an explicit error over a latched flag, e.g.
// one-shot handshake parsing where a malformed frame should abort
// immediately rather than coast through a run of zeroed reads.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package pkt

import "errors"

// ErrInvalid is returned by the throwing facade once the wrapped
// packet's validity flag is (or becomes) latched off.
var ErrInvalid = errors.New("pkt: invalid packet (extraction underrun)")

// Throwing wraps a Packet so that each Extract call returns an error
// instead of silently latching the flag.
type Throwing struct{ p *Packet }

// Throw returns a throwing-mode view of p. p itself is unaffected;
// the same validity flag is shared, so a throwing-mode failure is
// still visible to later non-throwing reads via p.IsValid().
func Throw(p *Packet) Throwing { return Throwing{p: p} }

func (t Throwing) extract(v any, before bool) error {
	_ = v
	if !before || !t.p.valid {
		return ErrInvalid
	}
	return nil
}

func (t Throwing) I8() (int8, error) {
	before := t.p.valid
	v := t.p.ExtractI8()
	if err := t.extract(nil, before); err != nil {
		return 0, err
	}
	return v, nil
}

func (t Throwing) U8() (uint8, error) {
	before := t.p.valid
	v := t.p.ExtractU8()
	if err := t.extract(nil, before); err != nil {
		return 0, err
	}
	return v, nil
}

func (t Throwing) I16() (int16, error) {
	before := t.p.valid
	v := t.p.ExtractI16()
	if err := t.extract(nil, before); err != nil {
		return 0, err
	}
	return v, nil
}

func (t Throwing) U16() (uint16, error) {
	before := t.p.valid
	v := t.p.ExtractU16()
	if err := t.extract(nil, before); err != nil {
		return 0, err
	}
	return v, nil
}

func (t Throwing) I32() (int32, error) {
	before := t.p.valid
	v := t.p.ExtractI32()
	if !before || !t.p.valid {
		return 0, ErrInvalid
	}
	return v, nil
}

func (t Throwing) U32() (uint32, error) {
	before := t.p.valid
	v := t.p.ExtractU32()
	if !before || !t.p.valid {
		return 0, ErrInvalid
	}
	return v, nil
}

func (t Throwing) I64() (int64, error) {
	before := t.p.valid
	v := t.p.ExtractI64()
	if !before || !t.p.valid {
		return 0, ErrInvalid
	}
	return v, nil
}

func (t Throwing) U64() (uint64, error) {
	before := t.p.valid
	v := t.p.ExtractU64()
	if !before || !t.p.valid {
		return 0, ErrInvalid
	}
	return v, nil
}

func (t Throwing) F32() (float32, error) {
	before := t.p.valid
	v := t.p.ExtractF32()
	if !before || !t.p.valid {
		return 0, ErrInvalid
	}
	return v, nil
}

func (t Throwing) F64() (float64, error) {
	before := t.p.valid
	v := t.p.ExtractF64()
	if !before || !t.p.valid {
		return 0, ErrInvalid
	}
	return v, nil
}

func (t Throwing) Bool() (bool, error) {
	before := t.p.valid
	v := t.p.ExtractBool()
	if !before || !t.p.valid {
		return false, ErrInvalid
	}
	return v, nil
}

func (t Throwing) String() (string, error) {
	before := t.p.valid
	v := t.p.ExtractString()
	if !before || !t.p.valid {
		return "", ErrInvalid
	}
	return v, nil
}

func (t Throwing) Packet() (*Packet, error) {
	before := t.p.valid
	v := t.p.ExtractPacket()
	if !before || !t.p.valid || v == nil {
		return nil, ErrInvalid
	}
	return v, nil
}
