// Autodiff state (§4.8): a value type's fields are tracked against a
// "mirror" snapshot. Commit overwrites the mirror with the current
// value; Pack emits a bitmask of fields that differ from the mirror
// followed by only those fields; Apply reads the bitmask back and
// assigns only the present fields into current, leaving the rest (and
// the mirror) untouched.
//
// The spec's source declares fields via macros that generate the
// mirror/commit/pack/unpack code at compile time. Go has no macros;
// this generalizes cmn/tests/iter_fields_test.go's reflect-driven
// struct walk (there used to flatten nested config structs by JSON
// tag) into a diff-and-pack walk keyed by declaration order instead,
// so the same struct type yields the same field order on both sides
// of the wire without needing a registry of tags.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package rsync

import (
	"reflect"

	"github.com/hobgoblin-net/spempe/wire/pkt"
	"github.com/pkg/errors"
)

// MaxAutodiffFields bounds how many fields a single autodiff struct
// may declare: one bit per field in a uint64 bitmask.
const MaxAutodiffFields = 64

// autodiffSkipTag lets a field opt out of diff tracking (always treated as
// unchanged/excluded), mirroring the source macro set's "transient"
// field kind.
const autodiffSkipTag = "-"

// ErrNotAutodiffable is returned when Commit/Pack/Apply is asked to
// operate on something other than a pointer to a struct, or a struct
// with more than MaxAutodiffFields tracked fields.
var ErrNotAutodiffable = errors.New("rsync: not an autodiff-eligible struct")

func trackedFields(t reflect.Type) ([]int, error) {
	if t.Kind() != reflect.Struct {
		return nil, errors.Wrapf(ErrNotAutodiffable, "%s is not a struct", t)
	}
	var idxs []int
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue // unexported
		}
		if f.Tag.Get("autodiff") == autodiffSkipTag {
			continue
		}
		idxs = append(idxs, i)
	}
	if len(idxs) > MaxAutodiffFields {
		return nil, errors.Wrapf(ErrNotAutodiffable, "%s has %d tracked fields, max %d", t, len(idxs), MaxAutodiffFields)
	}
	return idxs, nil
}

func derefStruct(v any) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, errors.Wrapf(ErrNotAutodiffable, "%T is not a non-nil pointer to struct", v)
	}
	return rv.Elem(), nil
}

// Commit copies every tracked field of current into mirror, both of
// which must be pointers to the same struct type. Called by the
// master at end of tick (§4.8).
func Commit(mirror, current any) error {
	mv, err := derefStruct(mirror)
	if err != nil {
		return err
	}
	cv, err := derefStruct(current)
	if err != nil {
		return err
	}
	if mv.Type() != cv.Type() {
		return errors.Wrapf(ErrNotAutodiffable, "mirror type %s != current type %s", mv.Type(), cv.Type())
	}
	idxs, err := trackedFields(cv.Type())
	if err != nil {
		return err
	}
	for _, i := range idxs {
		mv.Field(i).Set(cv.Field(i))
	}
	return nil
}

// Pack writes a bitmask of which tracked fields of current differ
// from mirror, followed by the changed fields' values, in declaration
// order. mirror is left untouched (Commit is the only mutator of it).
func Pack(w *pkt.Packet, mirror, current any) error {
	mv, err := derefStruct(mirror)
	if err != nil {
		return err
	}
	cv, err := derefStruct(current)
	if err != nil {
		return err
	}
	idxs, err := trackedFields(cv.Type())
	if err != nil {
		return err
	}

	var mask uint64
	for bit, i := range idxs {
		if !reflect.DeepEqual(mv.Field(i).Interface(), cv.Field(i).Interface()) {
			mask |= 1 << uint(bit)
		}
	}
	w.AppendU64(mask)
	for bit, i := range idxs {
		if mask&(1<<uint(bit)) == 0 {
			continue
		}
		if err := appendField(w, cv.Field(i)); err != nil {
			return err
		}
	}
	return nil
}

// Apply reads a bitmask written by Pack and assigns only the present
// fields into current (a pointer to the same struct type Pack was
// called with). Fields absent from the bitmask are left at whatever
// value current already held — the dummy's coasted baseline.
func Apply(r *pkt.Packet, current any) error {
	cv, err := derefStruct(current)
	if err != nil {
		return err
	}
	idxs, err := trackedFields(cv.Type())
	if err != nil {
		return err
	}
	mask := r.ExtractU64()
	if !r.IsValid() {
		return errors.Wrap(ErrNotAutodiffable, "truncated autodiff bitmask")
	}
	for bit, i := range idxs {
		if mask&(1<<uint(bit)) == 0 {
			continue
		}
		if err := extractField(r, cv.Field(i)); err != nil {
			return err
		}
	}
	return nil
}

func appendField(w *pkt.Packet, f reflect.Value) error {
	switch f.Kind() {
	case reflect.Bool:
		w.AppendBool(f.Bool())
	case reflect.Int8:
		w.AppendI8(int8(f.Int()))
	case reflect.Int16:
		w.AppendI16(int16(f.Int()))
	case reflect.Int32:
		w.AppendI32(int32(f.Int()))
	case reflect.Int, reflect.Int64:
		w.AppendI64(f.Int())
	case reflect.Uint8:
		w.AppendU8(uint8(f.Uint()))
	case reflect.Uint16:
		w.AppendU16(uint16(f.Uint()))
	case reflect.Uint32:
		w.AppendU32(uint32(f.Uint()))
	case reflect.Uint, reflect.Uint64:
		w.AppendU64(f.Uint())
	case reflect.Float32:
		w.AppendF32(float32(f.Float()))
	case reflect.Float64:
		w.AppendF64(f.Float())
	case reflect.String:
		w.AppendString(f.String())
	default:
		return errors.Wrapf(ErrNotAutodiffable, "field of kind %s is not autodiff-encodable", f.Kind())
	}
	return nil
}

func extractField(r *pkt.Packet, f reflect.Value) error {
	switch f.Kind() {
	case reflect.Bool:
		f.SetBool(r.ExtractBool())
	case reflect.Int8:
		f.SetInt(int64(r.ExtractI8()))
	case reflect.Int16:
		f.SetInt(int64(r.ExtractI16()))
	case reflect.Int32:
		f.SetInt(int64(r.ExtractI32()))
	case reflect.Int, reflect.Int64:
		f.SetInt(r.ExtractI64())
	case reflect.Uint8:
		f.SetUint(uint64(r.ExtractU8()))
	case reflect.Uint16:
		f.SetUint(uint64(r.ExtractU16()))
	case reflect.Uint32:
		f.SetUint(uint64(r.ExtractU32()))
	case reflect.Uint, reflect.Uint64:
		f.SetUint(r.ExtractU64())
	case reflect.Float32:
		f.SetFloat(float64(r.ExtractF32()))
	case reflect.Float64:
		f.SetFloat(r.ExtractF64())
	case reflect.String:
		f.SetString(r.ExtractString())
	default:
		return errors.Wrapf(ErrNotAutodiffable, "field of kind %s is not autodiff-encodable", f.Kind())
	}
	if !r.IsValid() {
		return errors.Wrap(ErrNotAutodiffable, "truncated autodiff field")
	}
	return nil
}
