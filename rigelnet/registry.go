// Replicated registry backing built-in handlers 2–17 (§6): a small
// server-owned key/value store mirrored onto every connected client
// via regSet/regDel/regClear RPCs, with client-originated writes
// gated by a permission check.
//
// Grounded on nothing in the teacher directly (aistore has no
// client-writable replicated registry); backed by
// github.com/tidwall/buntdb, the pack's embedded KV store, which
// SPEC_FULL.md's DOMAIN STACK section earmarks for exactly this kind
// of small replicated state.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package rigelnet

import (
	"strconv"

	"github.com/tidwall/buntdb"
)

const (
	regPrefixInt = "i:"
	regPrefixDbl = "d:"
	regPrefixStr = "s:"
)

// Registry is the server's view of the replicated key/value store.
// Clients never write to db directly — regSet/regDel mutate it and
// regSet/regDel RPCs are then fanned out by the application, which
// owns the list of connected clients.
type Registry struct {
	db *buntdb.DB

	// AllowClientWrite gates reqRegSet{Int,Dbl,Str}/reqRegDel{...}: nil
	// means allow everything, matching an un-permissioned lobby.
	AllowClientWrite func(sender int, key string) bool
}

// NewRegistry opens an in-memory replicated registry.
func NewRegistry() (*Registry, error) {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, err
	}
	return &Registry{db: db}, nil
}

func (r *Registry) SetInt(key string, v int64) {
	_ = r.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(regPrefixInt+key, strconv.FormatInt(v, 10), nil)
		return err
	})
}

func (r *Registry) SetDbl(key string, v float64) {
	_ = r.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(regPrefixDbl+key, strconv.FormatFloat(v, 'g', -1, 64), nil)
		return err
	})
}

func (r *Registry) SetStr(key, v string) {
	_ = r.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(regPrefixStr+key, v, nil)
		return err
	})
}

func (r *Registry) GetInt(key string) (int64, bool) {
	var s string
	err := r.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(regPrefixInt + key)
		s = v
		return err
	})
	if err != nil {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

func (r *Registry) GetDbl(key string) (float64, bool) {
	var s string
	err := r.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(regPrefixDbl + key)
		s = v
		return err
	})
	if err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

func (r *Registry) GetStr(key string) (string, bool) {
	var s string
	err := r.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(regPrefixStr + key)
		s = v
		return err
	})
	return s, err == nil
}

func (r *Registry) DelInt(key string) { _ = r.db.Update(func(tx *buntdb.Tx) error { _, err := tx.Delete(regPrefixInt + key); return err }) }
func (r *Registry) DelDbl(key string) { _ = r.db.Update(func(tx *buntdb.Tx) error { _, err := tx.Delete(regPrefixDbl + key); return err }) }
func (r *Registry) DelStr(key string) { _ = r.db.Update(func(tx *buntdb.Tx) error { _, err := tx.Delete(regPrefixStr + key); return err }) }

func (r *Registry) ClearInt() { r.clearPrefix(regPrefixInt) }
func (r *Registry) ClearDbl() { r.clearPrefix(regPrefixDbl) }
func (r *Registry) ClearStr() { r.clearPrefix(regPrefixStr) }
func (r *Registry) ClearAll() { r.clearPrefix("") }

func (r *Registry) clearPrefix(prefix string) {
	_ = r.db.Update(func(tx *buntdb.Tx) error {
		var keys []string
		_ = tx.AscendKeys(prefix+"*", func(k, _ string) bool {
			keys = append(keys, k)
			return true
		})
		for _, k := range keys {
			_, _ = tx.Delete(k)
		}
		return nil
	})
}

func (r *Registry) Close() error { return r.db.Close() }

// Snapshot flattens the whole registry into a prefixed string map,
// suitable for shipping inside the TCP handshake payload.
func (r *Registry) Snapshot() map[string]string {
	out := make(map[string]string)
	_ = r.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend("", func(k, v string) bool {
			out[k] = v
			return true
		})
	})
	return out
}

// ApplySnapshot loads a prefixed string map produced by Snapshot,
// replacing the current contents.
func (r *Registry) ApplySnapshot(snap map[string]string) {
	_ = r.db.Update(func(tx *buntdb.Tx) error {
		if err := tx.DeleteAll(); err != nil {
			return err
		}
		for k, v := range snap {
			if _, _, err := tx.Set(k, v, nil); err != nil {
				return err
			}
		}
		return nil
	})
}
