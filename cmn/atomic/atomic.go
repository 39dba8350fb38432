// Package atomic provides typed atomic wrappers used throughout the core
// instead of raw sync/atomic calls sprinkled through call sites.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package atomic

import "sync/atomic"

type (
	Bool   struct{ v int32 }
	Int32  struct{ v int32 }
	Int64  struct{ v int64 }
	Uint32 struct{ v uint32 }
	Uint64 struct{ v uint64 }
)

func (b *Bool) Load() bool { return atomic.LoadInt32(&b.v) != 0 }
func (b *Bool) Store(val bool) {
	if val {
		atomic.StoreInt32(&b.v, 1)
	} else {
		atomic.StoreInt32(&b.v, 0)
	}
}

func (b *Bool) CAS(old, newv bool) bool {
	var o, n int32
	if old {
		o = 1
	}
	if newv {
		n = 1
	}
	return atomic.CompareAndSwapInt32(&b.v, o, n)
}

func (b *Bool) Swap(val bool) (prev bool) {
	var n int32
	if val {
		n = 1
	}
	return atomic.SwapInt32(&b.v, n) != 0
}

func (i *Int32) Load() int32          { return atomic.LoadInt32(&i.v) }
func (i *Int32) Store(val int32)      { atomic.StoreInt32(&i.v, val) }
func (i *Int32) Add(delta int32) int32 { return atomic.AddInt32(&i.v, delta) }
func (i *Int32) CAS(old, newv int32) bool {
	return atomic.CompareAndSwapInt32(&i.v, old, newv)
}

func (i *Int64) Load() int64          { return atomic.LoadInt64(&i.v) }
func (i *Int64) Store(val int64)      { atomic.StoreInt64(&i.v, val) }
func (i *Int64) Add(delta int64) int64 { return atomic.AddInt64(&i.v, delta) }
func (i *Int64) Sub(delta int64) int64 { return atomic.AddInt64(&i.v, -delta) }
func (i *Int64) CAS(old, newv int64) bool {
	return atomic.CompareAndSwapInt64(&i.v, old, newv)
}

func (u *Uint32) Load() uint32           { return atomic.LoadUint32(&u.v) }
func (u *Uint32) Store(val uint32)       { atomic.StoreUint32(&u.v, val) }
func (u *Uint32) Add(delta uint32) uint32 { return atomic.AddUint32(&u.v, delta) }
func (u *Uint32) CAS(old, newv uint32) bool {
	return atomic.CompareAndSwapUint32(&u.v, old, newv)
}

func (u *Uint64) Load() uint64            { return atomic.LoadUint64(&u.v) }
func (u *Uint64) Store(val uint64)        { atomic.StoreUint64(&u.v, val) }
func (u *Uint64) Add(delta uint64) uint64 { return atomic.AddUint64(&u.v, delta) }
func (u *Uint64) CAS(old, newv uint64) bool {
	return atomic.CompareAndSwapUint64(&u.v, old, newv)
}
