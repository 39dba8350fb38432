// Package hk provides a mechanism for registering cleanup/maintenance
// functions invoked at specified intervals: connector timeout sweeps,
// sync-registry deactivation-set pruning, finished active-object
// garbage collection. Grounded on the teacher's hk package (only its
// test file survived pruning) and on transport/collect.go's min-heap
// tick-driven collector, whose scheduling shape this package reuses.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package hk

import (
	"container/heap"
	"sync"
	"time"

	"github.com/hobgoblin-net/spempe/cmn/cos"
	"github.com/hobgoblin-net/spempe/cmn/mono"
	"github.com/hobgoblin-net/spempe/cmn/nlog"
)

const NameSuffix = "-hk"

// CleanupFunc returns the delay until it should run again; a
// non-positive return value unregisters it.
type CleanupFunc func() time.Duration

type request struct {
	name     string
	f        CleanupFunc
	due      int64 // mono.NanoTime() deadline
	index    int   // heap index
	initTime time.Duration
}

type housekeeper struct {
	mu       sync.Mutex
	byName   map[string]*request
	heap     []*request
	workCh   chan func()
	stopCh   cos.StopCh
	started  chan struct{}
	startedO sync.Once
}

// DefaultHK is the process-wide housekeeper; RegWithHK-style callers
// register against it directly.
var DefaultHK = newHK()

func newHK() *housekeeper {
	return &housekeeper{
		byName:  make(map[string]*request, 16),
		workCh:  make(chan func(), 64),
		stopCh:  *cos.NewStopCh(),
		started: make(chan struct{}),
	}
}

// TestInit resets DefaultHK for test isolation.
func TestInit() { DefaultHK = newHK() }

func WaitStarted() {
	<-DefaultHK.started
}

// Reg registers f to run once after initTime (0 == ASAP), then again
// after whatever delay f itself returns, until f returns <= 0 or the
// name is Unreg-istered.
func Reg(name string, f CleanupFunc, initTime time.Duration) {
	DefaultHK.reg(name, f, initTime)
}

func Unreg(name string) { DefaultHK.unreg(name) }

func (hk *housekeeper) reg(name string, f CleanupFunc, initTime time.Duration) {
	r := &request{name: name, f: f, due: mono.NanoTime() + int64(initTime)}
	hk.mu.Lock()
	if _, ok := hk.byName[name]; ok {
		hk.mu.Unlock()
		nlog.Warningf("hk: %q already registered, overwriting", name)
		hk.unreg(name)
		hk.mu.Lock()
	}
	hk.byName[name] = r
	heap.Push(hk, r)
	hk.mu.Unlock()
}

func (hk *housekeeper) unreg(name string) {
	hk.mu.Lock()
	defer hk.mu.Unlock()
	r, ok := hk.byName[name]
	if !ok {
		return
	}
	delete(hk.byName, name)
	heap.Remove(hk, r.index)
}

// Run drives the housekeeper loop; meant to be launched as `go
// hk.DefaultHK.Run()` once, at process startup.
func (hk *housekeeper) Run() error {
	hk.startedO.Do(func() { close(hk.started) })
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			hk.fire()
		case <-hk.stopCh.Listen():
			return nil
		}
	}
}

func (hk *housekeeper) Stop() { hk.stopCh.Close() }

func (hk *housekeeper) fire() {
	now := mono.NanoTime()
	for {
		hk.mu.Lock()
		if len(hk.heap) == 0 || hk.heap[0].due > now {
			hk.mu.Unlock()
			return
		}
		r := heap.Pop(hk).(*request)
		delete(hk.byName, r.name)
		hk.mu.Unlock()

		next := r.f()
		if next > 0 {
			r.due = mono.NanoTime() + int64(next)
			hk.mu.Lock()
			hk.byName[r.name] = r
			heap.Push(hk, r)
			hk.mu.Unlock()
		}
	}
}

// container/heap.Interface, min-heap by due time — mirrors the
// teacher's transport.collector heap ordering.
func (hk *housekeeper) Len() int            { return len(hk.heap) }
func (hk *housekeeper) Less(i, j int) bool  { return hk.heap[i].due < hk.heap[j].due }
func (hk *housekeeper) Swap(i, j int) {
	hk.heap[i], hk.heap[j] = hk.heap[j], hk.heap[i]
	hk.heap[i].index = i
	hk.heap[j].index = j
}

func (hk *housekeeper) Push(x any) {
	r := x.(*request)
	r.index = len(hk.heap)
	hk.heap = append(hk.heap, r)
}

func (hk *housekeeper) Pop() any {
	old := hk.heap
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	r.index = -1
	hk.heap = old[:n-1]
	return r
}
