// Package cos — small concurrency helpers.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import "sync"

// StopCh is a close-once signal channel, grounded on the teacher's
// transport collector's stopCh: multiple goroutines may call Close,
// only the first takes effect, and Listen never blocks after that.
type StopCh struct {
	once sync.Once
	ch   chan struct{}
}

func NewStopCh() *StopCh { return &StopCh{ch: make(chan struct{})} }

func (s *StopCh) Listen() <-chan struct{} {
	if s.ch == nil {
		s.ch = make(chan struct{})
	}
	return s.ch
}

func (s *StopCh) Close() {
	s.once.Do(func() {
		if s.ch == nil {
			s.ch = make(chan struct{})
		}
		close(s.ch)
	})
}
