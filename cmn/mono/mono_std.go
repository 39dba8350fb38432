//go:build !mono

// Package mono provides low-level monotonic time used for RTT
// measurement, connector timeout deadlines, and retransmit ages.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package mono

import "time"

var epoch = time.Now()

// NanoTime returns a monotonic nanosecond reading anchored at process
// start. Portable fallback for builds without the `mono` tag (which
// links directly against runtime.nanotime).
func NanoTime() int64 { return int64(time.Since(epoch)) }
