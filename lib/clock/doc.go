// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts wall-clock reads for testability.
//
// Trellis is a batch tool with no timers or tickers; the only time
// operations are timestamping manifest rows and measuring pass
// durations. Production code injects [Real]; tests inject [NewFake]
// and advance it deterministically.
package clock
