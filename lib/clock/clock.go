// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts wall-clock reads. Every production function that
// would call time.Now or time.Since accepts a Clock (or is a method
// on a struct with a Clock field) instead of reading the time package
// directly.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the time elapsed since t, by Now's reckoning.
	Since(t time.Time) time.Duration
}
