// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Real returns the production Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}
