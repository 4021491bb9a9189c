// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import "testing"

// RequireInt32s fails the test when got differs from want, reporting
// the first mismatching index. Token channel assertions read better
// through this than through reflect.DeepEqual's opaque output.
func RequireInt32s(t *testing.T, name string, got, want []int32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: length %d, want %d\ngot:  %v\nwant: %v", name, len(got), len(want), got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("%s: index %d is %d, want %d\ngot:  %v\nwant: %v", name, i, got[i], want[i], got, want)
		}
	}
}
