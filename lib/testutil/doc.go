// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides small helpers shared by package tests:
// temp-file construction for corpus and shard fixtures, and slice
// comparison for token channels.
//
// Only _test.go files import this package.
package testutil
