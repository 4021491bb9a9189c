// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret provides a memory-safe buffer for the dataset
// encryption key.
//
// [Buffer] allocates memory outside the Go heap via
// mmap(MAP_ANONYMOUS), locks it into physical RAM via mlock
// (preventing swap), and marks it excluded from core dumps via
// madvise(MADV_DONTDUMP). On Close, the memory is zeroed, unlocked,
// and unmapped. Because the memory lives outside the Go heap, the
// garbage collector cannot copy or relocate it, guaranteeing key
// material does not persist after release.
//
// Constructors:
//
//   - [New] -- allocates a zero-filled buffer of a given size
//   - [NewFromBytes] -- copies into protected memory, zeros the source
//   - [ReadFile] -- loads a key file into protected memory
//
// Access via [Buffer.Bytes] (slice into the mmap region). After
// Close, any access panics. Close is idempotent.
//
// Depends on golang.org/x/sys/unix. Imported by lib/shard for the
// dataset key that shard encryption keys are derived from.
package secret
