// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

// Package preprocess drives a full preparation pass: corpus rows
// through the template and encoder, optionally through the packer,
// into fixed-length training examples.
//
// The pass is shard-parallel. Dialogues are split into disjoint
// contiguous slices, one worker per slice, no shared mutable state;
// results are reassembled by input index so the output order is
// deterministic regardless of worker count.
//
// Error policy, per item: a structurally malformed dialogue is
// skipped with a warning. An overlong dialogue aborts an unpacked run
// but is skipped with a warning in a packed run, where dropping is
// already part of the contract. A packer invariant violation is
// always fatal.
package preprocess
