// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

// Package collate stacks encoded examples into training batches.
//
// A [Collator] takes fixed-length examples (packed or not), stacks
// their channels, and builds the batch's additive attention mask
// through lib/attention. Because every example is already encoded to
// the cutoff length, stacking needs no per-batch padding; the
// collator's real work is the mask.
//
// The mask form depends on the attention backend. The eager backend
// takes the dense turn-aware additive mask. Fused backends take only
// structural descriptions, which cannot express the turn-aware
// policy, so a reasoning batch bound for a fused backend is refused
// at construction time.
package collate
