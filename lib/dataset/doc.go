// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

// Package dataset prepares a ShareGPT corpus for encoding.
//
// A [Corpus] is an ordered list of interchange records with the
// operations a preparation pass applies before encoding: depth-based
// pruning, proportional sampling with a per-depth floor, prefix
// augmentation, and sequential reasoning attachment. Every operation
// is deterministic: pruning and sampling keep arrival order inside a
// depth bucket and take an explicit seed where they shuffle.
//
// Structurally malformed rows are a property of the data, not the
// run: Dialogues drops them with a logged warning and the pass
// continues.
package dataset
