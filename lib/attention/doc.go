// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

// Package attention builds the dense turn-aware attention masks that
// make the duplicate answer scheme trainable. The visibility policy
// starts from a causal non-padding base and restricts reasoning and
// answer-copy tokens to their own turn, so the untrained answer copy
// never conditions on reasoning and the trained copy never sees its
// pre-reasoning twin. When packed provenance is present, attention is
// additionally confined to each packed member.
//
// Masks are produced in two forms: a boolean visibility mask and the
// additive float mask consumed by softmax attention, where blocked
// positions carry the training dtype's lowest finite value. Mask
// construction is O(seq²) per example; callers choose a Placement to
// spread the fill across workers without changing the result.
package attention
