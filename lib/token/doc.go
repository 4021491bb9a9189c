// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

// Package token defines the per-token channels of a training example:
// role tags, turn identifiers, token ids, labels, and position ids.
//
// The role channel is a five-valued tag ([Role]), not a boolean padding
// mask. Two of the roles — [RoleAssistantInput] and
// [RoleAssistantOutput] — tag the two copies of the same answer tokens
// that reasoning-supervised encoding emits per assistant turn: the
// input copy provides causal context for later turns without exposing
// the reasoning, the output copy is the one the loss optimizes.
//
// [TurnIDs] derives the per-token turn identifier from the role
// channel: a new turn begins at every human run, and padding is always
// turn 0. Turn identifiers drive the turn-aware attention policy in
// package attention.
//
// [Example] is one fixed-length encoded training example;
// [PackedExample] is a fixed-capacity container of several trimmed
// examples with a per-token provenance channel. Both are built once
// during preprocessing and are immutable thereafter.
package token
