// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

// Package packing bins variable-length encoded examples into
// fixed-capacity containers. The packer is greedy and
// length-bucketed: candidates are grouped by exact trimmed length and
// each container repeatedly takes the longest candidate that still
// fits, oldest first within a length. Sequences are never split;
// sequences longer than the capacity are dropped and logged.
//
// Every container carries a segment channel giving each member's
// tokens a shared ordinal, which the attention mask uses to keep
// members invisible to each other. Containers are padded to
// capacity+1, one slot past the nominal capacity, for the benefit of
// fused attention kernels that read one position beyond the mask.
package packing
