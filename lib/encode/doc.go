// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

// Package encode turns tokenized dialogue turns into fixed-length
// training examples. A reasoning turn emits its answer twice: an
// untrained input copy positioned directly after the source, serving
// as context for later turns, and a trained output copy positioned
// after the reasoning, so the model learns to answer conditioned on
// its reasoning. Position ids advance across turns as if neither the
// reasoning nor the duplicate existed, which keeps downstream
// positional encodings blind to the scheme.
//
// Encoding never truncates: a dialogue whose turns exceed the cutoff
// fails whole with an OverlongError.
package encode
