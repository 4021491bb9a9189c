// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

// Package template renders validated dialogues into per-turn token
// triples for the encoder.
//
// A template is data, not code: a [Definition] holds the literal
// header, footer, and delimiter strings a model family expects around
// each message, loaded from a JSONC file or picked from the built-in
// registry. The [Template] pairs a definition with a [Tokenizer] and
// produces one [encode.Turn] per human/assistant exchange: the
// rendered human message (with the system preamble and tool
// specification folded into the first turn) becomes the source span,
// the delimited chain of thought becomes the reasoning span, and the
// terminated answer becomes the assistant span.
//
// The package never tokenizes text itself beyond calling the injected
// Tokenizer, and never decides label or position policy; that is the
// encoder's job.
package template
