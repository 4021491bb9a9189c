// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

// Package dialogue models multi-turn conversations with per-message
// reasoning annotations and their ShareGPT interchange form. A
// dialogue separates the prior context from the single assistant
// response being supervised; structural validation enforces strict
// human/assistant alternation so one malformed row can be skipped
// without poisoning a run.
package dialogue
