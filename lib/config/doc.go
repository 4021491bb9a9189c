// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML run-configuration loading for trellis
// commands.
//
// Configuration is loaded from a single file specified by either the
// TRELLIS_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search: deterministic, auditable
// configuration with no hidden overrides. Variable expansion
// (${HOME}, ${VAR:-default}) is performed on path fields only.
//
// [Config.Validate] enforces the mutual-exclusion matrix before any
// data is touched. Reasoning-mode encoding duplicates each answer
// under a second label policy, which leaves several conventional
// options without a defined meaning; those combinations are rejected
// as a [ConflictError] rather than silently reinterpreted:
//
//   - reasoning with turn-history masking
//   - reasoning with training on the prompt
//   - reasoning with efficient end-of-sequence templates
//   - reasoning with a fused (flash) attention backend
//   - packing without provenance tracking
package config
