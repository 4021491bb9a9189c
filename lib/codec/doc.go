// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Trellis's standard CBOR encoding configuration.
//
// Trellis uses two serialization formats with a clear boundary:
//
//   - JSON for external interfaces: dialogue corpora (ShareGPT files),
//     CLI output, and dataset card front matter.
//   - CBOR for shard interiors: encoded-example records, shard headers,
//     and manifest fingerprint material.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes, which the manifest relies on when fingerprinting a run
// configuration.
//
// For buffer-oriented operations (records, fingerprints):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (shard files):
//
//	encoder := codec.NewEncoder(file)
//	decoder := codec.NewDecoder(file)
package codec
