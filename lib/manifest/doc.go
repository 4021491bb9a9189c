// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

// Package manifest catalogues preparation runs in SQLite.
//
// Each encode pass records one run row (configuration fingerprint,
// template, timestamps, pass statistics), one shard row per shard
// file written (path, digest, record count, byte size), and one drop
// row per drop reason with its count. The trellis stats and inspect
// commands query the same database, so the manifest is the durable
// answer to "what did this run produce and why did rows disappear".
//
// The configuration fingerprint is the BLAKE3 digest of the
// deterministic CBOR encoding of the run configuration: two runs with
// the same fingerprint ran the same configuration, byte for byte.
package manifest
