// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

// Package shard reads and writes shard files: the on-disk form of
// encoded training examples between an encode pass and a trainer's
// data loader.
//
// A shard file is:
//
//	[magic "TRLSHRD1": 8 bytes]
//	[header block: CBOR, uncompressed, length-prefixed]
//	[record block]...
//	[end marker: 4 zero bytes]
//	[digest trailer: 32 bytes]
//
// Each record block is a length-prefixed, per-record-compressed,
// optionally encrypted CBOR [Record]. Token channels are stored
// inside the CBOR as little-endian int32 byte strings, which keeps
// the BG4 byte-grouping transpose effective: position ids and turn-id
// adjacent token ids have near-identical high bytes, so grouping
// bytes by position makes LZ4's job easy, the same trick the tag uses
// for float32 tensors.
//
// The digest trailer is a keyed BLAKE3 hash over every preceding byte
// of the file. Keyed hashing with a fixed domain key separates shard
// digests from record digests, so the same bytes can never collide
// across contexts. The reader verifies the digest while iterating and
// fails on the first corrupt block rather than after the fact.
//
// Encryption, when enabled, is XChaCha20-Poly1305 with a per-shard
// key derived via HKDF-SHA256 from a dataset key held in an mlocked
// buffer (lib/secret). The shard name binds the derivation, so a
// record block cannot be transplanted between shards.
package shard
