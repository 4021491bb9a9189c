// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package shard

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 digest. Shard file digests and record
// digests are this size.
type Digest [32]byte

// domainKey is a 32-byte key for BLAKE3 keyed hashing. Domain
// separation ensures the same input bytes produce different digests
// in different contexts. The byte values are the ASCII encoding of
// the domain name, zero-padded to 32 bytes: readable in hex dumps,
// and BLAKE3 keyed mode treats the key as opaque either way.
type domainKey [32]byte

var (
	fileDomainKey = domainKey{
		't', 'r', 'e', 'l', 'l', 'i', 's', '.', 's', 'h', 'a', 'r', 'd', '.',
		'f', 'i', 'l', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	recordDomainKey = domainKey{
		't', 'r', 'e', 'l', 'l', 'i', 's', '.', 's', 'h', 'a', 'r', 'd', '.',
		'r', 'e', 'c', 'o', 'r', 'd', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// HashRecord computes the record-domain digest of an encoded record's
// plaintext CBOR bytes. Stored in the manifest for spot-check
// verification of individual records without rereading whole shards.
func HashRecord(data []byte) Digest {
	return keyedHash(recordDomainKey, data)
}

// fileHasher returns an incremental hasher for the file digest
// domain. The writer feeds it every byte it writes; the reader feeds
// it every byte it reads.
func fileHasher() *blake3.Hasher {
	hasher, err := blake3.NewKeyed(fileDomainKey[:])
	if err != nil {
		panic("shard: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	return hasher
}

// FormatDigest returns the hex form used in the manifest, logs, and
// CLI output.
func FormatDigest(digest Digest) string {
	return hex.EncodeToString(digest[:])
}

// ParseDigest parses a 64-character hex string into a Digest.
func ParseDigest(hexString string) (Digest, error) {
	var digest Digest
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return digest, fmt.Errorf("parsing shard digest: %w", err)
	}
	if len(decoded) != 32 {
		return digest, fmt.Errorf("shard digest is %d bytes, want 32", len(decoded))
	}
	copy(digest[:], decoded)
	return digest, nil
}

// keyedHash computes a BLAKE3 keyed hash with the given domain key.
func keyedHash(key domainKey, data []byte) Digest {
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("shard: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}
