// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package shard

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/trellis-ml/trellis/lib/secret"
)

// KeySize is the size in bytes of the dataset key and every derived
// per-shard key.
const KeySize = 32

// encryptedBlockVersion is the version byte prepended to encrypted
// record blocks. Included in the AEAD's additional authenticated
// data, so tampering with it fails authentication.
const encryptedBlockVersion byte = 0x01

// EncryptedBlockOverhead is the byte overhead per encrypted block:
// 1 (version) + 24 (XChaCha20-Poly1305 nonce) + 16 (Poly1305 tag).
const EncryptedBlockOverhead = 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

// hkdfInfoShard is the HKDF info prefix for per-shard key derivation.
// Changing it invalidates every encrypted shard.
var hkdfInfoShard = []byte("trellis.shard.enc.v1")

// DeriveShardKey derives the per-shard encryption key from the
// dataset key and the shard's base name. Binding the name into the
// derivation means a shard file cannot be renamed into another's
// place and still decrypt.
//
// The datasetKey is borrowed (read via Bytes) and NOT closed. The
// returned buffer must be closed by the caller.
func DeriveShardKey(datasetKey *secret.Buffer, shardName string) (*secret.Buffer, error) {
	if datasetKey.Len() != KeySize {
		return nil, fmt.Errorf("dataset key must be %d bytes, got %d", KeySize, datasetKey.Len())
	}
	info := make([]byte, 0, len(hkdfInfoShard)+len(shardName))
	info = append(info, hkdfInfoShard...)
	info = append(info, shardName...)

	// Nil salt is appropriate per RFC 5869: the dataset key is
	// already uniformly random key material.
	reader := hkdf.New(sha256.New, datasetKey.Bytes(), nil, info)
	derived := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		secret.Zero(derived)
		return nil, fmt.Errorf("HKDF key derivation failed: %w", err)
	}
	// NewFromBytes copies into mlocked memory and zeros the heap copy.
	return secret.NewFromBytes(derived)
}

// encryptBlock encrypts a record block with XChaCha20-Poly1305:
//
//	[version: 1 byte] [nonce: 24 bytes, random] [ciphertext+tag]
//
// The block's ordinal within the shard is bound in as AAD alongside
// the version byte, so encrypted blocks cannot be reordered within a
// shard without failing authentication.
func encryptBlock(plaintext []byte, shardKey *secret.Buffer, ordinal uint32) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(shardKey.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generating random nonce: %w", err)
	}

	output := make([]byte, 1+chacha20poly1305.NonceSizeX, 1+chacha20poly1305.NonceSizeX+len(plaintext)+aead.Overhead())
	output[0] = encryptedBlockVersion
	copy(output[1:], nonce[:])
	return aead.Seal(output, nonce[:], plaintext, blockAAD(encryptedBlockVersion, ordinal)), nil
}

// decryptBlock reverses encryptBlock.
func decryptBlock(encrypted []byte, shardKey *secret.Buffer, ordinal uint32) ([]byte, error) {
	if len(encrypted) < EncryptedBlockOverhead {
		return nil, fmt.Errorf("encrypted block is %d bytes, minimum is %d (version + nonce + tag)",
			len(encrypted), EncryptedBlockOverhead)
	}
	version := encrypted[0]
	if version != encryptedBlockVersion {
		return nil, fmt.Errorf("encrypted block version %d is not supported (expected %d)",
			version, encryptedBlockVersion)
	}

	aead, err := chacha20poly1305.NewX(shardKey.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	nonce := encrypted[1 : 1+chacha20poly1305.NonceSizeX]
	ciphertext := encrypted[1+chacha20poly1305.NonceSizeX:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, blockAAD(version, ordinal))
	if err != nil {
		return nil, fmt.Errorf("AEAD decryption failed (wrong key, tampered data, or reordered block): %w", err)
	}
	return plaintext, nil
}

// blockAAD builds the additional authenticated data for a record
// block: version byte plus big-endian block ordinal.
func blockAAD(version byte, ordinal uint32) []byte {
	return []byte{
		version,
		byte(ordinal >> 24), byte(ordinal >> 16), byte(ordinal >> 8), byte(ordinal),
	}
}
