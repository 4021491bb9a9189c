// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package shard

import (
	"bufio"
	"bytes"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/trellis-ml/trellis/lib/codec"
	"github.com/trellis-ml/trellis/lib/secret"
)

// maxBlockSize bounds a single record block. The largest legitimate
// block is one packed container of a few hundred KiB; anything near
// this limit means a corrupt length prefix, and failing early beats
// a multi-gigabyte allocation.
const maxBlockSize = 64 << 20

// ErrKeyRequired is returned by Open for an encrypted shard when no
// dataset key was supplied.
var ErrKeyRequired = errors.New("shard is encrypted and no dataset key was supplied")

// Reader iterates the records of one shard file, verifying the
// digest trailer as a side effect of reading. Not safe for
// concurrent use.
type Reader struct {
	file     *os.File
	buffered *bufio.Reader
	hasher   *blake3.Hasher
	header   Header
	shardKey *secret.Buffer
	ordinal  uint32
	done     bool
}

// Open opens a shard file and reads its header. For encrypted shards
// the datasetKey is required (borrowed, not closed); for plaintext
// shards it may be nil and is ignored.
func Open(path string, datasetKey *secret.Buffer) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening shard: %w", err)
	}

	reader := &Reader{
		file:     file,
		buffered: bufio.NewReader(file),
		hasher:   fileHasher(),
	}

	prefix := make([]byte, len(magic))
	if err := reader.read(prefix); err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: reading magic: %w", path, err)
	}
	if !bytes.Equal(prefix, magic) {
		file.Close()
		return nil, fmt.Errorf("%s is not a shard file (bad magic %q)", path, prefix)
	}

	var headerLength [4]byte
	if err := reader.read(headerLength[:]); err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: reading header length: %w", path, err)
	}
	length := binary.BigEndian.Uint32(headerLength[:])
	if length == 0 || length > maxBlockSize {
		file.Close()
		return nil, fmt.Errorf("%s: implausible header length %d", path, length)
	}
	headerBytes := make([]byte, length)
	if err := reader.read(headerBytes); err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: reading header: %w", path, err)
	}
	if err := codec.Unmarshal(headerBytes, &reader.header); err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: decoding header: %w", path, err)
	}

	if reader.header.Encrypted {
		if datasetKey == nil {
			file.Close()
			return nil, fmt.Errorf("%s: %w", path, ErrKeyRequired)
		}
		reader.shardKey, err = DeriveShardKey(datasetKey, filepath.Base(path))
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return reader, nil
}

// Header returns the shard header.
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next record. At the end of the shard it verifies
// the digest trailer and returns io.EOF; a digest mismatch is
// returned instead of io.EOF, so a caller that drains the reader has
// verified the whole file.
func (r *Reader) Next() (Record, error) {
	if r.done {
		return Record{}, io.EOF
	}

	var lengthPrefix [4]byte
	if err := r.read(lengthPrefix[:]); err != nil {
		return Record{}, fmt.Errorf("reading block length: %w", err)
	}
	length := binary.BigEndian.Uint32(lengthPrefix[:])
	if length == 0 {
		r.done = true
		return Record{}, r.verifyTrailer()
	}
	if length < 5 || length > maxBlockSize {
		return Record{}, fmt.Errorf("implausible block length %d", length)
	}

	block := make([]byte, length)
	if err := r.read(block); err != nil {
		return Record{}, fmt.Errorf("reading block %d: %w", r.ordinal, err)
	}
	tag := CompressionTag(block[0])
	uncompressedSize := binary.BigEndian.Uint32(block[1:5])
	if uncompressedSize > maxBlockSize {
		return Record{}, fmt.Errorf("block %d: implausible uncompressed size %d", r.ordinal, uncompressedSize)
	}
	payload := block[5:]

	if r.shardKey != nil {
		decrypted, err := decryptBlock(payload, r.shardKey, r.ordinal)
		if err != nil {
			return Record{}, fmt.Errorf("block %d: %w", r.ordinal, err)
		}
		payload = decrypted
	}

	plaintext, err := Decompress(payload, tag, int(uncompressedSize))
	if err != nil {
		return Record{}, fmt.Errorf("block %d: %w", r.ordinal, err)
	}

	var record Record
	if err := codec.Unmarshal(plaintext, &record); err != nil {
		return Record{}, fmt.Errorf("block %d: decoding record: %w", r.ordinal, err)
	}
	r.ordinal++
	return record, nil
}

// verifyTrailer checks the digest trailer against the bytes read so
// far. Returns io.EOF on success.
func (r *Reader) verifyTrailer() error {
	var stored Digest
	// The trailer is outside the digested region; read it directly.
	if _, err := io.ReadFull(r.buffered, stored[:]); err != nil {
		return fmt.Errorf("reading shard digest: %w", err)
	}

	var computed Digest
	copy(computed[:], r.hasher.Sum(nil))
	if subtle.ConstantTimeCompare(stored[:], computed[:]) != 1 {
		return fmt.Errorf("shard digest mismatch: stored %s, computed %s",
			FormatDigest(stored), FormatDigest(computed))
	}
	return io.EOF
}

// Close releases the file and the derived key. Safe to call after a
// read error.
func (r *Reader) Close() error {
	if r.shardKey != nil {
		r.shardKey.Close()
		r.shardKey = nil
	}
	return r.file.Close()
}

// read fills data from the file and feeds the running digest.
func (r *Reader) read(data []byte) error {
	if _, err := io.ReadFull(r.buffered, data); err != nil {
		return err
	}
	r.hasher.Write(data)
	return nil
}
