// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package shard

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/trellis-ml/trellis/lib/codec"
	"github.com/trellis-ml/trellis/lib/secret"
)

// magic identifies a shard file. The trailing digit is the format
// version; a layout change bumps it.
var magic = []byte("TRLSHRD1")

// Header is the CBOR header block at the start of every shard. It
// records the preprocessing parameters the records were produced
// under, so a reader can reject mixing incompatible shards.
type Header struct {
	// Template is the chat template name the corpus was rendered with.
	Template string `cbor:"template"`

	// Cutoff is the encoder cutoff length. Unpacked records are
	// exactly this long; packed records are Cutoff+1.
	Cutoff int `cbor:"cutoff"`

	// DType is the training dtype the run was configured for.
	DType string `cbor:"dtype"`

	// Packed reports whether records carry provenance channels.
	Packed bool `cbor:"packed"`

	// Reasoning reports whether reasoning-mode encoding was active.
	Reasoning bool `cbor:"reasoning"`

	// Encrypted reports whether record blocks are encrypted. The
	// header itself is always plaintext so a reader can fail with
	// "key required" instead of a decode error.
	Encrypted bool `cbor:"encrypted"`

	// CreatedUnix is the pass start time in Unix seconds.
	CreatedUnix int64 `cbor:"created_unix"`
}

// WriterOptions configures shard creation.
type WriterOptions struct {
	// Compression is the record block compression tag. Ignored when
	// Auto is set.
	Compression CompressionTag

	// Auto probes each record and picks the best tag per block.
	Auto bool

	// DatasetKey enables encryption when non-nil: each shard
	// encrypts its blocks under a key derived from this dataset key
	// and the shard's base name. The key is borrowed, not closed.
	DatasetKey *secret.Buffer
}

// Writer appends records to one shard file. Not safe for concurrent
// use; the preprocessing pass writes shards from a single goroutine.
type Writer struct {
	file     *os.File
	hasher   *blake3.Hasher
	options  WriterOptions
	shardKey *secret.Buffer
	count    int
	closed   bool
}

// Create opens a new shard file at path and writes the magic and
// header. The header's Encrypted field is forced to match whether a
// dataset key was supplied.
func Create(path string, header Header, options WriterOptions) (*Writer, error) {
	header.Encrypted = options.DatasetKey != nil

	var shardKey *secret.Buffer
	if options.DatasetKey != nil {
		var err error
		shardKey, err = DeriveShardKey(options.DatasetKey, filepath.Base(path))
		if err != nil {
			return nil, fmt.Errorf("shard %s: %w", path, err)
		}
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if shardKey != nil {
			shardKey.Close()
		}
		return nil, fmt.Errorf("creating shard: %w", err)
	}

	writer := &Writer{
		file:     file,
		hasher:   fileHasher(),
		options:  options,
		shardKey: shardKey,
	}

	headerBytes, err := codec.Marshal(&header)
	if err != nil {
		writer.abort()
		return nil, fmt.Errorf("encoding shard header: %w", err)
	}
	if err := writer.write(magic); err != nil {
		writer.abort()
		return nil, err
	}
	var headerLength [4]byte
	binary.BigEndian.PutUint32(headerLength[:], uint32(len(headerBytes)))
	if err := writer.write(headerLength[:]); err != nil {
		writer.abort()
		return nil, err
	}
	if err := writer.write(headerBytes); err != nil {
		writer.abort()
		return nil, err
	}
	return writer, nil
}

// Append encodes, compresses, optionally encrypts, and writes one
// record block.
func (w *Writer) Append(record Record) error {
	if w.closed {
		return fmt.Errorf("shard writer is closed")
	}

	plaintext, err := codec.Marshal(&record)
	if err != nil {
		return fmt.Errorf("encoding record %d: %w", w.count, err)
	}

	var compressed []byte
	tag := w.options.Compression
	if w.options.Auto {
		compressed, tag, err = CompressAuto(plaintext)
	} else {
		compressed, err = Compress(plaintext, tag)
		if IsIncompressible(err) {
			compressed, tag, err = plaintext, CompressionNone, nil
		}
	}
	if err != nil {
		return fmt.Errorf("compressing record %d: %w", w.count, err)
	}

	payload := compressed
	if w.shardKey != nil {
		payload, err = encryptBlock(compressed, w.shardKey, uint32(w.count))
		if err != nil {
			return fmt.Errorf("encrypting record %d: %w", w.count, err)
		}
	}

	// Block: [length: 4 bytes BE, covers tag onward] [tag: 1 byte]
	// [uncompressed size: 4 bytes BE] [payload]. A zero length is the
	// end marker, which a 1+4-byte prefix can never produce.
	var prefix [9]byte
	binary.BigEndian.PutUint32(prefix[:4], uint32(1+4+len(payload)))
	prefix[4] = byte(tag)
	binary.BigEndian.PutUint32(prefix[5:], uint32(len(plaintext)))

	if err := w.write(prefix[:]); err != nil {
		return err
	}
	if err := w.write(payload); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns the number of records appended so far.
func (w *Writer) Count() int {
	return w.count
}

// Close writes the end marker and digest trailer and closes the
// file. Returns the shard digest for the manifest.
func (w *Writer) Close() (Digest, error) {
	if w.closed {
		return Digest{}, fmt.Errorf("shard writer is closed")
	}
	w.closed = true
	defer w.releaseKey()

	var end [4]byte
	if err := w.write(end[:]); err != nil {
		w.file.Close()
		return Digest{}, err
	}

	var digest Digest
	copy(digest[:], w.hasher.Sum(nil))
	if _, err := w.file.Write(digest[:]); err != nil {
		w.file.Close()
		return Digest{}, fmt.Errorf("writing shard digest: %w", err)
	}

	if err := w.file.Close(); err != nil {
		return Digest{}, fmt.Errorf("closing shard: %w", err)
	}
	return digest, nil
}

// write sends data to both the file and the running digest.
func (w *Writer) write(data []byte) error {
	if _, err := w.file.Write(data); err != nil {
		return fmt.Errorf("writing shard: %w", err)
	}
	w.hasher.Write(data)
	return nil
}

// abort closes and removes a partially written shard after a
// creation failure.
func (w *Writer) abort() {
	name := w.file.Name()
	w.file.Close()
	os.Remove(name)
	w.releaseKey()
}

func (w *Writer) releaseKey() {
	if w.shardKey != nil {
		w.shardKey.Close()
		w.shardKey = nil
	}
}
