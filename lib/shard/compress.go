// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package shard

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionTag identifies the compression algorithm used for a
// record block. Tags are stored in block headers (1 byte each); the
// values are protocol constants and changing them breaks shard
// compatibility.
type CompressionTag uint8

const (
	// CompressionNone stores the block uncompressed. Chosen by the
	// auto probe when a record does not compress.
	CompressionNone CompressionTag = 0

	// CompressionLZ4 is LZ4 block compression: the fast default when
	// decode throughput at training time matters more than ratio.
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd is zstd at level 3: better ratios, the default
	// for archival shards.
	CompressionZstd CompressionTag = 2

	// CompressionBG4LZ4 transposes 4-byte groups before LZ4. Record
	// token channels are little-endian int32 arrays whose high bytes
	// are near-constant across adjacent tokens; grouping bytes by
	// position within the group concentrates that redundancy where
	// LZ4 can see it.
	CompressionBG4LZ4 CompressionTag = 3
)

// String returns the name used in configuration and the manifest.
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	case CompressionBG4LZ4:
		return "bg4_lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(tag))
	}
}

// ParseCompressionTag parses a compression tag from its string form.
func ParseCompressionTag(name string) (CompressionTag, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	case "bg4_lz4":
		return CompressionBG4LZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression tag: %q", name)
	}
}

// Compress compresses data with the given algorithm. For
// CompressionNone the input is returned unchanged (no copy).
func Compress(data []byte, tag CompressionTag) ([]byte, error) {
	switch tag {
	case CompressionNone:
		return data, nil
	case CompressionLZ4:
		return compressLZ4(data)
	case CompressionZstd:
		return compressZstd(data)
	case CompressionBG4LZ4:
		transposed := bg4Transpose(data)
		return compressLZ4(transposed)
	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

// Decompress reverses Compress. The uncompressedSize must match the
// original length exactly; a mismatch is corruption and returns an
// error.
func Decompress(compressed []byte, tag CompressionTag, uncompressedSize int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		if len(compressed) != uncompressedSize {
			return nil, fmt.Errorf("uncompressed block: size %d does not match expected %d",
				len(compressed), uncompressedSize)
		}
		return compressed, nil
	case CompressionLZ4:
		return decompressLZ4(compressed, uncompressedSize)
	case CompressionZstd:
		return decompressZstd(compressed, uncompressedSize)
	case CompressionBG4LZ4:
		transposed, err := decompressLZ4(compressed, uncompressedSize)
		if err != nil {
			return nil, err
		}
		return bg4Untranspose(transposed), nil
	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(data))
	destination := make([]byte, bound)

	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock returns 0 for incompressible input; an output no
	// smaller than the input is not worth the tag either.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func decompressLZ4(compressed []byte, uncompressedSize int) ([]byte, error) {
	destination := make([]byte, uncompressedSize)
	read, err := lz4.UncompressBlock(compressed, destination)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != uncompressedSize {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, uncompressedSize)
	}
	return destination, nil
}

// zstdEncoder and zstdDecoder are reused across calls; both are safe
// for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("shard: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("shard: zstd decoder initialization failed: " + err.Error())
	}
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

func decompressZstd(compressed []byte, uncompressedSize int) ([]byte, error) {
	result, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, uncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(result) != uncompressedSize {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), uncompressedSize)
	}
	return result, nil
}

// bg4Transpose rearranges data so that all byte-position-0 values
// come first, then all byte-position-1 values, and so on in groups of
// 4. Trailing bytes beyond the last full group are appended as-is.
func bg4Transpose(data []byte) []byte {
	length := len(data)
	groupCount := length / 4

	output := make([]byte, length)
	for i := 0; i < groupCount; i++ {
		output[i] = data[i*4]
		output[groupCount+i] = data[i*4+1]
		output[groupCount*2+i] = data[i*4+2]
		output[groupCount*3+i] = data[i*4+3]
	}
	copy(output[groupCount*4:], data[groupCount*4:])
	return output
}

// bg4Untranspose reverses bg4Transpose.
func bg4Untranspose(data []byte) []byte {
	length := len(data)
	groupCount := length / 4

	output := make([]byte, length)
	for i := 0; i < groupCount; i++ {
		output[i*4] = data[i]
		output[i*4+1] = data[groupCount+i]
		output[i*4+2] = data[groupCount*2+i]
		output[i*4+3] = data[groupCount*3+i]
	}
	copy(output[groupCount*4:], data[groupCount*4:])
	return output
}

// errIncompressible is returned when compressed output would not be
// smaller than the input. The writer falls back to CompressionNone.
var errIncompressible = errors.New("data is incompressible")

// IsIncompressible reports whether err indicates that data could not
// be compressed smaller than its original size.
func IsIncompressible(err error) bool {
	return errors.Is(err, errIncompressible)
}

// SelectCompression probes data to pick a tag. Record payloads are
// dominated by int32 token channels, so the probe compares plain LZ4
// against BG4+LZ4 and keeps zstd for the rare text-heavy record; a
// ratio under 1.1x in every mode is stored uncompressed.
func SelectCompression(data []byte) CompressionTag {
	if len(data) == 0 {
		return CompressionNone
	}

	best := CompressionNone
	bestSize := len(data)
	for _, tag := range []CompressionTag{CompressionBG4LZ4, CompressionLZ4, CompressionZstd} {
		compressed, err := Compress(data, tag)
		if err != nil {
			continue
		}
		if len(compressed) < bestSize {
			best = tag
			bestSize = len(compressed)
		}
	}
	if best != CompressionNone && float64(len(data))/float64(bestSize) < 1.1 {
		return CompressionNone
	}
	return best
}

// CompressAuto compresses data with the probed best algorithm,
// returning the bytes and the tag used. Incompressible data comes
// back unchanged under CompressionNone.
func CompressAuto(data []byte) ([]byte, CompressionTag, error) {
	tag := SelectCompression(data)
	compressed, err := Compress(data, tag)
	if err != nil {
		if IsIncompressible(err) {
			return data, CompressionNone, nil
		}
		return nil, 0, err
	}
	return compressed, tag, nil
}
