// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package shard

import (
	"encoding/binary"
	"fmt"

	"github.com/trellis-ml/trellis/lib/token"
)

// Record is the CBOR form of one encoded example inside a shard.
// Token channels are little-endian int32 byte strings rather than
// CBOR arrays: fixed-width layout is what makes the BG4 transpose
// effective, and it decodes with a copy instead of per-element
// reflection.
//
// Records are CBOR-only; they never appear in JSON output (the
// inspect command re-expands them into examples first).
type Record struct {
	InputIDs    []byte `cbor:"input_ids"`
	Labels      []byte `cbor:"labels"`
	PositionIDs []byte `cbor:"position_ids"`
	Roles       []byte `cbor:"roles"`
	SegmentIDs  []byte `cbor:"segment_ids,omitempty"`
}

// FromExample converts an encoded example to its record form.
func FromExample(example *token.Example) Record {
	return Record{
		InputIDs:    int32Bytes(example.InputIDs),
		Labels:      int32Bytes(example.Labels),
		PositionIDs: int32Bytes(example.PositionIDs),
		Roles:       roleBytes(example.Roles),
	}
}

// FromPacked converts a packed container to its record form.
func FromPacked(packed *token.PackedExample) Record {
	record := FromExample(&packed.Example)
	record.SegmentIDs = int32Bytes(packed.SegmentIDs)
	return record
}

// Packed reports whether the record carries a provenance channel.
func (r *Record) Packed() bool {
	return len(r.SegmentIDs) > 0
}

// Example decodes the record's common channels. For packed records
// the provenance channel is available via PackedExample instead.
func (r *Record) Example() (token.Example, error) {
	ids, err := bytesInt32("input_ids", r.InputIDs)
	if err != nil {
		return token.Example{}, err
	}
	labels, err := bytesInt32("labels", r.Labels)
	if err != nil {
		return token.Example{}, err
	}
	positions, err := bytesInt32("position_ids", r.PositionIDs)
	if err != nil {
		return token.Example{}, err
	}

	roles := make([]token.Role, len(r.Roles))
	for index, value := range r.Roles {
		roles[index] = token.Role(value)
	}

	example := token.Example{
		InputIDs:    ids,
		Labels:      labels,
		PositionIDs: positions,
		Roles:       roles,
	}
	if err := example.Validate(); err != nil {
		return token.Example{}, fmt.Errorf("record: %w", err)
	}
	return example, nil
}

// PackedExample decodes a packed record, provenance included.
func (r *Record) PackedExample() (token.PackedExample, error) {
	if !r.Packed() {
		return token.PackedExample{}, fmt.Errorf("record has no segment channel")
	}
	example, err := r.Example()
	if err != nil {
		return token.PackedExample{}, err
	}
	segments, err := bytesInt32("segment_ids", r.SegmentIDs)
	if err != nil {
		return token.PackedExample{}, err
	}

	packed := token.PackedExample{Example: example, SegmentIDs: segments}
	if err := packed.Validate(); err != nil {
		return token.PackedExample{}, fmt.Errorf("record: %w", err)
	}
	return packed, nil
}

func int32Bytes(values []int32) []byte {
	result := make([]byte, len(values)*4)
	for index, value := range values {
		binary.LittleEndian.PutUint32(result[index*4:], uint32(value))
	}
	return result
}

func bytesInt32(channel string, data []byte) ([]int32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("record: %s channel is %d bytes, not a multiple of 4", channel, len(data))
	}
	values := make([]int32, len(data)/4)
	for index := range values {
		values[index] = int32(binary.LittleEndian.Uint32(data[index*4:]))
	}
	return values, nil
}

func roleBytes(roles []token.Role) []byte {
	result := make([]byte, len(roles))
	for index, role := range roles {
		result[index] = byte(role)
	}
	return result
}
