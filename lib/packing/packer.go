// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package packing

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/trellis-ml/trellis/lib/token"
)

// InvariantError reports a produced container whose channels are not
// exactly capacity+1 long. It indicates a packer defect, never a data
// problem, and is always fatal: the container must not be repaired by
// truncation or extra padding.
type InvariantError struct {
	// Container is the index of the offending container.
	Container int

	// Channel names the channel with the wrong length.
	Channel string

	// Length is the channel's actual length; Want is capacity+1.
	Length int
	Want   int
}

// Error implements error.
func (e *InvariantError) Error() string {
	return fmt.Sprintf("container %d: %s channel has length %d, want %d", e.Container, e.Channel, e.Length, e.Want)
}

// Packer bins trimmed examples into containers of a fixed capacity.
type Packer struct {
	// Capacity is the nominal container capacity, normally the
	// encoder's cutoff length. Containers are one slot longer.
	Capacity int

	// PadID is the token id written at padding positions.
	PadID int32

	// IgnoreLabel overrides the label sentinel at padding positions.
	// Zero means token.IgnoreLabel.
	IgnoreLabel int32

	// Logger receives drop warnings. Nil means slog.Default.
	Logger *slog.Logger
}

func (p *Packer) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *Packer) ignoreLabel() int32 {
	if p.IgnoreLabel != 0 {
		return p.IgnoreLabel
	}
	return token.IgnoreLabel
}

// Pack trims the examples and bins them into containers. It returns
// the containers and the indices of inputs it dropped: oversized
// sequences and empty ones. Dropping is logged; the run continues.
// The only error is an *InvariantError from the container length
// postcondition, which the caller must treat as fatal.
func (p *Packer) Pack(examples []token.Example) ([]token.PackedExample, []int, error) {
	if p.Capacity <= 0 {
		return nil, nil, fmt.Errorf("capacity %d is not positive", p.Capacity)
	}

	type candidate struct {
		index   int
		trimmed token.Example
	}

	// Bucket candidates by exact trimmed length, arrival order kept
	// within each bucket.
	buckets := make(map[int][]candidate)
	var lengths []int
	var dropped []int
	pending := 0
	for index := range examples {
		trimmed := examples[index].Trimmed()
		length := trimmed.Len()
		if length == 0 {
			p.logger().Warn("dropping empty example", "index", index)
			dropped = append(dropped, index)
			continue
		}
		if length > p.Capacity {
			p.logger().Warn("dropping oversized example",
				"index", index, "length", length, "capacity", p.Capacity)
			dropped = append(dropped, index)
			continue
		}
		if _, seen := buckets[length]; !seen {
			lengths = append(lengths, length)
		}
		buckets[length] = append(buckets[length], candidate{index: index, trimmed: trimmed})
		pending++
	}
	sort.Sort(sort.Reverse(sort.IntSlice(lengths)))

	var containers []token.PackedExample
	for pending > 0 {
		full := p.Capacity + 1
		ids := make([]int32, 0, full)
		labels := make([]int32, 0, full)
		positions := make([]int32, 0, full)
		roles := make([]token.Role, 0, full)
		segments := make([]int32, 0, full)

		room := p.Capacity
		var segment int32
		for {
			// Longest bucket that still fits, oldest member first.
			placed := false
			for _, length := range lengths {
				if length > room || len(buckets[length]) == 0 {
					continue
				}
				member := buckets[length][0]
				buckets[length] = buckets[length][1:]
				pending--
				room -= length

				segment++
				ids = append(ids, member.trimmed.InputIDs...)
				labels = append(labels, member.trimmed.Labels...)
				positions = append(positions, member.trimmed.PositionIDs...)
				roles = append(roles, member.trimmed.Roles...)
				for range member.trimmed.Roles {
					segments = append(segments, segment)
				}
				placed = true
				break
			}
			if !placed {
				break
			}
		}

		ignore := p.ignoreLabel()
		for len(ids) < full {
			ids = append(ids, p.PadID)
			labels = append(labels, ignore)
			positions = append(positions, 0)
			roles = append(roles, token.RolePad)
			segments = append(segments, 0)
		}

		container := token.PackedExample{
			Example: token.Example{
				InputIDs:    ids,
				Labels:      labels,
				PositionIDs: positions,
				Roles:       roles,
			},
			SegmentIDs: segments,
		}
		if err := p.checkContainer(len(containers), &container); err != nil {
			return nil, nil, err
		}
		containers = append(containers, container)
	}
	return containers, dropped, nil
}

// checkContainer enforces the container postcondition: every channel
// exactly capacity+1 long.
func (p *Packer) checkContainer(index int, container *token.PackedExample) error {
	want := p.Capacity + 1
	channels := []struct {
		name   string
		length int
	}{
		{"id", len(container.InputIDs)},
		{"label", len(container.Labels)},
		{"position", len(container.PositionIDs)},
		{"role", len(container.Roles)},
		{"segment", len(container.SegmentIDs)},
	}
	for _, channel := range channels {
		if channel.length != want {
			return &InvariantError{
				Container: index,
				Channel:   channel.name,
				Length:    channel.length,
				Want:      want,
			}
		}
	}
	return nil
}
