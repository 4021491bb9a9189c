// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package collate

import (
	"fmt"

	"github.com/trellis-ml/trellis/lib/attention"
	"github.com/trellis-ml/trellis/lib/config"
	"github.com/trellis-ml/trellis/lib/token"
)

// Batch is one stacked training batch. The channel slices hold
// batch*seq values in row-major order. Mask is nil for flash batches,
// which carry no dense mask; SegmentIDs is nil for unpacked batches.
type Batch struct {
	Batch int
	Seq   int

	InputIDs    []int32
	Labels      []int32
	PositionIDs []int32
	Roles       []token.Role
	SegmentIDs  []int32

	Mask *attention.AdditiveMask
}

// Collator stacks examples into batches and builds their masks.
type Collator struct {
	// DType is the training dtype the additive mask is built for.
	DType attention.DType

	// Backend is the attention backend the batch is destined for,
	// config.BackendEager or config.BackendFlash.
	Backend string

	// Placement parallelizes mask construction. Nil means serial.
	Placement attention.Placement
}

// New builds a Collator, rejecting unknown backends.
func New(dtype attention.DType, backend string, placement attention.Placement) (*Collator, error) {
	if backend != config.BackendEager && backend != config.BackendFlash {
		return nil, fmt.Errorf("collate: unknown attention backend %q", backend)
	}
	return &Collator{DType: dtype, Backend: backend, Placement: placement}, nil
}

// Examples stacks unpacked examples into a batch.
func (c *Collator) Examples(examples []token.Example) (*Batch, error) {
	if len(examples) == 0 {
		return nil, fmt.Errorf("collate: empty batch")
	}
	seq := examples[0].Len()
	batch := newBatch(len(examples), seq, false)
	inputs := make([]attention.Input, len(examples))
	for index := range examples {
		example := &examples[index]
		if example.Len() != seq {
			return nil, fmt.Errorf("collate: example %d has length %d, example 0 has %d",
				index, example.Len(), seq)
		}
		batch.stack(index, example.InputIDs, example.Labels, example.PositionIDs, example.Roles, nil)
		inputs[index] = attention.ExampleInput(example)
	}
	if err := c.mask(batch, inputs); err != nil {
		return nil, err
	}
	return batch, nil
}

// Packed stacks packed containers into a batch. Segment provenance
// flows into the mask so attention never crosses member boundaries.
func (c *Collator) Packed(packed []token.PackedExample) (*Batch, error) {
	if len(packed) == 0 {
		return nil, fmt.Errorf("collate: empty batch")
	}
	seq := packed[0].Len()
	batch := newBatch(len(packed), seq, true)
	inputs := make([]attention.Input, len(packed))
	for index := range packed {
		container := &packed[index]
		if container.Len() != seq {
			return nil, fmt.Errorf("collate: container %d has length %d, container 0 has %d",
				index, container.Len(), seq)
		}
		batch.stack(index, container.InputIDs, container.Labels, container.PositionIDs,
			container.Roles, container.SegmentIDs)
		inputs[index] = attention.PackedInput(container)
	}
	if err := c.mask(batch, inputs); err != nil {
		return nil, err
	}
	return batch, nil
}

// mask attaches the batch's attention mask, or refuses the batch when
// the backend cannot express the policy its roles require.
func (c *Collator) mask(batch *Batch, inputs []attention.Input) error {
	if c.Backend == config.BackendFlash {
		if reasoningRoles(batch.Roles) {
			return &config.ConflictError{
				First:  "attention_backend=flash",
				Second: "reasoning-encoded batch",
				Reason: "fused attention accepts only structural masks, not the dense turn-aware mask",
			}
		}
		// Flash batches ship without a dense mask; the trainer passes
		// structural metadata to the kernel instead.
		return nil
	}

	builder := attention.Builder{DType: c.DType, Placement: c.Placement}
	mask, err := builder.Additive(inputs)
	if err != nil {
		return fmt.Errorf("collate: building mask: %w", err)
	}
	batch.Mask = mask
	return nil
}

// reasoningRoles reports whether the role channel carries any of the
// roles only reasoning encoding produces.
func reasoningRoles(roles []token.Role) bool {
	for _, role := range roles {
		if role == token.RoleThinking || role == token.RoleAssistantInput {
			return true
		}
	}
	return false
}

func newBatch(n, seq int, packed bool) *Batch {
	batch := &Batch{
		Batch:       n,
		Seq:         seq,
		InputIDs:    make([]int32, n*seq),
		Labels:      make([]int32, n*seq),
		PositionIDs: make([]int32, n*seq),
		Roles:       make([]token.Role, n*seq),
	}
	if packed {
		batch.SegmentIDs = make([]int32, n*seq)
	}
	return batch
}

// stack copies one example's channels into row index.
func (b *Batch) stack(index int, ids, labels, positions []int32, roles []token.Role, segments []int32) {
	offset := index * b.Seq
	copy(b.InputIDs[offset:], ids)
	copy(b.Labels[offset:], labels)
	copy(b.PositionIDs[offset:], positions)
	copy(b.Roles[offset:], roles)
	if segments != nil {
		copy(b.SegmentIDs[offset:], segments)
	}
}

// Row returns the input id row for batch element index.
func (b *Batch) Row(index int) []int32 {
	return b.InputIDs[index*b.Seq : (index+1)*b.Seq]
}
