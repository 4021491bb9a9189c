// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package attention

import (
	"errors"
	"fmt"

	"github.com/trellis-ml/trellis/lib/token"
)

// Input is one batch element of mask construction.
type Input struct {
	// Roles is the per-token role channel.
	Roles []token.Role

	// Turns holds the per-token turn ids. Nil derives them from
	// Roles via token.TurnIDs.
	Turns []int32

	// Segments is the packed provenance channel. When present,
	// visibility additionally requires equal segment ids, isolating
	// packed members from each other. Nil for unpacked examples.
	Segments []int32
}

// ExampleInput builds the mask input for one encoded example.
func ExampleInput(example *token.Example) Input {
	return Input{Roles: example.Roles}
}

// PackedInput builds the mask input for one packed container. Turn
// ids derived from the concatenated roles restart correctly at each
// member because every member opens with a human run.
func PackedInput(packed *token.PackedExample) Input {
	return Input{Roles: packed.Roles, Segments: packed.SegmentIDs}
}

// Builder constructs turn-aware masks for batches of examples.
type Builder struct {
	// DType selects the blocked-position fill value of Additive.
	DType DType

	// Placement executes the fill. Nil means Serial.
	Placement Placement
}

// Visibility builds the boolean mask: the causal non-padding base
// ANDed with the turn-aware key policy and, where provenance is
// present, the equal-segment requirement.
func (b *Builder) Visibility(inputs []Input) (*BoolMask, error) {
	seq, err := batchLength(inputs)
	if err != nil {
		return nil, err
	}

	turns := make([][]int32, len(inputs))
	for index, input := range inputs {
		if input.Turns != nil {
			turns[index] = input.Turns
		} else {
			turns[index] = token.TurnIDs(input.Roles)
		}
	}

	mask := NewBoolMask(len(inputs), seq)
	placement := b.Placement
	if placement == nil {
		placement = Serial()
	}
	placement.fill(len(inputs)*seq, func(row int) {
		element := row / seq
		i := row % seq
		input := &inputs[element]
		if input.Roles[i] == token.RolePad {
			return
		}
		keys := mask.row(element, i)
		for j := 0; j <= i; j++ {
			keys[j] = visible(input.Roles, turns[element], input.Segments, i, j)
		}
	})
	return mask, nil
}

// Additive builds the numeric mask of shape [batch, 1, seq, seq]: 0
// where Visibility is true, the dtype's lowest finite value elsewhere.
func (b *Builder) Additive(inputs []Input) (*AdditiveMask, error) {
	visibility, err := b.Visibility(inputs)
	if err != nil {
		return nil, err
	}
	return visibility.Additive(b.DType), nil
}

// visible applies the turn-aware key policy. The caller has already
// established j <= i and a non-padding query.
func visible(roles []token.Role, turns, segments []int32, i, j int) bool {
	if segments != nil && segments[i] != segments[j] {
		return false
	}
	switch roles[j] {
	case token.RoleHuman:
		// Dialogue context stays visible to every later query.
		return true
	case token.RoleAssistantOutput:
		// The trained answer copy is visible only inside its turn.
		return turns[i] == turns[j]
	case token.RoleAssistantInput:
		// The untrained copy is hidden from its own turn's trained
		// copy, which must continue from the reasoning instead.
		return roles[i] != token.RoleAssistantOutput || turns[i] != turns[j]
	case token.RoleThinking:
		// Reasoning is turn-private and hidden from the untrained
		// copy even there.
		return turns[i] == turns[j] && roles[i] != token.RoleAssistantInput
	default:
		return false
	}
}

// CausalNonPadding builds the base mask for a single example: query i
// sees key j when i >= j and neither position is padding. Visibility
// ANDs the turn policy onto this base.
func CausalNonPadding(roles []token.Role) *BoolMask {
	mask := NewBoolMask(1, len(roles))
	for i, role := range roles {
		if role == token.RolePad {
			continue
		}
		keys := mask.row(0, i)
		for j := 0; j <= i; j++ {
			keys[j] = roles[j] != token.RolePad
		}
	}
	return mask
}

// batchLength checks that every input shares one sequence length and
// returns it.
func batchLength(inputs []Input) (int, error) {
	if len(inputs) == 0 {
		return 0, errors.New("empty batch")
	}
	seq := len(inputs[0].Roles)
	for index, input := range inputs {
		if len(input.Roles) != seq {
			return 0, fmt.Errorf("batch element %d has %d roles, element 0 has %d", index, len(input.Roles), seq)
		}
		if input.Turns != nil && len(input.Turns) != seq {
			return 0, fmt.Errorf("batch element %d has %d turn ids for %d roles", index, len(input.Turns), seq)
		}
		if input.Segments != nil && len(input.Segments) != seq {
			return 0, fmt.Errorf("batch element %d has %d segment ids for %d roles", index, len(input.Segments), seq)
		}
	}
	return seq, nil
}
