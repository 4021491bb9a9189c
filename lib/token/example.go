// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package token

import "fmt"

// IgnoreLabel is the sentinel stored in the label channel at positions
// the loss must skip: source tokens, input answer copies, and padding.
// The value matches the ignore index convention of the cross-entropy
// implementations trainers feed these examples to.
const IgnoreLabel int32 = -100

// Example is one encoded training example. All four channels have the
// same length — exactly the configured cutoff length for examples
// produced by the encoder — and are immutable once built.
//
// Padding is always a suffix: once a RolePad position appears, every
// later position is padding too. Role transitions occur only at turn
// segment boundaries, which Validate checks indirectly through the
// padding-suffix and label rules.
type Example struct {
	// InputIDs are the token ids fed to the model.
	InputIDs []int32

	// Labels are the supervision targets: the token's own id at
	// trained positions, IgnoreLabel everywhere else.
	Labels []int32

	// PositionIDs are the per-token position ids. They restart at 0
	// per example and encode the duplicate-run overlap scheme: both
	// answer copies continue the prefix they are allowed to see.
	PositionIDs []int32

	// Roles is the per-token role channel.
	Roles []Role
}

// Len returns the common channel length.
func (e *Example) Len() int {
	return len(e.InputIDs)
}

// Validate checks the structural invariants: equal channel lengths,
// defined roles, padding confined to a suffix, and the label policy at
// padding positions (ignore label, position 0). It does not know the
// pad token id, so the id channel at padding positions is not checked.
func (e *Example) Validate() error {
	length := len(e.InputIDs)
	if len(e.Labels) != length || len(e.PositionIDs) != length || len(e.Roles) != length {
		return fmt.Errorf("example: channel lengths differ: ids=%d labels=%d positions=%d roles=%d",
			len(e.InputIDs), len(e.Labels), len(e.PositionIDs), len(e.Roles))
	}
	inPadding := false
	for i, role := range e.Roles {
		if !role.Valid() {
			return fmt.Errorf("example: undefined role %d at position %d", int8(role), i)
		}
		if role == RolePad {
			inPadding = true
			if e.Labels[i] != IgnoreLabel {
				return fmt.Errorf("example: padding at position %d carries label %d", i, e.Labels[i])
			}
			if e.PositionIDs[i] != 0 {
				return fmt.Errorf("example: padding at position %d carries position id %d", i, e.PositionIDs[i])
			}
			continue
		}
		if inPadding {
			return fmt.Errorf("example: %s token at position %d after padding began", role, i)
		}
		if !role.Trained() && e.Labels[i] != IgnoreLabel {
			return fmt.Errorf("example: untrained %s token at position %d carries label %d", role, i, e.Labels[i])
		}
		if role.Trained() && e.Labels[i] != e.InputIDs[i] {
			return fmt.Errorf("example: trained %s token at position %d has label %d, want own id %d",
				role, i, e.Labels[i], e.InputIDs[i])
		}
	}
	return nil
}

// TrimmedLen returns the length excluding the trailing padding run.
func (e *Example) TrimmedLen() int {
	length := len(e.Roles)
	for length > 0 && e.Roles[length-1] == RolePad {
		length--
	}
	return length
}

// Trimmed returns the example with the trailing padding run stripped.
// The channels of the result alias the receiver's backing arrays; the
// caller must not modify either.
func (e *Example) Trimmed() Example {
	length := e.TrimmedLen()
	return Example{
		InputIDs:    e.InputIDs[:length],
		Labels:      e.Labels[:length],
		PositionIDs: e.PositionIDs[:length],
		Roles:       e.Roles[:length],
	}
}

// PackedExample is a fixed-capacity container holding several trimmed
// examples back to back, plus the per-token provenance channel that
// keeps attention from crossing member boundaries.
//
// Containers are always exactly capacity+1 long — the extra slot
// defends against fused-kernel mask handling that reads one position
// past the nominal capacity.
type PackedExample struct {
	Example

	// SegmentIDs is the provenance channel: tokens of the first
	// member are 1, the second 2, and so on; padding is 0.
	SegmentIDs []int32
}

// Validate checks the container invariants beyond Example.Validate:
// the provenance channel matches the common length, padding and only
// padding is segment 0, and member ordinals start at 1 and increase by
// exactly 1 at member boundaries.
func (p *PackedExample) Validate() error {
	if err := p.Example.Validate(); err != nil {
		return err
	}
	if len(p.SegmentIDs) != p.Len() {
		return fmt.Errorf("packed example: segment channel length %d, want %d", len(p.SegmentIDs), p.Len())
	}
	var current int32
	for i, segment := range p.SegmentIDs {
		padding := p.Roles[i] == RolePad
		if padding != (segment == 0) {
			return fmt.Errorf("packed example: position %d has role %s with segment %d", i, p.Roles[i], segment)
		}
		if padding {
			continue
		}
		switch {
		case segment == current:
		case segment == current+1:
			current = segment
		default:
			return fmt.Errorf("packed example: segment jumps from %d to %d at position %d", current, segment, i)
		}
	}
	return nil
}
