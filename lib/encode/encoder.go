// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package encode

import (
	"fmt"

	"github.com/trellis-ml/trellis/lib/token"
)

// OverlongError reports a dialogue whose encoded length, including
// any duplicate answer runs, exceeds the cutoff. The example fails
// whole; turns are never truncated. Whether the caller aborts or
// skips on this error depends on the run mode: packed runs drop the
// example, unpacked runs stop.
type OverlongError struct {
	// Turn is the index of the turn that overflowed.
	Turn int

	// Length is the cumulative encoded length through that turn.
	Length int

	// Cutoff is the configured limit.
	Cutoff int
}

// Error implements error.
func (e *OverlongError) Error() string {
	return fmt.Sprintf("turn %d overflows the cutoff: encoded length %d > %d", e.Turn, e.Length, e.Cutoff)
}

// Encoder assembles tokenized turns into fixed-length examples.
type Encoder struct {
	// Cutoff is the exact length of every produced example.
	Cutoff int

	// PadID is the token id written at padding positions.
	PadID int32

	// IgnoreLabel overrides the label sentinel at untrained
	// positions. Zero means token.IgnoreLabel.
	IgnoreLabel int32
}

func (e *Encoder) ignoreLabel() int32 {
	if e.IgnoreLabel != 0 {
		return e.IgnoreLabel
	}
	return token.IgnoreLabel
}

// Encode produces one example from the dialogue's turns. Labels are
// the token's own id at reasoning and duplicate answer positions and
// the ignore sentinel everywhere else. Position ids continue across
// turns by len(source)+len(assistant) only: both answer copies are
// positioned as direct continuations of the prefix they may attend,
// and reasoning never inflates later turns' positions.
func (e *Encoder) Encode(turns []Turn) (token.Example, error) {
	if e.Cutoff <= 0 {
		return token.Example{}, fmt.Errorf("cutoff %d is not positive", e.Cutoff)
	}

	ignore := e.ignoreLabel()
	ids := make([]int32, 0, e.Cutoff)
	labels := make([]int32, 0, e.Cutoff)
	positions := make([]int32, 0, e.Cutoff)
	roles := make([]token.Role, 0, e.Cutoff)

	var base int32
	total := 0
	for index, turn := range turns {
		if err := turn.Validate(); err != nil {
			return token.Example{}, fmt.Errorf("turn %d: %w", index, err)
		}
		total += turn.EncodedLength()
		if total > e.Cutoff {
			return token.Example{}, &OverlongError{Turn: index, Length: total, Cutoff: e.Cutoff}
		}

		for offset, id := range turn.Source {
			ids = append(ids, id)
			labels = append(labels, ignore)
			positions = append(positions, base+int32(offset))
			roles = append(roles, token.RoleHuman)
		}
		afterSource := base + int32(len(turn.Source))

		for offset, id := range turn.Reasoning {
			ids = append(ids, id)
			labels = append(labels, id)
			positions = append(positions, afterSource+int32(offset))
			roles = append(roles, token.RoleThinking)
		}
		afterReasoning := afterSource + int32(len(turn.Reasoning))

		// The input copy restarts right after the source, blind to
		// the reasoning span's length.
		for offset, id := range turn.Assistant {
			ids = append(ids, id)
			labels = append(labels, ignore)
			positions = append(positions, afterSource+int32(offset))
			roles = append(roles, token.RoleAssistantInput)
		}

		if turn.Kind == TurnReasoning {
			for offset, id := range turn.Assistant {
				ids = append(ids, id)
				labels = append(labels, id)
				positions = append(positions, afterReasoning+int32(offset))
				roles = append(roles, token.RoleAssistantOutput)
			}
		}

		base = afterSource + int32(len(turn.Assistant))
	}

	for len(ids) < e.Cutoff {
		ids = append(ids, e.PadID)
		labels = append(labels, ignore)
		positions = append(positions, 0)
		roles = append(roles, token.RolePad)
	}

	return token.Example{
		InputIDs:    ids,
		Labels:      labels,
		PositionIDs: positions,
		Roles:       roles,
	}, nil
}
