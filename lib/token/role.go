// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package token

import "fmt"

// Role tags one token with its part in the dialogue. The numeric
// values are a storage format: shards persist the role channel as
// int8, so these values are protocol constants — changing them breaks
// shard compatibility.
type Role int8

const (
	// RolePad marks padding positions. Padding is invisible to
	// attention in both directions and always carries turn id 0.
	RolePad Role = 0

	// RoleHuman marks source tokens: the rendered human message and
	// any system or tool preamble folded into it. Human context stays
	// visible to every later causal query across the whole dialogue.
	RoleHuman Role = 1

	// RoleThinking marks reasoning tokens. Reasoning is supervised
	// (trained on its own ids) but visible only inside its own turn,
	// and never to that turn's input answer copy.
	RoleThinking Role = 2

	// RoleAssistantInput marks the first, untrained copy of an
	// answer. It is positioned directly after its source span and
	// serves as context for later turns in place of the reasoning.
	RoleAssistantInput Role = 3

	// RoleAssistantOutput marks the duplicate, trained copy of an
	// answer, emitted only for reasoning turns. It is positioned
	// after the reasoning span and is visible only inside its own
	// turn.
	RoleAssistantOutput Role = 4
)

// String returns the lowercase name used in logs, CLI output, and
// shard diagnostics.
func (r Role) String() string {
	switch r {
	case RolePad:
		return "pad"
	case RoleHuman:
		return "human"
	case RoleThinking:
		return "thinking"
	case RoleAssistantInput:
		return "assistant_input"
	case RoleAssistantOutput:
		return "assistant_output"
	default:
		return fmt.Sprintf("role(%d)", int8(r))
	}
}

// Valid reports whether r is one of the five defined roles.
func (r Role) Valid() bool {
	return r >= RolePad && r <= RoleAssistantOutput
}

// Trained reports whether tokens of this role carry their own ids as
// labels. Only reasoning and the duplicate output copy are optimized;
// source, the input copy, and padding are context only.
func (r Role) Trained() bool {
	return r == RoleThinking || r == RoleAssistantOutput
}

// TurnIDs derives per-token turn identifiers from a role sequence.
//
// A new turn begins exactly where a position holds RoleHuman and the
// preceding position does not (the position before index 0 counts as
// not human). Every non-padding position gets the running count of
// turn starts seen so far; padding positions always get 0.
//
// The output is non-decreasing, stays flat across consecutive human
// tokens, and is 0 exactly where roles is RolePad. The function is
// pure: it never modifies roles and identical input yields identical
// output.
func TurnIDs(roles []Role) []int32 {
	ids := make([]int32, len(roles))
	var count int32
	previousHuman := false
	for i, role := range roles {
		human := role == RoleHuman
		if human && !previousHuman {
			count++
		}
		if role != RolePad {
			ids[i] = count
		}
		previousHuman = human
	}
	return ids
}
