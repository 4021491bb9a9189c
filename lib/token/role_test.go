// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package token

import (
	"math/rand"
	"testing"
)

func TestTurnIDs(t *testing.T) {
	tests := []struct {
		name  string
		roles []Role
		want  []int32
	}{
		{
			name:  "empty",
			roles: nil,
			want:  []int32{},
		},
		{
			name:  "all padding",
			roles: []Role{RolePad, RolePad, RolePad},
			want:  []int32{0, 0, 0},
		},
		{
			name: "single turn with duplicate answer",
			roles: []Role{
				RoleHuman, RoleHuman, RoleThinking,
				RoleAssistantInput, RoleAssistantOutput,
			},
			want: []int32{1, 1, 1, 1, 1},
		},
		{
			name: "second human run starts turn two",
			roles: []Role{
				RoleHuman, RoleHuman, RoleAssistantInput, RoleAssistantOutput,
				RoleHuman, RoleAssistantInput,
			},
			want: []int32{1, 1, 1, 1, 2, 2},
		},
		{
			name: "consecutive human tokens do not re-increment",
			roles: []Role{
				RoleHuman, RoleHuman, RoleHuman, RoleAssistantInput,
			},
			want: []int32{1, 1, 1, 1},
		},
		{
			name: "trailing padding is turn zero",
			roles: []Role{
				RoleHuman, RoleAssistantInput, RolePad, RolePad,
			},
			want: []int32{1, 1, 0, 0},
		},
		{
			name: "human after padding starts a new turn",
			roles: []Role{
				RoleHuman, RoleAssistantInput, RolePad, RoleHuman, RoleAssistantInput,
			},
			want: []int32{1, 1, 0, 2, 2},
		},
		{
			name: "three turns",
			roles: []Role{
				RoleHuman, RoleThinking, RoleAssistantInput, RoleAssistantOutput,
				RoleHuman, RoleAssistantInput,
				RoleHuman, RoleThinking, RoleAssistantInput, RoleAssistantOutput,
			},
			want: []int32{1, 1, 1, 1, 2, 2, 3, 3, 3, 3},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := TurnIDs(test.roles)
			if len(got) != len(test.want) {
				t.Fatalf("TurnIDs length = %d, want %d", len(got), len(test.want))
			}
			for i := range got {
				if got[i] != test.want[i] {
					t.Fatalf("TurnIDs = %v, want %v", got, test.want)
				}
			}
		})
	}
}

// TestTurnIDsProperties checks the two turn-id guarantees on random
// role sequences: the output never decreases, and it is zero exactly
// at padding positions. The generator is seeded so failures reproduce.
func TestTurnIDsProperties(t *testing.T) {
	generator := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		roles := make([]Role, generator.Intn(64))
		for i := range roles {
			roles[i] = Role(generator.Intn(5))
		}

		ids := TurnIDs(roles)
		var previous int32
		for i, id := range ids {
			if roles[i] == RolePad {
				if id != 0 {
					t.Fatalf("trial %d: padding position %d has turn id %d", trial, i, id)
				}
				continue
			}
			if id == 0 {
				t.Fatalf("trial %d: non-padding %s at position %d has turn id 0", trial, roles[i], i)
			}
			if id < previous {
				t.Fatalf("trial %d: turn ids decrease at position %d: %v", trial, i, ids)
			}
			previous = id
		}
	}
}

func TestRoleString(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RolePad, "pad"},
		{RoleHuman, "human"},
		{RoleThinking, "thinking"},
		{RoleAssistantInput, "assistant_input"},
		{RoleAssistantOutput, "assistant_output"},
		{Role(9), "role(9)"},
	}
	for _, test := range tests {
		if got := test.role.String(); got != test.want {
			t.Errorf("Role(%d).String() = %q, want %q", int8(test.role), got, test.want)
		}
	}
}

func TestRoleTrained(t *testing.T) {
	trained := map[Role]bool{
		RolePad:             false,
		RoleHuman:           false,
		RoleThinking:        true,
		RoleAssistantInput:  false,
		RoleAssistantOutput: true,
	}
	for role, want := range trained {
		if got := role.Trained(); got != want {
			t.Errorf("%s.Trained() = %v, want %v", role, got, want)
		}
	}
}
