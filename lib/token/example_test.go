// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package token

import (
	"strings"
	"testing"
)

// reasoningTurn builds a valid single-turn example with the duplicate
// answer scheme: source, reasoning, untrained answer copy, trained
// answer copy, then padding out to length 10.
func reasoningTurn() Example {
	return Example{
		InputIDs:    []int32{10, 11, 20, 21, 30, 31, 30, 31, 0, 0},
		Labels:      []int32{-100, -100, 20, 21, -100, -100, 30, 31, -100, -100},
		PositionIDs: []int32{0, 1, 2, 3, 2, 3, 4, 5, 0, 0},
		Roles: []Role{
			RoleHuman, RoleHuman,
			RoleThinking, RoleThinking,
			RoleAssistantInput, RoleAssistantInput,
			RoleAssistantOutput, RoleAssistantOutput,
			RolePad, RolePad,
		},
	}
}

func TestExampleValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Example)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Example) {},
		},
		{
			name:    "channel length mismatch",
			mutate:  func(e *Example) { e.Labels = e.Labels[:9] },
			wantErr: "channel lengths differ",
		},
		{
			name:    "undefined role",
			mutate:  func(e *Example) { e.Roles[3] = Role(7) },
			wantErr: "undefined role",
		},
		{
			name:    "padding carries label",
			mutate:  func(e *Example) { e.Labels[8] = 42 },
			wantErr: "carries label",
		},
		{
			name:    "padding carries position id",
			mutate:  func(e *Example) { e.PositionIDs[9] = 6 },
			wantErr: "carries position id",
		},
		{
			name:    "token after padding",
			mutate:  func(e *Example) { e.Roles[9] = RoleHuman },
			wantErr: "after padding began",
		},
		{
			name:    "untrained token carries label",
			mutate:  func(e *Example) { e.Labels[4] = 30 },
			wantErr: "untrained",
		},
		{
			name:    "trained token label differs from id",
			mutate:  func(e *Example) { e.Labels[6] = 99 },
			wantErr: "want own id",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			example := reasoningTurn()
			test.mutate(&example)
			err := example.Validate()
			if test.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", test.wantErr)
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, test.wantErr)
			}
		})
	}
}

func TestExampleTrimmed(t *testing.T) {
	example := reasoningTurn()
	if got := example.TrimmedLen(); got != 8 {
		t.Fatalf("TrimmedLen() = %d, want 8", got)
	}

	trimmed := example.Trimmed()
	if trimmed.Len() != 8 {
		t.Fatalf("Trimmed().Len() = %d, want 8", trimmed.Len())
	}
	for _, role := range trimmed.Roles {
		if role == RolePad {
			t.Fatal("Trimmed() kept a padding token")
		}
	}

	// Trimming must not copy: the result aliases the original arrays.
	trimmed.InputIDs[0] = 77
	if example.InputIDs[0] != 77 {
		t.Fatal("Trimmed() copied the id channel")
	}

	allPad := Example{
		InputIDs:    []int32{0, 0},
		Labels:      []int32{-100, -100},
		PositionIDs: []int32{0, 0},
		Roles:       []Role{RolePad, RolePad},
	}
	if got := allPad.TrimmedLen(); got != 0 {
		t.Fatalf("all-padding TrimmedLen() = %d, want 0", got)
	}
}

// packedPair builds a valid container holding two trimmed members and
// a padding tail: a plain turn (source plus untrained answer copy)
// followed by a reasoning turn with the duplicate answer scheme.
func packedPair() PackedExample {
	return PackedExample{
		Example: Example{
			InputIDs:    []int32{10, 30, 11, 20, 31, 31, 0, 0, 0},
			Labels:      []int32{-100, -100, -100, 20, -100, 31, -100, -100, -100},
			PositionIDs: []int32{0, 1, 0, 1, 1, 2, 0, 0, 0},
			Roles: []Role{
				RoleHuman, RoleAssistantInput,
				RoleHuman, RoleThinking, RoleAssistantInput, RoleAssistantOutput,
				RolePad, RolePad, RolePad,
			},
		},
		SegmentIDs: []int32{1, 1, 2, 2, 2, 2, 0, 0, 0},
	}
}

func TestPackedExampleValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*PackedExample)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*PackedExample) {},
		},
		{
			name:    "segment channel length mismatch",
			mutate:  func(p *PackedExample) { p.SegmentIDs = p.SegmentIDs[:5] },
			wantErr: "segment channel length",
		},
		{
			name:    "padding with nonzero segment",
			mutate:  func(p *PackedExample) { p.SegmentIDs[8] = 2 },
			wantErr: "role pad with segment 2",
		},
		{
			name:    "token with zero segment",
			mutate:  func(p *PackedExample) { p.SegmentIDs[0] = 0 },
			wantErr: "role human with segment 0",
		},
		{
			name: "segment skips an ordinal",
			mutate: func(p *PackedExample) {
				for i := 2; i < 6; i++ {
					p.SegmentIDs[i] = 3
				}
			},
			wantErr: "segment jumps",
		},
		{
			name:    "segment decreases",
			mutate:  func(p *PackedExample) { p.SegmentIDs[5] = 1 },
			wantErr: "segment jumps",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			packed := packedPair()
			test.mutate(&packed)
			err := packed.Validate()
			if test.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", test.wantErr)
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, test.wantErr)
			}
		})
	}
}
