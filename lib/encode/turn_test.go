// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package encode

import "testing"

func TestNewTurnKind(t *testing.T) {
	plain := NewTurn([]int32{1}, nil, []int32{2})
	if plain.Kind != TurnPlain {
		t.Fatalf("turn without reasoning has kind %s, want plain", plain.Kind)
	}
	reasoning := NewTurn([]int32{1}, []int32{5}, []int32{2})
	if reasoning.Kind != TurnReasoning {
		t.Fatalf("turn with reasoning has kind %s, want reasoning", reasoning.Kind)
	}
}

func TestTurnValidate(t *testing.T) {
	tests := []struct {
		name    string
		turn    Turn
		wantErr bool
	}{
		{
			name: "plain",
			turn: Turn{Kind: TurnPlain, Source: []int32{1}, Assistant: []int32{2}},
		},
		{
			name: "reasoning",
			turn: Turn{Kind: TurnReasoning, Source: []int32{1}, Reasoning: []int32{5}, Assistant: []int32{2}},
		},
		{
			name:    "plain with reasoning span",
			turn:    Turn{Kind: TurnPlain, Source: []int32{1}, Reasoning: []int32{5}, Assistant: []int32{2}},
			wantErr: true,
		},
		{
			name:    "reasoning without reasoning span",
			turn:    Turn{Kind: TurnReasoning, Source: []int32{1}, Assistant: []int32{2}},
			wantErr: true,
		},
		{
			name:    "undefined kind",
			turn:    Turn{Kind: TurnKind(9)},
			wantErr: true,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.turn.Validate()
			if test.wantErr && err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !test.wantErr && err != nil {
				t.Fatalf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestTurnEncodedLength(t *testing.T) {
	plain := NewTurn([]int32{1, 2, 3}, nil, []int32{4, 5})
	if got := plain.EncodedLength(); got != 5 {
		t.Fatalf("plain EncodedLength() = %d, want 5", got)
	}
	reasoning := NewTurn([]int32{1, 2, 3}, []int32{6}, []int32{4, 5})
	if got := reasoning.EncodedLength(); got != 8 {
		t.Fatalf("reasoning EncodedLength() = %d, want 8 (answer counted twice)", got)
	}
}
