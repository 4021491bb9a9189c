// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package encode

import "fmt"

// TurnKind distinguishes the two turn encodings. The kind is an
// explicit tag, not an inference from span contents, so the encoding
// branch is exhaustive and a reasoning turn with a missing reasoning
// span is a validation error instead of a silent plain turn.
type TurnKind uint8

const (
	// TurnPlain encodes source plus a single untrained answer copy.
	TurnPlain TurnKind = iota

	// TurnReasoning encodes source, trained reasoning, the untrained
	// answer copy, and the trained duplicate answer copy.
	TurnReasoning
)

// String returns the canonical name.
func (k TurnKind) String() string {
	switch k {
	case TurnPlain:
		return "plain"
	case TurnReasoning:
		return "reasoning"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Turn is one tokenized dialogue turn: the human source span, the
// optional reasoning span, and the assistant answer span. The token
// ids come from the template; this package never tokenizes text.
type Turn struct {
	Kind      TurnKind
	Source    []int32
	Reasoning []int32
	Assistant []int32
}

// NewTurn builds a Turn, deriving the kind from the presence of a
// reasoning span.
func NewTurn(source, reasoning, assistant []int32) Turn {
	kind := TurnPlain
	if len(reasoning) > 0 {
		kind = TurnReasoning
	}
	return Turn{Kind: kind, Source: source, Reasoning: reasoning, Assistant: assistant}
}

// Validate checks that the kind agrees with the spans.
func (t *Turn) Validate() error {
	switch t.Kind {
	case TurnPlain:
		if len(t.Reasoning) > 0 {
			return fmt.Errorf("plain turn carries %d reasoning tokens", len(t.Reasoning))
		}
	case TurnReasoning:
		if len(t.Reasoning) == 0 {
			return fmt.Errorf("reasoning turn has an empty reasoning span")
		}
	default:
		return fmt.Errorf("undefined turn kind %d", uint8(t.Kind))
	}
	return nil
}

// EncodedLength returns the number of positions the turn occupies in
// an encoded example. Reasoning turns count the answer twice for the
// duplicate run.
func (t *Turn) EncodedLength() int {
	length := len(t.Source) + len(t.Reasoning) + len(t.Assistant)
	if t.Kind == TurnReasoning {
		length += len(t.Assistant)
	}
	return length
}
