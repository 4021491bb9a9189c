// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"fmt"
	"strings"

	"github.com/trellis-ml/trellis/lib/dialogue"
	"github.com/trellis-ml/trellis/lib/encode"
)

// Tokenizer converts rendered text to token ids. The toolkit never
// tokenizes text itself; trainers inject their model's tokenizer
// behind this interface.
type Tokenizer interface {
	Encode(text string) []int32
}

// Template pairs a definition with a tokenizer and renders dialogues
// into encoder turns.
type Template struct {
	Definition *Definition
	Tokenizer  Tokenizer

	// Reasoning controls whether chain-of-thought annotations are
	// rendered as reasoning spans. When false, annotations are
	// dropped and every turn encodes plain.
	Reasoning bool
}

// New builds a Template over a validated definition.
func New(definition *Definition, tokenizer Tokenizer, reasoning bool) (*Template, error) {
	if err := definition.Validate(); err != nil {
		return nil, err
	}
	if tokenizer == nil {
		return nil, fmt.Errorf("template %q: nil tokenizer", definition.Name)
	}
	return &Template{Definition: definition, Tokenizer: tokenizer, Reasoning: reasoning}, nil
}

// Render converts a dialogue into per-turn token triples. The
// dialogue must pass validation; the system prompt and tool
// specification are folded into the first turn's source span.
func (t *Template) Render(d *dialogue.Dialogue) ([]encode.Turn, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	definition := t.Definition
	exchanges := d.Exchanges()
	turns := make([]encode.Turn, 0, len(exchanges))
	for index, exchange := range exchanges {
		var source strings.Builder
		if index == 0 {
			if d.System != "" {
				source.WriteString(definition.SystemHeader)
				source.WriteString(d.System)
				source.WriteString(definition.SystemFooter)
			}
			if d.Tools != "" {
				source.WriteString(definition.ToolHeader)
				source.WriteString(d.Tools)
				source.WriteString(definition.ToolFooter)
			}
		}
		source.WriteString(definition.HumanHeader)
		source.WriteString(exchange.Human.Content)
		source.WriteString(definition.HumanFooter)
		// The assistant header is part of the source span: the model
		// produces the answer after it, it never produces the header.
		source.WriteString(definition.AssistantHeader)

		var reasoning []int32
		if t.Reasoning && exchange.Assistant.Reasoning != "" {
			if definition.ThoughtOpen == "" {
				return nil, fmt.Errorf("template %q has no thought delimiters but the dialogue carries reasoning",
					definition.Name)
			}
			reasoning = t.Tokenizer.Encode(
				definition.ThoughtOpen + exchange.Assistant.Reasoning + definition.ThoughtClose)
		}

		assistant := t.Tokenizer.Encode(exchange.Assistant.Content + definition.Terminator)

		turns = append(turns, encode.NewTurn(t.Tokenizer.Encode(source.String()), reasoning, assistant))
	}
	return turns, nil
}
