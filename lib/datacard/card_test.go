// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package datacard

import (
	"testing"

	"github.com/trellis-ml/trellis/lib/testutil"
)

const sampleCard = `---
name: math-dialogues
license: apache-2.0
languages:
  - en
tags: [math, reasoning]
source: https://example.org/math
---
# Math Dialogues

Multi-turn math tutoring conversations.

## Collection

Scraped and filtered.

## License

Apache 2.0.
`

func TestParse(t *testing.T) {
	card, err := Parse([]byte(sampleCard))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if card.Front.Name != "math-dialogues" || card.Front.License != "apache-2.0" {
		t.Errorf("front = %+v", card.Front)
	}
	if len(card.Front.Tags) != 2 || card.Front.Tags[1] != "reasoning" {
		t.Errorf("tags = %v", card.Front.Tags)
	}
	if card.Front.Source != "https://example.org/math" {
		t.Errorf("source = %q", card.Front.Source)
	}

	want := []Heading{
		{Level: 1, Text: "Math Dialogues"},
		{Level: 2, Text: "Collection"},
		{Level: 2, Text: "License"},
	}
	if len(card.Outline) != len(want) {
		t.Fatalf("outline = %+v", card.Outline)
	}
	for index, heading := range want {
		if card.Outline[index] != heading {
			t.Errorf("outline[%d] = %+v, want %+v", index, card.Outline[index], heading)
		}
	}
}

func TestParseRejectsMissingFrontMatter(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"no-delimiter", "# Just Markdown\n"},
		{"unterminated", "---\nname: x\n# body\n"},
		{"no-name", "---\nlicense: mit\n---\nbody\n"},
		{"bad-yaml", "---\nname: [\n---\nbody\n"},
	}
	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			if _, err := Parse([]byte(testCase.data)); err == nil {
				t.Error("invalid card accepted")
			}
		})
	}
}

func TestParseEmptyBody(t *testing.T) {
	card, err := Parse([]byte("---\nname: tiny\n---"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if card.Body != "" || len(card.Outline) != 0 {
		t.Errorf("body = %q, outline = %+v", card.Body, card.Outline)
	}
}

func TestReadFile(t *testing.T) {
	path := testutil.WriteFile(t, "card.md", sampleCard)
	card, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if card.Front.Name != "math-dialogues" {
		t.Errorf("name = %q", card.Front.Name)
	}
}
