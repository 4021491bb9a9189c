// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"strings"
	"testing"

	"github.com/trellis-ml/trellis/lib/dialogue"
	"github.com/trellis-ml/trellis/lib/encode"
)

// wordTokenizer assigns each distinct whitespace-separated word a
// stable id, and records the texts it was asked to encode.
type wordTokenizer struct {
	ids   map[string]int32
	texts []string
}

func newWordTokenizer() *wordTokenizer {
	return &wordTokenizer{ids: make(map[string]int32)}
}

func (w *wordTokenizer) Encode(text string) []int32 {
	w.texts = append(w.texts, text)
	words := strings.Fields(text)
	tokens := make([]int32, 0, len(words))
	for _, word := range words {
		id, ok := w.ids[word]
		if !ok {
			id = int32(len(w.ids) + 1)
			w.ids[word] = id
		}
		tokens = append(tokens, id)
	}
	return tokens
}

func plainDialogue() *dialogue.Dialogue {
	return &dialogue.Dialogue{
		System: "Be terse.",
		Prior: []dialogue.Message{
			{Speaker: dialogue.SpeakerHuman, Content: "What is two plus two?"},
			{Speaker: dialogue.SpeakerAssistant, Content: "Four.", Reasoning: "2+2=4"},
			{Speaker: dialogue.SpeakerHuman, Content: "And doubled?"},
		},
		Response: dialogue.Message{
			Speaker:   dialogue.SpeakerAssistant,
			Content:   "Eight.",
			Reasoning: "4*2=8",
		},
	}
}

func mustTemplate(t *testing.T, name string, reasoning bool) (*Template, *wordTokenizer) {
	t.Helper()
	definition, err := Builtin(name)
	if err != nil {
		t.Fatalf("Builtin(%q): %v", name, err)
	}
	tokenizer := newWordTokenizer()
	template, err := New(definition, tokenizer, reasoning)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return template, tokenizer
}

func TestRenderTurnCount(t *testing.T) {
	template, _ := mustTemplate(t, "plain", false)
	turns, err := template.Render(plainDialogue())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(turns))
	}
}

func TestRenderPlainDropsReasoning(t *testing.T) {
	template, tokenizer := mustTemplate(t, "plain", false)
	turns, err := template.Render(plainDialogue())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for index, turn := range turns {
		if turn.Kind != encode.TurnPlain {
			t.Errorf("turn %d kind = %v, want plain", index, turn.Kind)
		}
		if len(turn.Reasoning) != 0 {
			t.Errorf("turn %d has %d reasoning tokens", index, len(turn.Reasoning))
		}
	}
	for _, text := range tokenizer.texts {
		if strings.Contains(text, "2+2=4") {
			t.Error("reasoning text rendered in plain mode")
		}
	}
}

func TestRenderReasoningTurns(t *testing.T) {
	template, tokenizer := mustTemplate(t, "plain", true)
	turns, err := template.Render(plainDialogue())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for index, turn := range turns {
		if turn.Kind != encode.TurnReasoning {
			t.Errorf("turn %d kind = %v, want reasoning", index, turn.Kind)
		}
		if len(turn.Reasoning) == 0 {
			t.Errorf("turn %d has no reasoning tokens", index)
		}
	}
	var sawDelimited bool
	for _, text := range tokenizer.texts {
		if strings.HasPrefix(text, "<think>") && strings.Contains(text, "2+2=4") {
			sawDelimited = true
		}
	}
	if !sawDelimited {
		t.Error("reasoning text not wrapped in thought delimiters")
	}
}

func TestRenderFoldsPreambleIntoFirstTurn(t *testing.T) {
	template, tokenizer := mustTemplate(t, "llama3", false)
	d := plainDialogue()
	d.Tools = `{"name":"calculator"}`
	if _, err := template.Render(d); err != nil {
		t.Fatalf("Render: %v", err)
	}

	// The first encoded text is the first source span; it must carry
	// the system prompt then the tool spec then the human message.
	first := tokenizer.texts[0]
	systemAt := strings.Index(first, "Be terse.")
	toolsAt := strings.Index(first, "calculator")
	humanAt := strings.Index(first, "two plus two")
	if systemAt < 0 || toolsAt < 0 || humanAt < 0 {
		t.Fatalf("first source span missing preamble: %q", first)
	}
	if !(systemAt < toolsAt && toolsAt < humanAt) {
		t.Errorf("preamble out of order: system=%d tools=%d human=%d", systemAt, toolsAt, humanAt)
	}

	// Later source spans carry neither.
	for _, text := range tokenizer.texts[1:] {
		if strings.Contains(text, "Be terse.") || strings.Contains(text, "calculator") {
			if strings.Contains(text, "user") {
				t.Errorf("preamble repeated in later span: %q", text)
			}
		}
	}
}

func TestRenderAssistantHeaderInSource(t *testing.T) {
	template, tokenizer := mustTemplate(t, "llama3", false)
	if _, err := template.Render(plainDialogue()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	var sawHeaderInSource bool
	for _, text := range tokenizer.texts {
		if strings.Contains(text, "user") && strings.HasSuffix(text, "<|start_header_id|>assistant<|end_header_id|>\n\n") {
			sawHeaderInSource = true
		}
		// Answer spans must not open with the header.
		if strings.HasPrefix(text, "<|start_header_id|>assistant") {
			t.Errorf("assistant span starts with its header: %q", text)
		}
	}
	if !sawHeaderInSource {
		t.Error("assistant header not appended to any source span")
	}
}

func TestRenderTerminatesAnswers(t *testing.T) {
	template, tokenizer := mustTemplate(t, "llama3", false)
	if _, err := template.Render(plainDialogue()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	var terminated int
	for _, text := range tokenizer.texts {
		if strings.HasSuffix(text, "<|eot_id|>") && !strings.Contains(text, "header_id") {
			terminated++
		}
	}
	if terminated != 2 {
		t.Errorf("got %d terminated answer spans, want 2", terminated)
	}
}

func TestRenderRejectsMalformedDialogue(t *testing.T) {
	template, _ := mustTemplate(t, "plain", false)
	bad := &dialogue.Dialogue{
		Prior: []dialogue.Message{
			{Speaker: dialogue.SpeakerHuman, Content: "hi"},
			{Speaker: dialogue.SpeakerAssistant, Content: "hello"},
		},
		Response: dialogue.Message{Speaker: dialogue.SpeakerAssistant, Content: "?"},
	}
	if _, err := template.Render(bad); err == nil {
		t.Error("malformed dialogue rendered without error")
	}
}

func TestRenderRequiresThoughtDelimiters(t *testing.T) {
	definition := &Definition{
		Name:            "bare",
		HumanHeader:     "H: ",
		AssistantHeader: "A: ",
		Terminator:      "\n",
	}
	template, err := New(definition, newWordTokenizer(), true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := template.Render(plainDialogue()); err == nil {
		t.Error("reasoning rendered without thought delimiters")
	}
}

func TestNewRejectsNilTokenizer(t *testing.T) {
	definition, err := Builtin("plain")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New(definition, nil, false); err == nil {
		t.Error("nil tokenizer accepted")
	}
}
