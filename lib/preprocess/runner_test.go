// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package preprocess

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/trellis-ml/trellis/lib/clock"
	"github.com/trellis-ml/trellis/lib/config"
	"github.com/trellis-ml/trellis/lib/dataset"
	"github.com/trellis-ml/trellis/lib/dialogue"
	"github.com/trellis-ml/trellis/lib/encode"
	"github.com/trellis-ml/trellis/lib/template"
)

// runeTokenizer maps every rune to its code point, so token counts
// track text lengths exactly.
type runeTokenizer struct{}

func (runeTokenizer) Encode(text string) []int32 {
	tokens := make([]int32, 0, len(text))
	for _, r := range text {
		tokens = append(tokens, int32(r))
	}
	return tokens
}

func testTemplate(t *testing.T, reasoning bool) *template.Template {
	t.Helper()
	definition := &template.Definition{
		Name:            "test",
		HumanHeader:     "H:",
		AssistantHeader: "A:",
		Terminator:      ".",
		ThoughtOpen:     "<t>",
		ThoughtClose:    "</t>",
	}
	built, err := template.New(definition, runeTokenizer{}, reasoning)
	if err != nil {
		t.Fatalf("template.New: %v", err)
	}
	return built
}

func testConfig(cutoff int, packed bool) *config.Config {
	cfg := config.Default()
	cfg.Cutoff = cutoff
	cfg.Workers = 3
	cfg.Packing.Enabled = packed
	cfg.Packing.Provenance = packed
	return cfg
}

func record(human, answer string) dialogue.Record {
	return dialogue.Record{Conversations: []dialogue.Utterance{
		{From: "human", Value: human},
		{From: "gpt", Value: answer},
	}}
}

func testCorpus(records ...dialogue.Record) *dataset.Corpus {
	return &dataset.Corpus{Records: records, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func testRunner(t *testing.T, cfg *config.Config, reasoning bool) *Runner {
	t.Helper()
	return &Runner{
		Config:   cfg,
		Template: testTemplate(t, reasoning),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:    clock.NewFake(),
	}
}

func TestRunUnpacked(t *testing.T) {
	runner := testRunner(t, testConfig(64, false), false)
	corpus := testCorpus(
		record("hi", "hello"),
		record("bye", "later"),
	)
	result, err := runner.Run(context.Background(), corpus)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Examples) != 2 || result.Packed != nil {
		t.Fatalf("got %d examples, packed=%v", len(result.Examples), result.Packed != nil)
	}
	for index, example := range result.Examples {
		if example.Len() != 64 {
			t.Errorf("example %d has length %d, want the cutoff", index, example.Len())
		}
	}
	stats := result.Stats
	if stats.Dialogues != 2 || stats.Examples != 2 || stats.Turns != 2 || stats.Malformed != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Tokens == 0 {
		t.Error("token count is zero")
	}
}

func TestRunOutputOrderIsDeterministic(t *testing.T) {
	cfg := testConfig(64, false)
	cfg.Workers = 4
	runner := testRunner(t, cfg, false)

	records := []dialogue.Record{
		record("a", "one"),
		record("bb", "two"),
		record("ccc", "three"),
		record("dddd", "four"),
		record("eeeee", "five"),
	}
	result, err := runner.Run(context.Background(), testCorpus(records...))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Trimmed lengths grow with the input texts, so order is visible.
	previous := 0
	for index, example := range result.Examples {
		length := example.TrimmedLen()
		if length <= previous {
			t.Errorf("example %d has trimmed length %d, not increasing", index, length)
		}
		previous = length
	}
}

func TestRunSkipsMalformed(t *testing.T) {
	malformed := dialogue.Record{Conversations: []dialogue.Utterance{
		{From: "gpt", Value: "no question"},
	}}
	runner := testRunner(t, testConfig(64, false), false)
	result, err := runner.Run(context.Background(), testCorpus(
		record("hi", "hello"), malformed,
	))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Stats.Malformed != 1 || result.Stats.Examples != 1 {
		t.Errorf("stats = %+v", result.Stats)
	}
}

func TestRunUnpackedAbortsOnOverlong(t *testing.T) {
	runner := testRunner(t, testConfig(8, false), false)
	_, err := runner.Run(context.Background(), testCorpus(
		record("this question alone exceeds the cutoff", "it does"),
	))
	if err == nil {
		t.Fatal("overlong dialogue did not abort the unpacked run")
	}
	var overlong *encode.OverlongError
	if !errors.As(err, &overlong) {
		t.Errorf("error is %T, want *encode.OverlongError: %v", err, err)
	}
}

func TestRunPackedSkipsOverlong(t *testing.T) {
	runner := testRunner(t, testConfig(24, true), false)
	result, err := runner.Run(context.Background(), testCorpus(
		record("hi", "hello"),
		record(strings.Repeat("long ", 20), "overflows"),
	))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Stats.Overlong != 1 {
		t.Errorf("overlong = %d, want 1", result.Stats.Overlong)
	}
	if len(result.Packed) == 0 || result.Examples != nil {
		t.Errorf("packed run produced %d containers, examples=%v",
			len(result.Packed), result.Examples != nil)
	}
	for index := range result.Packed {
		if err := result.Packed[index].Validate(); err != nil {
			t.Errorf("container %d invalid: %v", index, err)
		}
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := testRunner(t, testConfig(64, false), false)
	if _, err := runner.Run(ctx, testCorpus(record("hi", "hello"))); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRunTimesThePass(t *testing.T) {
	fake := clock.NewFake()
	runner := testRunner(t, testConfig(64, false), false)
	runner.Clock = fake
	result, err := runner.Run(context.Background(), testCorpus(record("hi", "hello")))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Stats.Duration != 0 {
		t.Errorf("fake clock never advanced but duration = %v", result.Stats.Duration)
	}
}

func TestRunReasoningMode(t *testing.T) {
	cfg := testConfig(128, false)
	cfg.Reasoning = true
	runner := testRunner(t, cfg, true)
	corpus := testCorpus(dialogue.Record{Conversations: []dialogue.Utterance{
		{From: "human", Value: "why"},
		{From: "gpt", Value: "because", Reasoning: "thinking it through"},
	}})
	result, err := runner.Run(context.Background(), corpus)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Examples) != 1 {
		t.Fatalf("got %d examples", len(result.Examples))
	}
	// The duplicate answer run makes the encoding longer than the
	// plain rendering of the same text.
	example := result.Examples[0]
	plainLength := len("H:why") + len("A:") + len("because.")
	if example.TrimmedLen() <= plainLength {
		t.Errorf("trimmed length %d does not reflect reasoning duplication", example.TrimmedLen())
	}
}
