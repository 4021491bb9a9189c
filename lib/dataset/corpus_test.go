// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/trellis-ml/trellis/lib/dialogue"
	"github.com/trellis-ml/trellis/lib/testutil"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordOfDepth builds a well-formed record with the given number of
// exchange pairs, tagged so tests can tell records apart.
func recordOfDepth(depth int, tag string) dialogue.Record {
	var conversations []dialogue.Utterance
	for pair := 0; pair < depth; pair++ {
		conversations = append(conversations,
			dialogue.Utterance{From: "human", Value: tag + " question"},
			dialogue.Utterance{From: "gpt", Value: tag + " answer"},
		)
	}
	return dialogue.Record{Conversations: conversations}
}

func corpusOf(records ...dialogue.Record) *Corpus {
	return &Corpus{Records: records, Logger: discard()}
}

func TestLoadConcatenatesFiles(t *testing.T) {
	first := testutil.WriteFile(t, "a.jsonl", `
{"conversations": [{"from": "human", "value": "hi"}, {"from": "gpt", "value": "hello"}]}
`)
	second := testutil.WriteFile(t, "b.json", `
[{"conversations": [{"from": "human", "value": "bye"}, {"from": "gpt", "value": "later"}]}]
`)
	corpus, err := Load(discard(), first, second)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if corpus.Len() != 2 {
		t.Fatalf("loaded %d records, want 2", corpus.Len())
	}
	if corpus.Records[1].Conversations[0].Value != "bye" {
		t.Error("file order not preserved")
	}
}

func TestDepthMap(t *testing.T) {
	corpus := corpusOf(
		recordOfDepth(1, "a"),
		recordOfDepth(3, "b"),
		recordOfDepth(1, "c"),
	)
	buckets := corpus.DepthMap()
	if len(buckets[1]) != 2 || len(buckets[3]) != 1 {
		t.Errorf("buckets = %v", buckets)
	}
	if buckets[1][0] != 0 || buckets[1][1] != 2 {
		t.Errorf("bucket order not corpus order: %v", buckets[1])
	}
}

func TestPruneDepthKeepsEarliest(t *testing.T) {
	corpus := corpusOf(
		recordOfDepth(2, "first"),
		recordOfDepth(1, "other"),
		recordOfDepth(2, "second"),
		recordOfDepth(2, "third"),
	)
	corpus.PruneDepth(2, 2)
	if corpus.Len() != 3 {
		t.Fatalf("got %d records, want 3", corpus.Len())
	}
	var tags []string
	for _, record := range corpus.Records {
		tags = append(tags, record.Conversations[0].Value)
	}
	joined := strings.Join(tags, ";")
	if !strings.Contains(joined, "first") || !strings.Contains(joined, "second") ||
		strings.Contains(joined, "third") {
		t.Errorf("wrong records kept: %v", tags)
	}
}

func TestSampleProportionalIsSeededAndBounded(t *testing.T) {
	build := func() *Corpus {
		var records []dialogue.Record
		for i := 0; i < 300; i++ {
			records = append(records, recordOfDepth(1, "shallow"))
		}
		for i := 0; i < 100; i++ {
			records = append(records, recordOfDepth(4, "deep"))
		}
		return corpusOf(records...)
	}

	corpus := build()
	corpus.SampleProportional(200, 7)
	if corpus.Len() >= 400 {
		t.Fatalf("sampling did not shrink the corpus: %d", corpus.Len())
	}

	// The deep bucket is under the 200 floor, so it survives whole.
	deep := 0
	for _, record := range corpus.Records {
		if record.Depth() == 4 {
			deep++
		}
	}
	if deep != 100 {
		t.Errorf("deep bucket = %d records, want all 100 kept by the floor", deep)
	}

	// Same seed, same sample.
	again := build()
	again.SampleProportional(200, 7)
	if again.Len() != corpus.Len() {
		t.Errorf("same seed produced %d then %d records", corpus.Len(), again.Len())
	}
}

func TestSampleProportionalNoopWhenCovering(t *testing.T) {
	corpus := corpusOf(recordOfDepth(1, "a"), recordOfDepth(1, "b"))
	corpus.SampleProportional(10, 1)
	if corpus.Len() != 2 {
		t.Errorf("covering sample changed the corpus: %d", corpus.Len())
	}
}

func TestAugmentPrefixes(t *testing.T) {
	corpus := corpusOf(recordOfDepth(3, "x"))
	corpus.AugmentPrefixes()
	if corpus.Len() != 3 {
		t.Fatalf("got %d records, want one per assistant message", corpus.Len())
	}
	for index, record := range corpus.Records {
		want := 2 * (index + 1)
		if len(record.Conversations) != want {
			t.Errorf("prefix %d has %d messages, want %d", index, len(record.Conversations), want)
		}
		last := record.Conversations[len(record.Conversations)-1]
		if !last.IsAssistant() {
			t.Errorf("prefix %d does not end on an assistant message", index)
		}
	}
}

func TestAttachReasoning(t *testing.T) {
	corpus := corpusOf(recordOfDepth(2, "x"), recordOfDepth(1, "y"))
	if err := corpus.AttachReasoning([]string{"t1", "t2", "t3"}); err != nil {
		t.Fatalf("AttachReasoning: %v", err)
	}
	if corpus.Records[0].Conversations[1].Reasoning != "t1" {
		t.Error("first thought not attached in corpus order")
	}
	if corpus.Records[1].Conversations[1].Reasoning != "t3" {
		t.Error("last thought not attached in corpus order")
	}
}

func TestAttachReasoningCountMismatch(t *testing.T) {
	corpus := corpusOf(recordOfDepth(2, "x"))
	if err := corpus.AttachReasoning([]string{"only one"}); err == nil {
		t.Error("short thought list accepted")
	}
	if err := corpus.AttachReasoning([]string{"a", "b", "c"}); err == nil {
		t.Error("long thought list accepted")
	}
}

func TestDialoguesSkipsMalformed(t *testing.T) {
	malformed := dialogue.Record{Conversations: []dialogue.Utterance{
		{From: "gpt", Value: "answer with no question"},
	}}
	corpus := corpusOf(recordOfDepth(1, "good"), malformed, recordOfDepth(2, "also good"))
	dialogues, indices := corpus.Dialogues()
	if len(dialogues) != 2 {
		t.Fatalf("got %d dialogues, want 2", len(dialogues))
	}
	if indices[0] != 0 || indices[1] != 2 {
		t.Errorf("indices = %v", indices)
	}
}
