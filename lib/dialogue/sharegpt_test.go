// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package dialogue

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func mathRecord() Record {
	return Record{
		System: "You answer arithmetic.",
		Conversations: []Utterance{
			{From: "human", Value: "2+2?"},
			{From: "gpt", Value: "4"},
			{From: "human", Value: "doubled?"},
			{From: "gpt", Value: "8", Reasoning: "four times two is eight"},
		},
	}
}

func TestRecordDialogue(t *testing.T) {
	record := mathRecord()
	if got := record.Depth(); got != 2 {
		t.Fatalf("Depth() = %d, want 2", got)
	}

	dialogue, err := record.Dialogue()
	if err != nil {
		t.Fatalf("Dialogue: %v", err)
	}
	if dialogue.System != record.System {
		t.Fatalf("system = %q, want %q", dialogue.System, record.System)
	}
	if len(dialogue.Prior) != 3 {
		t.Fatalf("prior length = %d, want 3", len(dialogue.Prior))
	}
	if dialogue.Response.Content != "8" || dialogue.Response.Reasoning == "" {
		t.Fatalf("response = %+v", dialogue.Response)
	}
}

func TestRecordDialogueMalformed(t *testing.T) {
	tests := []struct {
		name   string
		record Record
	}{
		{name: "empty", record: Record{}},
		{
			name: "unknown speaker",
			record: Record{Conversations: []Utterance{
				{From: "system", Value: "x"},
				{From: "gpt", Value: "y"},
			}},
		},
		{
			name: "odd conversation count",
			record: Record{Conversations: []Utterance{
				{From: "human", Value: "a"},
				{From: "gpt", Value: "b"},
				{From: "human", Value: "c"},
			}},
		},
		{
			name: "assistant first",
			record: Record{Conversations: []Utterance{
				{From: "gpt", Value: "a"},
				{From: "human", Value: "b"},
			}},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := test.record.Dialogue()
			var malformedErr *MalformedError
			if !errors.As(err, &malformedErr) {
				t.Fatalf("Dialogue() error = %v, want *MalformedError", err)
			}
		})
	}
}

func TestRecordRoundTrip(t *testing.T) {
	record := mathRecord()
	dialogue, err := record.Dialogue()
	if err != nil {
		t.Fatalf("Dialogue: %v", err)
	}
	back := RecordOf(&dialogue)
	if back.System != record.System || len(back.Conversations) != len(record.Conversations) {
		t.Fatalf("round trip = %+v", back)
	}
	for index := range back.Conversations {
		if back.Conversations[index] != record.Conversations[index] {
			t.Fatalf("conversation %d = %+v, want %+v",
				index, back.Conversations[index], record.Conversations[index])
		}
	}
}

func TestDecodeRecordsArray(t *testing.T) {
	input := `[
  {"conversations":[{"from":"human","value":"2+2?"},{"from":"gpt","value":"4"}]},
  {"conversations":[{"from":"human","value":"3+3?"},{"from":"gpt","value":"6","reasoning":"three twice"}]}
]`
	records, err := DecodeRecords(strings.NewReader(input))
	if err != nil {
		t.Fatalf("DecodeRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[1].Conversations[1].Reasoning != "three twice" {
		t.Fatal("reasoning field lost")
	}
}

func TestDecodeRecordsLines(t *testing.T) {
	input := `{"conversations":[{"from":"human","value":"2+2?"},{"from":"gpt","value":"4"}]}
{"conversations":[{"from":"human","value":"3+3?"},{"from":"gpt","value":"6"}]}
`
	records, err := DecodeRecords(strings.NewReader(input))
	if err != nil {
		t.Fatalf("DecodeRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
}

func TestDecodeRecordsEmpty(t *testing.T) {
	records, err := DecodeRecords(strings.NewReader("  \n"))
	if err != nil {
		t.Fatalf("DecodeRecords: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("records = %d, want 0", len(records))
	}
}

func TestEncodeRecordsRoundTrip(t *testing.T) {
	records := []Record{mathRecord(), {
		Conversations: []Utterance{
			{From: "human", Value: "hello"},
			{From: "gpt", Value: "hi"},
		},
	}}

	var buffer bytes.Buffer
	if err := EncodeRecords(&buffer, records); err != nil {
		t.Fatalf("EncodeRecords: %v", err)
	}
	if got := strings.Count(buffer.String(), "\n"); got != 2 {
		t.Fatalf("encoded %d lines, want 2", got)
	}

	back, err := DecodeRecords(&buffer)
	if err != nil {
		t.Fatalf("DecodeRecords: %v", err)
	}
	if len(back) != len(records) {
		t.Fatalf("round trip records = %d, want %d", len(back), len(records))
	}
	if back[0].Conversations[3].Reasoning != records[0].Conversations[3].Reasoning {
		t.Fatal("reasoning lost in round trip")
	}
}
