// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package dialogue

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ShareGPT speaker tags.
const (
	fromHuman     = "human"
	fromAssistant = "gpt"
)

// Utterance is one message in ShareGPT interchange form.
type Utterance struct {
	From      string `json:"from"`
	Value     string `json:"value"`
	Reasoning string `json:"reasoning,omitempty"`
}

// IsAssistant reports whether the utterance carries the assistant
// speaker tag.
func (u *Utterance) IsAssistant() bool {
	return u.From == fromAssistant
}

// Record is one dialogue row in ShareGPT interchange form: the full
// message list, response included, under "conversations".
type Record struct {
	System        string      `json:"system,omitempty"`
	Tools         string      `json:"tools,omitempty"`
	Conversations []Utterance `json:"conversations"`
}

// Depth returns the number of human/assistant exchange pairs.
func (r *Record) Depth() int {
	return len(r.Conversations) / 2
}

// Dialogue converts the record into a validated Dialogue: every
// conversation entry but the last becomes a prior message, the last
// becomes the response. A structurally invalid record returns a
// *MalformedError.
func (r *Record) Dialogue() (Dialogue, error) {
	if len(r.Conversations) == 0 {
		return Dialogue{}, malformed("no conversations")
	}
	messages := make([]Message, len(r.Conversations))
	for index, utterance := range r.Conversations {
		message := Message{Content: utterance.Value, Reasoning: utterance.Reasoning}
		switch utterance.From {
		case fromHuman:
			message.Speaker = SpeakerHuman
		case fromAssistant:
			message.Speaker = SpeakerAssistant
		default:
			return Dialogue{}, malformed("conversation %d has unknown speaker %q", index, utterance.From)
		}
		messages[index] = message
	}

	dialogue := Dialogue{
		System:   r.System,
		Tools:    r.Tools,
		Prior:    messages[:len(messages)-1],
		Response: messages[len(messages)-1],
	}
	if err := dialogue.Validate(); err != nil {
		return Dialogue{}, err
	}
	return dialogue, nil
}

// RecordOf converts a dialogue back to interchange form.
func RecordOf(d *Dialogue) Record {
	conversations := make([]Utterance, 0, len(d.Prior)+1)
	for _, message := range d.Prior {
		conversations = append(conversations, utteranceOf(message))
	}
	conversations = append(conversations, utteranceOf(d.Response))
	return Record{System: d.System, Tools: d.Tools, Conversations: conversations}
}

func utteranceOf(message Message) Utterance {
	from := fromHuman
	if message.Speaker == SpeakerAssistant {
		from = fromAssistant
	}
	return Utterance{From: from, Value: message.Content, Reasoning: message.Reasoning}
}

// DecodeRecords reads a ShareGPT corpus from r: either a single JSON
// array of records or JSONL with one record per line.
func DecodeRecords(r io.Reader) ([]Record, error) {
	buffered := bufio.NewReader(r)
	if err := skipSpace(buffered); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}

	first, err := buffered.Peek(1)
	if err != nil {
		return nil, err
	}
	if first[0] == '[' {
		var records []Record
		if err := json.NewDecoder(buffered).Decode(&records); err != nil {
			return nil, fmt.Errorf("decoding record array: %w", err)
		}
		return records, nil
	}

	decoder := json.NewDecoder(buffered)
	var records []Record
	for {
		var record Record
		if err := decoder.Decode(&record); errors.Is(err, io.EOF) {
			return records, nil
		} else if err != nil {
			return nil, fmt.Errorf("decoding record %d: %w", len(records), err)
		}
		records = append(records, record)
	}
}

// EncodeRecords writes records as JSONL, one record per line.
func EncodeRecords(w io.Writer, records []Record) error {
	encoder := json.NewEncoder(w)
	for index := range records {
		if err := encoder.Encode(&records[index]); err != nil {
			return fmt.Errorf("encoding record %d: %w", index, err)
		}
	}
	return nil
}

// skipSpace consumes leading whitespace so the first payload byte can
// be peeked.
func skipSpace(r *bufio.Reader) error {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
		default:
			return r.UnreadByte()
		}
	}
}
