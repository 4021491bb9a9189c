// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package dialogue

import "fmt"

// Speaker identifies who produced a message. This is deliberately a
// different type from the per-token role channel: a message has one
// speaker, while its tokens may carry several roles after encoding.
type Speaker string

// The two speakers of a training dialogue.
const (
	SpeakerHuman     Speaker = "human"
	SpeakerAssistant Speaker = "assistant"
)

// Message is one dialogue message. Reasoning is the assistant's
// chain of thought for this message; it is empty on human messages
// and optional on assistant ones.
type Message struct {
	Speaker   Speaker `json:"speaker"`
	Content   string  `json:"content"`
	Reasoning string  `json:"reasoning,omitempty"`
}

// Dialogue is one training dialogue: optional system and tool
// context, the prior messages, and the final assistant response.
// Prior must alternate human/assistant starting and ending with
// human, so its length is odd and Response answers its last message.
type Dialogue struct {
	System   string    `json:"system,omitempty"`
	Tools    string    `json:"tools,omitempty"`
	Prior    []Message `json:"prior"`
	Response Message   `json:"response"`
}

// MalformedError reports a dialogue that fails structural
// validation. Callers skip the dialogue and log a warning; a
// malformed row never aborts a run.
type MalformedError struct {
	Reason string
}

// Error implements error.
func (e *MalformedError) Error() string {
	return "malformed dialogue: " + e.Reason
}

func malformed(format string, args ...any) *MalformedError {
	return &MalformedError{Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the structural invariants: an odd number of prior
// messages in strict human/assistant alternation, reasoning only on
// assistant messages, and an assistant response.
func (d *Dialogue) Validate() error {
	if len(d.Prior)%2 == 0 {
		return malformed("even prior message count %d", len(d.Prior))
	}
	for index, message := range d.Prior {
		want := SpeakerHuman
		if index%2 == 1 {
			want = SpeakerAssistant
		}
		if message.Speaker != want {
			return malformed("prior message %d has speaker %q, want %q", index, message.Speaker, want)
		}
		if message.Speaker == SpeakerHuman && message.Reasoning != "" {
			return malformed("human message %d carries reasoning", index)
		}
	}
	if d.Response.Speaker != SpeakerAssistant {
		return malformed("response has speaker %q, want %q", d.Response.Speaker, SpeakerAssistant)
	}
	return nil
}

// Exchange is one human message paired with the assistant message
// answering it.
type Exchange struct {
	Human     Message
	Assistant Message
}

// Exchanges pairs the dialogue's messages into turns, the final pair
// being the last prior human message and the response. The dialogue
// must have passed Validate.
func (d *Dialogue) Exchanges() []Exchange {
	exchanges := make([]Exchange, 0, (len(d.Prior)+1)/2)
	for index := 0; index+1 < len(d.Prior); index += 2 {
		exchanges = append(exchanges, Exchange{
			Human:     d.Prior[index],
			Assistant: d.Prior[index+1],
		})
	}
	exchanges = append(exchanges, Exchange{
		Human:     d.Prior[len(d.Prior)-1],
		Assistant: d.Response,
	})
	return exchanges
}
