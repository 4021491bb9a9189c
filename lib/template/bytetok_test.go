// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package template

import "testing"

func TestByteTokenizerRoundTrip(t *testing.T) {
	tokenizer := ByteTokenizer{Offset: 1}
	text := "Human: what is 2+2?\n"
	tokens := tokenizer.Encode(text)
	if len(tokens) != len(text) {
		t.Fatalf("got %d tokens for %d bytes", len(tokens), len(text))
	}
	for index, id := range tokens {
		if id == 0 {
			t.Fatalf("token %d is the padding id", index)
		}
	}
	if decoded := tokenizer.Decode(tokens); decoded != text {
		t.Errorf("round trip: %q", decoded)
	}
}
