// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package template

// ByteTokenizer encodes text as its raw UTF-8 bytes: token id =
// byte value + Offset. It is the tokenizer the CLI wires in when no
// model tokenizer is available; the id space is tiny but every
// property downstream packages care about (lengths, determinism,
// reversibility) holds, and models with byte fallback can consume it
// directly. Offset keeps id 0 free for padding.
type ByteTokenizer struct {
	Offset int32
}

// Encode implements Tokenizer.
func (b ByteTokenizer) Encode(text string) []int32 {
	tokens := make([]int32, len(text))
	for index := 0; index < len(text); index++ {
		tokens[index] = int32(text[index]) + b.Offset
	}
	return tokens
}

// Decode reverses Encode for ids produced by this tokenizer.
func (b ByteTokenizer) Decode(tokens []int32) string {
	data := make([]byte, len(tokens))
	for index, id := range tokens {
		data[index] = byte(id - b.Offset)
	}
	return string(data)
}
