// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"fmt"
	"os"
)

// MaxKeyFileSize bounds key files read by ReadFile. Dataset keys are
// 32 bytes; anything near this limit is a wrong file, not a key.
const MaxKeyFileSize = 4096

// ReadFile loads a key file into a protected buffer. Trailing
// newlines are stripped (key files written by shell redirection
// usually end in one). The heap copy made during reading is zeroed
// before returning.
func ReadFile(path string) (*Buffer, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("secret: stat %s: %w", path, err)
	}
	if info.Size() > MaxKeyFileSize {
		return nil, fmt.Errorf("secret: %s is %d bytes, larger than any key file (limit %d)",
			path, info.Size(), MaxKeyFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("secret: reading %s: %w", path, err)
	}
	trimmed := bytes.TrimRight(data, "\r\n")
	if len(trimmed) == 0 {
		Zero(data)
		return nil, fmt.Errorf("secret: %s is empty", path)
	}

	buffer, err := NewFromBytes(trimmed)
	// NewFromBytes zeroed trimmed; clear the trailing newline bytes too.
	Zero(data)
	return buffer, err
}
