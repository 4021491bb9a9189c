// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
)

// Definition is the data form of a chat template: the literal strings
// a model family expects around each message. Definitions are
// authored on disk as JSONC files (JSON extended with comments and
// trailing commas) and shipped built-in for common families.
type Definition struct {
	// Name identifies the template in configuration, shard headers,
	// and the manifest.
	Name string `json:"name"`

	// SystemHeader and SystemFooter wrap the system prompt, which is
	// folded into the first turn's source span.
	SystemHeader string `json:"system_header"`
	SystemFooter string `json:"system_footer"`

	// ToolHeader and ToolFooter wrap the tool specification, placed
	// after the system prompt in the first turn's source span.
	ToolHeader string `json:"tool_header"`
	ToolFooter string `json:"tool_footer"`

	// HumanHeader and HumanFooter wrap each human message.
	HumanHeader string `json:"human_header"`
	HumanFooter string `json:"human_footer"`

	// AssistantHeader opens the assistant's reply. It belongs to the
	// source span: the model should produce the answer after it, not
	// learn to produce it.
	AssistantHeader string `json:"assistant_header"`

	// Terminator closes each assistant answer.
	Terminator string `json:"terminator"`

	// ThoughtOpen and ThoughtClose delimit the reasoning span.
	ThoughtOpen  string `json:"thought_open"`
	ThoughtClose string `json:"thought_close"`
}

// Validate checks the definition for the fields rendering depends on.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("template definition has no name")
	}
	if d.Terminator == "" {
		return fmt.Errorf("template %q has no terminator", d.Name)
	}
	if (d.ThoughtOpen == "") != (d.ThoughtClose == "") {
		return fmt.Errorf("template %q has unbalanced thought delimiters", d.Name)
	}
	return nil
}

// Parse strips JSONC comments and trailing commas from data, then
// unmarshals and validates the definition.
func Parse(data []byte) (*Definition, error) {
	var definition Definition
	if err := json.Unmarshal(jsonc.ToJSON(data), &definition); err != nil {
		return nil, fmt.Errorf("parsing template definition: %w", err)
	}
	if err := definition.Validate(); err != nil {
		return nil, err
	}
	return &definition, nil
}

// ReadFile reads a JSONC definition file from disk.
func ReadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	definition, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return definition, nil
}

// builtins is the registry of shipped definitions.
var builtins = map[string]Definition{
	"plain": {
		Name:            "plain",
		SystemHeader:    "",
		SystemFooter:    "\n\n",
		HumanHeader:     "Human: ",
		HumanFooter:     "\n",
		AssistantHeader: "Assistant: ",
		Terminator:      "\n",
		ThoughtOpen:     "<think>\n",
		ThoughtClose:    "\n</think>\n",
	},
	"llama3": {
		Name:            "llama3",
		SystemHeader:    "<|start_header_id|>system<|end_header_id|>\n\n",
		SystemFooter:    "<|eot_id|>",
		ToolHeader:      "<|start_header_id|>tool<|end_header_id|>\n\n",
		ToolFooter:      "<|eot_id|>",
		HumanHeader:     "<|start_header_id|>user<|end_header_id|>\n\n",
		HumanFooter:     "<|eot_id|>",
		AssistantHeader: "<|start_header_id|>assistant<|end_header_id|>\n\n",
		Terminator:      "<|eot_id|>",
		ThoughtOpen:     "<think>\n",
		ThoughtClose:    "\n</think>\n",
	},
}

// Builtin returns a shipped definition by name.
func Builtin(name string) (*Definition, error) {
	definition, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("unknown template %q (built-in: %s)", name, builtinNames())
	}
	return &definition, nil
}

func builtinNames() string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
