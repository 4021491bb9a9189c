// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package datacard

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// Front is the YAML front matter of a dataset card.
type Front struct {
	// Name identifies the dataset; License is its SPDX identifier or
	// free-form license name. Both are recorded into the manifest.
	Name    string `yaml:"name"`
	License string `yaml:"license"`

	Languages []string `yaml:"languages"`
	Tags      []string `yaml:"tags"`

	// Source is where the raw corpus came from.
	Source string `yaml:"source"`
}

// Heading is one entry of the body outline.
type Heading struct {
	Level int
	Text  string
}

// Card is a parsed dataset card.
type Card struct {
	Front   Front
	Outline []Heading

	// Body is the Markdown body without the front matter block.
	Body string
}

var frontDelimiter = []byte("---")

// parser is shared: the configuration never changes and goldmark
// parsers are safe for concurrent Parse calls.
var (
	parserInstance goldmark.Markdown
	parserOnce     sync.Once
)

func parser() goldmark.Markdown {
	parserOnce.Do(func() {
		parserInstance = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return parserInstance
}

// Parse parses a dataset card from its raw bytes. The front matter
// block is required; a card without one is not a card.
func Parse(data []byte) (*Card, error) {
	front, body, err := splitFront(data)
	if err != nil {
		return nil, err
	}

	card := &Card{Body: string(body)}
	if err := yaml.Unmarshal(front, &card.Front); err != nil {
		return nil, fmt.Errorf("datacard: parsing front matter: %w", err)
	}
	if card.Front.Name == "" {
		return nil, fmt.Errorf("datacard: front matter has no name")
	}

	card.Outline = outline(body)
	return card, nil
}

// ReadFile reads and parses a card file.
func ReadFile(path string) (*Card, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	card, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return card, nil
}

// splitFront splits the card into the front matter block's interior
// and the Markdown body. The block is delimited by "---" lines, the
// first of which must be the card's first line.
func splitFront(data []byte) (front, body []byte, err error) {
	rest, found := bytes.CutPrefix(data, frontDelimiter)
	if !found || (len(rest) > 0 && rest[0] != '\n' && rest[0] != '\r') {
		return nil, nil, fmt.Errorf("datacard: missing front matter opening delimiter")
	}

	lines := bytes.SplitAfter(rest, []byte("\n"))
	offset := 0
	for _, line := range lines {
		trimmed := bytes.TrimRight(line, "\r\n")
		if offset > 0 && bytes.Equal(trimmed, frontDelimiter) {
			return rest[:offset], rest[offset+len(line):], nil
		}
		offset += len(line)
	}
	return nil, nil, fmt.Errorf("datacard: unterminated front matter block")
}

// outline extracts the heading outline from the body.
func outline(body []byte) []Heading {
	document := parser().Parser().Parse(text.NewReader(body))

	var headings []Heading
	ast.Walk(document, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := node.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		headings = append(headings, Heading{
			Level: heading.Level,
			Text:  headingText(heading, body),
		})
		return ast.WalkSkipChildren, nil
	})
	return headings
}

// headingText concatenates the heading's literal text segments.
func headingText(heading *ast.Heading, source []byte) string {
	var buffer bytes.Buffer
	for child := heading.FirstChild(); child != nil; child = child.NextSibling() {
		if literal, ok := child.(*ast.Text); ok {
			buffer.Write(literal.Segment.Value(source))
		}
	}
	return buffer.String()
}
