// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

// Package maskview renders attention masks as terminal grids: one
// glyph per query/key cell, a role strip along both axes, and a
// legend. Output is one-shot styled text for trellis inspect --mask,
// not an interactive UI.
package maskview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/trellis-ml/trellis/lib/attention"
	"github.com/trellis-ml/trellis/lib/token"
)

// Options controls rendering.
type Options struct {
	// Limit caps the rendered positions. Zero renders the full
	// sequence, which is rarely what a terminal wants past a few
	// hundred columns.
	Limit int

	// Plain disables styling, leaving pure glyphs. Set when stdout is
	// not a terminal.
	Plain bool
}

const (
	glyphVisible = "■"
	glyphBlocked = "·"
)

// One style per role, used for the axis strips and the legend.
var roleStyles = map[token.Role]lipgloss.Style{
	token.RolePad:             lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	token.RoleHuman:           lipgloss.NewStyle().Foreground(lipgloss.Color("75")),
	token.RoleThinking:        lipgloss.NewStyle().Foreground(lipgloss.Color("179")),
	token.RoleAssistantInput:  lipgloss.NewStyle().Foreground(lipgloss.Color("139")),
	token.RoleAssistantOutput: lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
}

// roleGlyphs is the single-character role strip alphabet.
var roleGlyphs = map[token.Role]string{
	token.RolePad:             ".",
	token.RoleHuman:           "H",
	token.RoleThinking:        "T",
	token.RoleAssistantInput:  "i",
	token.RoleAssistantOutput: "O",
}

// Bool renders one batch element of a boolean mask.
func Bool(mask *attention.BoolMask, roles []token.Role, element int, opts Options) (string, error) {
	if element < 0 || element >= mask.Batch {
		return "", fmt.Errorf("maskview: element %d out of range for batch %d", element, mask.Batch)
	}
	if len(roles) != mask.Seq {
		return "", fmt.Errorf("maskview: %d roles for sequence length %d", len(roles), mask.Seq)
	}
	return render(roles, opts, func(i, j int) bool {
		return mask.At(element, i, j)
	}), nil
}

// Additive renders one batch element of an additive mask. A cell is
// open where the additive term is zero.
func Additive(mask *attention.AdditiveMask, roles []token.Role, element int, opts Options) (string, error) {
	if element < 0 || element >= mask.Batch {
		return "", fmt.Errorf("maskview: element %d out of range for batch %d", element, mask.Batch)
	}
	if len(roles) != mask.Seq {
		return "", fmt.Errorf("maskview: %d roles for sequence length %d", len(roles), mask.Seq)
	}
	return render(roles, opts, func(i, j int) bool {
		return mask.At(element, i, j) == 0
	}), nil
}

func render(roles []token.Role, opts Options, visible func(i, j int) bool) string {
	length := len(roles)
	if opts.Limit > 0 && opts.Limit < length {
		length = opts.Limit
	}

	var out strings.Builder

	// Key role strip across the top, offset past the query strip
	// column.
	out.WriteString("  ")
	for j := 0; j < length; j++ {
		out.WriteString(roleGlyph(roles[j], opts))
	}
	out.WriteString("\n")

	for i := 0; i < length; i++ {
		out.WriteString(roleGlyph(roles[i], opts))
		out.WriteString(" ")
		for j := 0; j < length; j++ {
			if visible(i, j) {
				out.WriteString(styled(roles[j], glyphVisible, opts))
			} else {
				out.WriteString(glyphBlocked)
			}
		}
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(legend(opts))
	return out.String()
}

func roleGlyph(role token.Role, opts Options) string {
	return styled(role, roleGlyphs[role], opts)
}

func styled(role token.Role, glyph string, opts Options) string {
	if opts.Plain {
		return glyph
	}
	style, ok := roleStyles[role]
	if !ok {
		return glyph
	}
	return style.Render(glyph)
}

// legend names each role strip glyph.
func legend(opts Options) string {
	entries := []struct {
		role token.Role
		name string
	}{
		{token.RoleHuman, "human"},
		{token.RoleThinking, "thinking"},
		{token.RoleAssistantInput, "assistant (untrained copy)"},
		{token.RoleAssistantOutput, "assistant (trained)"},
		{token.RolePad, "padding"},
	}
	parts := make([]string, 0, len(entries))
	for _, entry := range entries {
		parts = append(parts, fmt.Sprintf("%s %s", roleGlyph(entry.role, opts), entry.name))
	}
	return strings.Join(parts, "   ") + "\n"
}
