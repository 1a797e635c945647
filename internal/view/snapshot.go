// Package view assembles the payload shown for each view mode.
package view

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgallion1/docview/internal/convert"
	"github.com/dgallion1/docview/internal/doctree"
	"github.com/dgallion1/docview/internal/highlight"
)

// Mode selects which snapshot shape is built.
type Mode string

const (
	ModeRendered Mode = "rendered"
	ModeSource   Mode = "source"
	ModeSplit    Mode = "split"
)

// ErrUnknownMode is returned by ParseMode for names outside the three modes.
var ErrUnknownMode = errors.New("unknown view mode")

// ParseMode accepts a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeRendered, ModeSource, ModeSplit:
		return m, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownMode, s)
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// SourceLine is one line of the raw source. Offset is the byte offset of
// the line start, so highlight spans can be mapped onto lines.
type SourceLine struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
	Offset int    `json:"offset"`
}

// Snapshot is the view payload. Rendered mode fills Document only, Source
// mode fills Lines and Spans, Split mode fills all three.
type Snapshot struct {
	Mode     Mode              `json:"mode"`
	Document *doctree.Document `json:"document,omitempty"`
	Lines    []SourceLine      `json:"lines,omitempty"`
	Spans    []highlight.Span  `json:"spans,omitempty"`
}

// Builder produces snapshots. Every call rebuilds from the source text.
type Builder struct {
	Convert     convert.Options
	Highlighter highlight.Highlighter
}

// Build returns the snapshot of source for mode. An unknown mode is
// treated as rendered.
func (b Builder) Build(source string, mode Mode) Snapshot {
	snap := Snapshot{Mode: mode}
	switch mode {
	case ModeSource:
		snap.Lines = SourceLines(source)
		snap.Spans = b.Highlighter.Highlight(source)
	case ModeSplit:
		snap.Lines = SourceLines(source)
		snap.Spans = b.Highlighter.Highlight(source)
		snap.Document = convert.Markdown(source, b.Convert)
	default:
		snap.Mode = ModeRendered
		snap.Document = convert.Markdown(source, b.Convert)
	}
	return snap
}

// SourceLines splits source into numbered lines. A trailing newline does
// not start an extra empty line.
func SourceLines(source string) []SourceLine {
	if source == "" {
		return []SourceLine{}
	}
	parts := strings.Split(source, "\n")
	if strings.HasSuffix(source, "\n") {
		parts = parts[:len(parts)-1]
	}
	lines := make([]SourceLine, len(parts))
	offset := 0
	for i, p := range parts {
		lines[i] = SourceLine{Number: i + 1, Text: strings.TrimSuffix(p, "\r"), Offset: offset}
		offset += len(p) + 1
	}
	return lines
}
