package doctree

import (
	"fmt"
)

// Run is a contiguous span of inline text with one resolved style.
// Runs are not modified after they are appended to a block.
type Run struct {
	Text  string   `json:"text"`
	Style RunStyle `json:"style"`
}

// RunStyle is the style snapshot stamped on a run.
type RunStyle struct {
	Bold          bool   `json:"bold,omitempty"`
	Italic        bool   `json:"italic,omitempty"`
	Underline     bool   `json:"underline,omitempty"`
	Strikethrough bool   `json:"strikethrough,omitempty"`
	Superscript   bool   `json:"superscript,omitempty"`
	Subscript     bool   `json:"subscript,omitempty"`
	FontFamily    string `json:"font_family,omitempty"`
	Color         *Color `json:"color,omitempty"`
	Background    *Color `json:"background,omitempty"`
	Link          string `json:"link,omitempty"`
}

// IsPlain reports whether the style carries no attributes at all.
func (s RunStyle) IsPlain() bool {
	return s == RunStyle{}
}

// Color is an 8-bit RGBA color.
type Color struct {
	R, G, B, A uint8
}

// RGB returns an opaque color.
func RGB(r, g, b uint8) *Color {
	return &Color{R: r, G: g, B: b, A: 0xFF}
}

// Hex formats the color as #rrggbb, or #rrggbbaa when not opaque.
func (c Color) Hex() string {
	if c.A == 0xFF {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

// Colors stamped by the builder.
var (
	LinkBlue     = Color{R: 0x06, G: 0x4F, B: 0xBD, A: 0xFF}
	InlineCodeBg = Color{R: 0xE6, G: 0xE6, B: 0xE6, A: 0xFF}
)
