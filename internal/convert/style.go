package convert

import (
	"github.com/dgallion1/docview/internal/doctree"
	"github.com/dgallion1/docview/internal/markup"
)

// DefaultMonospace is the font family stamped on inline code.
const DefaultMonospace = "Cascadia Mono"

// styleState counts open inline style containers for one conversion.
type styleState struct {
	bold, italic, strike, sup, sub int
	links                          []string
	mono                           string
}

func newStyleState(mono string) *styleState {
	if mono == "" {
		mono = DefaultMonospace
	}
	return &styleState{mono: mono}
}

func (s *styleState) open(e markup.Event) {
	switch e.Tag {
	case markup.TagStrong:
		s.bold++
	case markup.TagEmphasis:
		s.italic++
	case markup.TagStrikethrough:
		s.strike++
	case markup.TagSuperscript:
		s.sup++
	case markup.TagSubscript:
		s.sub++
	case markup.TagLink:
		s.links = append(s.links, e.Dest)
	}
}

func (s *styleState) close(tag markup.Tag) {
	switch tag {
	case markup.TagStrong:
		s.bold = dec(s.bold)
	case markup.TagEmphasis:
		s.italic = dec(s.italic)
	case markup.TagStrikethrough:
		s.strike = dec(s.strike)
	case markup.TagSuperscript:
		s.sup = dec(s.sup)
	case markup.TagSubscript:
		s.sub = dec(s.sub)
	case markup.TagLink:
		if n := len(s.links); n > 0 {
			s.links = s.links[:n-1]
		}
	}
}

func dec(n int) int {
	if n > 0 {
		return n - 1
	}
	return 0
}

// current resolves the open containers into a run style.
func (s *styleState) current() doctree.RunStyle {
	st := doctree.RunStyle{
		Bold:          s.bold > 0,
		Italic:        s.italic > 0,
		Strikethrough: s.strike > 0,
		Superscript:   s.sup > 0,
		Subscript:     s.sub > 0,
	}
	if n := len(s.links); n > 0 {
		st.Link = s.links[n-1]
		st.Underline = true
		blue := doctree.LinkBlue
		st.Color = &blue
	}
	return st
}

// code is the current style with the monospace override and code tint.
func (s *styleState) code() doctree.RunStyle {
	st := s.current()
	st.FontFamily = s.mono
	bg := doctree.InlineCodeBg
	st.Background = &bg
	return st
}

func (s *styleState) run(text string) doctree.Run {
	return doctree.Run{Text: text, Style: s.current()}
}

func (s *styleState) codeRun(text string) doctree.Run {
	return doctree.Run{Text: text, Style: s.code()}
}

func (s *styleState) footnoteRun(label string) doctree.Run {
	st := s.current()
	st.Superscript = true
	return doctree.Run{Text: "[" + label + "]", Style: st}
}
