// Package highlight classifies raw markdown source into byte-range spans for
// the source view. It scans lines directly and never consults the parsed
// tree, so the spans can disagree with the document structure (a heading
// line inside a code fence is still reported as a heading).
package highlight

import "strings"

// Kind tags a span with the construct it covers.
type Kind string

const (
	KindHeading    Kind = "heading"
	KindEmphasis   Kind = "emphasis"
	KindCodeFence  Kind = "code_fence"
	KindLink       Kind = "link"
	KindQuote      Kind = "quote"
	KindListMarker Kind = "list_marker"
	KindRule       Kind = "rule"
	KindTableRow   Kind = "table_row"
	// KindCodeToken marks a lexical token inside a fenced code block.
	KindCodeToken Kind = "code_token"
)

// Span is a half-open byte range [Start, End) of the source. Token is only
// set for KindCodeToken spans.
type Span struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Kind  Kind   `json:"kind"`
	Token string `json:"token,omitempty"`
}

// Highlighter produces spans. The zero value uses line scanning only.
type Highlighter struct {
	// CodeTokens adds lexer spans inside fences that name a language.
	CodeTokens bool
}

// Highlight scans src without code tokenization.
func Highlight(src string) []Span {
	return Highlighter{}.Highlight(src)
}

type fence struct {
	char      byte
	length    int
	start     int
	bodyStart int
	lang      string
}

// Highlight returns the spans found in src. Spans may overlap and are
// reported in scan order.
func (h Highlighter) Highlight(src string) []Span {
	spans := []Span{}
	var open *fence

	closeFence := func(end, bodyEnd int) {
		spans = append(spans, Span{Start: open.start, End: end, Kind: KindCodeFence})
		if h.CodeTokens && open.lang != "" && bodyEnd > open.bodyStart {
			spans = append(spans, codeTokens(src[open.bodyStart:bodyEnd], open.bodyStart, open.lang)...)
		}
		open = nil
	}

	for lineStart := 0; lineStart < len(src); {
		lineEnd := strings.IndexByte(src[lineStart:], '\n')
		next := len(src)
		if lineEnd < 0 {
			lineEnd = len(src)
		} else {
			lineEnd += lineStart
			next = lineEnd + 1
		}
		line := strings.TrimSuffix(src[lineStart:lineEnd], "\r")
		end := lineStart + len(line)

		indent := leadingSpace(line)
		rest := line[indent:]

		if indent <= 3 && isHeading(rest) {
			spans = append(spans, Span{Start: lineStart, End: end, Kind: KindHeading})
		}

		if char, n := fenceRun(rest); indent <= 3 && n >= 3 {
			switch {
			case open == nil:
				open = &fence{
					char:      char,
					length:    n,
					start:     lineStart,
					bodyStart: next,
					lang:      infoLanguage(rest[n:]),
				}
				lineStart = next
				continue
			case char == open.char && n >= open.length && strings.TrimSpace(rest[n:]) == "":
				closeFence(end, lineStart)
				lineStart = next
				continue
			}
		}
		if open != nil {
			lineStart = next
			continue
		}

		spans = append(spans, blockSpans(line, lineStart)...)
		lineStart = next
	}

	if open != nil {
		closeFence(len(src), len(src))
	}
	return spans
}

// blockSpans classifies one line outside a fence.
func blockSpans(line string, base int) []Span {
	var spans []Span
	off := leadingSpace(line)
	rest := line[off:]

	if off <= 3 && strings.HasPrefix(rest, ">") {
		spans = append(spans, Span{Start: base, End: base + len(line), Kind: KindQuote})
		for strings.HasPrefix(rest, ">") {
			rest = rest[1:]
			off++
			if strings.HasPrefix(rest, " ") {
				rest = rest[1:]
				off++
			}
		}
		n := leadingSpace(rest)
		rest = rest[n:]
		off += n
	}

	if isRule(rest) {
		return append(spans, Span{Start: base + off, End: base + len(line), Kind: KindRule})
	}

	if n := listMarker(rest); n > 0 {
		spans = append(spans, Span{Start: base + off, End: base + off + n, Kind: KindListMarker})
		rest = rest[n:]
		off += n
	}

	if strings.HasPrefix(strings.TrimSpace(rest), "|") {
		spans = append(spans, Span{Start: base + off, End: base + len(line), Kind: KindTableRow})
	}

	return append(spans, inlineSpans(rest, base+off)...)
}

func leadingSpace(s string) int {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return i
}

func isHeading(s string) bool {
	n := 0
	for n < len(s) && s[n] == '#' {
		n++
	}
	return n > 0 && (n == len(s) || s[n] == ' ' || s[n] == '\t')
}

func fenceRun(s string) (byte, int) {
	if s == "" || (s[0] != '`' && s[0] != '~') {
		return 0, 0
	}
	n := 0
	for n < len(s) && s[n] == s[0] {
		n++
	}
	return s[0], n
}

func infoLanguage(info string) string {
	fields := strings.Fields(info)
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], "{}.")
}

// isRule reports a thematic break: three or more of the same marker with
// optional spaces between them.
func isRule(s string) bool {
	var marker byte
	count := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case ' ', '\t':
			continue
		case '-', '*', '_':
			if marker != 0 && c != marker {
				return false
			}
			marker = c
			count++
		default:
			return false
		}
	}
	return count >= 3
}

// listMarker returns the length of a bullet or ordinal marker at the start
// of s, including a following task box.
func listMarker(s string) int {
	n := 0
	switch {
	case len(s) >= 2 && (s[0] == '-' || s[0] == '*' || s[0] == '+') && s[1] == ' ':
		n = 1
	default:
		for n < len(s) && n < 9 && s[n] >= '0' && s[n] <= '9' {
			n++
		}
		if n == 0 || n+1 >= len(s) || (s[n] != '.' && s[n] != ')') || s[n+1] != ' ' {
			return 0
		}
		n++
	}
	if box := s[n+1:]; len(box) >= 3 && box[0] == '[' && box[2] == ']' &&
		(box[1] == ' ' || box[1] == 'x' || box[1] == 'X') {
		return n + 4
	}
	return n
}
