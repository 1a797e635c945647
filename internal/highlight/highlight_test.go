package highlight

import (
	"strings"
	"testing"
	"time"
)

func spansOf(spans []Span, kind Kind) []Span {
	var out []Span
	for _, s := range spans {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

func text(src string, s Span) string {
	return src[s.Start:s.End]
}

func TestHighlight_LineKinds(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind Kind
		want string
	}{
		{"heading", "## Title\n", KindHeading, "## Title"},
		{"deep heading", "####### Deep", KindHeading, "####### Deep"},
		{"quote", "> said\n", KindQuote, "> said"},
		{"rule", "---\n", KindRule, "---"},
		{"spaced rule", "* * *\n", KindRule, "* * *"},
		{"bullet", "- item\n", KindListMarker, "-"},
		{"ordinal", "12. item\n", KindListMarker, "12."},
		{"task", "- [x] done\n", KindListMarker, "- [x]"},
		{"table", "| a | b |\n", KindTableRow, "| a | b |"},
		{"strong", "a **b** c\n", KindEmphasis, "**b**"},
		{"strike", "~~gone~~\n", KindEmphasis, "~~gone~~"},
		{"link", "see [here](http://x.test) now\n", KindLink, "[here](http://x.test)"},
		{"image", "![alt](a.png)\n", KindLink, "![alt](a.png)"},
		{"autolink", "<https://x.test>\n", KindLink, "<https://x.test>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := spansOf(Highlight(tt.src), tt.kind)
			if len(got) != 1 {
				t.Fatalf("expected 1 %s span, got %v", tt.kind, got)
			}
			if s := text(tt.src, got[0]); s != tt.want {
				t.Errorf("expected span text %q, got %q", tt.want, s)
			}
		})
	}
}

func TestHighlight_RuleIsNotListMarker(t *testing.T) {
	spans := Highlight("- - -\n")
	if n := len(spansOf(spans, KindListMarker)); n != 0 {
		t.Errorf("expected no list marker, got %d", n)
	}
	if n := len(spansOf(spans, KindRule)); n != 1 {
		t.Errorf("expected 1 rule, got %d", n)
	}
}

func TestHighlight_HeadingInsideFence(t *testing.T) {
	src := "```\n# not a heading\n*x*\n```\n"
	spans := Highlight(src)

	fences := spansOf(spans, KindCodeFence)
	if len(fences) != 1 {
		t.Fatalf("expected 1 fence span, got %v", fences)
	}
	if fences[0].Start != 0 || fences[0].End != len(src)-1 {
		t.Errorf("expected fence to cover the block, got [%d,%d)", fences[0].Start, fences[0].End)
	}
	if n := len(spansOf(spans, KindHeading)); n != 1 {
		t.Errorf("expected heading span inside fence, got %d", n)
	}
	if n := len(spansOf(spans, KindEmphasis)); n != 0 {
		t.Errorf("expected no emphasis inside fence, got %d", n)
	}
}

func TestHighlight_UnclosedFenceRunsToEnd(t *testing.T) {
	src := "text\n~~~\ncode"
	fences := spansOf(Highlight(src), KindCodeFence)
	if len(fences) != 1 || fences[0].End != len(src) {
		t.Errorf("expected fence to end at source end, got %v", fences)
	}
}

func TestHighlight_QuotedListAndOffsets(t *testing.T) {
	src := "intro\n> - item\n"
	spans := Highlight(src)

	markers := spansOf(spans, KindListMarker)
	if len(markers) != 1 {
		t.Fatalf("expected 1 marker, got %v", markers)
	}
	if markers[0].Start != strings.Index(src, "-") {
		t.Errorf("expected marker at %d, got %d", strings.Index(src, "-"), markers[0].Start)
	}
}

func TestHighlight_IgnoresCodeSpansAndIntraword(t *testing.T) {
	spans := Highlight("`*not*` snake_case_name\n")
	if n := len(spansOf(spans, KindEmphasis)); n != 0 {
		t.Errorf("expected no emphasis, got %v", spans)
	}
}

func TestHighlight_SpansWithinBounds(t *testing.T) {
	src := "# T\r\n\n**a** [b](c)\n\n```go\nx := 1\n```\n| a |\n> q"
	for _, s := range (Highlighter{CodeTokens: true}).Highlight(src) {
		if s.Start < 0 || s.End > len(src) || s.Start >= s.End {
			t.Errorf("span out of bounds: %+v", s)
		}
	}
}

func TestHighlight_Empty(t *testing.T) {
	if spans := Highlight(""); len(spans) != 0 {
		t.Errorf("expected no spans, got %v", spans)
	}
}

func TestHighlighter_CodeTokens(t *testing.T) {
	src := "```go\nfunc main() { return \"hi\" }\n```\n"

	plain := spansOf(Highlight(src), KindCodeToken)
	if len(plain) != 0 {
		t.Fatalf("expected no tokens without CodeTokens, got %d", len(plain))
	}

	tokens := spansOf(Highlighter{CodeTokens: true}.Highlight(src), KindCodeToken)
	classes := map[string]string{}
	for _, tok := range tokens {
		classes[text(src, tok)] = tok.Token
	}
	if classes["func"] != "keyword" {
		t.Errorf("expected func to be a keyword, got %q", classes["func"])
	}
	if classes[`"hi"`] != "string" {
		t.Errorf("expected string literal, got %v", classes)
	}

	body := strings.Index(src, "func")
	for _, tok := range tokens {
		if tok.Start < body || tok.End > strings.LastIndex(src, "```") {
			t.Errorf("token outside fence body: %+v", tok)
		}
	}
}

func TestHighlighter_UnknownLanguage(t *testing.T) {
	src := "```nosuchlang\nwhatever\n```\n"
	tokens := spansOf(Highlighter{CodeTokens: true}.Highlight(src), KindCodeToken)
	if len(tokens) != 0 {
		t.Errorf("expected no tokens for unknown language, got %v", tokens)
	}
}

func TestHighlight_UnmatchedOpenersStayLinear(t *testing.T) {
	lines := []string{
		strings.Repeat("**a ", 40000),
		strings.Repeat("_a ", 50000),
		strings.Repeat("[a ", 50000),
		strings.Repeat("`a ", 50000),
		strings.Repeat("<a ", 50000),
		strings.Repeat("[a](", 40000),
	}
	start := time.Now()
	for _, line := range lines {
		Highlight(line + "\n")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("highlighting unmatched openers took %v", elapsed)
	}
}

func TestHighlight_InlineMatches(t *testing.T) {
	src := "**bold** then *it* and ~~gone~~ with [a](b) and <https://x.test> `**code**`\n"
	spans := Highlight(src)

	var got []string
	for _, s := range spansOf(spans, KindEmphasis) {
		got = append(got, src[s.Start:s.End])
	}
	if strings.Join(got, "|") != "**bold**|*it*|~~gone~~" {
		t.Errorf("unexpected emphasis spans %q", got)
	}

	got = nil
	for _, s := range spansOf(spans, KindLink) {
		got = append(got, src[s.Start:s.End])
	}
	if strings.Join(got, "|") != "[a](b)|<https://x.test>" {
		t.Errorf("unexpected link spans %q", got)
	}
}
