package markup

import (
	"bytes"
	"strconv"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// pageBreakComment is the HTML comment that marks an explicit page break.
const pageBreakComment = "<!-- pagebreak -->"

// Parser turns markdown source into an event stream.
type Parser struct {
	md goldmark.Markdown
}

// NewParser returns a parser with tables, strikethrough, task lists,
// autolinks, footnotes and heading attributes enabled.
func NewParser() *Parser {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			DeepHeadings,
		),
		goldmark.WithParserOptions(
			parser.WithAttribute(),
			parser.WithAutoHeadingID(),
		),
	)
	return &Parser{md: md}
}

var defaultParser = sync.OnceValue(NewParser)

// Parse converts src with the default parser.
func Parse(src []byte) []Event {
	return defaultParser().Parse(src)
}

// Parse walks the goldmark AST for src and flattens it into open, close
// and atomic events in document order.
func (p *Parser) Parse(src []byte) []Event {
	doc := p.md.Parser().Parse(text.NewReader(src))
	labels := footnoteLabels(doc)

	var events []Event
	emit := func(e Event) { events = append(events, e) }

	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		open := func(e Event) {
			if entering {
				e.Kind = KindStart
				emit(e)
				return
			}
			emit(End(e.Tag))
		}

		switch node := n.(type) {
		case *ast.Document, *ast.TextBlock, *extast.FootnoteList:
			// Transparent containers.

		case *ast.Paragraph:
			open(Event{Tag: TagParagraph})

		case *ast.Heading:
			open(Event{Tag: TagHeading, Level: node.Level, Anchor: headingAnchor(node)})

		case *ast.List:
			open(Event{Tag: TagList, Ordered: node.IsOrdered(), Start: node.Start})

		case *ast.ListItem:
			open(Event{Tag: TagItem})

		case *ast.Blockquote:
			open(Event{Tag: TagBlockQuote})

		case *ast.FencedCodeBlock:
			if entering {
				emitCode(emit, string(node.Language(src)), node.Lines(), src)
			}
			return ast.WalkSkipChildren, nil

		case *ast.CodeBlock:
			if entering {
				emitCode(emit, "", node.Lines(), src)
			}
			return ast.WalkSkipChildren, nil

		case *ast.ThematicBreak:
			if entering {
				emit(Rule)
			}

		case *ast.HTMLBlock:
			if entering && isPageBreak(node, src) {
				emit(PageBreak)
			}
			return ast.WalkSkipChildren, nil

		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil

		case *ast.Text:
			if entering {
				if v := node.Segment.Value(src); len(v) > 0 {
					emit(Text(string(v)))
				}
				if node.HardLineBreak() {
					emit(HardBreak)
				} else if node.SoftLineBreak() {
					emit(SoftBreak)
				}
			}

		case *ast.String:
			if entering && len(node.Value) > 0 {
				emit(Text(string(node.Value)))
			}

		case *ast.CodeSpan:
			if entering {
				emit(Code(inlineText(node, src)))
			}
			return ast.WalkSkipChildren, nil

		case *ast.Emphasis:
			tag := TagEmphasis
			if node.Level >= 2 {
				tag = TagStrong
			}
			open(Event{Tag: tag})

		case *ast.Link:
			open(Event{Tag: TagLink, Dest: string(node.Destination), Title: string(node.Title)})

		case *ast.AutoLink:
			if entering {
				emit(LinkStart(string(node.URL(src))))
				emit(Text(string(node.Label(src))))
				emit(End(TagLink))
			}
			return ast.WalkSkipChildren, nil

		case *ast.Image:
			open(Event{Tag: TagImage, Dest: string(node.Destination), Title: string(node.Title)})

		case *extast.Strikethrough:
			open(Event{Tag: TagStrikethrough})

		case *extast.Table:
			open(Event{Tag: TagTable, Alignments: alignments(node.Alignments)})

		case *extast.TableHeader:
			open(Event{Tag: TagTableHead})

		case *extast.TableRow:
			open(Event{Tag: TagTableRow})

		case *extast.TableCell:
			open(Event{Tag: TagTableCell})

		case *extast.TaskCheckBox:
			if entering {
				emit(TaskMarker(node.IsChecked))
			}

		case *extast.FootnoteLink:
			if entering {
				emit(FootnoteRef(labels.label(node.Index)))
			}

		case *extast.FootnoteBacklink:
			return ast.WalkSkipChildren, nil

		case *extast.Footnote:
			open(Event{Tag: TagFootnoteDefinition, Text: string(node.Ref)})
		}
		return ast.WalkContinue, nil
	})

	return events
}

func emitCode(emit func(Event), lang string, lines *text.Segments, src []byte) {
	emit(CodeBlockStart(lang))
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		emit(Text(string(seg.Value(src))))
	}
	emit(End(TagCodeBlock))
}

// inlineText gathers the raw text of an inline node's children.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
		case *ast.String:
			buf.Write(t.Value)
		default:
			buf.WriteString(inlineText(c, src))
		}
	}
	return buf.String()
}

func headingAnchor(h *ast.Heading) string {
	v, ok := h.AttributeString("id")
	if !ok {
		return ""
	}
	switch id := v.(type) {
	case []byte:
		return string(id)
	case string:
		return id
	}
	return ""
}

func isPageBreak(n *ast.HTMLBlock, src []byte) bool {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
	if n.HasClosure() {
		buf.Write(n.ClosureLine.Value(src))
	}
	return strings.EqualFold(strings.TrimSpace(buf.String()), pageBreakComment)
}

func alignments(in []extast.Alignment) []Alignment {
	out := make([]Alignment, len(in))
	for i, a := range in {
		switch a {
		case extast.AlignLeft:
			out[i] = AlignLeft
		case extast.AlignCenter:
			out[i] = AlignCenter
		case extast.AlignRight:
			out[i] = AlignRight
		default:
			out[i] = AlignNone
		}
	}
	return out
}

type labelIndex map[int]string

// footnoteLabels maps footnote indexes to the labels used in the source.
func footnoteLabels(doc ast.Node) labelIndex {
	labels := labelIndex{}
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if fn, ok := n.(*extast.Footnote); ok && entering {
			labels[fn.Index] = string(fn.Ref)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return labels
}

func (l labelIndex) label(index int) string {
	if s, ok := l[index]; ok && s != "" {
		return s
	}
	return strconv.Itoa(index)
}
