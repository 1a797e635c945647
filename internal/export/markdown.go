package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docview/internal/doctree"
)

// MarkdownExporter writes the tree back as markdown, re-applying run styles.
type MarkdownExporter struct{}

func (e *MarkdownExporter) ContentType() string { return "text/markdown; charset=utf-8" }
func (e *MarkdownExporter) Extension() string   { return ".md" }

func (e *MarkdownExporter) Export(w io.Writer, doc *doctree.Document) error {
	ew := &errWriter{w: w}
	writeMarkdown(ew, doc.Blocks, "")
	return ew.err
}

func writeMarkdown(ew *errWriter, blocks []doctree.Block, indent string) {
	for _, b := range blocks {
		switch b := b.(type) {
		case *doctree.Heading:
			ew.WriteString(indent + strings.Repeat("#", b.Level) + " " + markdownRuns(b.Runs) + "\n\n")
		case *doctree.Paragraph:
			ew.WriteString(indent + prefixLines(markdownRuns(b.Runs), indent) + "\n\n")
		case *doctree.CodeBlock:
			ew.WriteString(indent + "```" + b.Language + "\n")
			ew.WriteString(prefixLines(b.Code, indent) + "\n")
			ew.WriteString(indent + "```\n\n")
		case *doctree.HorizontalRule:
			ew.WriteString(indent + "---\n\n")
		case *doctree.PageBreak:
			ew.WriteString(indent + "<!-- pagebreak -->\n\n")
		case *doctree.List:
			for i, item := range b.Items {
				marker := b.Marker(i)
				if b.ListKind == doctree.ListCheckbox {
					marker = "- " + marker
				}
				first, rest := item.Blocks, []doctree.Block(nil)
				text := ""
				if len(first) > 0 {
					if p, ok := first[0].(*doctree.Paragraph); ok {
						text = markdownRuns(p.Runs)
						rest = first[1:]
					} else {
						rest = first
					}
				}
				ew.WriteString(indent + marker + text + "\n")
				if len(rest) > 0 {
					ew.WriteString("\n")
					writeMarkdown(ew, rest, indent+strings.Repeat(" ", len(marker)))
				}
			}
			ew.WriteString("\n")
		case *doctree.Table:
			writeMarkdownTable(ew, b, indent)
		case *doctree.Image:
			ew.WriteString(indent + "![" + b.AltText + "](" + b.Key)
			if b.Title != "" {
				ew.WriteString(fmt.Sprintf(" %q", b.Title))
			}
			ew.WriteString(")\n\n")
		case *doctree.BlockQuote:
			for _, child := range b.Blocks {
				if p, ok := child.(*doctree.Paragraph); ok {
					ew.WriteString(indent + "> " + prefixLines(markdownRuns(p.Runs), indent+"> ") + "\n\n")
				}
			}
		}
	}
}

func writeMarkdownTable(ew *errWriter, t *doctree.Table, indent string) {
	if len(t.Rows) == 0 {
		return
	}
	writeRow := func(cells []string) {
		ew.WriteString(indent + "|")
		for _, c := range cells {
			ew.WriteString(" " + strings.ReplaceAll(c, "|", "\\|") + " |")
		}
		ew.WriteString("\n")
	}
	cols := max(t.ColumnCount(), len(t.Rows[0].Cells))
	rowText := func(row doctree.TableRow) []string {
		cells := make([]string, cols)
		for i, c := range row.Cells {
			if i < cols {
				cells[i] = doctree.CellText(c)
			}
		}
		return cells
	}

	rows := t.Rows
	header := make([]string, cols)
	if t.HeaderRow {
		header = rowText(rows[0])
		rows = rows[1:]
	}
	writeRow(header)

	ew.WriteString(indent + "|")
	for i := range cols {
		var a doctree.Alignment
		if i < len(t.Alignments) {
			a = t.Alignments[i]
		}
		switch a {
		case doctree.AlignLeft:
			ew.WriteString(" :--- |")
		case doctree.AlignCenter:
			ew.WriteString(" :---: |")
		case doctree.AlignRight:
			ew.WriteString(" ---: |")
		default:
			ew.WriteString(" --- |")
		}
	}
	ew.WriteString("\n")

	for _, row := range rows {
		writeRow(rowText(row))
	}
	ew.WriteString("\n")
}

// markdownRuns renders runs with their inline markers.
func markdownRuns(runs []doctree.Run) string {
	var sb strings.Builder
	for _, r := range runs {
		sb.WriteString(markdownRun(r))
	}
	return sb.String()
}

func markdownRun(r doctree.Run) string {
	text := r.Text
	if text == "\n" || strings.TrimSpace(text) == "" {
		return text
	}
	st := r.Style
	if st.FontFamily != "" && st.Background != nil {
		text = "`" + text + "`"
	}

	// Keep surrounding spaces outside the markers.
	lead := text[:len(text)-len(strings.TrimLeft(text, " "))]
	trail := text[len(strings.TrimRight(text, " ")):]
	core := strings.TrimSpace(text)

	if st.Strikethrough {
		core = "~~" + core + "~~"
	}
	if st.Italic {
		core = "*" + core + "*"
	}
	if st.Bold {
		core = "**" + core + "**"
	}
	if st.Superscript && !st.Subscript && strings.HasPrefix(core, "[") {
		// Footnote references come back as their label.
		core = "[^" + strings.TrimPrefix(core, "[")
	}
	if st.Link != "" {
		core = "[" + core + "](" + st.Link + ")"
	}
	return lead + core + trail
}

func prefixLines(s, prefix string) string {
	if prefix == "" {
		return s
	}
	return strings.ReplaceAll(s, "\n", "\n"+prefix)
}
