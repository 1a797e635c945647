package export

import (
	"io"
	"strings"

	"github.com/dgallion1/docview/internal/doctree"
)

// TextExporter writes plain text with styling discarded.
type TextExporter struct{}

func (e *TextExporter) ContentType() string { return "text/plain; charset=utf-8" }
func (e *TextExporter) Extension() string   { return ".txt" }

func (e *TextExporter) Export(w io.Writer, doc *doctree.Document) error {
	ew := &errWriter{w: w}
	writeText(ew, doc.Blocks, "")
	return ew.err
}

func writeText(ew *errWriter, blocks []doctree.Block, indent string) {
	for _, b := range blocks {
		switch b := b.(type) {
		case *doctree.Paragraph:
			ew.WriteString(indent + doctree.PlainText(b.Runs) + "\n")
		case *doctree.Heading:
			ew.WriteString(indent + doctree.PlainText(b.Runs) + "\n")
		case *doctree.CodeBlock:
			ew.WriteString(b.Code + "\n")
		case *doctree.List:
			for i, item := range b.Items {
				ew.WriteString(indent + b.Marker(i))
				first, rest := splitFirstParagraph(item.Blocks)
				ew.WriteString(first + "\n")
				writeText(ew, rest, indent+"  ")
			}
		case *doctree.Table:
			for _, row := range b.Rows {
				cells := make([]string, len(row.Cells))
				for i, c := range row.Cells {
					cells[i] = doctree.CellText(c)
				}
				ew.WriteString(indent + strings.Join(cells, "\t") + "\n")
			}
		case *doctree.HorizontalRule:
			ew.WriteString(indent + "---\n")
		case *doctree.PageBreak:
			ew.WriteString("\n\f\n")
		case *doctree.Image:
			ew.WriteString(indent + "[Image: " + b.AltText + "]\n")
		case *doctree.BlockQuote:
			for _, child := range b.Blocks {
				if p, ok := child.(*doctree.Paragraph); ok {
					ew.WriteString(indent + "> " + doctree.PlainText(p.Runs) + "\n")
				}
			}
		}
	}
}

// splitFirstParagraph returns the text of a leading paragraph, which is
// written on the marker line, and the blocks after it.
func splitFirstParagraph(blocks []doctree.Block) (string, []doctree.Block) {
	if len(blocks) == 0 {
		return "", nil
	}
	if p, ok := blocks[0].(*doctree.Paragraph); ok {
		return doctree.PlainText(p.Runs), blocks[1:]
	}
	return "", blocks
}
