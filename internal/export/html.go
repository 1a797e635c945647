package export

import (
	"fmt"
	"io"
	"strconv"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dgallion1/docview/internal/doctree"
)

const pageStyle = "body{font-family:Segoe UI,Arial,sans-serif;max-width:840px;margin:24px auto;line-height:1.4}" +
	"table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:6px}" +
	"blockquote{border-left:3px solid #ccc;margin-left:0;padding-left:12px;color:#555}" +
	".page-break{page-break-after:always}"

// HTMLExporter writes a standalone HTML page.
type HTMLExporter struct{}

func (e *HTMLExporter) ContentType() string { return "text/html; charset=utf-8" }
func (e *HTMLExporter) Extension() string   { return ".html" }

func (e *HTMLExporter) Export(w io.Writer, doc *doctree.Document) error {
	root := &html.Node{Type: html.DocumentNode}
	root.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	page := element(atom.Html)
	head := element(atom.Head)
	head.AppendChild(element(atom.Meta, attr("charset", "utf-8")))
	if doc.Title != "" {
		head.AppendChild(withText(element(atom.Title), doc.Title))
	}
	head.AppendChild(withText(element(atom.Style), pageStyle))
	body := element(atom.Body)
	appendBlocks(body, doc.Blocks)

	page.AppendChild(head)
	page.AppendChild(body)
	root.AppendChild(page)

	if err := html.Render(w, root); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}

func withText(n *html.Node, text string) *html.Node {
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return n
}

func appendBlocks(parent *html.Node, blocks []doctree.Block) {
	for _, b := range blocks {
		if n := blockNode(b); n != nil {
			parent.AppendChild(n)
		}
	}
}

func blockNode(b doctree.Block) *html.Node {
	switch b := b.(type) {
	case *doctree.Heading:
		h := element(headingAtoms[min(max(b.Level, 1), 6)-1])
		if b.Anchor != "" {
			h.Attr = append(h.Attr, attr("id", b.Anchor))
		}
		appendRuns(h, b.Runs)
		return h
	case *doctree.Paragraph:
		p := element(atom.P)
		appendRuns(p, b.Runs)
		return p
	case *doctree.CodeBlock:
		code := element(atom.Code)
		if b.Language != "" {
			code.Attr = append(code.Attr, attr("class", "language-"+b.Language))
		}
		pre := element(atom.Pre)
		pre.AppendChild(withText(code, b.Code))
		return pre
	case *doctree.HorizontalRule:
		return element(atom.Hr)
	case *doctree.PageBreak:
		return element(atom.Div, attr("class", "page-break"))
	case *doctree.Image:
		img := element(atom.Img,
			attr("src", b.Key),
			attr("alt", b.AltText),
			attr("width", strconv.Itoa(b.Width)),
			attr("height", strconv.Itoa(b.Height)),
		)
		if b.Title != "" {
			img.Attr = append(img.Attr, attr("title", b.Title))
		}
		fig := element(atom.Figure)
		fig.AppendChild(img)
		return fig
	case *doctree.BlockQuote:
		q := element(atom.Blockquote)
		appendBlocks(q, b.Blocks)
		return q
	case *doctree.List:
		return listNode(b)
	case *doctree.Table:
		return tableNode(b)
	}
	return nil
}

var headingAtoms = [...]atom.Atom{atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6}

func listNode(l *doctree.List) *html.Node {
	var list *html.Node
	switch l.ListKind {
	case doctree.ListNumbered:
		list = element(atom.Ol)
		if l.Start != 1 {
			list.Attr = append(list.Attr, attr("start", strconv.Itoa(l.Start)))
		}
	case doctree.ListCheckbox:
		list = element(atom.Ul, attr("class", "checklist"))
	default:
		list = element(atom.Ul)
	}
	for _, item := range l.Items {
		li := element(atom.Li)
		if item.Checked != nil {
			box := element(atom.Input, attr("type", "checkbox"), attr("disabled", ""))
			if *item.Checked {
				box.Attr = append(box.Attr, attr("checked", ""))
			}
			li.AppendChild(box)
		}
		appendBlocks(li, item.Blocks)
		list.AppendChild(li)
	}
	return list
}

func tableNode(t *doctree.Table) *html.Node {
	table := element(atom.Table)
	rows := t.Rows
	if t.HeaderRow && len(rows) > 0 {
		thead := element(atom.Thead)
		thead.AppendChild(rowNode(rows[0], atom.Th, t.Alignments))
		table.AppendChild(thead)
		rows = rows[1:]
	}
	tbody := element(atom.Tbody)
	for _, row := range rows {
		tbody.AppendChild(rowNode(row, atom.Td, t.Alignments))
	}
	table.AppendChild(tbody)
	return table
}

func rowNode(row doctree.TableRow, cellAtom atom.Atom, aligns []doctree.Alignment) *html.Node {
	tr := element(atom.Tr)
	for i, c := range row.Cells {
		cell := element(cellAtom)
		if i < len(aligns) && aligns[i] != doctree.AlignNone {
			cell.Attr = append(cell.Attr, attr("style", "text-align:"+string(aligns[i])))
		}
		// A lone paragraph is inlined into the cell.
		if len(c.Blocks) == 1 {
			if p, ok := c.Blocks[0].(*doctree.Paragraph); ok {
				appendRuns(cell, p.Runs)
				tr.AppendChild(cell)
				continue
			}
		}
		appendBlocks(cell, c.Blocks)
		tr.AppendChild(cell)
	}
	return tr
}

func appendRuns(parent *html.Node, runs []doctree.Run) {
	for _, r := range runs {
		parent.AppendChild(runNode(r))
	}
}

// runNode wraps the run text in one element per active style.
func runNode(r doctree.Run) *html.Node {
	if r.Text == "\n" {
		return element(atom.Br)
	}
	n := &html.Node{Type: html.TextNode, Data: r.Text}
	wrap := func(outer *html.Node) {
		outer.AppendChild(n)
		n = outer
	}

	st := r.Style
	if st.FontFamily != "" && st.Background != nil {
		wrap(element(atom.Code))
	}
	if st.Strikethrough {
		wrap(element(atom.Del))
	}
	if st.Italic {
		wrap(element(atom.Em))
	}
	if st.Bold {
		wrap(element(atom.Strong))
	}
	if st.Superscript {
		wrap(element(atom.Sup))
	}
	if st.Subscript {
		wrap(element(atom.Sub))
	}
	if st.Link != "" {
		wrap(element(atom.A, attr("href", st.Link)))
	}
	return n
}
