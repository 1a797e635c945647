package convert

import (
	"strings"

	"github.com/dgallion1/docview/internal/doctree"
	"github.com/dgallion1/docview/internal/markup"
)

var lineBreak = doctree.Run{Text: "\n"}

// appendRuns adds runs to a container buffer, separating them from any
// content already there with a line break run.
func appendRuns(buf, runs []doctree.Run) []doctree.Run {
	if len(runs) == 0 {
		return buf
	}
	if len(buf) > 0 {
		buf = append(buf, lineBreak)
	}
	return append(buf, runs...)
}

// blockBuffer collects inline runs and nested blocks for a container that
// owns block content (list items and table cells).
type blockBuffer struct {
	runs   []doctree.Run
	blocks []doctree.Block
}

// flush turns buffered runs into a paragraph so nested blocks keep source order.
func (bb *blockBuffer) flush(ids *idSeq) {
	if len(bb.runs) == 0 {
		return
	}
	bb.blocks = append(bb.blocks, &doctree.Paragraph{ID: ids.next(), Runs: bb.runs})
	bb.runs = nil
}

func (bb *blockBuffer) addBlock(b doctree.Block, ids *idSeq) {
	bb.flush(ids)
	bb.blocks = append(bb.blocks, b)
}

// finish flushes the buffer and guarantees at least one paragraph.
func (bb *blockBuffer) finish(ids *idSeq) []doctree.Block {
	bb.flush(ids)
	if len(bb.blocks) == 0 {
		bb.blocks = append(bb.blocks, &doctree.Paragraph{ID: ids.next(), Runs: []doctree.Run{}})
	}
	return bb.blocks
}

type itemBuilder struct {
	blockBuffer
	checked *bool
}

type listBuilder struct {
	kind  doctree.ListKind
	start int
	items []doctree.ListItem
	item  *itemBuilder
}

func newListBuilder(e markup.Event) *listBuilder {
	lb := &listBuilder{kind: doctree.ListBullet, start: 1}
	if e.Ordered {
		lb.kind = doctree.ListNumbered
		lb.start = e.Start
	}
	return lb
}

func (lb *listBuilder) openItem(ids *idSeq) {
	if lb.item != nil {
		lb.closeItem(ids)
	}
	lb.item = &itemBuilder{}
}

func (lb *listBuilder) closeItem(ids *idSeq) {
	if lb.item == nil {
		return
	}
	blocks := lb.item.finish(ids)
	lb.items = append(lb.items, doctree.ListItem{ID: ids.next(), Blocks: blocks, Checked: lb.item.checked})
	lb.item = nil
}

// mark promotes the list to a checkbox list and records the flag on the
// open item. The last marker decides the list kind.
func (lb *listBuilder) mark(checked bool) {
	lb.kind = doctree.ListCheckbox
	if lb.item != nil {
		v := checked
		lb.item.checked = &v
	}
}

func (lb *listBuilder) build(ids *idSeq) *doctree.List {
	lb.closeItem(ids)
	items := lb.items
	if items == nil {
		items = []doctree.ListItem{}
	}
	for i := range items {
		if lb.kind != doctree.ListCheckbox {
			items[i].Checked = nil
		} else if items[i].Checked == nil {
			unchecked := false
			items[i].Checked = &unchecked
		}
	}
	start := lb.start
	if lb.kind != doctree.ListNumbered {
		start = 1
	}
	return &doctree.List{ID: ids.next(), ListKind: lb.kind, Start: start, Items: items}
}

type tableBuilder struct {
	aligns []markup.Alignment
	rows   []doctree.TableRow
	row    []doctree.TableCell
	inRow  bool
	cell   *blockBuffer
	header bool
	depth  int
}

func (tb *tableBuilder) openRow(header bool) {
	if tb.inRow {
		return
	}
	if header && len(tb.rows) == 0 {
		tb.header = true
	}
	tb.inRow = true
	tb.row = nil
}

func (tb *tableBuilder) closeRow(ids *idSeq) {
	if !tb.inRow {
		return
	}
	tb.closeCell(ids)
	cells := tb.row
	if cells == nil {
		cells = []doctree.TableCell{}
	}
	tb.rows = append(tb.rows, doctree.TableRow{Cells: cells})
	tb.row = nil
	tb.inRow = false
}

func (tb *tableBuilder) openCell(ids *idSeq) {
	if !tb.inRow {
		tb.openRow(len(tb.rows) == 0)
	}
	tb.closeCell(ids)
	tb.cell = &blockBuffer{}
}

func (tb *tableBuilder) closeCell(ids *idSeq) {
	if tb.cell == nil {
		return
	}
	tb.row = append(tb.row, doctree.TableCell{Blocks: tb.cell.finish(ids), RowSpan: 1, ColSpan: 1})
	tb.cell = nil
}

func (tb *tableBuilder) build(ids *idSeq) *doctree.Table {
	tb.closeRow(ids)

	cols := len(tb.aligns)
	if len(tb.rows) > 0 && len(tb.rows[0].Cells) > cols {
		cols = len(tb.rows[0].Cells)
	}
	widths := make([]float64, cols)
	aligns := make([]doctree.Alignment, cols)
	for i := range cols {
		widths[i] = 1.0 / float64(cols)
		if i < len(tb.aligns) {
			aligns[i] = alignment(tb.aligns[i])
		}
	}
	rows := tb.rows
	if rows == nil {
		rows = []doctree.TableRow{}
	}
	return &doctree.Table{
		ID:           ids.next(),
		Rows:         rows,
		ColumnWidths: widths,
		Alignments:   aligns,
		HeaderRow:    tb.header && len(rows) > 0,
	}
}

func alignment(a markup.Alignment) doctree.Alignment {
	switch a {
	case markup.AlignLeft:
		return doctree.AlignLeft
	case markup.AlignCenter:
		return doctree.AlignCenter
	case markup.AlignRight:
		return doctree.AlignRight
	}
	return doctree.AlignNone
}

// quoteBuilder flattens everything quoted into one run buffer. Images found
// inside the quote are emitted after it.
type quoteBuilder struct {
	runs     []doctree.Run
	deferred []*doctree.Image
	depth    int
}

func (qb *quoteBuilder) absorb(b doctree.Block, s *styleState) {
	qb.runs = appendRuns(qb.runs, flatten(b, s))
}

func (qb *quoteBuilder) build(ids *idSeq) *doctree.BlockQuote {
	bq := &doctree.BlockQuote{ID: ids.next()}
	runs := qb.runs
	if runs == nil {
		runs = []doctree.Run{}
	}
	bq.Blocks = []doctree.Block{&doctree.Paragraph{ID: ids.next(), Runs: runs}}
	return bq
}

// flatten renders block content as runs for containers that only hold text.
func flatten(b doctree.Block, s *styleState) []doctree.Run {
	switch b := b.(type) {
	case *doctree.Paragraph:
		return b.Runs
	case *doctree.Heading:
		return b.Runs
	case *doctree.CodeBlock:
		if b.Code == "" {
			return nil
		}
		return []doctree.Run{s.codeRun(b.Code)}
	case *doctree.BlockQuote:
		var runs []doctree.Run
		for _, child := range b.Blocks {
			runs = appendRuns(runs, flatten(child, s))
		}
		return runs
	case *doctree.List:
		var runs []doctree.Run
		for i, item := range b.Items {
			var body []doctree.Run
			for _, child := range item.Blocks {
				body = appendRuns(body, flatten(child, s))
			}
			marker := doctree.Run{Text: b.Marker(i)}
			runs = appendRuns(runs, append([]doctree.Run{marker}, body...))
		}
		return runs
	case *doctree.Table:
		var runs []doctree.Run
		for _, row := range b.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, c := range row.Cells {
				cells = append(cells, doctree.CellText(c))
			}
			runs = appendRuns(runs, []doctree.Run{{Text: strings.Join(cells, " | ")}})
		}
		return runs
	}
	return nil
}

type codeBuilder struct {
	lang string
	text strings.Builder
}

type imageBuilder struct {
	dest, title string
	alt         strings.Builder
	depth       int
}

type headingBuilder struct {
	level    int
	anchor   string
	runs     []doctree.Run
	deferred []*doctree.Image
}

type paragraphBuilder struct {
	runs     []doctree.Run
	hadImage bool
}

// idSeq hands out block ids for one pass, starting at 1.
type idSeq struct {
	last doctree.BlockID
}

func (s *idSeq) next() doctree.BlockID {
	s.last++
	return s.last
}
