package doctree

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// BlockID identifies a block within one conversion pass. Numbering starts
// at 1 and restarts on every pass.
type BlockID uint64

// Document is the root of a converted document.
type Document struct {
	Title  string  `json:"title,omitempty"`
	Blocks []Block `json:"blocks"`
}

// BlockKind names a Block variant.
type BlockKind string

const (
	KindParagraph      BlockKind = "paragraph"
	KindHeading        BlockKind = "heading"
	KindList           BlockKind = "list"
	KindTable          BlockKind = "table"
	KindCodeBlock      BlockKind = "code_block"
	KindImage          BlockKind = "image"
	KindBlockQuote     BlockKind = "block_quote"
	KindHorizontalRule BlockKind = "horizontal_rule"
	KindPageBreak      BlockKind = "page_break"
)

// Block is one structural unit of a document.
type Block interface {
	BlockID() BlockID
	Kind() BlockKind
}

// Paragraph is a sequence of styled runs.
type Paragraph struct {
	ID   BlockID `json:"id"`
	Runs []Run   `json:"runs"`
}

// Heading is a titled section marker. Level is always within [1,6].
type Heading struct {
	ID     BlockID `json:"id"`
	Level  int     `json:"level"`
	Anchor string  `json:"anchor,omitempty"`
	Runs   []Run   `json:"runs"`
}

// ListKind is the marker style of a list.
type ListKind string

const (
	ListBullet   ListKind = "bullet"
	ListNumbered ListKind = "numbered"
	ListCheckbox ListKind = "checkbox"
)

// List holds items of nested block content.
type List struct {
	ID       BlockID    `json:"id"`
	ListKind ListKind   `json:"list_kind"`
	Start    int        `json:"start"` // meaningful for numbered lists only
	Items    []ListItem `json:"items"`
}

// Marker is the plain-text prefix for item i: "3. " for numbered lists,
// "[x] " or "[ ] " for checkbox lists and "- " otherwise.
func (l *List) Marker(i int) string {
	switch l.ListKind {
	case ListNumbered:
		return strconv.Itoa(l.Start+i) + ". "
	case ListCheckbox:
		if c := l.Items[i].Checked; c != nil && *c {
			return "[x] "
		}
		return "[ ] "
	}
	return "- "
}

// ListItem is one entry of a List. Checked is non-nil only for checkbox lists.
type ListItem struct {
	ID      BlockID `json:"id"`
	Blocks  []Block `json:"blocks"`
	Checked *bool   `json:"checked,omitempty"`
}

// Alignment is a table column alignment.
type Alignment string

const (
	AlignNone   Alignment = ""
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

// Table is a grid of cells. ColumnWidths are fractions summing to 1.0,
// or empty when the table has no columns.
type Table struct {
	ID           BlockID     `json:"id"`
	Rows         []TableRow  `json:"rows"`
	ColumnWidths []float64   `json:"column_widths"`
	Alignments   []Alignment `json:"alignments,omitempty"`
	HeaderRow    bool        `json:"header_row"`
}

// ColumnCount returns the number of columns the widths were derived for.
func (t *Table) ColumnCount() int {
	return len(t.ColumnWidths)
}

// DataRows returns the rows that follow the header row, if any.
func (t *Table) DataRows() []TableRow {
	if t.HeaderRow && len(t.Rows) > 0 {
		return t.Rows[1:]
	}
	return t.Rows
}

// TableRow is one row of cells.
type TableRow struct {
	Cells []TableCell `json:"cells"`
}

// TableCell owns nested block content. Merged cells are not modeled, so
// spans are always 1.
type TableCell struct {
	Blocks  []Block `json:"blocks"`
	RowSpan int     `json:"row_span"`
	ColSpan int     `json:"col_span"`
}

// CodeBlock is literal text with an optional language tag.
type CodeBlock struct {
	ID       BlockID `json:"id"`
	Language string  `json:"language,omitempty"`
	Code     string  `json:"code"`
}

// Image references an external asset. Key is the reference exactly as it
// appeared in the source and is the key used with the image cache.
type Image struct {
	ID         BlockID `json:"id"`
	Key        string  `json:"key"`
	AltText    string  `json:"alt_text"`
	Title      string  `json:"title,omitempty"`
	SourcePath string  `json:"source_path,omitempty"`
	Status     string  `json:"status"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

// BlockQuote owns a single paragraph aggregating all quoted inline content.
type BlockQuote struct {
	ID     BlockID `json:"id"`
	Blocks []Block `json:"blocks"`
}

// HorizontalRule is a thematic break.
type HorizontalRule struct {
	ID BlockID `json:"id"`
}

// PageBreak forces a new page in paginated consumers.
type PageBreak struct {
	ID BlockID `json:"id"`
}

func (b *Paragraph) BlockID() BlockID      { return b.ID }
func (b *Heading) BlockID() BlockID        { return b.ID }
func (b *List) BlockID() BlockID           { return b.ID }
func (b *Table) BlockID() BlockID          { return b.ID }
func (b *CodeBlock) BlockID() BlockID      { return b.ID }
func (b *Image) BlockID() BlockID          { return b.ID }
func (b *BlockQuote) BlockID() BlockID     { return b.ID }
func (b *HorizontalRule) BlockID() BlockID { return b.ID }
func (b *PageBreak) BlockID() BlockID      { return b.ID }

func (*Paragraph) Kind() BlockKind      { return KindParagraph }
func (*Heading) Kind() BlockKind        { return KindHeading }
func (*List) Kind() BlockKind           { return KindList }
func (*Table) Kind() BlockKind          { return KindTable }
func (*CodeBlock) Kind() BlockKind      { return KindCodeBlock }
func (*Image) Kind() BlockKind          { return KindImage }
func (*BlockQuote) Kind() BlockKind     { return KindBlockQuote }
func (*HorizontalRule) Kind() BlockKind { return KindHorizontalRule }
func (*PageBreak) Kind() BlockKind      { return KindPageBreak }

// PlainText concatenates run texts in order, discarding styling.
func PlainText(runs []Run) string {
	var sb strings.Builder
	for _, r := range runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// BlockText returns the plain text of a block's own runs: the runs of a
// paragraph or heading, or of the first paragraph in a quote, cell or item.
func BlockText(b Block) string {
	switch b := b.(type) {
	case *Paragraph:
		return PlainText(b.Runs)
	case *Heading:
		return PlainText(b.Runs)
	case *CodeBlock:
		return b.Code
	case *BlockQuote:
		return blocksText(b.Blocks, " ")
	case *Image:
		return b.AltText
	}
	return ""
}

// ItemText joins the text of an item's paragraphs.
func ItemText(item ListItem) string {
	return blocksText(item.Blocks, " ")
}

// CellText joins the text of a cell's paragraphs.
func CellText(cell TableCell) string {
	return blocksText(cell.Blocks, " ")
}

func blocksText(blocks []Block, sep string) string {
	var parts []string
	for _, b := range blocks {
		if p, ok := b.(*Paragraph); ok {
			parts = append(parts, PlainText(p.Runs))
		}
	}
	return strings.Join(parts, sep)
}

// Walk visits every block depth-first in document order, including blocks
// nested in list items, table cells and quotes.
func Walk(blocks []Block, fn func(Block)) {
	for _, b := range blocks {
		fn(b)
		switch b := b.(type) {
		case *List:
			for _, item := range b.Items {
				Walk(item.Blocks, fn)
			}
		case *Table:
			for _, row := range b.Rows {
				for _, cell := range row.Cells {
					Walk(cell.Blocks, fn)
				}
			}
		case *BlockQuote:
			Walk(b.Blocks, fn)
		}
	}
}

// MarshalJSON wraps every block with its kind so consumers can tell the
// variants apart.
func (d *Document) MarshalJSON() ([]byte, error) {
	blocks, err := marshalBlocks(d.Blocks)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Title  string            `json:"title,omitempty"`
		Blocks []json.RawMessage `json:"blocks"`
	}{d.Title, blocks})
}

// MarshalJSON tags nested item blocks.
func (i ListItem) MarshalJSON() ([]byte, error) {
	blocks, err := marshalBlocks(i.Blocks)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		ID      BlockID           `json:"id"`
		Blocks  []json.RawMessage `json:"blocks"`
		Checked *bool             `json:"checked,omitempty"`
	}{i.ID, blocks, i.Checked})
}

// MarshalJSON tags nested cell blocks.
func (c TableCell) MarshalJSON() ([]byte, error) {
	blocks, err := marshalBlocks(c.Blocks)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Blocks  []json.RawMessage `json:"blocks"`
		RowSpan int               `json:"row_span"`
		ColSpan int               `json:"col_span"`
	}{blocks, c.RowSpan, c.ColSpan})
}

// MarshalJSON tags nested quote blocks.
func (q *BlockQuote) MarshalJSON() ([]byte, error) {
	blocks, err := marshalBlocks(q.Blocks)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Type   BlockKind         `json:"type"`
		ID     BlockID           `json:"id"`
		Blocks []json.RawMessage `json:"blocks"`
	}{KindBlockQuote, q.ID, blocks})
}

func marshalBlocks(blocks []Block) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(blocks))
	for _, b := range blocks {
		raw, err := marshalBlock(b)
		if err != nil {
			return nil, fmt.Errorf("marshal %s block %d: %w", b.Kind(), b.BlockID(), err)
		}
		out = append(out, raw)
	}
	return out, nil
}

func marshalBlock(b Block) (json.RawMessage, error) {
	if q, ok := b.(*BlockQuote); ok {
		return q.MarshalJSON()
	}
	body, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	// Splice the discriminator in front of the block's own fields.
	head := fmt.Sprintf(`{"type":%q`, b.Kind())
	if len(body) <= 2 {
		return json.RawMessage(head + "}"), nil
	}
	return json.RawMessage(head + "," + string(body[1:])), nil
}
