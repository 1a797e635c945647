// Package convert builds document trees from markup event streams.
//
// Build is a total function: every event sequence yields a tree. Closing
// events without a matching open container are ignored.
package convert

import (
	"strings"

	"github.com/dgallion1/docview/internal/doctree"
	"github.com/dgallion1/docview/internal/imagecache"
	"github.com/dgallion1/docview/internal/markup"
)

// Display size used for images whose dimensions are not known yet.
const (
	FallbackWidth  = 320
	FallbackHeight = 180
)

// ImageResolver looks up image references without blocking.
type ImageResolver interface {
	Request(reference, altText string) imagecache.Asset
}

// Options configures a conversion pass.
type Options struct {
	// Title is copied to the document.
	Title string
	// BaseDir resolves relative image references when Images is nil.
	BaseDir string
	// Images resolves image references. Without it images stay placeholders.
	Images ImageResolver
	// MonospaceFamily overrides the inline code font.
	MonospaceFamily string
}

type builder struct {
	opts  Options
	doc   *doctree.Document
	ids   idSeq
	style *styleState

	paragraph *paragraphBuilder
	heading   *headingBuilder
	code      *codeBuilder
	image     *imageBuilder
	lists     []*listBuilder
	table     *tableBuilder
	quote     *quoteBuilder

	footnoteDepth int
}

// Build consumes events in one pass and returns the finished tree.
func Build(events []markup.Event, opts Options) *doctree.Document {
	b := &builder{
		opts:  opts,
		doc:   &doctree.Document{Title: opts.Title, Blocks: []doctree.Block{}},
		style: newStyleState(opts.MonospaceFamily),
	}
	for _, e := range events {
		b.handle(e)
	}
	return b.doc
}

func (b *builder) handle(e markup.Event) {
	switch e.Kind {
	case markup.KindStart:
		b.open(e)
	case markup.KindEnd:
		b.close(e.Tag)
	case markup.KindText:
		b.text(e.Text)
	case markup.KindCode:
		if b.image != nil {
			b.image.alt.WriteString(e.Text)
			return
		}
		b.inline(b.style.codeRun(e.Text))
	case markup.KindSoftBreak, markup.KindHardBreak:
		b.lineBreak()
	case markup.KindRule:
		b.emit(&doctree.HorizontalRule{ID: b.ids.next()})
	case markup.KindPageBreak:
		b.emit(&doctree.PageBreak{ID: b.ids.next()})
	case markup.KindTaskMarker:
		if n := len(b.lists); n > 0 {
			b.lists[n-1].mark(e.Checked)
		}
	case markup.KindFootnoteRef:
		if b.footnoteDepth == 0 {
			b.inline(b.style.footnoteRun(e.Text))
		}
	}
}

func (b *builder) open(e markup.Event) {
	switch e.Tag {
	case markup.TagParagraph:
		b.paragraph = &paragraphBuilder{}
	case markup.TagHeading:
		b.heading = &headingBuilder{level: clampLevel(e.Level), anchor: e.Anchor}
	case markup.TagCodeBlock:
		b.code = &codeBuilder{lang: e.Language}
	case markup.TagList:
		b.lists = append(b.lists, newListBuilder(e))
	case markup.TagItem:
		if lb := b.topList(); lb != nil {
			lb.openItem(&b.ids)
		}
	case markup.TagBlockQuote:
		if b.quote != nil {
			b.quote.depth++
			return
		}
		b.quote = &quoteBuilder{}
	case markup.TagTable:
		if b.table != nil {
			b.table.depth++
			return
		}
		b.table = &tableBuilder{aligns: e.Alignments}
	case markup.TagTableHead, markup.TagTableRow:
		if b.table != nil && b.table.depth == 0 {
			b.table.openRow(e.Tag == markup.TagTableHead)
		}
	case markup.TagTableCell:
		if b.table != nil && b.table.depth == 0 {
			b.table.openCell(&b.ids)
		}
	case markup.TagImage:
		if b.image != nil {
			b.image.depth++
			return
		}
		b.image = &imageBuilder{dest: e.Dest, title: e.Title}
	case markup.TagFootnoteDefinition:
		b.footnoteDepth++
	default:
		b.style.open(e)
	}
}

func (b *builder) close(tag markup.Tag) {
	switch tag {
	case markup.TagParagraph:
		b.closeParagraph()
	case markup.TagHeading:
		b.closeHeading()
	case markup.TagCodeBlock:
		b.closeCode()
	case markup.TagList:
		n := len(b.lists)
		if n == 0 {
			return
		}
		lb := b.lists[n-1]
		b.lists = b.lists[:n-1]
		b.emit(lb.build(&b.ids))
	case markup.TagItem:
		if lb := b.topList(); lb != nil {
			lb.closeItem(&b.ids)
		}
	case markup.TagBlockQuote:
		b.closeQuote()
	case markup.TagTable:
		b.closeTable()
	case markup.TagTableHead, markup.TagTableRow:
		if b.table != nil && b.table.depth == 0 {
			b.table.closeRow(&b.ids)
		}
	case markup.TagTableCell:
		if b.table != nil && b.table.depth == 0 {
			b.table.closeCell(&b.ids)
		}
	case markup.TagImage:
		b.closeImage()
	case markup.TagFootnoteDefinition:
		if b.footnoteDepth > 0 {
			b.footnoteDepth--
		}
	default:
		b.style.close(tag)
	}
}

func (b *builder) text(s string) {
	switch {
	case b.image != nil:
		b.image.alt.WriteString(s)
	case b.code != nil:
		b.code.text.WriteString(s)
	default:
		b.inline(b.style.run(s))
	}
}

func (b *builder) lineBreak() {
	switch {
	case b.image != nil:
		b.image.alt.WriteByte(' ')
	case b.code != nil:
		b.code.text.WriteByte('\n')
	default:
		b.inline(doctree.Run{Text: "\n", Style: b.style.current()})
	}
}

// inline routes a run to the innermost context accepting inline content.
// Runs arriving while nothing is open are dropped.
func (b *builder) inline(r doctree.Run) {
	switch {
	case b.heading != nil:
		b.heading.runs = append(b.heading.runs, r)
	case b.paragraph != nil:
		b.paragraph.runs = append(b.paragraph.runs, r)
	case b.cell() != nil:
		c := b.cell()
		c.runs = append(c.runs, r)
	case b.item() != nil:
		it := b.item()
		it.runs = append(it.runs, r)
	case b.quote != nil:
		b.quote.runs = append(b.quote.runs, r)
	}
}

// sinkRuns places the runs of a closed paragraph or heading. The order of
// checks decides where content lands when several containers are open.
// It reports false when no container took them.
func (b *builder) sinkRuns(runs []doctree.Run) bool {
	switch {
	case b.footnoteDepth > 0:
		return true
	case b.cell() != nil:
		c := b.cell()
		c.runs = appendRuns(c.runs, runs)
	case b.item() != nil:
		it := b.item()
		it.runs = appendRuns(it.runs, runs)
	case b.quote != nil:
		b.quote.runs = appendRuns(b.quote.runs, runs)
	default:
		return false
	}
	return true
}

// emit places a finished block using the same priority as sinkRuns.
func (b *builder) emit(blk doctree.Block) {
	switch {
	case b.footnoteDepth > 0:
	case b.cell() != nil:
		b.cell().addBlock(blk, &b.ids)
	case b.item() != nil:
		b.item().addBlock(blk, &b.ids)
	case b.quote != nil:
		b.quote.absorb(blk, b.style)
	default:
		b.doc.Blocks = append(b.doc.Blocks, blk)
	}
}

func (b *builder) closeParagraph() {
	p := b.paragraph
	if p == nil {
		return
	}
	b.paragraph = nil
	if len(p.runs) == 0 && p.hadImage {
		return
	}
	b.flushParagraph(p.runs)
}

func (b *builder) flushParagraph(runs []doctree.Run) {
	if b.sinkRuns(runs) {
		return
	}
	if runs == nil {
		runs = []doctree.Run{}
	}
	b.doc.Blocks = append(b.doc.Blocks, &doctree.Paragraph{ID: b.ids.next(), Runs: runs})
}

func (b *builder) closeHeading() {
	h := b.heading
	if h == nil {
		return
	}
	b.heading = nil
	if !b.sinkRuns(h.runs) {
		runs := h.runs
		if runs == nil {
			runs = []doctree.Run{}
		}
		b.doc.Blocks = append(b.doc.Blocks, &doctree.Heading{
			ID:     b.ids.next(),
			Level:  h.level,
			Anchor: h.anchor,
			Runs:   runs,
		})
	}
	for _, img := range h.deferred {
		b.emitImage(img)
	}
}

func (b *builder) closeCode() {
	c := b.code
	if c == nil {
		return
	}
	b.code = nil
	code := strings.TrimSuffix(c.text.String(), "\n")
	b.emit(&doctree.CodeBlock{ID: b.ids.next(), Language: c.lang, Code: code})
}

func (b *builder) closeQuote() {
	q := b.quote
	if q == nil {
		return
	}
	if q.depth > 0 {
		q.depth--
		return
	}
	b.quote = nil
	nested := b.cell() != nil || b.item() != nil
	if !nested || len(q.runs) > 0 {
		b.emit(q.build(&b.ids))
	}
	for _, img := range q.deferred {
		b.emitImage(img)
	}
}

func (b *builder) closeTable() {
	t := b.table
	if t == nil {
		return
	}
	if t.depth > 0 {
		t.depth--
		return
	}
	b.table = nil
	b.emit(t.build(&b.ids))
}

func (b *builder) closeImage() {
	im := b.image
	if im == nil {
		return
	}
	if im.depth > 0 {
		im.depth--
		return
	}
	b.image = nil
	if b.footnoteDepth > 0 {
		return
	}

	blk := b.imageBlock(im.dest, im.alt.String(), im.title)
	switch {
	case b.heading != nil:
		b.heading.deferred = append(b.heading.deferred, blk)
	case b.paragraph != nil:
		// Split the paragraph around the image to keep source order.
		p := b.paragraph
		if len(p.runs) > 0 {
			b.flushParagraph(p.runs)
			p.runs = nil
		}
		p.hadImage = true
		b.emitImage(blk)
	default:
		b.emitImage(blk)
	}
}

// emitImage numbers an image when it is placed. Images landing in a quote
// wait for the quote to close, so they are numbered after it.
func (b *builder) emitImage(img *doctree.Image) {
	if b.footnoteDepth == 0 && b.cell() == nil && b.item() == nil && b.quote != nil {
		b.quote.deferred = append(b.quote.deferred, img)
		return
	}
	img.ID = b.ids.next()
	b.emit(img)
}

func (b *builder) imageBlock(dest, alt, title string) *doctree.Image {
	var asset imagecache.Asset
	if b.opts.Images != nil {
		asset = b.opts.Images.Request(dest, alt)
	} else {
		asset = imagecache.Asset{Reference: dest, AltText: alt, Status: imagecache.StatusPlaceholder}
		if !imagecache.IsRemote(dest) {
			asset.Path = imagecache.ResolvePath(b.opts.BaseDir, dest)
		}
	}

	img := &doctree.Image{
		Key:        dest,
		AltText:    alt,
		Title:      title,
		SourcePath: asset.Path,
		Status:     string(asset.Status),
		Width:      FallbackWidth,
		Height:     FallbackHeight,
	}
	if asset.Ready() {
		img.Width, img.Height = asset.Width, asset.Height
	}
	return img
}

func (b *builder) topList() *listBuilder {
	if n := len(b.lists); n > 0 {
		return b.lists[n-1]
	}
	return nil
}

func (b *builder) item() *itemBuilder {
	if lb := b.topList(); lb != nil {
		return lb.item
	}
	return nil
}

func (b *builder) cell() *blockBuffer {
	if b.table != nil {
		return b.table.cell
	}
	return nil
}

func clampLevel(level int) int {
	switch {
	case level < 1:
		return 1
	case level > 6:
		return 6
	}
	return level
}
