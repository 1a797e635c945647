package convert

import (
	"reflect"
	"testing"
	"time"

	"github.com/dgallion1/docview/internal/doctree"
	"github.com/dgallion1/docview/internal/imagecache"
)

func TestMarkdown_EndToEnd(t *testing.T) {
	src := "# T\n\nPara with **bold**\n\n- [x] done\n\n> quote\n\n| A | B |\n|---|---|\n| 1 | 2 |\n\n```\ncode\n```\n\n---\n"
	doc := Markdown(src, Options{})

	want := []doctree.BlockKind{
		doctree.KindHeading,
		doctree.KindParagraph,
		doctree.KindList,
		doctree.KindBlockQuote,
		doctree.KindTable,
		doctree.KindCodeBlock,
		doctree.KindHorizontalRule,
	}
	if got := kinds(doc.Blocks); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected blocks %v, got %v", want, got)
	}

	h := doc.Blocks[0].(*doctree.Heading)
	if h.Level != 1 || doctree.PlainText(h.Runs) != "T" {
		t.Errorf("unexpected heading %+v", h)
	}

	p := doc.Blocks[1].(*doctree.Paragraph)
	var bold *doctree.Run
	for i := range p.Runs {
		if p.Runs[i].Style.Bold {
			bold = &p.Runs[i]
		}
	}
	if bold == nil || bold.Text != "bold" {
		t.Errorf("expected a bold run %q, got %+v", "bold", p.Runs)
	}

	list := doc.Blocks[2].(*doctree.List)
	if list.ListKind != doctree.ListCheckbox || len(list.Items) != 1 {
		t.Fatalf("expected checkbox list with 1 item, got %+v", list)
	}
	if c := list.Items[0].Checked; c == nil || !*c {
		t.Errorf("expected checked item")
	}
	if got := doctree.ItemText(list.Items[0]); got != "done" {
		t.Errorf("expected item text %q, got %q", "done", got)
	}

	quote := doc.Blocks[3].(*doctree.BlockQuote)
	if len(quote.Blocks) != 1 || doctree.BlockText(quote) != "quote" {
		t.Errorf("unexpected quote %+v", quote)
	}

	table := doc.Blocks[4].(*doctree.Table)
	if table.ColumnCount() != 2 || len(table.DataRows()) != 1 {
		t.Errorf("expected 2 columns and 1 data row, got %d/%d", table.ColumnCount(), len(table.DataRows()))
	}
	if got := doctree.CellText(table.DataRows()[0].Cells[1]); got != "2" {
		t.Errorf("expected cell text %q, got %q", "2", got)
	}

	code := doc.Blocks[5].(*doctree.CodeBlock)
	if code.Code != "code" {
		t.Errorf("expected code %q, got %q", "code", code.Code)
	}
}

func TestMarkdown_SevenHashesClampToSix(t *testing.T) {
	doc := Markdown("####### X\n", Options{})
	if len(doc.Blocks) != 1 {
		t.Fatalf("expected 1 block, got %v", kinds(doc.Blocks))
	}
	h, ok := doc.Blocks[0].(*doctree.Heading)
	if !ok {
		t.Fatalf("expected heading, got %s", doc.Blocks[0].Kind())
	}
	if h.Level != 6 || doctree.PlainText(h.Runs) != "X" {
		t.Errorf("unexpected heading %+v", h)
	}
}

func TestMarkdown_MissingImageFails(t *testing.T) {
	cache := imagecache.New(imagecache.Config{BaseDir: t.TempDir()})
	defer cache.Close()

	doc := Markdown("![a diagram](missing.png)\n", Options{Images: cache})
	if len(doc.Blocks) != 1 {
		t.Fatalf("expected 1 block, got %v", kinds(doc.Blocks))
	}
	img := doc.Blocks[0].(*doctree.Image)
	if img.Width != FallbackWidth || img.Height != FallbackHeight {
		t.Errorf("expected fallback size, got %dx%d", img.Width, img.Height)
	}

	deadline := time.Now().Add(2 * time.Second)
	for cache.Pending() > 0 && time.Now().Before(deadline) {
		cache.Poll()
		time.Sleep(5 * time.Millisecond)
	}
	asset, ok := cache.Get(img.Key)
	if !ok {
		t.Fatalf("no cache entry for %q", img.Key)
	}
	if asset.Status != imagecache.StatusFailed {
		t.Errorf("expected failed asset, got %s", asset.Status)
	}

	// A rebuild after resolution still uses the fallback size for failures.
	img = Markdown("![a diagram](missing.png)\n", Options{Images: cache}).Blocks[0].(*doctree.Image)
	if img.Width != FallbackWidth || img.Status != string(imagecache.StatusFailed) {
		t.Errorf("unexpected rebuilt image %+v", img)
	}
}

func TestMarkdown_ImageSplitsParagraph(t *testing.T) {
	doc := Markdown("before ![i](x.png) after\n", Options{})

	want := []doctree.BlockKind{doctree.KindParagraph, doctree.KindImage, doctree.KindParagraph}
	if got := kinds(doc.Blocks); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got := doctree.BlockText(doc.Blocks[0]); got != "before " {
		t.Errorf("unexpected leading text %q", got)
	}
	if got := doctree.BlockText(doc.Blocks[2]); got != " after" {
		t.Errorf("unexpected trailing text %q", got)
	}
}

func TestMarkdown_QuoteFlattensContent(t *testing.T) {
	doc := Markdown("> first\n>\n> - item\n>\n> ```\n> x\n> ```\n", Options{})

	if len(doc.Blocks) != 1 {
		t.Fatalf("expected 1 block, got %v", kinds(doc.Blocks))
	}
	quote := doc.Blocks[0].(*doctree.BlockQuote)
	if len(quote.Blocks) != 1 {
		t.Fatalf("expected a single synthesized paragraph, got %v", kinds(quote.Blocks))
	}
	if got := doctree.BlockText(quote); got != "first\n- item\nx" {
		t.Errorf("unexpected quote text %q", got)
	}
}

func TestMarkdown_SoftBreakRun(t *testing.T) {
	doc := Markdown("one\ntwo\n", Options{})
	p := doc.Blocks[0].(*doctree.Paragraph)
	if got := doctree.PlainText(p.Runs); got != "one\ntwo" {
		t.Errorf("expected %q, got %q", "one\ntwo", got)
	}
}

func TestMarkdown_PageBreak(t *testing.T) {
	doc := Markdown("a\n\n<!-- pagebreak -->\n\nb\n", Options{})
	want := []doctree.BlockKind{doctree.KindParagraph, doctree.KindPageBreak, doctree.KindParagraph}
	if got := kinds(doc.Blocks); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestMarkdown_FallbackParagraph(t *testing.T) {
	src := "<!-- just a note -->\n"
	doc := Markdown(src, Options{})
	if len(doc.Blocks) != 1 {
		t.Fatalf("expected fallback paragraph, got %v", kinds(doc.Blocks))
	}
	if got := doctree.BlockText(doc.Blocks[0]); got != src {
		t.Errorf("expected source text, got %q", got)
	}

	if empty := Markdown("  \n\n", Options{}); len(empty.Blocks) != 0 {
		t.Errorf("expected blank source to produce no blocks, got %v", kinds(empty.Blocks))
	}
}

func TestMarkdown_Footnotes(t *testing.T) {
	doc := Markdown("Claim[^src].\n\n[^src]: Secret source.\n", Options{})

	if len(doc.Blocks) != 1 {
		t.Fatalf("expected 1 block, got %v", kinds(doc.Blocks))
	}
	if got := doctree.BlockText(doc.Blocks[0]); got != "Claim[src]." {
		t.Errorf("unexpected paragraph text %q", got)
	}
}

func TestOutline(t *testing.T) {
	entries := Outline("# A\n## B\n# C", Options{})

	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	var levels []int
	var titles []string
	for _, e := range entries {
		levels = append(levels, e.Level)
		titles = append(titles, e.Title)
	}
	if !reflect.DeepEqual(levels, []int{1, 2, 1}) {
		t.Errorf("expected levels [1 2 1], got %v", levels)
	}
	if !reflect.DeepEqual(titles, []string{"A", "B", "C"}) {
		t.Errorf("expected titles [A B C], got %v", titles)
	}
}

func TestHeadings_MatchBlockIDs(t *testing.T) {
	doc := Markdown("# One *styled*\n\ntext\n\n### Three\n", Options{})
	entries := Headings(doc)

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Title != "One styled" {
		t.Errorf("expected styling to be discarded, got %q", entries[0].Title)
	}
	if entries[0].BlockID != doc.Blocks[0].BlockID() || entries[1].BlockID != doc.Blocks[2].BlockID() {
		t.Errorf("entries do not point at heading blocks: %+v", entries)
	}
	if entries[1].Level != 3 {
		t.Errorf("expected sibling level 3, got %d", entries[1].Level)
	}
}
