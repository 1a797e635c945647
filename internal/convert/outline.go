package convert

import "github.com/dgallion1/docview/internal/doctree"

// OutlineEntry is one heading of a document outline.
type OutlineEntry struct {
	BlockID doctree.BlockID `json:"block_id"`
	Level   int             `json:"level"`
	Title   string          `json:"title"`
	Anchor  string          `json:"anchor,omitempty"`
}

// Outline converts source and lists its headings in document order.
// Images are not resolved.
func Outline(source string, opts Options) []OutlineEntry {
	opts.Images = nil
	return Headings(Markdown(source, opts))
}

// Headings projects the top-level headings of doc into a flat outline.
// Levels are not nested: a level 3 heading after a level 1 is a sibling.
func Headings(doc *doctree.Document) []OutlineEntry {
	entries := []OutlineEntry{}
	for _, b := range doc.Blocks {
		h, ok := b.(*doctree.Heading)
		if !ok {
			continue
		}
		entries = append(entries, OutlineEntry{
			BlockID: h.ID,
			Level:   h.Level,
			Title:   doctree.PlainText(h.Runs),
			Anchor:  h.Anchor,
		})
	}
	return entries
}
