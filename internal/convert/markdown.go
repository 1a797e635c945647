package convert

import (
	"strings"

	"github.com/dgallion1/docview/internal/doctree"
	"github.com/dgallion1/docview/internal/markup"
)

// Markdown parses source and builds its document tree. A non-blank source
// that produces no blocks at all is kept as a single plain paragraph.
func Markdown(source string, opts Options) *doctree.Document {
	doc := Build(markup.Parse([]byte(source)), opts)
	if len(doc.Blocks) == 0 && strings.TrimSpace(source) != "" {
		doc.Blocks = append(doc.Blocks, &doctree.Paragraph{
			ID:   1,
			Runs: []doctree.Run{{Text: source}},
		})
	}
	return doc
}
