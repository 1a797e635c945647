// Package export serializes document trees. Exporters only read the tree.
package export

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docview/internal/doctree"
)

var ErrUnknownFormat = errors.New("unsupported export format")

// Exporter writes a document in one output format.
type Exporter interface {
	Export(w io.Writer, doc *doctree.Document) error
	ContentType() string
	Extension() string
}

var formats = map[string]func() Exporter{
	"text":     func() Exporter { return &TextExporter{} },
	"txt":      func() Exporter { return &TextExporter{} },
	"markdown": func() Exporter { return &MarkdownExporter{} },
	"md":       func() Exporter { return &MarkdownExporter{} },
	"html":     func() Exporter { return &HTMLExporter{} },
	"htm":      func() Exporter { return &HTMLExporter{} },
	"csv":      func() Exporter { return &CSVExporter{} },
}

func formatKey(name string) string {
	return strings.ToLower(strings.TrimPrefix(name, "."))
}

// ForFormat returns the exporter registered for a format name.
func ForFormat(name string) (Exporter, error) {
	newExporter, ok := formats[formatKey(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}
	return newExporter(), nil
}

// IsSupportedFormat checks if a format name is supported.
func IsSupportedFormat(name string) bool {
	_, ok := formats[formatKey(name)]
	return ok
}

// errWriter remembers the first write error so serializers can write
// unconditionally and check once.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) WriteString(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = io.WriteString(ew.w, s)
}
