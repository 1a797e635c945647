package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dgallion1/docview/internal/doctree"
)

// CSVExporter writes every table of the document, nested ones included.
// Consecutive tables are separated by an empty record.
type CSVExporter struct{}

func (e *CSVExporter) ContentType() string { return "text/csv; charset=utf-8" }
func (e *CSVExporter) Extension() string   { return ".csv" }

func (e *CSVExporter) Export(w io.Writer, doc *doctree.Document) error {
	writer := csv.NewWriter(w)

	var tables []*doctree.Table
	doctree.Walk(doc.Blocks, func(b doctree.Block) {
		if t, ok := b.(*doctree.Table); ok {
			tables = append(tables, t)
		}
	})

	for i, t := range tables {
		if i > 0 {
			if err := writer.Write(nil); err != nil {
				return fmt.Errorf("write csv: %w", err)
			}
		}
		for _, row := range t.Rows {
			record := make([]string, len(row.Cells))
			for j, c := range row.Cells {
				record[j] = doctree.CellText(c)
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("write csv: %w", err)
			}
		}
	}

	writer.Flush()
	return writer.Error()
}
