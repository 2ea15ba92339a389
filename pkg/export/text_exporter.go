package export

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"
)

// TextExporter renders tables as aligned plain text for terminals.
type TextExporter struct{}

// NewTextExporter constructs a text exporter.
func NewTextExporter() *TextExporter {
	return &TextExporter{}
}

// Render writes title, an underline and the aligned table. Empty tables render "(no rows)".
func (e *TextExporter) Render(data Table, title string) ([]byte, error) {
	buf := &bytes.Buffer{}
	if title != "" {
		fmt.Fprintln(buf, title)
		fmt.Fprintln(buf, strings.Repeat("=", len(title)))
	}
	if data.Empty() {
		fmt.Fprintln(buf, "(no rows)")
		return buf.Bytes(), nil
	}

	w := tabwriter.NewWriter(buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(data.Columns, "\t"))
	for _, row := range data.Rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("flush text table: %w", err)
	}
	return buf.Bytes(), nil
}
