package export

import "strings"

// Table is an ordered set of named columns with string cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// NewTable builds an empty table with the given header.
func NewTable(columns ...string) Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return Table{Columns: cols, Rows: [][]string{}}
}

// Append adds a row, padding or truncating it to the column count.
func (t *Table) Append(cells ...string) {
	row := make([]string, len(t.Columns))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
}

// Len returns the number of data rows.
func (t Table) Len() int {
	return len(t.Rows)
}

// Empty reports whether the table has no data rows.
func (t Table) Empty() bool {
	return len(t.Rows) == 0
}

// Index returns the position of the named column or -1.
func (t Table) Index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Value returns the cell at row for the named column, or "" when absent.
func (t Table) Value(row int, column string) string {
	idx := t.Index(column)
	if idx < 0 || row < 0 || row >= len(t.Rows) {
		return ""
	}
	return t.Rows[row][idx]
}

// Column returns every value of the named column in row order.
func (t Table) Column(column string) []string {
	idx := t.Index(column)
	if idx < 0 {
		return nil
	}
	values := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values
}

// DropDuplicates removes rows identical to an earlier row, keeping first occurrences.
func (t Table) DropDuplicates() Table {
	out := NewTable(t.Columns...)
	seen := make(map[string]struct{}, len(t.Rows))
	for _, row := range t.Rows {
		key := strings.Join(row, "\x1f")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out.Append(row...)
	}
	return out
}
