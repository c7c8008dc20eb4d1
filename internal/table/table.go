// Package table reads the tabular extracts shipped inside point-of-sale archives.
//
// Every supported format is flattened to the same shape: an ordered list of column
// names and an ordered list of rows of cell text. Typed interpretation of the cells
// is left to the caller.
package table

import "strings"

type Table struct {
	Columns []string
	Rows    [][]string
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of the first column whose name matches one of
// names, ignoring case and surrounding whitespace, or -1.
func (t *Table) ColumnIndex(names ...string) int {
	if t == nil {
		return -1
	}
	for _, name := range names {
		want := normalizeHeader(name)
		for i, column := range t.Columns {
			if normalizeHeader(column) == want {
				return i
			}
		}
	}
	return -1
}

// At returns the trimmed cell at row/col, or "" when either index is out of range.
func (t *Table) At(row, col int) string {
	if t == nil || row < 0 || row >= len(t.Rows) {
		return ""
	}
	return cellValue(t.Rows[row], col)
}

// Value returns the cell in the named column of row.
func (t *Table) Value(row int, name string) string {
	return t.At(row, t.ColumnIndex(name))
}

func normalizeHeader(header string) string {
	return strings.ToLower(strings.TrimSpace(header))
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
