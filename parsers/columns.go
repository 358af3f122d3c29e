package parsers

import (
	"fmt"
	"strings"
)

// Column is one named import column. Aliases are the header spellings that map
// onto it, compared case-insensitively after trimming.
type Column struct {
	Key     string
	Aliases []string
	// Optional columns may be absent from a named header.
	Optional bool
}

// Schema is the ordered column list of an entity. The order is the positional
// layout used when a file's header names none of the columns.
type Schema []Column

// MissingColumnsError lists required columns absent from a named header.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("CSV is missing required column(s): %s", strings.Join(e.Columns, ", "))
}

// ColumnIndex maps column keys to field positions.
type ColumnIndex map[string]int

// Index builds the column index for header. A header that matches no column
// falls back to positional order; a partially matching header must name every
// required column.
func (s Schema) Index(header []string) (ColumnIndex, error) {
	lookup := make(map[string]string)
	for _, col := range s {
		lookup[normalizeHeader(col.Key)] = col.Key
		for _, alias := range col.Aliases {
			lookup[normalizeHeader(alias)] = col.Key
		}
	}

	idx := make(ColumnIndex)
	for pos, cell := range header {
		key, ok := lookup[normalizeHeader(cell)]
		if !ok {
			continue
		}
		if _, seen := idx[key]; !seen {
			idx[key] = pos
		}
	}

	if len(idx) == 0 {
		return s.Positional(), nil
	}

	var missing []string
	for _, col := range s {
		if _, ok := idx[col.Key]; !ok && !col.Optional {
			missing = append(missing, col.Key)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}
	return idx, nil
}

// Positional returns the index that assigns columns by schema order.
func (s Schema) Positional() ColumnIndex {
	idx := make(ColumnIndex, len(s))
	for pos, col := range s {
		idx[col.Key] = pos
	}
	return idx
}

// Get returns the trimmed value of column key in row, or "" when the row is
// too short or the column is absent.
func (idx ColumnIndex) Get(row Row, key string) string {
	pos, ok := idx[key]
	if !ok || pos >= len(row.Fields) {
		return ""
	}
	return strings.TrimSpace(row.Fields[pos])
}

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, `"`)
	return strings.Join(strings.Fields(s), " ")
}
