package parsers

import (
	"encoding/csv"
	"strings"
)

// StructureError reports CSV text that cannot be imported at all.
type StructureError struct {
	Message string
}

func (e *StructureError) Error() string { return e.Message }

// ErrNoDataRows is returned when fewer than a header and one data row remain.
var ErrNoDataRows = &StructureError{Message: "CSV must contain at least one data row."}

// Table is tokenized CSV text: the header cells and the data rows after it.
type Table struct {
	Header []string
	Rows   []Row
}

// Row is one data line split into fields. Line is the 1-based line number
// among the surviving lines, counting the header as line 1.
type Row struct {
	Line   int
	Fields []string
}

// Tokenize splits raw CSV text into a header and data rows. Blank lines are
// dropped and tab-separated pastes are tolerated. It fails with ErrNoDataRows
// unless at least one data row follows the header.
func Tokenize(text string) (*Table, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\t", ",")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if isBlankLine(line) {
			continue
		}
		lines = append(lines, line)
	}

	if len(lines) < 2 {
		return nil, ErrNoDataRows
	}

	table := &Table{Header: SplitLine(lines[0])}
	for i, line := range lines[1:] {
		table.Rows = append(table.Rows, Row{Line: i + 2, Fields: SplitLine(line)})
	}
	return table, nil
}

// isBlankLine reports whether every comma-separated cell of line is blank.
func isBlankLine(line string) bool {
	for _, cell := range strings.Split(line, ",") {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// SplitLine splits one line on commas that are not inside double quotes and
// strips the surrounding quotes from each field.
func SplitLine(line string) []string {
	reader := csv.NewReader(strings.NewReader(line))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	fields, err := reader.Read()
	if err != nil {
		// Unbalanced quotes: fall back to a quote-aware scan.
		return splitQuoteAware(line)
	}
	for i, f := range fields {
		fields[i] = stripQuotes(f)
	}
	return fields
}

func splitQuoteAware(line string) []string {
	var fields []string
	var b strings.Builder
	inQuotes := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			b.WriteRune(r)
		case r == ',' && !inQuotes:
			fields = append(fields, stripQuotes(b.String()))
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	return append(fields, stripQuotes(b.String()))
}

func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = s[1 : len(s)-1]
	}
	return s
}
