package exports

import "strings"

const rowSeparator = "\r\n"

// escapeField quotes v and doubles any quote inside it. Every exported value
// is quoted, blanks included.
func escapeField(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

// joinRow escapes and joins one row's values.
func joinRow(values []string) string {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = escapeField(v)
	}
	return strings.Join(escaped, ",")
}

// document is an exported CSV body under construction.
type document struct {
	rows []string
}

func (d *document) add(values ...string) {
	d.rows = append(d.rows, joinRow(values))
}

// blank adds an empty separator row.
func (d *document) blank() {
	d.rows = append(d.rows, "")
}

func (d *document) String() string {
	return strings.Join(d.rows, rowSeparator)
}

func boolCell(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}
