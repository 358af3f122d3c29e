// Package parsers tokenizes loosely structured CSV text for the import pipeline.
//
// Tokenize drops blank lines, tolerates tab-separated pastes and splits each
// remaining line on commas outside double quotes:
//
//	table, err := parsers.Tokenize(text)
//	if err != nil {
//	    return err // *StructureError when no data rows remain
//	}
//
// A Schema maps the header onto named columns. Files whose header names none
// of the schema's columns are read positionally, in schema order:
//
//	idx, err := beneficiarySchema.Index(table.Header)
//	for _, row := range table.Rows {
//	    first := idx.Get(row, "first_name")
//	}
package parsers
