package common

import (
	"encoding/json"
	"fmt"
)

// Outcome tags what happened to a single CSV row.
type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeCorrected Outcome = "corrected"
	OutcomeRejected  Outcome = "rejected"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
)

// ValidationError represents a single validation error for a record
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// RowResult is the outcome of building one row into a T. Record is only
// meaningful when the outcome is accepted or corrected.
type RowResult[T any] struct {
	Row     int
	Outcome Outcome
	Record  T
	Error   *ValidationError
	Notes   []string
}

// Accept returns an accepted result, or a corrected one when notes are present.
func Accept[T any](row int, record T, notes []string) RowResult[T] {
	outcome := OutcomeAccepted
	if len(notes) > 0 {
		outcome = OutcomeCorrected
	}
	return RowResult[T]{Row: row, Outcome: outcome, Record: record, Notes: notes}
}

// Reject returns a rejected result for row.
func Reject[T any](row int, field, message string) RowResult[T] {
	return RowResult[T]{
		Row:     row,
		Outcome: OutcomeRejected,
		Error:   &ValidationError{Field: field, Message: message},
	}
}

// OK reports whether the row produced a record.
func (r RowResult[T]) OK() bool {
	return r.Outcome == OutcomeAccepted || r.Outcome == OutcomeCorrected
}

// Report drops the record so the result can be stored with an import run.
func (r RowResult[T]) Report() RowReport {
	return RowReport{Row: r.Row, Outcome: r.Outcome, Error: r.Error, Notes: r.Notes}
}

// RowReport is the storable form of a RowResult.
type RowReport struct {
	Row     int              `json:"row"`
	Outcome Outcome          `json:"outcome"`
	Error   *ValidationError `json:"error,omitempty"`
	Notes   []string         `json:"notes,omitempty"`
}

// ReportsToJSON converts row reports to a JSON string, omitting plain accepted rows.
func ReportsToJSON(reports []RowReport) string {
	var notable []RowReport
	for _, r := range reports {
		if r.Outcome != OutcomeAccepted {
			notable = append(notable, r)
		}
	}
	if len(notable) == 0 {
		return ""
	}
	data, _ := json.Marshal(notable)
	return string(data)
}
