package events

import (
	"fmt"
	"strings"
	"time"

	"nonprofit-records/common"
	"nonprofit-records/parsers"
)

var Schema = parsers.Schema{
	{Key: "name", Aliases: []string{"Name", "Event Name"}},
	{Key: "description", Aliases: []string{"Description"}, Optional: true},
	{Key: "date", Aliases: []string{"Date"}},
	{Key: "start_time", Aliases: []string{"Start Time"}},
	{Key: "end_time", Aliases: []string{"End Time"}},
	{Key: "location", Aliases: []string{"Location"}, Optional: true},
}

var clockLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM"}

// Build turns one tokenized row into an event. Times are read as Local and
// stored in UTC.
func Build(idx parsers.ColumnIndex, row parsers.Row) common.RowResult[Event] {
	line := row.Line
	get := func(key string) string { return idx.Get(row, key) }

	name, date := get("name"), get("date")
	start, end := get("start_time"), get("end_time")
	if name == "" || date == "" || start == "" || end == "" {
		return common.Reject[Event](line, "required", "name, date, start time and end time are required")
	}

	day, err := common.ParseDate(date)
	if err != nil {
		return common.Reject[Event](line, "date", fmt.Sprintf("invalid date %q", date))
	}
	startDate, err := atClock(day, start)
	if err != nil {
		return common.Reject[Event](line, "start_time", err.Error())
	}
	endDate, err := atClock(day, end)
	if err != nil {
		return common.Reject[Event](line, "end_time", err.Error())
	}

	var notes []string
	description := get("description")
	if runes := []rune(description); len(runes) > MaxDescription {
		description = string(runes[:MaxDescription])
		notes = append(notes, fmt.Sprintf("description truncated to %d characters", MaxDescription))
	}

	return common.Accept(line, Event{
		Name:        name,
		Description: description,
		StartDate:   startDate,
		EndDate:     endDate,
		Location:    get("location"),
	}, notes)
}

// atClock applies an HH:MM local time to day and returns the UTC instant.
func atClock(day time.Time, clock string) (time.Time, error) {
	for _, layout := range clockLayouts {
		t, err := time.Parse(layout, strings.ToUpper(clock))
		if err == nil {
			return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, Local).UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", clock)
}

type eventKey struct {
	name       string
	start, end int64
}

func keyOf(e Event) eventKey {
	return eventKey{
		name:  strings.ToLower(strings.TrimSpace(e.Name)),
		start: e.StartDate.UnixNano(),
		end:   e.EndDate.UnixNano(),
	}
}

// Deduper tracks (name, start, end) tuples. The name compares trimmed and
// case-insensitively; both times must match exactly.
type Deduper struct {
	keys []eventKey
}

func NewDeduper(existing []Event) *Deduper {
	d := &Deduper{keys: make([]eventKey, 0, len(existing))}
	for _, e := range existing {
		d.keys = append(d.keys, keyOf(e))
	}
	return d
}

// Claim reports whether e is new and, if so, registers it.
func (d *Deduper) Claim(e Event) bool {
	k := keyOf(e)
	for _, seen := range d.keys {
		if seen == k {
			return false
		}
	}
	d.keys = append(d.keys, k)
	return true
}
