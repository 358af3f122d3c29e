package common

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// SentinelDate is substituted for a blank birthdate.
var SentinelDate = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// Email validation regex (RFC 5322 style, quoted local parts and IP literals allowed)
var emailRegex = regexp.MustCompile(`(?i)^(([^<>()\[\]\\.,;:\s@"]+(\.[^<>()\[\]\\.,;:\s@"]+)*)|(".+"))@((\[[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\])|(([a-z\-0-9]+\.)+[a-z]{2,}))$`)

var digitsRegex = regexp.MustCompile(`^[0-9]+$`)

// ValidateEmail checks if email format is valid
func ValidateEmail(email string) bool {
	if email == "" {
		return false
	}
	return emailRegex.MatchString(email)
}

// Capitalize title-cases every space- and hyphen-separated part of a name:
// "mary-jane doe" becomes "Mary-Jane Doe".
func Capitalize(s string) string {
	words := strings.Split(s, " ")
	for i, word := range words {
		parts := strings.Split(word, "-")
		for j, part := range parts {
			parts[j] = capitalizePart(part)
		}
		words[i] = strings.Join(parts, "-")
	}
	return strings.Join(words, " ")
}

func capitalizePart(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// IsValidContact reports whether s looks like a local mobile number: 11 characters starting with "09".
func IsValidContact(s string) bool {
	return len([]rune(s)) == 11 && strings.HasPrefix(s, "09")
}

// NormalizeContact restores the leading zero dropped by spreadsheet tools,
// turning "9123456789" into "09123456789". Other values are returned unchanged.
func NormalizeContact(s string) string {
	if len(s) == 10 && strings.HasPrefix(s, "9") && digitsRegex.MatchString(s) {
		return "0" + s
	}
	return s
}

// IsValidSex accepts "m" or "f" in any case.
func IsValidSex(s string) bool {
	switch strings.ToLower(s) {
	case "m", "f":
		return true
	}
	return false
}

var gradeAliases = map[string]string{
	"nursery":      "N",
	"kindergarten": "K",
}

// NormalizeGradeLevel maps a grade level onto "1".."12", "N" or "K".
// The second return value is false when s cannot be normalized.
func NormalizeGradeLevel(s string) (string, bool) {
	g := strings.ToLower(strings.TrimSpace(s))
	if alias, ok := gradeAliases[g]; ok {
		return alias, true
	}
	switch g {
	case "n", "k":
		return strings.ToUpper(g), true
	}
	n, err := strconv.Atoi(g)
	if err != nil || n < 1 || n > 12 || strconv.Itoa(n) != g {
		return "", false
	}
	return g, true
}

// IsNumeric reports whether s consists only of digits.
func IsNumeric(s string) bool {
	return digitsRegex.MatchString(s)
}

// ParseNumber parses a numeric identifier. NaN and infinities are rejected.
func ParseNumber(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number: %q", s)
	}
	return f, nil
}

// FormatNumber renders a parsed identifier without a trailing ".0".
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Date layouts accepted on import, tried in order. Dates are interpreted as UTC.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"1-2-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
}

// ParseDate parses a date in any of the accepted layouts.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// FormatDate renders t as mm/dd/yyyy in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("01/02/2006")
}

// FormatClock renders t as 24-hour HH:mm in loc.
func FormatClock(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("15:04")
}
