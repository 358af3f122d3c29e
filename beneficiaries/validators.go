package beneficiaries

import (
	"fmt"
	"strings"

	"nonprofit-records/common"
	"nonprofit-records/parsers"
)

// Schema is the beneficiary import layout. Export headers are accepted as aliases
// so an exported file imports back.
var Schema = parsers.Schema{
	{Key: "id", Aliases: []string{"Child Number (ID)", "Child Number", "accredited_id"}},
	{Key: "first_name", Aliases: []string{"First Name"}},
	{Key: "last_name", Aliases: []string{"Last Name"}},
	{Key: "sex", Aliases: []string{"Sex"}, Optional: true},
	{Key: "birthdate", Aliases: []string{"Birthdate", "Birth Date"}, Optional: true},
	{Key: "grade_level", Aliases: []string{"Grade Level", "Grade"}, Optional: true},
	{Key: "address", Aliases: []string{"Address"}, Optional: true},
	{Key: "cluster", Aliases: []string{"Cluster"}, Optional: true},
	guardianColumn(1, "name", "Name"),
	guardianColumn(1, "relation", "Relation"),
	guardianColumn(1, "contact", "Contact Number"),
	guardianColumn(1, "email", "Email"),
	guardianColumn(2, "name", "Name"),
	guardianColumn(2, "relation", "Relation"),
	guardianColumn(2, "contact", "Contact Number"),
	guardianColumn(2, "email", "Email"),
	guardianColumn(3, "name", "Name"),
	guardianColumn(3, "relation", "Relation"),
	guardianColumn(3, "contact", "Contact Number"),
	guardianColumn(3, "email", "Email"),
}

func guardianKey(n int, field string) string {
	return fmt.Sprintf("guardian%d_%s", n, field)
}

func guardianColumn(n int, field, label string) parsers.Column {
	return parsers.Column{
		Key:      guardianKey(n, field),
		Aliases:  []string{fmt.Sprintf("%s (Guardian %d)", label, n)},
		Optional: true,
	}
}

// Build turns one tokenized row into a beneficiary. Checks run in a fixed
// order and stop at the first rejection.
func Build(idx parsers.ColumnIndex, row parsers.Row) common.RowResult[Beneficiary] {
	line := row.Line
	get := func(key string) string { return idx.Get(row, key) }

	var guardians []Guardian
	for n := 1; n <= MaxGuardians; n++ {
		g := Guardian{
			Name:          get(guardianKey(n, "name")),
			Relation:      get(guardianKey(n, "relation")),
			ContactNumber: get(guardianKey(n, "contact")),
			Email:         get(guardianKey(n, "email")),
		}
		if g == (Guardian{}) {
			continue
		}
		guardians = append(guardians, g)
	}

	var accreditedID *float64
	if raw := get("id"); raw != "" {
		n, err := common.ParseNumber(raw)
		if err != nil {
			return common.Reject[Beneficiary](line, "id", fmt.Sprintf("child number %q is not a number", raw))
		}
		accreditedID = &n
	}

	firstName, lastName := get("first_name"), get("last_name")
	if firstName == "" || lastName == "" {
		return common.Reject[Beneficiary](line, "name", "first and last name are required")
	}
	firstName, lastName = common.Capitalize(firstName), common.Capitalize(lastName)

	var notes []string
	if len(guardians) == 0 {
		guardians = []Guardian{{}}
		notes = append(notes, "no guardian given; blank guardian added")
	}

	birthdate := common.SentinelDate
	if raw := get("birthdate"); raw == "" {
		notes = append(notes, "birthdate blank; defaulted to 1900-01-01")
	} else {
		t, err := common.ParseDate(raw)
		if err != nil {
			return common.Reject[Beneficiary](line, "birthdate", fmt.Sprintf("invalid birthdate %q", raw))
		}
		birthdate = t
	}

	sex := get("sex")
	if sex != "" {
		if !common.IsValidSex(sex) {
			return common.Reject[Beneficiary](line, "sex", fmt.Sprintf("invalid sex %q, use M or F", sex))
		}
		sex = strings.ToUpper(sex[:1])
	}

	grade := get("grade_level")
	if grade != "" {
		normalized, ok := common.NormalizeGradeLevel(grade)
		if !ok {
			return common.Reject[Beneficiary](line, "grade_level", fmt.Sprintf("invalid grade level %q", grade))
		}
		grade = normalized
	}

	for i := range guardians {
		contact := common.NormalizeContact(guardians[i].ContactNumber)
		if contact != "" && !common.IsValidContact(contact) {
			return common.Reject[Beneficiary](line, guardianKey(i+1, "contact"),
				fmt.Sprintf("invalid contact number %q", guardians[i].ContactNumber))
		}
		guardians[i].ContactNumber = contact

		if email := guardians[i].Email; email != "" && !common.ValidateEmail(email) {
			guardians[i].Email = ""
			notes = append(notes, fmt.Sprintf("guardian %d email %q invalid; cleared", i+1, email))
		}
	}

	return common.Accept(line, Beneficiary{
		AccreditedID: accreditedID,
		FirstName:    firstName,
		LastName:     lastName,
		Sex:          sex,
		Birthdate:    birthdate,
		GradeLevel:   grade,
		Address:      get("address"),
		Cluster:      get("cluster"),
		Guardians:    guardians,
	}, notes)
}

// NameKey is the identity of a waitlisted beneficiary.
func NameKey(firstName, lastName string) string {
	return strings.ToLower(firstName) + "_" + strings.ToLower(lastName)
}

// Deduper classifies built beneficiaries against existing ones and those
// already accepted in the same import.
type Deduper struct {
	ids   map[float64]bool
	names map[string]bool
}

// NewDeduper indexes the live beneficiaries.
func NewDeduper(existing []Beneficiary) *Deduper {
	d := &Deduper{
		ids:   make(map[float64]bool),
		names: make(map[string]bool),
	}
	for _, b := range existing {
		if b.AccreditedID != nil {
			d.ids[*b.AccreditedID] = true
		}
		d.names[NameKey(b.FirstName, b.LastName)] = true
	}
	return d
}

// Claim reports whether b is new and, if so, registers it so later rows
// with the same identity count as duplicates.
func (d *Deduper) Claim(b Beneficiary) bool {
	if b.AccreditedID != nil {
		if d.ids[*b.AccreditedID] {
			return false
		}
		d.ids[*b.AccreditedID] = true
		return true
	}

	key := NameKey(b.FirstName, b.LastName)
	if d.names[key] {
		return false
	}
	d.names[key] = true
	return true
}
