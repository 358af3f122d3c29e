package volunteers

import (
	"fmt"
	"strings"

	"nonprofit-records/common"
	"nonprofit-records/parsers"
)

// Schema is the volunteer import layout.
var Schema = parsers.Schema{
	{Key: "email", Aliases: []string{"Email", "Email Address"}},
	{Key: "first_name", Aliases: []string{"First Name"}},
	{Key: "last_name", Aliases: []string{"Last Name"}},
	{Key: "sex", Aliases: []string{"Sex"}, Optional: true},
	{Key: "birthdate", Aliases: []string{"Birthdate", "Birth Date"}, Optional: true},
	{Key: "contact_number", Aliases: []string{"Contact Number"}, Optional: true},
	{Key: "address", Aliases: []string{"Address"}, Optional: true},
	{Key: "is_admin", Aliases: []string{"Admin", "Is Admin"}},
}

// Build turns one tokenized row into a volunteer, rejecting at the first failed check.
func Build(idx parsers.ColumnIndex, row parsers.Row) common.RowResult[Volunteer] {
	line := row.Line
	get := func(key string) string { return idx.Get(row, key) }

	email := get("email")
	firstName, lastName := get("first_name"), get("last_name")
	adminFlag := get("is_admin")

	if email == "" || firstName == "" || lastName == "" || adminFlag == "" {
		return common.Reject[Volunteer](line, "required", "email, first name, last name and admin flag are required")
	}
	if !common.ValidateEmail(email) {
		return common.Reject[Volunteer](line, "email", fmt.Sprintf("invalid email %q", email))
	}
	if common.IsNumeric(firstName) || common.IsNumeric(lastName) {
		return common.Reject[Volunteer](line, "name", "names cannot be numbers")
	}

	var notes []string
	birthdate := common.SentinelDate
	if raw := get("birthdate"); raw == "" {
		notes = append(notes, "birthdate blank; defaulted to 1900-01-01")
	} else {
		t, err := common.ParseDate(raw)
		if err != nil {
			return common.Reject[Volunteer](line, "birthdate", fmt.Sprintf("invalid birthdate %q", raw))
		}
		birthdate = t
	}

	sex := get("sex")
	if sex != "" {
		if !common.IsValidSex(sex) {
			return common.Reject[Volunteer](line, "sex", fmt.Sprintf("invalid sex %q, use M or F", sex))
		}
		sex = strings.ToUpper(sex)
	}

	contact := get("contact_number")
	if contact != "" && !common.IsValidContact(contact) {
		return common.Reject[Volunteer](line, "contact_number", fmt.Sprintf("invalid contact number %q", contact))
	}

	isAdmin := strings.EqualFold(adminFlag, "true")
	role := RoleVolunteer
	if isAdmin {
		role = RoleAdmin
	}

	return common.Accept(line, Volunteer{
		Email:         email,
		FirstName:     firstName,
		LastName:      lastName,
		Sex:           sex,
		Birthdate:     birthdate,
		Address:       get("address"),
		ContactNumber: contact,
		IsAdmin:       isAdmin,
		Role:          role,
	}, notes)
}

// Deduper tracks volunteer emails, case-insensitively
type Deduper struct {
	emails map[string]bool
}

// NewDeduper indexes the live volunteers' emails.
func NewDeduper(existing []Volunteer) *Deduper {
	d := &Deduper{emails: make(map[string]bool)}
	for _, v := range existing {
		d.emails[strings.ToLower(v.Email)] = true
	}
	return d
}

// Claim reports whether v's email is unused and, if so, reserves it.
func (d *Deduper) Claim(v Volunteer) bool {
	key := strings.ToLower(v.Email)
	if d.emails[key] {
		return false
	}
	d.emails[key] = true
	return true
}
