package common

import "fmt"

// Collection names an entity collection that can be imported or exported.
type Collection string

const (
	Beneficiaries Collection = "beneficiaries"
	Volunteers    Collection = "volunteers"
	Events        Collection = "events"
)

// ParseCollection validates a collection name from a path or flag.
func ParseCollection(s string) (Collection, error) {
	switch c := Collection(s); c {
	case Beneficiaries, Volunteers, Events:
		return c, nil
	}
	return "", NewError(CodeInvalidArgument, fmt.Sprintf("Unknown collection %q.", s))
}
