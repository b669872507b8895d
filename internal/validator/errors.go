package validator

import (
	"errors"
	"fmt"
)

// Kind categorizes a validation failure.
type Kind string

const (
	// StructuralMismatch: a property or navigation link is present when it
	// should be absent, or the reverse, or a value has the wrong JSON shape.
	StructuralMismatch Kind = "StructuralMismatch"

	// LeakMismatch: data of a relation the query did not expand is inlined.
	LeakMismatch Kind = "LeakMismatch"

	// CountMismatch: an inline count is missing, unexpected or disagrees
	// with the oracle.
	CountMismatch Kind = "CountMismatch"

	// PaginationMismatch: page length or next link presence disagrees with
	// the top/skip arithmetic.
	PaginationMismatch Kind = "PaginationMismatch"

	// SetMismatch: a result collection does not hold exactly the expected
	// entities. Reported by the entity set comparator, not by Validator.
	SetMismatch Kind = "SetMismatch"
)

// MismatchError is returned by the first failing assertion of a check.
type MismatchError struct {
	Kind Kind

	// Where describes the request or expansion being validated, for example
	// "/Things?$top=2 > Things(1)/Datastreams($count=true)".
	Where string

	// Subject is the offending property, relation or metadata key.
	Subject string

	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: %s in %s: expected %s, got %s", e.Kind, e.Subject, e.Where, e.Expected, e.Actual)
}

// KindOf returns the mismatch kind carried by err, or "" when err is not a
// MismatchError.
func KindOf(err error) Kind {
	var me *MismatchError
	if errors.As(err, &me) {
		return me.Kind
	}
	return ""
}
