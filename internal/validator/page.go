package validator

import (
	"strconv"

	"github.com/roach88/staconform/internal/jsondoc"
	"github.com/roach88/staconform/internal/oracle"
	"github.com/roach88/staconform/internal/query"
)

// pageKeys names the inline count and next link keys of one collection:
// @iot.count and @iot.nextLink at the top level, Rel@iot.count and
// Rel@iot.nextLink on a parent entity.
type pageKeys struct {
	count    string
	nextLink string
}

// checkPage validates the inline count and page length of a collection
// whose expected size is expected. Checks needing the expected size are
// skipped when it is Unknown.
func (v *Validator) checkPage(holder jsondoc.Object, members jsondoc.Array, exp *query.Expand, expected int, keys pageKeys, where string) error {
	q := exp.Query
	raw, hasCount := holder.Get(keys.count)

	switch {
	case q.Count == query.CountTrue && !hasCount:
		return &MismatchError{Kind: CountMismatch, Where: where, Subject: keys.count, Expected: "present", Actual: "absent"}
	case q.Count == query.CountFalse && hasCount:
		return &MismatchError{Kind: CountMismatch, Where: where, Subject: keys.count, Expected: "absent", Actual: "present"}
	}

	if hasCount {
		n, ok := raw.(jsondoc.Number)
		declared, isInt := n.Int64()
		if !ok || !isInt {
			return &MismatchError{Kind: CountMismatch, Where: where, Subject: keys.count, Expected: "integer", Actual: jsondoc.KindOf(raw)}
		}
		if expected != oracle.Unknown && declared != int64(expected) {
			return &MismatchError{
				Kind:     CountMismatch,
				Where:    where,
				Subject:  keys.count,
				Expected: strconv.Itoa(expected),
				Actual:   strconv.FormatInt(declared, 10),
			}
		}
	}

	if expected == oracle.Unknown {
		v.logger.Debug("skipping count and pagination checks: expected count unknown", "where", where)
		return nil
	}

	skip := q.SkipValue()
	remaining := max(expected-skip, 0)
	returned := len(members)
	hasNext := holder.Has(keys.nextLink)

	if q.Top != nil {
		if want := min(remaining, *q.Top); returned != want {
			return lengthError(where, strconv.Itoa(want), returned)
		}
		if wantNext := skip+returned < expected; hasNext != wantNext {
			return &MismatchError{
				Kind:     PaginationMismatch,
				Where:    where,
				Subject:  keys.nextLink,
				Expected: presence(wantNext),
				Actual:   presence(hasNext),
			}
		}
		return nil
	}

	// Without $top the page holds every remaining member, whether or not
	// the service also sends a next link.
	if returned != remaining {
		return lengthError(where, strconv.Itoa(remaining), returned)
	}
	return nil
}

func lengthError(where, expected string, returned int) *MismatchError {
	return &MismatchError{
		Kind:     PaginationMismatch,
		Where:    where,
		Subject:  "page length",
		Expected: expected,
		Actual:   strconv.Itoa(returned),
	}
}

func presence(present bool) string {
	if present {
		return "present"
	}
	return "absent"
}
