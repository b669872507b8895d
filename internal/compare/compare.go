// Package compare checks that a result collection holds exactly an expected
// set of entities.
package compare

import (
	"fmt"
	"iter"
	"slices"

	"github.com/roach88/staconform/internal/model"
	"github.com/roach88/staconform/internal/oracle"
	"github.com/roach88/staconform/internal/validator"
)

// SetMismatch is the failure kind reported by ResultContains.
const SetMismatch = validator.SetMismatch

// EntityList is a result collection. Count is the count the result declares
// about itself, or oracle.Unknown. All yields the id of every member across
// all pages, exactly once per call; a non-nil error ends the iteration.
type EntityList interface {
	Count() int
	All() iter.Seq2[model.ID, error]
}

// Result is the outcome of a comparison. Message describes the first
// failure and is empty when OK.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func fail(format string, args ...any) Result {
	return Result{Message: fmt.Sprintf(format, args...)}
}

// ResultContains reports whether list holds exactly the entities in
// expected, each once. expected is not modified.
//
// A declared count must equal len(expected) unless it is Unknown. Each
// returned id is then matched against and removed from a working copy of
// expected, so a duplicate in the result fails just like an unexpected id.
// Ids never returned fail once iteration completes.
func ResultContains(list EntityList, expected []model.ID) Result {
	if n := list.Count(); n != oracle.Unknown && n != len(expected) {
		return fail("declared count %d does not match expected count %d", n, len(expected))
	}

	remaining := slices.Clone(expected)
	for id, err := range list.All() {
		if err != nil {
			return fail("reading result: %v", err)
		}
		i := slices.Index(remaining, id)
		if i < 0 {
			return fail("entity %s found in result but not expected", id.Literal())
		}
		remaining = slices.Delete(remaining, i, i+1)
	}

	if len(remaining) > 0 {
		return fail("%d expected entities not in result: %s", len(remaining), literals(remaining))
	}
	return Result{OK: true}
}

func literals(ids []model.ID) string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Literal()
	}
	return fmt.Sprint(out)
}

// Slice is an in-memory EntityList.
type Slice struct {
	// Declared is the self-reported count, oracle.Unknown when absent.
	Declared int
	IDs      []model.ID
}

// Count implements EntityList.
func (s Slice) Count() int {
	return s.Declared
}

// All implements EntityList.
func (s Slice) All() iter.Seq2[model.ID, error] {
	return func(yield func(model.ID, error) bool) {
		for _, id := range s.IDs {
			if !yield(id, nil) {
				return
			}
		}
	}
}
