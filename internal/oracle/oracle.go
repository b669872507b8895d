// Package oracle answers how many entities a collection should hold.
//
// An Oracle returns Unknown (-1) whenever a cardinality cannot be
// determined. Unknown is never a count: callers must skip, not fail or
// pass, any check gated on it.
package oracle

import (
	"github.com/roach88/staconform/internal/model"
	"github.com/roach88/staconform/internal/query"
)

// Unknown is the only sentinel for an undeterminable cardinality.
const Unknown = -1

// Oracle is a source of ground-truth cardinalities.
type Oracle interface {
	// Count returns the size of the root collection of t.
	Count(t model.EntityType) int

	// CountRelated returns how many entities of kind child are linked to the
	// parent entity (parentType, id).
	CountRelated(parentType model.EntityType, id model.ID, child model.EntityType) int
}

// FindCountForRequest computes the expected size of the collection a
// request addresses.
//
// The path is walked left to right keeping the last literal key as an
// anchor. A collection reached from the anchor is counted through
// CountRelated and clears the anchor. A singleton reached without a literal
// key makes the count Unknown, since its identity is not in the path:
// /Things(1)/Datastreams resolves, /Datastreams(1)/Thing/Locations does not.
func FindCountForRequest(req *query.Request, o Oracle) int {
	if o == nil {
		return Unknown
	}

	count := Unknown
	var (
		anchored   bool
		anchorType model.EntityType
		anchorID   model.ID
	)
	for _, elem := range req.Path {
		switch {
		case elem.HasID:
			anchored, anchorType, anchorID = true, elem.Type, elem.ID
			count = Unknown
		case !anchored:
			if elem.Relation != "" {
				// A relation traversed from an unidentified entity. Reading it as
				// a root set would count every entity of the type, so the count
				// stays unknown. ParseRequest rejects such paths; only hand-built
				// requests reach here.
				count = Unknown
				continue
			}
			count = o.Count(elem.Type)
		case elem.Collection:
			count = o.CountRelated(anchorType, anchorID, elem.Type)
			anchored = false
		default:
			count = Unknown
			anchored = false
		}
	}
	return count
}
