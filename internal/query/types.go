package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/staconform/internal/model"
)

// CountFlag is the tri-state $count option.
type CountFlag int

const (
	CountUnspecified CountFlag = iota
	CountTrue
	CountFalse
)

func (c CountFlag) String() string {
	switch c {
	case CountTrue:
		return "true"
	case CountFalse:
		return "false"
	default:
		return "unspecified"
	}
}

// PathElement is one segment of a resource path.
type PathElement struct {
	// Type is the kind of entity the segment resolves to.
	Type model.EntityType

	// Relation is the navigation name used to reach this segment. Empty for
	// a root entity set.
	Relation string

	// ID is the literal key given in the path. Only meaningful when HasID.
	ID    model.ID
	HasID bool

	// Collection is true when the segment denotes a collection rather than a
	// single entity.
	Collection bool
}

// EntitySet is the root collection segment of t, e.g. /Things.
func EntitySet(t model.EntityType) PathElement {
	return PathElement{Type: t, Collection: true}
}

// Navigate is the segment reached by following relation from an entity of
// kind from. It panics when from has no such relation.
func Navigate(from model.EntityType, relation string) PathElement {
	rel, ok := from.Relation(relation)
	if !ok {
		panic(fmt.Sprintf("query: %s has no relation %q", from, relation))
	}
	return PathElement{Type: rel.Target, Relation: relation, Collection: rel.Collection}
}

// Key addresses a single member of a collection segment by literal id.
func (e PathElement) Key(id model.ID) PathElement {
	e.ID = id
	e.HasID = true
	e.Collection = false
	return e
}

// Name is the segment name as written in a path.
func (e PathElement) Name() string {
	if e.Relation != "" {
		return e.Relation
	}
	return e.Type.EntitySet()
}

func (e PathElement) String() string {
	if e.HasID {
		return e.Name() + "(" + e.ID.Literal() + ")"
	}
	return e.Name()
}

// Query is the query descriptor governing one level of a response.
type Query struct {
	// Select lists explicitly selected names. Empty means defaults apply.
	Select []string

	// Expand lists nested expansions in request order.
	Expand []*Expand

	Count CountFlag
	Top   *int
	Skip  *int

	// Filter and OrderBy are kept verbatim for messages. They are never
	// evaluated.
	Filter  string
	OrderBy string
}

// Int returns a pointer to n, for Top and Skip.
func Int(n int) *int {
	return &n
}

// SkipValue returns $skip, defaulting to zero.
func (q *Query) SkipValue() int {
	if q.Skip == nil {
		return 0
	}
	return *q.Skip
}

// FindExpand returns the expansion of relation, if any.
func (q *Query) FindExpand(relation string) *Expand {
	for _, e := range q.Expand {
		if e.Element.Relation == relation {
			return e
		}
	}
	return nil
}

// options renders the query options in canonical order.
func (q *Query) options() []string {
	var opts []string
	if len(q.Select) > 0 {
		opts = append(opts, "$select="+strings.Join(q.Select, ","))
	}
	if len(q.Expand) > 0 {
		parts := make([]string, len(q.Expand))
		for i, e := range q.Expand {
			parts[i] = e.String()
		}
		opts = append(opts, "$expand="+strings.Join(parts, ","))
	}
	if q.Filter != "" {
		opts = append(opts, "$filter="+q.Filter)
	}
	if q.OrderBy != "" {
		opts = append(opts, "$orderby="+q.OrderBy)
	}
	if q.Count != CountUnspecified {
		opts = append(opts, "$count="+q.Count.String())
	}
	if q.Top != nil {
		opts = append(opts, "$top="+strconv.Itoa(*q.Top))
	}
	if q.Skip != nil {
		opts = append(opts, "$skip="+strconv.Itoa(*q.Skip))
	}
	return opts
}

// Expand pairs a path element with the query governing it. The top-level
// request is itself an Expand with TopLevel set.
type Expand struct {
	Element  PathElement
	Query    Query
	TopLevel bool
}

// NewExpand builds a nested expansion of relation from an entity of kind
// parent.
func NewExpand(parent model.EntityType, relation string, q Query) *Expand {
	return &Expand{Element: Navigate(parent, relation), Query: q}
}

// Type is the entity kind governed by this expansion.
func (e *Expand) Type() model.EntityType {
	return e.Element.Type
}

// String renders a nested expansion as Relation($opt;$opt) and a top-level
// one as Name?$opt&$opt.
func (e *Expand) String() string {
	opts := e.Query.options()
	if e.TopLevel {
		if len(opts) == 0 {
			return e.Element.String()
		}
		return e.Element.String() + "?" + strings.Join(opts, "&")
	}
	if len(opts) == 0 {
		return e.Element.Relation
	}
	return e.Element.Relation + "(" + strings.Join(opts, ";") + ")"
}

// Request is a resource path plus the query descriptor of its last segment.
type Request struct {
	Path   []PathElement
	Expand *Expand
}

// NewRequest builds a request. The last path element is governed by q.
func NewRequest(q Query, path ...PathElement) *Request {
	if len(path) == 0 {
		panic("query: request path must not be empty")
	}
	return &Request{
		Path: path,
		Expand: &Expand{
			Element:  path[len(path)-1],
			Query:    q,
			TopLevel: true,
		},
	}
}

// Terminal returns the last path element.
func (r *Request) Terminal() PathElement {
	return r.Path[len(r.Path)-1]
}

// String renders the request as a relative URL.
func (r *Request) String() string {
	var b strings.Builder
	for _, e := range r.Path {
		b.WriteByte('/')
		b.WriteString(e.String())
	}
	if opts := r.Expand.Query.options(); len(opts) > 0 {
		b.WriteByte('?')
		b.WriteString(strings.Join(opts, "&"))
	}
	return b.String()
}
