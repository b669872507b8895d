package validator

import (
	"io"
	"log/slog"
	"strconv"

	"github.com/roach88/staconform/internal/jsondoc"
	"github.com/roach88/staconform/internal/model"
	"github.com/roach88/staconform/internal/oracle"
	"github.com/roach88/staconform/internal/query"
)

// Validator checks response documents against the query that produced them.
//
// A nil oracle disables every cardinality and pagination check; selection,
// navigation link and leak checks still run. Validator holds no mutable
// state and may be shared between goroutines.
type Validator struct {
	oracle oracle.Oracle
	logger *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the logger used to report skipped checks.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// New creates a Validator backed by o, which may be nil.
func New(o oracle.Oracle, opts ...Option) *Validator {
	v := &Validator{
		oracle: o,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateResponse validates doc as the response to req.
func ValidateResponse(doc jsondoc.Value, req *query.Request, o oracle.Oracle) error {
	return New(o).Response(doc, req)
}

// ValidateEntity validates a single entity against exp.
func ValidateEntity(obj jsondoc.Object, exp *query.Expand, o oracle.Oracle) error {
	return New(o).Entity(obj, exp)
}

// ValidateCollection validates every member of arr against exp.
func ValidateCollection(arr jsondoc.Array, exp *query.Expand, o oracle.Oracle) error {
	return New(o).Collection(arr, exp)
}

// Response validates a complete response document.
//
// A collection response must be an object holding a value array. Its inline
// count and page length are checked against FindCountForRequest before the
// members are validated. Any other response must be a single entity.
func (v *Validator) Response(doc jsondoc.Value, req *query.Request) error {
	where := req.String()
	obj, ok := jsondoc.AsObject(doc)
	if !ok {
		return &MismatchError{
			Kind:     StructuralMismatch,
			Where:    where,
			Subject:  "response",
			Expected: "object",
			Actual:   jsondoc.KindOf(doc),
		}
	}

	if !req.Terminal().Collection {
		return v.entity(obj, req.Expand, where)
	}

	members, err := valueArray(obj, model.KeyValue, where)
	if err != nil {
		return err
	}
	expected := oracle.FindCountForRequest(req, v.oracle)
	page := pageKeys{count: model.KeyCount, nextLink: model.KeyNextLink}
	if err := v.checkPage(obj, members, req.Expand, expected, page, where); err != nil {
		return err
	}
	return v.collection(members, req.Expand, where)
}

// Entity validates a single entity.
func (v *Validator) Entity(obj jsondoc.Object, exp *query.Expand) error {
	return v.entity(obj, exp, exp.String())
}

// Collection validates every member of a collection. Ordering and filtering
// are not checked.
func (v *Validator) Collection(arr jsondoc.Array, exp *query.Expand) error {
	return v.collection(arr, exp, exp.String())
}

func (v *Validator) collection(arr jsondoc.Array, exp *query.Expand, where string) error {
	for i, member := range arr {
		obj, ok := jsondoc.AsObject(member)
		if !ok {
			return &MismatchError{
				Kind:     StructuralMismatch,
				Where:    where,
				Subject:  "member " + strconv.Itoa(i),
				Expected: "object",
				Actual:   jsondoc.KindOf(member),
			}
		}
		if err := v.entity(obj, exp, where); err != nil {
			return err
		}
	}
	return nil
}

// selection returns the effective selection of exp. An empty $select means
// every property and, for the top-level request only, every relation.
func selection(exp *query.Expand) map[string]bool {
	sel := make(map[string]bool)
	if len(exp.Query.Select) > 0 {
		for _, name := range exp.Query.Select {
			sel[name] = true
		}
		return sel
	}
	t := exp.Type()
	for _, name := range t.PropertyNames() {
		sel[name] = true
	}
	if exp.TopLevel {
		for _, name := range t.RelationNames() {
			sel[name] = true
		}
	}
	return sel
}

func (v *Validator) entity(obj jsondoc.Object, exp *query.Expand, where string) error {
	t := exp.Type()
	sel := selection(exp)

	for _, p := range t.Properties() {
		present := obj.Has(p.Name)
		switch {
		case sel[p.Name] && !present && !p.Optional:
			return presenceError(where, p.Name, "present", "absent")
		case !sel[p.Name] && present:
			return presenceError(where, p.Name, "absent", "present")
		}
	}

	for _, name := range t.RelationNames() {
		key := model.NavigationLinkKey(name)
		present := obj.Has(key)
		switch {
		case sel[name] && !present:
			return presenceError(where, key, "present", "absent")
		case !sel[name] && present:
			return presenceError(where, key, "absent", "present")
		}
	}

	if (sel["id"] || sel[model.KeyID]) && !obj.Has(model.KeyID) {
		return presenceError(where, model.KeyID, "present", "absent")
	}

	id, hasID := model.IDOf(obj)
	label := t.EntitySet()
	if hasID {
		label += "(" + id.Literal() + ")"
	}

	pending := make(map[string]bool)
	for _, name := range t.RelationNames() {
		pending[name] = true
	}

	for _, child := range exp.Query.Expand {
		rel := child.Element.Relation
		childWhere := where + " > " + label + "/" + child.String()
		raw, ok := obj.Get(rel)
		if !ok {
			return presenceError(where, rel, "expanded "+rel, "absent")
		}

		if child.Element.Collection {
			members, ok := jsondoc.AsArray(raw)
			if !ok {
				return shapeError(where, rel, "array", raw)
			}
			if err := v.collection(members, child, childWhere); err != nil {
				return err
			}
			expected := oracle.Unknown
			switch {
			case v.oracle == nil:
			case !hasID:
				v.logger.Debug("skipping scoped count: entity has no id", "where", childWhere)
			default:
				expected = v.oracle.CountRelated(t, id, child.Type())
			}
			page := pageKeys{count: model.CountKey(rel), nextLink: model.NextLinkKey(rel)}
			if err := v.checkPage(obj, members, child, expected, page, childWhere); err != nil {
				return err
			}
		} else {
			member, ok := jsondoc.AsObject(raw)
			if !ok {
				return shapeError(where, rel, "object", raw)
			}
			if err := v.entity(member, child, childWhere); err != nil {
				return err
			}
		}
		delete(pending, rel)
	}

	for _, name := range t.RelationNames() {
		if pending[name] && obj.Has(name) {
			return &MismatchError{
				Kind:     LeakMismatch,
				Where:    where,
				Subject:  name,
				Expected: "not expanded",
				Actual:   "inlined " + jsondoc.KindOf(obj[name]),
			}
		}
	}
	return nil
}

func valueArray(obj jsondoc.Object, key, where string) (jsondoc.Array, error) {
	raw, ok := obj.Get(key)
	if !ok {
		return nil, presenceError(where, key, "present", "absent")
	}
	arr, ok := jsondoc.AsArray(raw)
	if !ok {
		return nil, shapeError(where, key, "array", raw)
	}
	return arr, nil
}

func presenceError(where, subject, expected, actual string) *MismatchError {
	return &MismatchError{
		Kind:     StructuralMismatch,
		Where:    where,
		Subject:  subject,
		Expected: expected,
		Actual:   actual,
	}
}

func shapeError(where, subject, expected string, got jsondoc.Value) *MismatchError {
	return &MismatchError{
		Kind:     StructuralMismatch,
		Where:    where,
		Subject:  subject,
		Expected: expected,
		Actual:   jsondoc.KindOf(got),
	}
}
