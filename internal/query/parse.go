package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/roach88/staconform/internal/model"
)

// ParseError reports a malformed request.
type ParseError struct {
	Input   string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse request %q: %s", e.Input, e.Message)
}

// selectable are names accepted in $select besides properties and relations.
var selectable = map[string]bool{
	"id":              true,
	model.KeyID:       true,
	"selfLink":        true,
	model.KeySelfLink: true,
}

// ParseRequest parses a relative request URL such as
//
//	/Things(1)/Datastreams?$select=name&$expand=Observations($top=2;$count=true)&$top=5
//
// A leading version segment (v1.0, v1.1) is skipped. $filter and $orderby
// are kept verbatim; other unknown $-options are errors.
func ParseRequest(input string) (*Request, error) {
	fail := func(format string, args ...any) (*Request, error) {
		return nil, &ParseError{Input: input, Message: fmt.Sprintf(format, args...)}
	}

	rawPath, rawQuery, _ := strings.Cut(input, "?")
	segments := strings.Split(strings.Trim(rawPath, "/"), "/")
	if len(segments) > 0 && isVersionSegment(segments[0]) {
		segments = segments[1:]
	}
	if len(segments) == 0 || segments[0] == "" {
		return fail("empty resource path")
	}

	path := make([]PathElement, 0, len(segments))
	for i, seg := range segments {
		name, key, hasKey, err := splitSegment(seg)
		if err != nil {
			return fail("segment %q: %v", seg, err)
		}

		var elem PathElement
		if i == 0 {
			t, ok := model.ParseEntitySet(name)
			if !ok {
				return fail("unknown entity set %q", name)
			}
			elem = EntitySet(t)
		} else {
			prev := path[i-1]
			if prev.Collection {
				return fail("cannot navigate %q from collection %q without a key", name, prev.Name())
			}
			rel, ok := prev.Type.Relation(name)
			if !ok {
				if prev.Type.HasProperty(name) || strings.HasPrefix(name, "$") {
					return fail("property and $ segments are not supported: %q", name)
				}
				return fail("%s has no relation %q", prev.Type, name)
			}
			elem = PathElement{Type: rel.Target, Relation: name, Collection: rel.Collection}
		}

		if hasKey {
			if !elem.Collection {
				return fail("segment %q is not a collection and cannot take a key", name)
			}
			elem = elem.Key(key)
		}
		path = append(path, elem)
	}

	var q Query
	if rawQuery != "" {
		opts, err := splitTopLevel(rawQuery, '&')
		if err != nil {
			return fail("%v", err)
		}
		if err := parseOptions(&q, opts, path[len(path)-1].Type, true); err != nil {
			return fail("%v", err)
		}
	}

	return NewRequest(q, path...), nil
}

func isVersionSegment(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	_, err := strconv.ParseFloat(s[1:], 64)
	return err == nil
}

// splitSegment splits Name(key) into its parts.
func splitSegment(seg string) (string, model.ID, bool, error) {
	open := strings.IndexByte(seg, '(')
	if open < 0 {
		if seg == "" {
			return "", "", false, fmt.Errorf("empty segment")
		}
		return seg, "", false, nil
	}
	if !strings.HasSuffix(seg, ")") {
		return "", "", false, fmt.Errorf("unterminated key")
	}
	id, err := parseKey(seg[open+1 : len(seg)-1])
	if err != nil {
		return "", "", false, err
	}
	return seg[:open], id, true, nil
}

func parseKey(raw string) (model.ID, error) {
	raw, err := url.PathUnescape(raw)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(raw, "'") {
		if len(raw) < 2 || !strings.HasSuffix(raw, "'") {
			return "", fmt.Errorf("unterminated string key %s", raw)
		}
		inner := raw[1 : len(raw)-1]
		if strings.Count(inner, "'")%2 != 0 {
			return "", fmt.Errorf("unescaped quote in key %s", raw)
		}
		return model.ID(strings.ReplaceAll(inner, "''", "'")), nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return "", fmt.Errorf("key %q is neither an integer nor a quoted string", raw)
	}
	return model.ID(strconv.FormatInt(n, 10)), nil
}

// parseOptions applies name=value options to q. Top-level options are
// URL-decoded; options nested inside $expand were decoded with their parent.
func parseOptions(q *Query, opts []string, t model.EntityType, topLevel bool) error {
	for _, opt := range opts {
		if opt == "" {
			continue
		}
		name, value, found := strings.Cut(opt, "=")
		if !found {
			return fmt.Errorf("option %q has no value", opt)
		}
		if topLevel {
			var err error
			if value, err = url.QueryUnescape(strings.ReplaceAll(value, "+", "%2B")); err != nil {
				return fmt.Errorf("option %s: %w", name, err)
			}
		}

		switch name {
		case "$select":
			for _, s := range strings.Split(value, ",") {
				s = strings.TrimSpace(s)
				if s == "" {
					continue
				}
				if _, isRel := t.Relation(s); !isRel && !t.HasProperty(s) && !selectable[s] {
					return fmt.Errorf("$select: %s has no property or relation %q", t, s)
				}
				q.Select = append(q.Select, s)
			}
		case "$expand":
			items, err := splitTopLevel(value, ',')
			if err != nil {
				return fmt.Errorf("$expand: %w", err)
			}
			for _, item := range items {
				if err := parseExpandItem(q, strings.TrimSpace(item), t); err != nil {
					return fmt.Errorf("$expand: %w", err)
				}
			}
		case "$count":
			switch value {
			case "true":
				q.Count = CountTrue
			case "false":
				q.Count = CountFalse
			default:
				return fmt.Errorf("$count must be true or false, got %q", value)
			}
		case "$top", "$skip":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return fmt.Errorf("%s must be a non-negative integer, got %q", name, value)
			}
			if name == "$top" {
				q.Top = Int(n)
			} else {
				q.Skip = Int(n)
			}
		case "$filter":
			q.Filter = value
		case "$orderby":
			q.OrderBy = value
		case "$resultFormat":
			// Only the default format is validated.
			if value != "default" {
				return fmt.Errorf("$resultFormat %q is not supported", value)
			}
		default:
			if strings.HasPrefix(name, "$") {
				return fmt.Errorf("unsupported option %s", name)
			}
		}
	}
	return nil
}

// parseExpandItem handles one $expand entry: Rel, Rel(opts) or A/B/C(opts).
// Repeated relations merge into the same Expand.
func parseExpandItem(q *Query, item string, t model.EntityType) error {
	if item == "" {
		return fmt.Errorf("empty item")
	}
	pathPart, inner := item, ""
	if open := strings.IndexByte(item, '('); open >= 0 {
		if !strings.HasSuffix(item, ")") {
			return fmt.Errorf("unbalanced parentheses in %q", item)
		}
		pathPart, inner = item[:open], item[open+1:len(item)-1]
	}

	relName, rest, nested := strings.Cut(pathPart, "/")
	rel, ok := t.Relation(relName)
	if !ok {
		return fmt.Errorf("%s has no relation %q", t, relName)
	}

	exp := q.FindExpand(relName)
	if exp == nil {
		exp = &Expand{Element: PathElement{Type: rel.Target, Relation: relName, Collection: rel.Collection}}
		q.Expand = append(q.Expand, exp)
	}

	if nested {
		remainder := rest
		if inner != "" {
			remainder += "(" + inner + ")"
		}
		return parseExpandItem(&exp.Query, remainder, rel.Target)
	}

	if inner == "" {
		return nil
	}
	opts, err := splitTopLevel(inner, ';')
	if err != nil {
		return err
	}
	return parseOptions(&exp.Query, opts, rel.Target, false)
}

// splitTopLevel splits s on sep, ignoring separators inside parentheses or
// single-quoted literals.
func splitTopLevel(s string, sep byte) ([]string, error) {
	var parts []string
	depth := 0
	quoted := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\'':
			quoted = !quoted
		case quoted:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced parentheses in %q", s)
			}
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	if depth != 0 || quoted {
		return nil, fmt.Errorf("unbalanced parentheses or quotes in %q", s)
	}
	return append(parts, s[start:]), nil
}
