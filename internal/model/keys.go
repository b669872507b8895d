package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/staconform/internal/jsondoc"
)

// Metadata keys of the SensorThings JSON encoding.
const (
	KeyID       = "@iot.id"
	KeySelfLink = "@iot.selfLink"
	KeyCount    = "@iot.count"
	KeyNextLink = "@iot.nextLink"

	// KeyValue holds the members of a collection response.
	KeyValue = "value"

	navigationLinkSuffix = "@iot.navigationLink"
)

// NavigationLinkKey is the key exposing a relation without inlining it.
func NavigationLinkKey(relation string) string {
	return relation + navigationLinkSuffix
}

// CountKey is the inline count key of an expanded collection relation.
func CountKey(relation string) string {
	return relation + KeyCount
}

// NextLinkKey is the next page link key of an expanded collection relation.
func NextLinkKey(relation string) string {
	return relation + KeyNextLink
}

// ID is an entity identifier. Numeric ids are kept in their decimal form,
// string ids verbatim, so ids taken from paths, fixtures and responses
// compare equal.
type ID string

// Literal renders the id as a path key literal: 42 or 'abc'.
func (id ID) Literal() string {
	if id.isNumeric() {
		return string(id)
	}
	return "'" + strings.ReplaceAll(string(id), "'", "''") + "'"
}

func (id ID) isNumeric() bool {
	if id == "" {
		return false
	}
	_, err := strconv.ParseInt(string(id), 10, 64)
	return err == nil
}

// IDOf reads the id metadata of an entity. The boolean is false when the
// entity has no id, or an id of a kind other than string or integer.
func IDOf(obj jsondoc.Object) (ID, bool) {
	switch v := obj[KeyID].(type) {
	case jsondoc.String:
		return ID(v), true
	case jsondoc.Number:
		n, ok := v.Int64()
		if !ok {
			return "", false
		}
		return ID(strconv.FormatInt(n, 10)), true
	default:
		return "", false
	}
}

// IDFrom converts a decoded scalar (YAML, JSON or CUE) into an ID.
func IDFrom(v any) (ID, error) {
	switch val := v.(type) {
	case string:
		if val == "" {
			return "", fmt.Errorf("empty id")
		}
		return ID(val), nil
	case int:
		return ID(strconv.Itoa(val)), nil
	case int64:
		return ID(strconv.FormatInt(val, 10)), nil
	case uint64:
		return ID(strconv.FormatUint(val, 10)), nil
	case float64:
		if val != float64(int64(val)) {
			return "", fmt.Errorf("id %v is not an integer", val)
		}
		return ID(strconv.FormatInt(int64(val), 10)), nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return "", fmt.Errorf("id %s is not an integer", val)
		}
		return ID(strconv.FormatInt(n, 10)), nil
	default:
		return "", fmt.Errorf("unsupported id type %T", v)
	}
}
