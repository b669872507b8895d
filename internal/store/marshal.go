package store

import (
	"fmt"

	"github.com/roach88/staconform/internal/jsondoc"
	"github.com/roach88/staconform/internal/model"
)

// marshalProperties converts entity properties to canonical JSON TEXT for
// storage, so equal property sets are stored byte-identically.
func marshalProperties(props jsondoc.Object) (string, error) {
	if len(props) == 0 {
		return "{}", nil
	}
	data, err := jsondoc.MarshalCanonical(props)
	if err != nil {
		return "", fmt.Errorf("marshal properties: %w", err)
	}
	return string(data), nil
}

// unmarshalProperties parses stored JSON TEXT back into an object. Numbers
// keep their literal text, so large integers survive a round trip.
func unmarshalProperties(data string) (jsondoc.Object, error) {
	if data == "" || data == "{}" {
		return jsondoc.Object{}, nil
	}
	v, err := jsondoc.Parse([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal properties: %w", err)
	}
	obj, ok := jsondoc.AsObject(v)
	if !ok {
		return nil, fmt.Errorf("unmarshal properties: stored %s, not an object", jsondoc.KindOf(v))
	}
	return obj, nil
}

// unmarshalKind parses a stored entity kind.
func unmarshalKind(name string) (model.EntityType, error) {
	t, ok := model.ParseEntityType(name)
	if !ok {
		return 0, fmt.Errorf("unknown stored entity kind %q", name)
	}
	return t, nil
}
