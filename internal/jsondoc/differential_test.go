package jsondoc

import (
	"testing"

	cyberphone "github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// For NFC input and integers within float64 precision, MarshalCanonical
// must agree with the RFC 8785 reference implementation.
func TestMarshalCanonical_MatchesRFC8785(t *testing.T) {
	inputs := map[string]string{
		"key order":       `{"b": 1, "a": 2, "A": 3, "aa": 4, "": 5}`,
		"utf16 key order": `{"€": "euro", "\r": "cr", "1": "one", "😀": "smiley", "\u0080": "ctl", "ö": "o"}`,
		"nested":          `{"value": [{"@iot.id": 2, "name": "x"}, {"@iot.id": 1}], "@iot.count": 2}`,
		"numbers":         `[0, -0, 1, -1, 1.5, 100.0, 1e2, 123456789, 0.000001, 1e-7, 1e21, 1e20, 3.14159, -2.5e-8, 9007199254740991]`,
		"string escapes":  `["a\"b", "back\\slash", "\n\r\t\b\f", "\u0001\u001f", "<>&", "  ", "café"]`,
		"literals":        `{"t": true, "f": false, "n": null, "empty": {}, "list": []}`,
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			want, err := cyberphone.Transform([]byte(input))
			require.NoError(t, err)

			doc, err := Parse([]byte(input))
			require.NoError(t, err)
			got, err := MarshalCanonical(doc)
			require.NoError(t, err)

			assert.Equal(t, string(want), string(got))
		})
	}
}
