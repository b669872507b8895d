package jsondoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsAndCompacts(t *testing.T) {
	doc, err := Parse([]byte(`{ "value": [ {"b": 1, "a": null} ], "@iot.count": 1 }`))
	require.NoError(t, err)

	data, err := MarshalCanonical(doc)
	require.NoError(t, err)
	assert.Equal(t, `{"@iot.count":1,"value":[{"a":null,"b":1}]}`, string(data))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	data, err := MarshalCanonical("<a & b>")
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(data))
}

func TestMarshalCanonical_LineSeparatorsLiteral(t *testing.T) {
	data, err := MarshalCanonical("x\u2028y\u2029")
	require.NoError(t, err)
	assert.Equal(t, "\"x\u2028y\u2029\"", string(data))
}

func TestMarshalCanonical_ControlCharacters(t *testing.T) {
	data, err := MarshalCanonical("a\nb\u0001\"\\")
	require.NoError(t, err)
	assert.Equal(t, `"a\nb\u0001\"\\"`, string(data))
}

func TestMarshalCanonical_NFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9.
	data, err := MarshalCanonical("e\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(data))
}

func TestMarshalCanonical_Numbers(t *testing.T) {
	cases := map[Number]string{
		"1":       "1",
		"1.0":     "1",
		"-0":      "0",
		"2.50":    "2.5",
		"1e3":     "1000",
		"1e21":    "1e+21",
		"1.5e-7":  "1.5e-7",
		"0.00001": "0.00001",
	}
	for in, want := range cases {
		data, err := MarshalCanonical(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, string(data), in)
	}
}

func TestMarshalCanonical_GoValues(t *testing.T) {
	data, err := MarshalCanonical(map[string]any{
		"seq":   int64(2),
		"pass":  true,
		"items": []any{"x", 1},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"items":["x",1],"pass":true,"seq":2}`, string(data))
}

func TestMarshalCanonical_Deterministic(t *testing.T) {
	obj := Object{"z": Number("1"), "y": Number("2"), "x": Object{"b": Null{}, "a": Null{}}}
	first, err := MarshalCanonical(obj)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := MarshalCanonical(obj)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
