package compare

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/staconform/internal/jsondoc"
	"github.com/roach88/staconform/internal/model"
	"github.com/roach88/staconform/internal/oracle"
)

func TestResultContains(t *testing.T) {
	cases := []struct {
		name     string
		list     Slice
		expected []model.ID
		ok       bool
		message  string
	}{
		{
			name:     "duplicate of matched entity",
			list:     Slice{Declared: oracle.Unknown, IDs: []model.ID{"1", "1"}},
			expected: []model.ID{"1", "2"},
			message:  "entity 1 found in result but not expected",
		},
		{
			name:     "empty",
			list:     Slice{Declared: 0},
			expected: []model.ID{},
			ok:       true,
		},
		{
			name:     "same set in other order",
			list:     Slice{Declared: 3, IDs: []model.ID{"3", "1", "2"}},
			expected: []model.ID{"1", "2", "3"},
			ok:       true,
		},
		{
			name:     "declared count differs",
			list:     Slice{Declared: 3, IDs: []model.ID{"1", "2"}},
			expected: []model.ID{"1", "2"},
			message:  "declared count 3 does not match expected count 2",
		},
		{
			name:     "unknown count is not compared",
			list:     Slice{Declared: oracle.Unknown, IDs: []model.ID{"1", "2"}},
			expected: []model.ID{"2", "1"},
			ok:       true,
		},
		{
			name:     "unexpected entity",
			list:     Slice{Declared: oracle.Unknown, IDs: []model.ID{"1", "9"}},
			expected: []model.ID{"1", "2"},
			message:  "entity 9 found in result but not expected",
		},
		{
			name:     "missing entity",
			list:     Slice{Declared: oracle.Unknown, IDs: []model.ID{"1"}},
			expected: []model.ID{"1", "2", "abc"},
			message:  "2 expected entities not in result: [2 'abc']",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := ResultContains(tc.list, tc.expected)
			assert.Equal(t, tc.ok, res.OK)
			assert.Equal(t, tc.message, res.Message)
		})
	}
}

func TestResultContains_DoesNotModifyExpected(t *testing.T) {
	expected := []model.ID{"1", "2"}
	res := ResultContains(Slice{Declared: 2, IDs: []model.ID{"2", "1"}}, expected)
	require.True(t, res.OK)
	assert.Equal(t, []model.ID{"1", "2"}, expected)
}

type errList struct{}

func (errList) Count() int { return oracle.Unknown }

func (errList) All() iter.Seq2[model.ID, error] {
	return func(yield func(model.ID, error) bool) {
		yield("", errors.New("connection reset"))
	}
}

func TestResultContains_IterationError(t *testing.T) {
	res := ResultContains(errList{}, nil)
	assert.False(t, res.OK)
	assert.Equal(t, "reading result: connection reset", res.Message)
}

// mapFetcher serves pages by link.
type mapFetcher struct {
	pages map[string]string
	calls []string
}

func (f *mapFetcher) FetchPage(_ context.Context, link string) (jsondoc.Value, error) {
	f.calls = append(f.calls, link)
	body, ok := f.pages[link]
	if !ok {
		return nil, fmt.Errorf("404 %s", link)
	}
	return jsondoc.Parse([]byte(body))
}

func mustParse(t *testing.T, s string) jsondoc.Value {
	t.Helper()
	v, err := jsondoc.Parse([]byte(s))
	require.NoError(t, err)
	return v
}

func TestPages_FollowsNextLinks(t *testing.T) {
	f := &mapFetcher{pages: map[string]string{
		"p2": `{"value": [{"@iot.id": 3}, {"@iot.id": 4}], "@iot.nextLink": "p3"}`,
		"p3": `{"value": [{"@iot.id": "x"}]}`,
	}}
	first := mustParse(t, `{"@iot.count": 5, "value": [{"@iot.id": 1}, {"@iot.id": 2}], "@iot.nextLink": "p2"}`)

	pages, err := NewPages(context.Background(), first, f)
	require.NoError(t, err)
	assert.Equal(t, 5, pages.Count())

	var ids []model.ID
	for id, err := range pages.All() {
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.Equal(t, []model.ID{"1", "2", "3", "4", "x"}, ids)
	assert.Equal(t, []string{"p2", "p3"}, f.calls)

	res := ResultContains(pages, []model.ID{"x", "4", "3", "2", "1"})
	assert.True(t, res.OK, res.Message)
}

func TestPages_StopsEarly(t *testing.T) {
	f := &mapFetcher{}
	first := mustParse(t, `{"value": [{"@iot.id": 1}, {"@iot.id": 2}], "@iot.nextLink": "p2"}`)
	pages, err := NewPages(context.Background(), first, f)
	require.NoError(t, err)

	res := ResultContains(pages, []model.ID{"2"})
	assert.False(t, res.OK)
	assert.Equal(t, "entity 1 found in result but not expected", res.Message)
	assert.Empty(t, f.calls)
}

func TestPages_UnknownCount(t *testing.T) {
	pages, err := NewPages(context.Background(), mustParse(t, `{"value": []}`), nil)
	require.NoError(t, err)
	assert.Equal(t, oracle.Unknown, pages.Count())
	assert.True(t, ResultContains(pages, nil).OK)
}

func TestPages_Errors(t *testing.T) {
	_, err := NewPages(context.Background(), mustParse(t, `[]`), nil)
	assert.ErrorContains(t, err, "not an object")
	_, err = NewPages(context.Background(), mustParse(t, `{}`), nil)
	assert.ErrorContains(t, err, `no "value" array`)
	_, err = NewPages(context.Background(), mustParse(t, `{"@iot.count": 3.0, "value": []}`), nil)
	assert.EqualError(t, err, "@iot.count is number 3.0, not an integer")
	_, err = NewPages(context.Background(), mustParse(t, `{"@iot.count": "3", "value": []}`), nil)
	assert.EqualError(t, err, `@iot.count is string "3", not an integer`)

	cases := map[string]struct {
		first   string
		fetcher PageFetcher
		message string
	}{
		"no fetcher": {
			first:   `{"value": [], "@iot.nextLink": "p2"}`,
			message: ErrNoFetcher.Error(),
		},
		"missing id": {
			first:   `{"value": [{"name": "a"}]}`,
			message: "member 0 has no @iot.id",
		},
		"non-object member": {
			first:   `{"value": [7]}`,
			message: "member 0 is number, not an object",
		},
		"fetch failure": {
			first:   `{"value": [], "@iot.nextLink": "gone"}`,
			fetcher: &mapFetcher{},
			message: "fetch gone: 404 gone",
		},
		"bad page": {
			first:   `{"value": [], "@iot.nextLink": "p2"}`,
			fetcher: &mapFetcher{pages: map[string]string{"p2": `{"items": []}`}},
			message: `fetch p2: collection page has no "value" array`,
		},
		"loop": {
			first:   `{"value": [], "@iot.nextLink": "p2"}`,
			fetcher: &mapFetcher{pages: map[string]string{"p2": `{"value": [], "@iot.nextLink": "p2"}`}},
			message: "next link loop at p2",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			pages, err := NewPages(context.Background(), mustParse(t, tc.first), tc.fetcher)
			require.NoError(t, err)
			res := ResultContains(pages, nil)
			assert.False(t, res.OK)
			assert.Equal(t, "reading result: "+tc.message, res.Message)
		})
	}
}

func TestPages_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &mapFetcher{pages: map[string]string{"p2": `{"value": []}`}}
	pages, err := NewPages(ctx, mustParse(t, `{"value": [], "@iot.nextLink": "p2"}`), f)
	require.NoError(t, err)

	res := ResultContains(pages, nil)
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, context.Canceled.Error())
	assert.Empty(t, f.calls)
}
