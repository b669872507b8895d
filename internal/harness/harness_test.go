package harness

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/staconform/internal/model"
	"github.com/roach88/staconform/internal/store"
)

// threeThings is a fixture set with Things 1..3 and one Datastream of
// Thing 1.
func threeThings() *FixtureSet {
	return &FixtureSet{
		Entities: []EntityFixture{
			{Type: model.Thing, ID: 1},
			{Type: model.Thing, ID: 2},
			{Type: model.Thing, ID: 3},
			{Type: model.Datastream, ID: 10},
		},
		Links: []LinkFixture{
			{From: EntityRef{Type: model.Thing, ID: 1}, To: EntityRef{Type: model.Datastream, ID: 10}},
		},
	}
}

func TestRun_MinimalScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "minimal",
		Description: "Minimal test scenario",
		Fixtures:    threeThings(),
		Checks: []Check{
			{
				Name:     "count",
				Type:     CheckValidateResponse,
				Request:  "/Things?$select=name&$count=true",
				Response: `{"@iot.count": 3, "value": [{"name": "a"}, {"name": "b"}, {"name": "c"}]}`,
			},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, TraceEvent{
		Seq:     1,
		Check:   "count",
		Type:    CheckValidateResponse,
		Expect:  OutcomePass,
		Outcome: OutcomePass,
	}, result.Trace[0])
}

func TestRun_UnexpectedMismatchFailsResult(t *testing.T) {
	scenario := &Scenario{
		Name:        "unexpected",
		Description: "A pass expectation that finds a mismatch",
		Fixtures:    threeThings(),
		Checks: []Check{
			{
				Name:     "top two",
				Type:     CheckValidateResponse,
				Request:  "/Things?$select=name&$top=2",
				Response: `{"value": [{"name": "a"}, {"name": "b"}]}`,
			},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Equal(t,
		`check "top two": expected pass, got PaginationMismatch: @iot.nextLink: expected present, got absent`,
		result.Errors[0])
	assert.False(t, result.Trace[0].Matched())
}

func TestRun_MissingExpectedMismatchFailsResult(t *testing.T) {
	scenario := &Scenario{
		Name:        "negative_sample",
		Description: "A negative sample the validator accepts",
		Fixtures:    threeThings(),
		Checks: []Check{
			{
				Name:     "correct page",
				Type:     CheckValidateResponse,
				Request:  "/Things?$select=name&$top=2",
				Response: `{"@iot.nextLink": "next", "value": [{"name": "a"}, {"name": "b"}]}`,
				Expect:   "PaginationMismatch",
			},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Equal(t, []string{`check "correct page": expected PaginationMismatch, got pass`}, result.Errors)
}

func TestRun_ChecksAreIndependent(t *testing.T) {
	// A failing check does not stop later checks.
	scenario := &Scenario{
		Name:        "independent",
		Description: "Failures are per check",
		Fixtures:    threeThings(),
		Checks: []Check{
			{
				Name:     "wrong count",
				Type:     CheckValidateResponse,
				Request:  "/Things?$select=name&$count=true",
				Response: `{"@iot.count": 5, "value": []}`,
			},
			{
				Name:      "things",
				Type:      CheckResultContains,
				Response:  `{"value": [{"@iot.id": 1}, {"@iot.id": 2}, {"@iot.id": 3}]}`,
				ExpectAll: "Thing",
			},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	require.Len(t, result.Trace, 2)
	assert.Equal(t, "CountMismatch", result.Trace[0].Outcome)
	assert.Equal(t, OutcomePass, result.Trace[1].Outcome)
	assert.Equal(t, int64(2), result.Trace[1].Seq)
	assert.Len(t, result.Errors, 1)
}

func TestRun_ScopedCountFromLinks(t *testing.T) {
	scenario := &Scenario{
		Name:        "scoped",
		Description: "Related counts come from fixture links",
		Fixtures:    threeThings(),
		Checks: []Check{
			{
				Name:     "datastreams of thing 1",
				Type:     CheckValidateResponse,
				Request:  "/Things(1)/Datastreams?$select=name&$count=true",
				Response: `{"@iot.count": 1, "value": [{"name": "temperature"}]}`,
			},
			{
				Name:     "datastreams of thing 2",
				Type:     CheckValidateResponse,
				Request:  "/Things(2)/Datastreams?$select=name&$count=true",
				Response: `{"@iot.count": 1, "value": [{"name": "temperature"}]}`,
				Expect:   "CountMismatch",
			},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "@iot.count: expected 0, got 1", result.Trace[1].Detail)
}

func TestRun_ResultContains(t *testing.T) {
	tests := []struct {
		name       string
		response   string
		ids        []any
		wantDetail string
	}{
		{
			name:     "exact",
			response: `{"@iot.count": 2, "value": [{"@iot.id": 2}, {"@iot.id": "abc"}]}`,
			ids:      []any{"abc", 2},
		},
		{
			name:       "missing",
			response:   `{"value": [{"@iot.id": 2}]}`,
			ids:        []any{"abc", 2},
			wantDetail: "1 expected entities not in result: ['abc']",
		},
		{
			name:       "declared count",
			response:   `{"@iot.count": 3, "value": [{"@iot.id": 2}]}`,
			ids:        []any{2},
			wantDetail: "declared count 3 does not match expected count 1",
		},
		{
			name:       "not a collection",
			response:   `[{"@iot.id": 2}]`,
			ids:        []any{2},
			wantDetail: "collection page is array, not an object",
		},
		{
			name:       "fractional count",
			response:   `{"@iot.count": 1.0, "value": [{"@iot.id": 2}]}`,
			ids:        []any{2},
			wantDetail: "@iot.count is number 1.0, not an integer",
		},
		{
			name:       "next link without fetcher",
			response:   `{"@iot.nextLink": "http://example.org/next", "value": [{"@iot.id": 2}]}`,
			ids:        []any{2},
			wantDetail: "reading result: next link present but no page fetcher configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expect := OutcomePass
			if tt.wantDetail != "" {
				expect = "SetMismatch"
			}
			scenario := &Scenario{
				Name:        "contains",
				Description: "Result set comparison",
				Checks: []Check{
					{Name: tt.name, Type: CheckResultContains, Response: tt.response, ExpectIDs: tt.ids, Expect: expect},
				},
			}

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Equal(t, tt.wantDetail, result.Trace[0].Detail)
		})
	}
}

func TestRun_ResultContainsNamesRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	scenario := &Scenario{
		Name:        "filtered",
		Description: "Failure detail names the filter",
		Checks: []Check{
			{
				Name:      "lab things",
				Type:      CheckResultContains,
				Request:   "/Things?$filter=name eq 'Lab'",
				Response:  `{"value": [{"@iot.id": 2}, {"@iot.id": 3}]}`,
				ExpectIDs: []any{2},
				Expect:    "SetMismatch",
			},
		},
	}

	result, err := Run(scenario, WithLogger(logger))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t,
		"failed on /Things?$filter=name eq 'Lab': entity 3 found in result but not expected",
		result.Trace[0].Detail)
	assert.Contains(t, buf.String(), "result does not hold the expected entities")
	assert.Contains(t, buf.String(), "check=\"lab things\"")
}

func TestRun_ExecutionErrors(t *testing.T) {
	tests := []struct {
		name    string
		check   Check
		wantErr string
	}{
		{
			name:    "malformed response",
			check:   Check{Name: "bad", Type: CheckValidateResponse, Request: "/Things", Response: `{"value": [`},
			wantErr: "parse JSON",
		},
		{
			name:    "bad request",
			check:   Check{Name: "bad", Type: CheckValidateResponse, Request: "/Widgets", Response: `{}`},
			wantErr: "check 0 (bad)",
		},
		{
			name:    "bad expected id",
			check:   Check{Name: "bad", Type: CheckResultContains, Response: `{"value": []}`, ExpectIDs: []any{1.5}},
			wantErr: "expect_ids[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario := &Scenario{Name: "errors", Description: "x", Checks: []Check{tt.check}}
			_, err := Run(scenario)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_BadFixtureLink(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_link",
		Description: "Link to an entity that was never listed",
		Fixtures: &FixtureSet{
			Entities: []EntityFixture{{Type: model.Thing, ID: 1}},
			Links: []LinkFixture{
				{From: EntityRef{Type: model.Thing, ID: 1}, To: EntityRef{Type: model.Datastream, ID: 9}},
			},
		},
		Checks: []Check{{Name: "x", Type: CheckValidateResponse, Request: "/Things", Response: `{"value": []}`}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save fixtures")
	assert.ErrorIs(t, err, store.ErrUnknownEntity)
}

func TestRun_WithStore(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "fixtures.db"))
	require.NoError(t, err)
	defer st.Close()

	// A dataset imported earlier is visible to the scenario.
	require.NoError(t, st.AddEntity(context.Background(), store.Entity{Type: model.Thing, ID: "7"}))

	scenario := &Scenario{
		Name:        "with_store",
		Description: "Fixtures merge into an existing store",
		Fixtures:    &FixtureSet{Entities: []EntityFixture{{Type: model.Thing, ID: 8}}},
		Checks: []Check{
			{
				Name:      "both things",
				Type:      CheckResultContains,
				Response:  `{"value": [{"@iot.id": 8}, {"@iot.id": 7}]}`,
				ExpectAll: "Things",
			},
		},
	}

	result, err := Run(scenario, WithStore(st))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	ids, err := st.IDs(context.Background(), model.Thing)
	require.NoError(t, err)
	assert.Equal(t, []model.ID{"7", "8"}, ids)
}

func TestRun_FreshStorePerRun(t *testing.T) {
	scenario := &Scenario{
		Name:        "fresh",
		Description: "Each run starts from an empty store",
		Fixtures:    threeThings(),
		Checks: []Check{
			{
				Name:      "things",
				Type:      CheckResultContains,
				Response:  `{"value": [{"@iot.id": 1}, {"@iot.id": 2}, {"@iot.id": 3}]}`,
				ExpectAll: "Thing",
			},
		},
	}

	for i := 0; i < 2; i++ {
		result, err := Run(scenario)
		require.NoError(t, err)
		assert.True(t, result.Pass, "run %d errors: %v", i, result.Errors)
	}
}

func TestRun_LogsSkippedCounts(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	scenario := &Scenario{
		Name:        "untracked",
		Description: "No fixtures, so nothing is tracked",
		Checks: []Check{
			{
				Name:     "locations",
				Type:     CheckValidateResponse,
				Request:  "/Locations?$top=1",
				Response: `{"value": []}`,
			},
		},
	}

	result, err := Run(scenario, WithLogger(logger))
	require.NoError(t, err)
	assert.True(t, result.Pass)
	assert.Contains(t, buf.String(), "expected count unknown")
	assert.Contains(t, buf.String(), "check completed")
}

func TestRun_NilLogger(t *testing.T) {
	scenario := &Scenario{
		Name:        "quiet",
		Description: "A nil logger falls back to the default",
		Checks: []Check{
			{Name: "empty", Type: CheckResultContains, Response: `{"value": []}`, ExpectIDs: []any{1}, Expect: "SetMismatch"},
		},
	}

	result, err := Run(scenario, WithLogger(nil))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestResult_AddError(t *testing.T) {
	result := NewResult()
	assert.True(t, result.Pass)

	result.AddError("first")
	result.AddError("second")

	assert.False(t, result.Pass)
	assert.Equal(t, []string{"first", "second"}, result.Errors)
}

func TestResult_AddCheckTrace(t *testing.T) {
	result := NewResult()
	result.AddCheckTrace(TraceEvent{Seq: 1, Check: "a", Expect: "pass", Outcome: "pass"})
	result.AddCheckTrace(TraceEvent{Seq: 2, Check: "b", Expect: "pass", Outcome: "LeakMismatch"})

	require.Len(t, result.Trace, 2)
	assert.True(t, result.Trace[0].Matched())
	assert.False(t, result.Trace[1].Matched())
	// AddCheckTrace records, it does not judge.
	assert.True(t, result.Pass)
}
