package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/staconform/internal/compare"
	"github.com/roach88/staconform/internal/jsondoc"
	"github.com/roach88/staconform/internal/model"
	"github.com/roach88/staconform/internal/oracle"
	"github.com/roach88/staconform/internal/query"
	"github.com/roach88/staconform/internal/store"
	"github.com/roach88/staconform/internal/validator"
)

// Harness runs the checks of one scenario against one fixture oracle.
type Harness struct {
	oracle    *oracle.Fixtures
	validator *validator.Validator
	logger    *slog.Logger
	seq       int64
}

type config struct {
	logger *slog.Logger
	store  *store.Store
}

// Option configures Run.
type Option func(*config)

// WithLogger sets the logger used for check progress and skipped
// cardinality checks. A nil logger keeps the default.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStore saves the scenario fixtures into st, alongside whatever it
// already holds, and reads the oracle back from it. Without it each run
// uses a fresh in-memory store.
func WithStore(st *store.Store) Option {
	return func(c *config) { c.store = st }
}

// Run executes a scenario and returns its result.
//
// Execution flow:
// 1. Load the fixture set and save it into the store
// 2. Snapshot the store into a cardinality oracle
// 3. Run every check in order, recording one trace event per check
// 4. Record an error for each check whose outcome was not the expected one
//
// An error is returned only when the scenario cannot be executed, for
// example an unreadable or malformed response document. A check that finds
// an unexpected mismatch fails the result, not the run.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := config{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := context.Background()

	st := cfg.store
	if st == nil {
		var err error
		st, err = store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
	}

	fixtures, err := scenario.LoadFixtures()
	if err != nil {
		return nil, fmt.Errorf("failed to load fixtures: %w", err)
	}
	if err := fixtures.Save(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to save fixtures: %w", err)
	}
	snapshot, err := st.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot fixtures: %w", err)
	}

	h := &Harness{
		oracle:    snapshot,
		validator: validator.New(snapshot, validator.WithLogger(cfg.logger)),
		logger:    cfg.logger,
	}

	result := NewResult()
	for i := range scenario.Checks {
		if err := h.executeCheck(ctx, &scenario.Checks[i], result); err != nil {
			return nil, fmt.Errorf("check %d (%s): %w", i, scenario.Checks[i].Name, err)
		}
	}
	return result, nil
}

// executeCheck runs one check and records its outcome.
func (h *Harness) executeCheck(ctx context.Context, c *Check, result *Result) error {
	doc, err := c.Document()
	if err != nil {
		return err
	}

	var outcome, detail string
	switch c.Type {
	case CheckValidateResponse:
		outcome, detail, err = h.validateResponse(doc, c)
	case CheckResultContains:
		outcome, detail, err = h.resultContains(ctx, doc, c)
	default:
		err = fmt.Errorf("unknown check type %q", c.Type)
	}
	if err != nil {
		return err
	}

	h.seq++
	event := TraceEvent{
		Seq:     h.seq,
		Check:   c.Name,
		Type:    c.Type,
		Expect:  c.ExpectedOutcome(),
		Outcome: outcome,
		Detail:  detail,
	}
	result.AddCheckTrace(event)

	if !event.Matched() {
		msg := fmt.Sprintf("check %q: expected %s, got %s", c.Name, event.Expect, event.Outcome)
		if detail != "" {
			msg += ": " + detail
		}
		result.AddError(msg)
	}

	h.logger.Info("check completed",
		"check", c.Name,
		"type", c.Type,
		"expect", event.Expect,
		"outcome", outcome,
	)
	return nil
}

func (h *Harness) validateResponse(doc jsondoc.Value, c *Check) (string, string, error) {
	req, err := query.ParseRequest(c.Request)
	if err != nil {
		return "", "", err
	}

	err = h.validator.Response(doc, req)
	if err == nil {
		return OutcomePass, "", nil
	}
	var me *validator.MismatchError
	if !errors.As(err, &me) {
		return "", "", err
	}
	return string(me.Kind), fmt.Sprintf("%s: expected %s, got %s", me.Subject, me.Expected, me.Actual), nil
}

func (h *Harness) resultContains(ctx context.Context, doc jsondoc.Value, c *Check) (string, string, error) {
	expected, err := h.expectedIDs(c)
	if err != nil {
		return "", "", err
	}

	var reason string
	if list, err := compare.NewPages(ctx, doc, nil); err != nil {
		reason = err.Error()
	} else if res := compare.ResultContains(list, expected); !res.OK {
		reason = res.Message
	} else {
		return OutcomePass, "", nil
	}

	h.logger.Info("result does not hold the expected entities",
		"check", c.Name,
		"request", c.Request,
		"reason", reason,
	)
	if c.Request != "" {
		reason = fmt.Sprintf("failed on %s: %s", c.Request, reason)
	}
	return string(compare.SetMismatch), reason, nil
}

func (h *Harness) expectedIDs(c *Check) ([]model.ID, error) {
	if c.ExpectAll != "" {
		t, ok := model.ParseEntityType(c.ExpectAll)
		if !ok {
			return nil, fmt.Errorf("unknown entity type %q", c.ExpectAll)
		}
		return h.oracle.Entities(t), nil
	}

	ids := make([]model.ID, len(c.ExpectIDs))
	for i, raw := range c.ExpectIDs {
		id, err := model.IDFrom(raw)
		if err != nil {
			return nil, fmt.Errorf("expect_ids[%d]: %w", i, err)
		}
		ids[i] = id
	}
	return ids, nil
}
