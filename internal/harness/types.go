package harness

// TraceEvent records the outcome of one check. Events carry only
// deterministic fields so traces can be compared against golden files.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Check   string `json:"check"`
	Type    string `json:"type"`
	Expect  string `json:"expect"`
	Outcome string `json:"outcome"`

	// Detail describes the mismatch that was found, if any.
	Detail string `json:"detail,omitempty"`
}

// Matched reports whether the check produced the outcome it expected.
func (e TraceEvent) Matched() bool {
	return e.Expect == e.Outcome
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every check produced its expected outcome.
	Pass bool `json:"pass"`

	// Trace holds one event per check, in scenario order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains one message per check whose outcome was unexpected.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds an error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddCheckTrace appends a check outcome to the trace.
func (r *Result) AddCheckTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}
