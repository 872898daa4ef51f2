package harness

// Phases of a scenario.
const (
	PhaseSetup = "setup"
	PhaseSteps = "steps"
)

// OutcomeOK marks a step that returned no error. Failed steps record the
// error code instead.
const OutcomeOK = "ok"

// TraceEvent records one executed step.
type TraceEvent struct {
	Phase   string   `json:"phase"`
	Step    int      `json:"step"`
	Op      string   `json:"op"`
	Kind    string   `json:"kind"`
	Key     string   `json:"key,omitempty"`
	Outcome string   `json:"outcome"`
	Count   *int     `json:"count,omitempty"`
	IDs     []string `json:"ids,omitempty"`
}

// Result is the outcome of a scenario.
type Result struct {
	// Pass is true when every expect clause matched.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors holds one message per failed expectation.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failed expectation.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event to the trace.
func (r *Result) AddTrace(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}
