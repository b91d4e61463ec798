package harness

import (
	"github.com/roach88/graphrecon/internal/reconcile"
)

// TraceEvent is one storage call the engine made during a scenario.
type TraceEvent struct {
	Seq          int64  `json:"seq"`
	Method       string `json:"method"` // "validate", "query" or "create"
	EntityTypeID string `json:"entity_type_id,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every assertion holds.
	Pass bool `json:"pass"`

	// Status is the engine's status map. Nil when the request was rejected.
	Status *reconcile.StatusMap `json:"status,omitempty"`

	// RequestError is the call-level rejection, if any.
	RequestError string `json:"request_error,omitempty"`

	// Trace lists storage calls in the order they were made.
	Trace []TraceEvent `json:"trace"`

	// Log holds the engine's log output, one record per line.
	Log []string `json:"log,omitempty"`

	// Errors contains assertion failure messages.
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

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a storage call to the trace.
func (r *Result) AddTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}
