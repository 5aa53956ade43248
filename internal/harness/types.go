package harness

import "github.com/roach88/keycond/internal/engine"

// QueryResult is the outcome of planning one scenario query.
type QueryResult struct {
	Name string `json:"name"`

	// Plan is nil when planning failed.
	Plan *engine.Plan `json:"plan,omitempty"`

	// ErrorCode is the planner error code, or "ERROR" for other failures.
	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation of every query holds.
	Pass bool `json:"pass"`

	Queries []QueryResult `json:"queries"`

	// Errors contains expectation failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Queries: []QueryResult{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Query returns the result of the named query.
func (r *Result) Query(name string) (QueryResult, bool) {
	for _, q := range r.Queries {
		if q.Name == name {
			return q, true
		}
	}
	return QueryResult{}, false
}
