package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/graphrecon/internal/filter"
	"github.com/roach88/graphrecon/internal/graphstore"
	"github.com/roach88/graphrecon/internal/ir"
	"github.com/roach88/graphrecon/internal/reconcile"
)

// AssertionContext gives assertions access to the scenario's store.
type AssertionContext struct {
	Store *graphstore.Store
	Ctx   context.Context
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("Assertion failed: %s\n  Expected: %s\n  Actual: %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions checks every assertion and returns one message per
// failure, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a, actx); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluateAssertion(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertOutcome:
		return assertOutcome(result.Status, a)
	case AssertFailureReason:
		return assertFailureReason(result.Status, a)
	case AssertSummary:
		return assertSummary(result.Status, a)
	case AssertEntityCount:
		return assertEntityCount(actx, a)
	case AssertLink:
		return assertLink(result.Status, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertLogContains:
		return assertLogContains(result.Log, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertOutcome(status *reconcile.StatusMap, a Assertion) error {
	got, ok := status.Outcome(a.EntityID)
	if !ok {
		return &AssertionError{
			Type:     AssertOutcome,
			Expected: fmt.Sprintf("entity %d %s", a.EntityID, a.Outcome),
			Actual:   "no outcome recorded",
		}
	}
	if string(got) != a.Outcome {
		return &AssertionError{
			Type:     AssertOutcome,
			Expected: fmt.Sprintf("entity %d %s", a.EntityID, a.Outcome),
			Actual:   string(got),
		}
	}
	return nil
}

func assertFailureReason(status *reconcile.StatusMap, a Assertion) error {
	failure, ok := status.Failure(a.EntityID)
	if !ok {
		return &AssertionError{
			Type:     AssertFailureReason,
			Expected: fmt.Sprintf("entity %d failed with reason containing %q", a.EntityID, a.Contains),
			Actual:   "no failure recorded",
		}
	}
	if !strings.Contains(failure.FailureReason, a.Contains) {
		return &AssertionError{
			Type:     AssertFailureReason,
			Expected: fmt.Sprintf("reason containing %q", a.Contains),
			Actual:   failure.FailureReason,
		}
	}
	return nil
}

func assertSummary(status *reconcile.StatusMap, a Assertion) error {
	got := status.Summary()
	want := reconcile.StatusSummary{
		Created:          a.Created,
		CreationFailed:   a.Failed,
		UpdateCandidates: a.Candidates,
		Unchanged:        a.Unchanged,
	}
	if got != want {
		return &AssertionError{
			Type:     AssertSummary,
			Expected: formatSummary(want),
			Actual:   formatSummary(got),
		}
	}
	return nil
}

func formatSummary(s reconcile.StatusSummary) string {
	return fmt.Sprintf("created=%d creation_failed=%d update_candidates=%d unchanged=%d",
		s.Created, s.CreationFailed, s.UpdateCandidates, s.Unchanged)
}

func assertEntityCount(actx *AssertionContext, a Assertion) error {
	entities, err := actx.Store.QueryEntities(actx.Ctx, DefaultActorID, reconcile.QueryEntitiesRequest{
		Filter: filter.All{
			filter.Equal{Path: filter.Field(filter.FieldArchived), Value: ir.Bool(false)},
			filter.VersionedURLMatch(ir.VersionedURL(a.EntityTypeID), filter.MatchExact),
		},
		IncludeDrafts: true,
	})
	if err != nil {
		return fmt.Errorf("entity_count: query failed: %w", err)
	}
	if len(entities) != a.Count {
		return &AssertionError{
			Type:     AssertEntityCount,
			Expected: fmt.Sprintf("%d entities of %s", a.Count, a.EntityTypeID),
			Actual:   fmt.Sprintf("%d entities", len(entities)),
		}
	}
	return nil
}

// assertLink checks that the link created for a temporary id connects the
// entities persisted for Source and Target.
func assertLink(status *reconcile.StatusMap, a Assertion) error {
	success, ok := status.CreationSuccesses[a.EntityID]
	if !ok || success.Entity.LinkData == nil {
		return &AssertionError{
			Type:     AssertLink,
			Expected: fmt.Sprintf("link entity %d created", a.EntityID),
			Actual:   "no link created",
		}
	}

	for _, end := range []struct {
		name string
		id   int
		got  ir.EntityID
	}{
		{"source", *a.Source, success.Entity.LinkData.LeftEntityID},
		{"target", *a.Target, success.Entity.LinkData.RightEntityID},
	} {
		want, found := status.FindPersistedEntity(end.id)
		if !found {
			return &AssertionError{
				Type:     AssertLink,
				Expected: fmt.Sprintf("%s entity %d persisted", end.name, end.id),
				Actual:   "not persisted",
			}
		}
		if want.EntityID() != end.got {
			return &AssertionError{
				Type:     AssertLink,
				Expected: fmt.Sprintf("%s %s", end.name, want.EntityID()),
				Actual:   string(end.got),
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Method == a.Method {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s called %d times", a.Method, a.Count),
			Actual:   fmt.Sprintf("%d times", count),
		}
	}
	return nil
}

func assertLogContains(log []string, a Assertion) error {
	for _, line := range log {
		if strings.Contains(line, a.Contains) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertLogContains,
		Expected: fmt.Sprintf("log line containing %q", a.Contains),
		Actual:   fmt.Sprintf("%d log lines, none matching", len(log)),
	}
}
