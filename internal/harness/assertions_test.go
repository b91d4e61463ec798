package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphrecon/internal/graphstore"
	"github.com/roach88/graphrecon/internal/ir"
	"github.com/roach88/graphrecon/internal/reconcile"
	"github.com/roach88/graphrecon/internal/testutil"
)

const personType = ir.VersionedURL("https://example.com/@acme/types/entity-type/person/v/1")

func intPtr(i int) *int { return &i }

// statusFixture: 1 created, 2 failed, 3 update candidate, 4 unchanged,
// 5 a link from 1 to 4.
func statusFixture() *reconcile.StatusMap {
	m := reconcile.NewStatusMap(nil, nil)
	created := testutil.ExistingEntity("web-1", "u-1", personType, ir.Object{})
	existing := testutil.ExistingEntity("web-1", "u-3", personType, ir.Object{})
	unchanged := testutil.ExistingEntity("web-1", "u-4", personType, ir.Object{})
	link := testutil.ExistingEntity("web-1", "u-5", personType, ir.Object{})
	link.LinkData = &ir.LinkData{LeftEntityID: created.EntityID(), RightEntityID: unchanged.EntityID()}

	m.RecordCreationSuccess(1, reconcile.CreationSuccess{Entity: created})
	m.RecordCreationFailure(2, reconcile.CreationFailure{FailureReason: "Missing required property"})
	m.RecordUpdateCandidate(3, reconcile.UpdateCandidate{Entity: existing})
	m.RecordUnchanged(4, reconcile.MatchesExisting{Entity: unchanged})
	m.RecordCreationSuccess(5, reconcile.CreationSuccess{Entity: link})
	return m
}

func fixtureResult() *Result {
	r := NewResult()
	r.Status = statusFixture()
	r.AddTrace(TraceEvent{Seq: 1, Method: "query"})
	r.AddTrace(TraceEvent{Seq: 2, Method: "create"})
	r.AddTrace(TraceEvent{Seq: 3, Method: "create"})
	r.Log = []string{`level=INFO msg="reconciliation complete"`}
	return r
}

func TestEvaluateAssertions_AllPass(t *testing.T) {
	assertions := []Assertion{
		{Type: AssertOutcome, EntityID: 1, Outcome: "created"},
		{Type: AssertOutcome, EntityID: 2, Outcome: "creation_failed"},
		{Type: AssertOutcome, EntityID: 3, Outcome: "update_candidate"},
		{Type: AssertOutcome, EntityID: 4, Outcome: "unchanged"},
		{Type: AssertFailureReason, EntityID: 2, Contains: "required"},
		{Type: AssertSummary, Created: 2, Failed: 1, Candidates: 1, Unchanged: 1},
		{Type: AssertLink, EntityID: 5, Source: intPtr(1), Target: intPtr(4)},
		{Type: AssertTraceCount, Method: "create", Count: 2},
		{Type: AssertTraceCount, Method: "validate", Count: 0},
		{Type: AssertLogContains, Contains: "reconciliation complete"},
	}
	assert.Empty(t, EvaluateAssertions(fixtureResult(), assertions, nil))
}

func TestEvaluateAssertions_Failures(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      []string
	}{
		{
			name:      "outcome mismatch",
			assertion: Assertion{Type: AssertOutcome, EntityID: 1, Outcome: "unchanged"},
			want:      []string{"Assertion failed: outcome", "Expected: entity 1 unchanged", "Actual: created"},
		},
		{
			name:      "outcome missing",
			assertion: Assertion{Type: AssertOutcome, EntityID: 9, Outcome: "created"},
			want:      []string{"no outcome recorded"},
		},
		{
			name:      "reason not failed",
			assertion: Assertion{Type: AssertFailureReason, EntityID: 1, Contains: "x"},
			want:      []string{"no failure recorded"},
		},
		{
			name:      "reason mismatch",
			assertion: Assertion{Type: AssertFailureReason, EntityID: 2, Contains: "duplicate"},
			want:      []string{`reason containing "duplicate"`, "Actual: Missing required property"},
		},
		{
			name:      "summary mismatch",
			assertion: Assertion{Type: AssertSummary, Created: 1},
			want:      []string{"Expected: created=1 creation_failed=0", "Actual: created=2 creation_failed=1 update_candidates=1 unchanged=1"},
		},
		{
			name:      "link not created",
			assertion: Assertion{Type: AssertLink, EntityID: 1, Source: intPtr(1), Target: intPtr(4)},
			want:      []string{"no link created"},
		},
		{
			name:      "link wrong target",
			assertion: Assertion{Type: AssertLink, EntityID: 5, Source: intPtr(1), Target: intPtr(3)},
			want:      []string{"Expected: target web-1~u-3", "Actual: web-1~u-4"},
		},
		{
			name:      "link endpoint not persisted",
			assertion: Assertion{Type: AssertLink, EntityID: 5, Source: intPtr(2), Target: intPtr(4)},
			want:      []string{"source entity 2 persisted", "not persisted"},
		},
		{
			name:      "trace count",
			assertion: Assertion{Type: AssertTraceCount, Method: "query", Count: 2},
			want:      []string{"query called 2 times", "Actual: 1 times"},
		},
		{
			name:      "log missing",
			assertion: Assertion{Type: AssertLogContains, Contains: "batch rejected"},
			want:      []string{`log line containing "batch rejected"`, "1 log lines, none matching"},
		},
		{
			name:      "unknown type",
			assertion: Assertion{Type: "final_state"},
			want:      []string{`unknown assertion type "final_state"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failures := EvaluateAssertions(fixtureResult(), []Assertion{tt.assertion}, nil)
			require.Len(t, failures, 1)
			assert.Contains(t, failures[0], "assertions[0]: ")
			for _, want := range tt.want {
				assert.Contains(t, failures[0], want)
			}
		})
	}
}

func TestEvaluateAssertions_IndexesFailures(t *testing.T) {
	failures := EvaluateAssertions(fixtureResult(), []Assertion{
		{Type: AssertOutcome, EntityID: 1, Outcome: "created"},
		{Type: AssertOutcome, EntityID: 2, Outcome: "created"},
		{Type: AssertSummary},
	}, nil)
	require.Len(t, failures, 2)
	assert.Contains(t, failures[0], "assertions[1]: ")
	assert.Contains(t, failures[1], "assertions[2]: ")
}

func TestEvaluateAssertions_EntityCount(t *testing.T) {
	st, err := graphstore.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	actx := &AssertionContext{Store: st, Ctx: context.Background()}

	failures := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertEntityCount, EntityTypeID: string(personType), Count: 0},
		{Type: AssertEntityCount, EntityTypeID: string(personType), Count: 2},
	}, actx)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "assertions[1]: ")
	assert.Contains(t, failures[0], "Actual: 0 entities")
}
