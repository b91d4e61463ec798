package harness

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/graphrecon/internal/ir"
	"github.com/roach88/graphrecon/internal/reconcile"
)

// GoldenDir is where scenario snapshots live, relative to the test's package.
const GoldenDir = "testdata/golden"

// OutcomeSnapshot captures the outcome of one temporary id.
type OutcomeSnapshot struct {
	TemporaryID int
	Outcome     reconcile.Outcome
	EntityID    ir.EntityID // persisted or matched entity; empty on failure
	Reason      string      // failure reason; empty otherwise
}

// Snapshot captures a scenario's outcomes for golden comparison.
type Snapshot struct {
	ScenarioName string
	RequestError string
	Outcomes     []OutcomeSnapshot
	Summary      reconcile.StatusSummary
}

// NewSnapshot builds the snapshot of a result, outcomes ordered by
// temporary id.
func NewSnapshot(name string, result *Result) Snapshot {
	snap := Snapshot{ScenarioName: name, RequestError: result.RequestError}
	status := result.Status
	if status == nil {
		return snap
	}

	add := func(id int, outcome reconcile.Outcome, entity ir.EntityID, reason string) {
		snap.Outcomes = append(snap.Outcomes, OutcomeSnapshot{TemporaryID: id, Outcome: outcome, EntityID: entity, Reason: reason})
	}
	for id, s := range status.CreationSuccesses {
		add(id, reconcile.OutcomeCreated, s.Entity.EntityID(), "")
	}
	for id, f := range status.CreationFailures {
		add(id, reconcile.OutcomeCreationFailed, "", f.FailureReason)
	}
	for id, c := range status.UpdateCandidates {
		add(id, reconcile.OutcomeUpdateCandidate, c.Entity.EntityID(), "")
	}
	for id, u := range status.UnchangedEntities {
		add(id, reconcile.OutcomeUnchanged, u.Entity.EntityID(), "")
	}
	slices.SortFunc(snap.Outcomes, func(a, b OutcomeSnapshot) int { return a.TemporaryID - b.TemporaryID })
	snap.Summary = status.Summary()
	return snap
}

// toCanonicalMap converts the snapshot to plain values for ir.MarshalCanonical.
func (s *Snapshot) toCanonicalMap() map[string]any {
	outcomes := make([]any, len(s.Outcomes))
	for i, o := range s.Outcomes {
		m := map[string]any{
			"id":      o.TemporaryID,
			"outcome": string(o.Outcome),
		}
		if o.EntityID != "" {
			m["entity"] = string(o.EntityID)
		}
		if o.Reason != "" {
			m["reason"] = o.Reason
		}
		outcomes[i] = m
	}

	result := map[string]any{
		"scenario": s.ScenarioName,
		"outcomes": outcomes,
		"summary": map[string]any{
			"created":           s.Summary.Created,
			"creation_failed":   s.Summary.CreationFailed,
			"update_candidates": s.Summary.UpdateCandidates,
			"unchanged":         s.Summary.Unchanged,
		},
	}
	if s.RequestError != "" {
		result["request_error"] = s.RequestError
	}
	return result
}

// MarshalCanonical renders the snapshot as canonical JSON.
func (s *Snapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := NewSnapshot(scenarioName, result)
	data, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}

// UpdateGolden writes the snapshot files for results to dir, replacing any
// existing files. Used by "graphrecon test --update".
func UpdateGolden(dir string, results map[string]*Result) error {
	for _, name := range slices.Sorted(maps.Keys(results)) {
		snapshot := NewSnapshot(name, results[name])
		data, err := snapshot.MarshalCanonical()
		if err != nil {
			return err
		}
		if err := writeGolden(dir, name, data); err != nil {
			return err
		}
	}
	return nil
}

// GoldenStatus is the result of comparing a snapshot against a golden file.
type GoldenStatus int

const (
	GoldenMatch GoldenStatus = iota
	GoldenMismatch
	GoldenMissing
)

// CompareGolden compares a result's snapshot with dir/{name}.golden outside
// of a test binary. On mismatch the current snapshot is returned.
func CompareGolden(dir, name string, result *Result) (GoldenStatus, []byte, error) {
	snapshot := NewSnapshot(name, result)
	data, err := snapshot.MarshalCanonical()
	if err != nil {
		return GoldenMismatch, nil, err
	}

	want, err := os.ReadFile(goldenPath(dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return GoldenMissing, data, nil
	}
	if err != nil {
		return GoldenMismatch, nil, fmt.Errorf("read golden file: %w", err)
	}
	if !bytes.Equal(bytes.TrimSpace(want), data) {
		return GoldenMismatch, data, nil
	}
	return GoldenMatch, nil, nil
}

func goldenPath(dir, name string) string {
	return filepath.Join(dir, name+".golden")
}

func writeGolden(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create golden dir: %w", err)
	}
	if err := os.WriteFile(goldenPath(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("write golden file: %w", err)
	}
	return nil
}
