package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/graphrecon/internal/batch"
	"github.com/roach88/graphrecon/internal/reconcile"
)

// Scenario defines a reconciliation test scenario: a graph prepared by
// setup, one batch run through the engine, and assertions on the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Types is a CUE entity type directory, relative to the scenario file.
	Types string `yaml:"types"`

	// Setup creates entities in the graph before the batch runs.
	Setup []SetupEntity `yaml:"setup,omitempty"`

	// Batch is the proposal batch handed to the engine.
	Batch batch.File `yaml:"batch"`

	// ExpectRequestError is the request error code the engine must reject
	// the batch with. Empty means the batch must be accepted.
	ExpectRequestError string `yaml:"expect_request_error,omitempty"`

	// Assertions validate outcomes, stored entities, trace and log.
	Assertions []Assertion `yaml:"assertions"`
}

// SetupEntity is an existing entity created before reconciliation.
type SetupEntity struct {
	EntityTypeID string         `yaml:"entity_type_id"`
	OwnedByID    string         `yaml:"owned_by_id,omitempty"`
	Properties   map[string]any `yaml:"properties,omitempty"`
	Draft        bool           `yaml:"draft,omitempty"`
	Archived     bool           `yaml:"archived,omitempty"`

	// PriorResult exposes the entity to the batch as the prior result of
	// this temporary id.
	PriorResult *int `yaml:"prior_result,omitempty"`
}

// Assertion validates the scenario result.
type Assertion struct {
	// Type specifies the assertion type:
	// - "outcome": temporary id EntityID ended with Outcome
	// - "failure_reason": the recorded failure reason contains Contains
	// - "summary": outcome counts equal Created/Failed/Candidates/Unchanged
	// - "entity_count": Count stored, unarchived entities of EntityTypeID
	// - "link": the entity created for EntityID links Source to Target
	// - "trace_count": Method was called Count times
	// - "log_contains": some log line contains Contains
	Type string `yaml:"type"`

	EntityID     int    `yaml:"entity_id,omitempty"`
	Outcome      string `yaml:"outcome,omitempty"`
	Contains     string `yaml:"contains,omitempty"`
	EntityTypeID string `yaml:"entity_type_id,omitempty"`
	Method       string `yaml:"method,omitempty"`
	Count        int    `yaml:"count,omitempty"`
	Source       *int   `yaml:"source,omitempty"`
	Target       *int   `yaml:"target,omitempty"`

	Created    int `yaml:"created,omitempty"`
	Failed     int `yaml:"creation_failed,omitempty"`
	Candidates int `yaml:"update_candidates,omitempty"`
	Unchanged  int `yaml:"unchanged,omitempty"`
}

// Assertion type constants.
const (
	AssertOutcome       = "outcome"
	AssertFailureReason = "failure_reason"
	AssertSummary       = "summary"
	AssertEntityCount   = "entity_count"
	AssertLink          = "link"
	AssertTraceCount    = "trace_count"
	AssertLogContains   = "log_contains"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Relative type directories are resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Types != "" && !filepath.IsAbs(scenario.Types) {
		scenario.Types = filepath.Join(filepath.Dir(path), scenario.Types)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Types == "" {
		return fmt.Errorf("types is required")
	}
	for i, e := range s.Setup {
		if e.EntityTypeID == "" {
			return fmt.Errorf("setup[%d]: entity_type_id is required", i)
		}
	}
	if err := s.Batch.Validate(); err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	if len(s.Assertions) == 0 && s.ExpectRequestError == "" {
		return fmt.Errorf("at least one assertion is required")
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertOutcome:
		switch reconcile.Outcome(a.Outcome) {
		case reconcile.OutcomeCreated, reconcile.OutcomeCreationFailed,
			reconcile.OutcomeUpdateCandidate, reconcile.OutcomeUnchanged:
		default:
			return fmt.Errorf("assertions[%d]: unknown outcome %q", index, a.Outcome)
		}
	case AssertFailureReason, AssertLogContains:
		if a.Contains == "" {
			return fmt.Errorf("assertions[%d]: contains is required for %s", index, a.Type)
		}
	case AssertSummary:
	case AssertEntityCount:
		if a.EntityTypeID == "" {
			return fmt.Errorf("assertions[%d]: entity_type_id is required for entity_count", index)
		}
	case AssertLink:
		if a.Source == nil || a.Target == nil {
			return fmt.Errorf("assertions[%d]: source and target are required for link", index)
		}
	case AssertTraceCount:
		switch a.Method {
		case "validate", "query", "create":
		default:
			return fmt.Errorf("assertions[%d]: method must be validate, query or create", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
