package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphrecon/internal/reconcile"
)

const scenarioDir = "testdata/scenarios"

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join(scenarioDir, name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_Scenarios(t *testing.T) {
	scenarios, err := LoadScenarios(scenarioDir)
	require.NoError(t, err)
	require.Len(t, scenarios, 5)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_BasicCreationTrace(t *testing.T) {
	result, err := Run(loadTestScenario(t, "basic_creation"))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	methods := make([]string, len(result.Trace))
	for i, event := range result.Trace {
		methods[i] = event.Method
		assert.Equal(t, int64(i+1), event.Seq)
		assert.Empty(t, event.Error)
	}
	assert.Equal(t, []string{
		"query", "validate", "create", // company 2
		"query", "validate", "create", // person 1
		"validate", "query", "create", // link 3
	}, methods)
}

func TestRun_Deterministic(t *testing.T) {
	first, err := Run(loadTestScenario(t, "duplicates"))
	require.NoError(t, err)
	second, err := Run(loadTestScenario(t, "duplicates"))
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
	assert.Equal(t, first.Log, second.Log)
	assert.Equal(t, NewSnapshot("d", first), NewSnapshot("d", second))
}

func TestRun_LogHasNoTimestamps(t *testing.T) {
	result, err := Run(loadTestScenario(t, "basic_creation"))
	require.NoError(t, err)
	require.NotEmpty(t, result.Log)
	for _, line := range result.Log {
		assert.NotContains(t, line, "time=")
	}
}

func TestRun_FailedAssertions(t *testing.T) {
	s := loadTestScenario(t, "basic_creation")
	s.Assertions = []Assertion{
		{Type: AssertOutcome, EntityID: 1, Outcome: string(reconcile.OutcomeUnchanged)},
		{Type: AssertSummary, Created: 1},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "assertions[0]")
	assert.Contains(t, result.Errors[0], "Actual: created")
	assert.Contains(t, result.Errors[1], "created=3")
}

func TestRun_UnexpectedRequestError(t *testing.T) {
	s := loadTestScenario(t, "unrequested_type")
	s.ExpectRequestError = ""

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, string(reconcile.ErrCodeUnrequestedType), result.RequestError)
	assert.Nil(t, result.Status)
	assert.Empty(t, result.Trace)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected request error")
}

func TestRun_WrongRequestError(t *testing.T) {
	s := loadTestScenario(t, "unrequested_type")
	s.ExpectRequestError = string(reconcile.ErrCodeMissingOwner)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "expected request error MISSING_OWNER")
}

func TestRun_ExpectedRequestErrorNotRaised(t *testing.T) {
	s := loadTestScenario(t, "basic_creation")
	s.ExpectRequestError = string(reconcile.ErrCodeUnrequestedType)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "batch was accepted")
}

func TestRun_DefaultOwner(t *testing.T) {
	s := loadTestScenario(t, "basic_creation")
	s.Batch.OwnedByID = ""
	s.Assertions = []Assertion{{Type: AssertSummary, Created: 3}}

	result, err := Run(s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	success := result.Status.CreationSuccesses[1]
	assert.Equal(t, DefaultOwnedByID, string(success.Entity.EntityID().OwnedByID()))
}

func TestRun_MissingTypes(t *testing.T) {
	s := loadTestScenario(t, "basic_creation")
	s.Types = filepath.Join(t.TempDir(), "nothing-here")

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile types")
}

func TestRun_SetupFailure(t *testing.T) {
	s := loadTestScenario(t, "duplicates")
	s.Setup[0].Properties = map[string]any{}

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to execute setup")
	assert.Contains(t, err.Error(), "setup[0]")
}
