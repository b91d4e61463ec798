package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphrecon/internal/reconcile"
)

func TestValidate_Clean(t *testing.T) {
	stdout, _, err := execute(t, "validate", "testdata/batches/people.yaml")
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ testdata/batches/people.yaml: 3 proposal(s), no issues")
}

func TestValidate_Issues(t *testing.T) {
	stdout, _, err := execute(t, "validate", "testdata/batches/broken.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ testdata/batches/broken.yaml: 1 issue(s) found")
	assert.Contains(t, stdout, "[dangling_reference] entity 2: target 9 is not proposed and has no prior result")
}

func TestValidate_JSON(t *testing.T) {
	stdout, _, err := execute(t, "--format", "json", "validate", "testdata/batches/broken.yaml")
	require.Error(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   ValidateResult `json:"data"`
		Error  *CLIError      `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeBatchIssues, resp.Error.Code)
	assert.Equal(t, 2, resp.Data.Proposals)
	assert.Equal(t, 2, resp.Data.Types)
	require.Len(t, resp.Data.Issues, 1)
	assert.Equal(t, reconcile.IssueDanglingReference, resp.Data.Issues[0].Kind)
}

// writeBatch writes a batch file to a temp dir.
func writeBatch(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestValidate_WithoutTypesTreatsEndpointsAsLinks(t *testing.T) {
	path := writeBatch(t, `
owned_by_id: web-1
proposals:
  - entity_id: 1
    entity_type_id: https://example.com/@acme/types/entity-type/person/v/1
  - entity_id: 2
    entity_type_id: https://example.com/@acme/types/entity-type/knows/v/1
    source_entity_id: 1
    target_entity_id: 2
  - entity_id: 2
    entity_type_id: https://example.com/@acme/types/entity-type/person/v/1
`)
	stdout, _, err := execute(t, "--format", "json", "validate", path)
	require.Error(t, err)

	var resp struct {
		Data ValidateResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, 0, resp.Data.Types)

	kinds := make([]reconcile.IssueKind, len(resp.Data.Issues))
	for i, issue := range resp.Data.Issues {
		kinds[i] = issue.Kind
	}
	assert.Contains(t, kinds, reconcile.IssueDuplicateTemporaryID)
	assert.Contains(t, kinds, reconcile.IssueSelfReference)
}

func TestValidate_TypesFlag(t *testing.T) {
	abs, err := filepath.Abs(typesDir)
	require.NoError(t, err)
	path := writeBatch(t, `
requested_types:
  - https://example.com/@acme/types/entity-type/knows/v/1
proposals:
  - entity_id: 1
    entity_type_id: https://example.com/@acme/types/entity-type/person/v/1
    properties:
      https://example.com/@acme/types/property-type/name/: Alice
`)
	stdout, _, err := execute(t, "validate", "--types", abs, path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "[unrequested_type] entity 1")
}

func TestValidate_UndefinedRequestedType(t *testing.T) {
	abs, err := filepath.Abs(typesDir)
	require.NoError(t, err)
	path := writeBatch(t, `
proposals:
  - entity_id: 1
    entity_type_id: https://example.com/@acme/types/entity-type/place/v/1
`)
	stdout, _, err := execute(t, "validate", "--types", abs, path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "requested entity type https://example.com/@acme/types/entity-type/place/v/1 is not defined")
}

func TestValidate_InvalidBatch(t *testing.T) {
	path := writeBatch(t, "proposals:\n  - entity_id: 1\n    entity_type_id: person\n")
	stdout, _, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "Error ["+ErrCodeBatch+"]: loading batch")
}
