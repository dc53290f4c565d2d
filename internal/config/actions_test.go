package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/danielolaszy/bugbridge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleActions = `
- whiteboard_tag: DevTest
  contact: dev@example.com
  parameters:
    jira_project_key: JBI
- whiteboard_tag: fidefe
  module: default_with_assignee_and_status
  enabled: false
  allow_private: true
  parameters:
    jira_project_key: FIDEFE
    sync_whiteboard_labels: false
    status_map:
      ASSIGNED: In Progress
    resolution_map:
      FIXED: Done
`

func TestParseActionsDefaults(t *testing.T) {
	actions, err := ParseActions([]byte(sampleActions))
	require.NoError(t, err)

	devtest, ok := actions.Get("devtest")
	require.True(t, ok)
	assert.Equal(t, "devtest", devtest.WhiteboardTag)
	assert.True(t, devtest.Enabled)
	assert.False(t, devtest.AllowPrivate)
	assert.Equal(t, ModuleDefault, devtest.Module)
	assert.True(t, devtest.Parameters.SyncWhiteboardLabels)

	fidefe, ok := actions.Get("FIDEFE")
	require.True(t, ok)
	assert.False(t, fidefe.Enabled)
	assert.True(t, fidefe.AllowPrivate)
	assert.Equal(t, ModuleAssigneeAndStatus, fidefe.Module)
	assert.False(t, fidefe.Parameters.SyncWhiteboardLabels)
	assert.Equal(t, map[string]string{"ASSIGNED": "In Progress"}, fidefe.Parameters.StatusMap)
	assert.Equal(t, map[string]string{"FIXED": "Done"}, fidefe.Parameters.ResolutionMap)

	assert.Len(t, actions.All(), 2)
	assert.Equal(t, []string{"FIDEFE", "JBI"}, actions.ProjectKeys())
}

func TestParseActionsValidation(t *testing.T) {
	testCases := []struct {
		name          string
		yaml          string
		errorContains string
	}{
		{
			name:          "Empty document",
			yaml:          ``,
			errorContains: "no actions defined",
		},
		{
			name:          "Not a list",
			yaml:          `whiteboard_tag: devtest`,
			errorContains: "failed to parse actions",
		},
		{
			name: "Missing tag",
			yaml: `
- parameters:
    jira_project_key: JBI`,
			errorContains: "whiteboard_tag is required",
		},
		{
			name: "Duplicate tag",
			yaml: `
- whiteboard_tag: devtest
  parameters: {jira_project_key: JBI}
- whiteboard_tag: DEVTEST
  parameters: {jira_project_key: OTHER}`,
			errorContains: "duplicate whiteboard tag",
		},
		{
			name: "Unknown module",
			yaml: `
- whiteboard_tag: devtest
  module: fancy
  parameters: {jira_project_key: JBI}`,
			errorContains: "unknown module",
		},
		{
			name: "Missing project",
			yaml: `
- whiteboard_tag: devtest`,
			errorContains: "jira_project_key is required",
		},
		{
			name: "Empty mapping value",
			yaml: `
- whiteboard_tag: devtest
  parameters:
    jira_project_key: JBI
    status_map:
      ASSIGNED: ""`,
			errorContains: "empty value",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actions, err := ParseActions([]byte(tc.yaml))
			require.Error(t, err)
			assert.Nil(t, actions)
			assert.Contains(t, err.Error(), tc.errorContains)
		})
	}
}

func TestActionsForBug(t *testing.T) {
	actions, err := ParseActions([]byte(sampleActions))
	require.NoError(t, err)

	testCases := []struct {
		whiteboard string
		want       string
		found      bool
	}{
		{whiteboard: "[devtest]", want: "devtest", found: true},
		{whiteboard: "[DevTest-Triage]", want: "devtest", found: true},
		{whiteboard: "[unknown] [fidefe-2024]", want: "fidefe", found: true},
		{whiteboard: "[unknown]", found: false},
		{whiteboard: "", found: false},
	}

	for _, tc := range testCases {
		t.Run(tc.whiteboard, func(t *testing.T) {
			action, ok := actions.ForBug(&models.Bug{Whiteboard: tc.whiteboard})
			assert.Equal(t, tc.found, ok)
			assert.Equal(t, tc.want, action.WhiteboardTag)
		})
	}
}

func TestLoadActions(t *testing.T) {
	t.Run("Bundled actions file", func(t *testing.T) {
		actions, err := LoadActions(filepath.Join("..", "..", "config", "actions.yaml"))
		require.NoError(t, err)

		fidefe, ok := actions.Get("fidefe")
		require.True(t, ok)
		assert.Equal(t, "Won't Do", fidefe.Parameters.ResolutionMap["WONTFIX"])
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := LoadActions(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("Invalid file names the path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "actions.yaml")
		require.NoError(t, os.WriteFile(path, []byte("- whiteboard_tag: x"), 0o600))

		_, err := LoadActions(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), path)
	})
}
