package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/danielolaszy/bugbridge/internal/config"
	"github.com/danielolaszy/bugbridge/internal/engine"
	"github.com/danielolaszy/bugbridge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testActions = `
- whiteboard_tag: devtest
  parameters:
    jira_project_key: JBI
- whiteboard_tag: fidefe
  module: default_with_assignee_and_status
  parameters:
    jira_project_key: FIDEFE
    status_map:
      ASSIGNED: In Progress
- whiteboard_tag: secbug
  allow_private: true
  parameters:
    jira_project_key: SEC
- whiteboard_tag: paused
  enabled: false
  parameters:
    jira_project_key: OLD
`

var testLinks = engine.BugzillaLinks("https://mozilla.atlassian.net", "https://bugzilla.mozilla.org")

// fakeBugs serves bug snapshots from memory.
type fakeBugs struct {
	bugs    map[int]*models.Bug
	getErr  error
	fetched int
}

func (f *fakeBugs) GetBug(_ context.Context, id int) (*models.Bug, error) {
	f.fetched++
	if f.getErr != nil {
		return nil, f.getErr
	}
	bug := *f.bugs[id]
	return &bug, nil
}

func (f *fakeBugs) GetComments(context.Context, int) ([]models.BugComment, error) {
	return []models.BugComment{{Text: "description"}}, nil
}

func (f *fakeBugs) UpdateBug(_ context.Context, id int, _ models.BugUpdate) (*models.BugUpdateResult, error) {
	return &models.BugUpdateResult{ID: id}, nil
}

// fakeIssues records the methods called on it.
type fakeIssues struct {
	methods []string
	fields  []map[string]any
}

func (f *fakeIssues) CreateIssue(_ context.Context, fields map[string]any) (*models.CreatedIssue, error) {
	f.methods = append(f.methods, "CreateIssue")
	f.fields = append(f.fields, fields)
	return &models.CreatedIssue{ID: "1", Key: "JBI-1"}, nil
}

func (f *fakeIssues) UpdateIssueFields(_ context.Context, _ string, fields map[string]any) error {
	f.methods = append(f.methods, "UpdateIssueFields")
	f.fields = append(f.fields, fields)
	return nil
}

func (f *fakeIssues) AddComment(_ context.Context, _, body string) (*models.IssueComment, error) {
	f.methods = append(f.methods, "AddComment")
	return &models.IssueComment{ID: "1", Body: body}, nil
}

func (f *fakeIssues) DeleteIssue(context.Context, string) error {
	f.methods = append(f.methods, "DeleteIssue")
	return nil
}

func (f *fakeIssues) SetIssueStatus(context.Context, string, string) error {
	f.methods = append(f.methods, "SetIssueStatus")
	return nil
}

func (f *fakeIssues) CreateOrUpdateRemoteLink(context.Context, string, string, string) error {
	f.methods = append(f.methods, "CreateOrUpdateRemoteLink")
	return nil
}

func (f *fakeIssues) FindUsers(context.Context, string) ([]models.Account, error) {
	f.methods = append(f.methods, "FindUsers")
	return nil, nil
}

func newTestRunner(t *testing.T, bugs map[int]*models.Bug) (*Runner, *fakeBugs, *fakeIssues) {
	t.Helper()
	actions, err := config.ParseActions([]byte(testActions))
	require.NoError(t, err)

	bugTracker := &fakeBugs{bugs: bugs}
	issueTracker := &fakeIssues{}
	return New(actions, bugTracker, issueTracker, testLinks), bugTracker, issueTracker
}

func linkedBug(whiteboard string) *models.Bug {
	return &models.Bug{
		ID:         42,
		Summary:    "Crash",
		Status:     "ASSIGNED",
		AssignedTo: "nobody@mozilla.org",
		Whiteboard: whiteboard,
		SeeAlso:    []string{"https://mozilla.atlassian.net/browse/JBI-7"},
	}
}

func statusEvent() *models.Event {
	return &models.Event{
		Action:  "modify",
		Target:  models.TargetBug,
		User:    &models.User{Login: "dev@example.com"},
		Changes: []models.EventChange{{Field: "status", Added: "ASSIGNED"}},
	}
}

func TestExecuteRejectsIncompleteRequest(t *testing.T) {
	runner, _, _ := newTestRunner(t, nil)

	for _, req := range []*models.WebhookRequest{nil, {}, {Bug: &models.Bug{}}, {Event: &models.Event{}}} {
		_, err := runner.Execute(context.Background(), req)
		require.Error(t, err)
		assert.False(t, IsIgnored(err))
	}
}

func TestExecuteIgnoresDeliveries(t *testing.T) {
	testCases := []struct {
		name   string
		bug    *models.Bug
		reason string
	}{
		{name: "No matching tag", bug: linkedBug("[unknown]"), reason: "whiteboard tag not found"},
		{name: "No whiteboard", bug: linkedBug(""), reason: "whiteboard tag not found"},
		{name: "Disabled action", bug: linkedBug("[paused]"), reason: "not enabled"},
		{name: "Private bug", bug: func() *models.Bug {
			bug := linkedBug("[devtest]")
			bug.IsPrivate = true
			return bug
		}(), reason: "private bugs"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			runner, _, issues := newTestRunner(t, map[int]*models.Bug{42: tc.bug})

			report, err := runner.Execute(context.Background(), &models.WebhookRequest{Bug: tc.bug, Event: statusEvent()})

			require.Error(t, err)
			assert.Nil(t, report)
			assert.True(t, IsIgnored(err))
			assert.Contains(t, err.Error(), tc.reason)
			assert.Empty(t, issues.methods)
		})
	}
}

func TestExecuteAllowsPrivateWhenConfigured(t *testing.T) {
	bug := linkedBug("[secbug]")
	bug.IsPrivate = true
	runner, _, issues := newTestRunner(t, map[int]*models.Bug{42: bug})

	report, err := runner.Execute(context.Background(), &models.WebhookRequest{Bug: bug, Event: statusEvent()})

	require.NoError(t, err)
	assert.Equal(t, "secbug", report.Action)
	assert.NotEmpty(t, issues.methods)
}

func TestExecuteRefetchesBugForBugEvents(t *testing.T) {
	stale := linkedBug("[devtest]")
	stale.Summary = "Old summary"
	fresh := linkedBug("[devtest]")
	fresh.Summary = "New summary"
	runner, bugs, issues := newTestRunner(t, map[int]*models.Bug{42: fresh})

	report, err := runner.Execute(context.Background(), &models.WebhookRequest{Bug: stale, Event: statusEvent()})

	require.NoError(t, err)
	assert.Equal(t, 1, bugs.fetched)
	assert.True(t, report.Result.Handled)
	assert.Equal(t, "New summary", issues.fields[0]["summary"])
}

func TestExecuteUsesDeliveredBugForComments(t *testing.T) {
	bug := linkedBug("[devtest]")
	bug.Comment = &models.Comment{Body: "hello"}
	runner, bugs, issues := newTestRunner(t, nil)

	report, err := runner.Execute(context.Background(), &models.WebhookRequest{
		Bug:   bug,
		Event: &models.Event{Action: "create", Target: models.TargetComment},
	})

	require.NoError(t, err)
	assert.Zero(t, bugs.fetched)
	assert.Equal(t, []string{"AddComment"}, issues.methods)
	assert.Equal(t, 42, report.BugID)
}

func TestExecuteRefetchFailure(t *testing.T) {
	runner, bugs, _ := newTestRunner(t, nil)
	bugs.getErr = errors.New("bugzilla API returned 503")

	_, err := runner.Execute(context.Background(), &models.WebhookRequest{Bug: linkedBug("[devtest]"), Event: statusEvent()})

	require.Error(t, err)
	assert.False(t, IsIgnored(err))
	assert.Contains(t, err.Error(), "refresh bug 42")
}

func TestExecutorModules(t *testing.T) {
	t.Run("Default module logs status changes as comments", func(t *testing.T) {
		bug := linkedBug("[devtest]")
		runner, _, issues := newTestRunner(t, map[int]*models.Bug{42: bug})

		_, err := runner.Execute(context.Background(), &models.WebhookRequest{Bug: bug, Event: statusEvent()})

		require.NoError(t, err)
		assert.Equal(t, []string{"UpdateIssueFields", "AddComment"}, issues.methods)
	})

	t.Run("Assignee and status module transitions instead", func(t *testing.T) {
		bug := linkedBug("[fidefe]")
		runner, _, issues := newTestRunner(t, map[int]*models.Bug{42: bug})

		_, err := runner.Execute(context.Background(), &models.WebhookRequest{Bug: bug, Event: statusEvent()})

		require.NoError(t, err)
		assert.Equal(t, []string{"UpdateIssueFields", "SetIssueStatus"}, issues.methods)
	})
}
