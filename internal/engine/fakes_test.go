package engine

import (
	"context"

	"github.com/danielolaszy/bugbridge/pkg/models"
)

const testJiraURL = "https://mozilla.atlassian.net"

var testLinks = BugzillaLinks(testJiraURL, "https://bugzilla.mozilla.org")

// call records one remote call made through a fake client.
type call struct {
	Method string
	Key    string
	Arg    any
}

// MockBugTracker implements BugTracker for testing.
type MockBugTracker struct {
	GetBugFunc      func(id int) (*models.Bug, error)
	GetCommentsFunc func(id int) ([]models.BugComment, error)
	UpdateBugFunc   func(id int, update models.BugUpdate) (*models.BugUpdateResult, error)

	calls *[]call
}

func (m *MockBugTracker) record(c call) {
	if m.calls != nil {
		*m.calls = append(*m.calls, c)
	}
}

func (m *MockBugTracker) GetBug(_ context.Context, id int) (*models.Bug, error) {
	m.record(call{Method: "GetBug", Arg: id})
	if m.GetBugFunc != nil {
		return m.GetBugFunc(id)
	}
	return &models.Bug{ID: id}, nil
}

func (m *MockBugTracker) GetComments(_ context.Context, id int) ([]models.BugComment, error) {
	m.record(call{Method: "GetComments", Arg: id})
	if m.GetCommentsFunc != nil {
		return m.GetCommentsFunc(id)
	}
	return []models.BugComment{{Text: "description"}}, nil
}

func (m *MockBugTracker) UpdateBug(_ context.Context, id int, update models.BugUpdate) (*models.BugUpdateResult, error) {
	m.record(call{Method: "UpdateBug", Arg: update})
	if m.UpdateBugFunc != nil {
		return m.UpdateBugFunc(id, update)
	}
	return &models.BugUpdateResult{ID: id}, nil
}

// MockIssueTracker implements IssueTracker for testing.
type MockIssueTracker struct {
	CreateIssueFunc       func(fields map[string]any) (*models.CreatedIssue, error)
	UpdateIssueFieldsFunc func(key string, fields map[string]any) error
	AddCommentFunc        func(key, body string) (*models.IssueComment, error)
	DeleteIssueFunc       func(key string) error
	SetIssueStatusFunc    func(key, status string) error
	RemoteLinkFunc        func(key, url, title string) error
	FindUsersFunc         func(query string) ([]models.Account, error)

	calls *[]call
}

func (m *MockIssueTracker) record(c call) {
	if m.calls != nil {
		*m.calls = append(*m.calls, c)
	}
}

func (m *MockIssueTracker) CreateIssue(_ context.Context, fields map[string]any) (*models.CreatedIssue, error) {
	m.record(call{Method: "CreateIssue", Arg: fields})
	if m.CreateIssueFunc != nil {
		return m.CreateIssueFunc(fields)
	}
	return &models.CreatedIssue{ID: "10001", Key: "JBI-1"}, nil
}

func (m *MockIssueTracker) UpdateIssueFields(_ context.Context, key string, fields map[string]any) error {
	m.record(call{Method: "UpdateIssueFields", Key: key, Arg: fields})
	if m.UpdateIssueFieldsFunc != nil {
		return m.UpdateIssueFieldsFunc(key, fields)
	}
	return nil
}

func (m *MockIssueTracker) AddComment(_ context.Context, key, body string) (*models.IssueComment, error) {
	m.record(call{Method: "AddComment", Key: key, Arg: body})
	if m.AddCommentFunc != nil {
		return m.AddCommentFunc(key, body)
	}
	return &models.IssueComment{ID: "1", Body: body}, nil
}

func (m *MockIssueTracker) DeleteIssue(_ context.Context, key string) error {
	m.record(call{Method: "DeleteIssue", Key: key})
	if m.DeleteIssueFunc != nil {
		return m.DeleteIssueFunc(key)
	}
	return nil
}

func (m *MockIssueTracker) SetIssueStatus(_ context.Context, key, status string) error {
	m.record(call{Method: "SetIssueStatus", Key: key, Arg: status})
	if m.SetIssueStatusFunc != nil {
		return m.SetIssueStatusFunc(key, status)
	}
	return nil
}

func (m *MockIssueTracker) CreateOrUpdateRemoteLink(_ context.Context, key, url, title string) error {
	m.record(call{Method: "CreateOrUpdateRemoteLink", Key: key, Arg: url})
	if m.RemoteLinkFunc != nil {
		return m.RemoteLinkFunc(key, url, title)
	}
	return nil
}

func (m *MockIssueTracker) FindUsers(_ context.Context, query string) ([]models.Account, error) {
	m.record(call{Method: "FindUsers", Arg: query})
	if m.FindUsersFunc != nil {
		return m.FindUsersFunc(query)
	}
	return nil, nil
}

// recordingHook remembers its invocations.
type recordingHook struct {
	invocations []hookInvocation
	err         error
}

type hookInvocation struct {
	BugID    int
	IssueKey string
	IsNew    bool
}

func (h *recordingHook) AfterSync(_ context.Context, bug *models.Bug, _ *models.Event, issueKey string, isNew bool) error {
	h.invocations = append(h.invocations, hookInvocation{BugID: bug.ID, IssueKey: issueKey, IsNew: isNew})
	return h.err
}

// methods lists the method names of recorded calls.
func methods(calls []call) []string {
	names := make([]string, 0, len(calls))
	for _, c := range calls {
		names = append(names, c.Method)
	}
	return names
}

// callsTo filters recorded calls by method name.
func callsTo(calls []call, method string) []call {
	var filtered []call
	for _, c := range calls {
		if c.Method == method {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

func linkedBug() *models.Bug {
	return &models.Bug{
		ID:         654321,
		Summary:    "JBI Test",
		Status:     "NEW",
		AssignedTo: "nobody@mozilla.org",
		Whiteboard: "[devtest]",
		Type:       "defect",
		SeeAlso:    []string{"https://mozilla.atlassian.net/browse/JBI-234"},
	}
}

func unlinkedBug() *models.Bug {
	bug := linkedBug()
	bug.SeeAlso = nil
	return bug
}
