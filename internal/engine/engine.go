package engine

import (
	"context"
	"fmt"

	"github.com/danielolaszy/bugbridge/internal/logging"
	"github.com/danielolaszy/bugbridge/pkg/models"
)

// Options configures an Executor.
type Options struct {
	ProjectKey           string
	SyncWhiteboardLabels bool
	Links                Links

	// LogStatusChanges and LogAssigneeChanges mirror status and assignee
	// changes as issue comments.
	LogStatusChanges   bool
	LogAssigneeChanges bool
}

// Result reports what an Executor did with an event. It is informational
// only; callers branch on the returned error.
type Result struct {
	Handled   bool           `json:"handled"`
	Responses map[string]any `json:"responses"`
}

func noop() Result {
	return Result{Responses: map[string]any{}}
}

// Executor synchronizes one bug event with the issue tracker. It keeps no
// state between calls and may be shared between goroutines.
type Executor struct {
	opts   Options
	mapper FieldMapper
	bugs   BugTracker
	issues IssueTracker
	hook   Hook
}

// New creates an Executor. A nil hook is replaced by NopHook.
func New(opts Options, bugs BugTracker, issues IssueTracker, hook Hook) *Executor {
	if hook == nil {
		hook = NopHook{}
	}
	return &Executor{
		opts: opts,
		mapper: FieldMapper{
			ProjectKey:           opts.ProjectKey,
			SyncWhiteboardLabels: opts.SyncWhiteboardLabels,
			LogStatusChanges:     opts.LogStatusChanges,
			LogAssigneeChanges:   opts.LogAssigneeChanges,
		},
		bugs:   bugs,
		issues: issues,
		hook:   hook,
	}
}

// Execute handles one event for the given bug snapshot.
func (e *Executor) Execute(ctx context.Context, bug *models.Bug, event *models.Event) (Result, error) {
	lc := logging.ActionContext{
		Event:   event,
		BugID:   bug.ID,
		Project: e.opts.ProjectKey,
	}

	switch event.Target {
	case models.TargetComment:
		return e.commentCreateOrNoop(ctx, bug, event, lc.With(logging.OpComment))
	case models.TargetBug:
		return e.bugCreateOrUpdate(ctx, bug, event, lc)
	default:
		logging.Debug("ignoring event target", append(lc.With(logging.OpIgnore).Args(), "target", event.Target)...)
		return noop(), nil
	}
}

func (e *Executor) commentCreateOrNoop(ctx context.Context, bug *models.Bug, event *models.Event, lc logging.ActionContext) (Result, error) {
	key := ExtractIssueKey(bug.SeeAlso, e.opts.Links.JiraBaseURL)
	lc = lc.WithIssue(key)
	if key == "" {
		logging.Debug("no issue linked to bug", lc.Args()...)
		return noop(), nil
	}
	if bug.Comment == nil {
		logging.Debug("no comment found in payload", lc.Args()...)
		return noop(), nil
	}

	comment, err := e.issues.AddComment(ctx, key, EventComment(bug, event))
	if err != nil {
		return Result{}, fmt.Errorf("add comment to %s for bug %d: %w", key, bug.ID, err)
	}
	logging.Debug("comment added to issue", lc.Args()...)

	return Result{Handled: true, Responses: map[string]any{"jira_response": comment}}, nil
}

func (e *Executor) bugCreateOrUpdate(ctx context.Context, bug *models.Bug, event *models.Event, lc logging.ActionContext) (Result, error) {
	key := ExtractIssueKey(bug.SeeAlso, e.opts.Links.JiraBaseURL)
	if key == "" {
		return e.createAndLinkIssue(ctx, bug, event, lc.With(logging.OpCreate))
	}
	lc = lc.With(logging.OpUpdate).WithIssue(key)

	logging.Debug("updating issue fields", lc.Args()...)
	if err := e.issues.UpdateIssueFields(ctx, key, e.mapper.UpdateFields(bug)); err != nil {
		return Result{}, fmt.Errorf("update %s for bug %d: %w", key, bug.ID, err)
	}

	comments := e.mapper.ChangeComments(bug, event)
	posted := make([]*models.IssueComment, 0, len(comments))
	for i, body := range comments {
		logging.Debug("adding change comment", append(lc.With(logging.OpComment).Args(), "comment.index", i+1)...)
		comment, err := e.issues.AddComment(ctx, key, body)
		if err != nil {
			return Result{}, fmt.Errorf("add comment to %s for bug %d: %w", key, bug.ID, err)
		}
		posted = append(posted, comment)
	}

	if err := e.hook.AfterSync(ctx, bug, event, key, false); err != nil {
		return Result{}, fmt.Errorf("post-sync of %s for bug %d: %w", key, bug.ID, err)
	}

	return Result{
		Handled: true,
		Responses: map[string]any{
			"jira_update":   key,
			"jira_comments": posted,
		},
	}, nil
}

// createAndLinkIssue creates the issue, checks that no concurrent event
// linked another issue meanwhile, and writes the cross-link.
func (e *Executor) createAndLinkIssue(ctx context.Context, bug *models.Bug, event *models.Event, lc logging.ActionContext) (Result, error) {
	logging.Debug("creating issue for bug", lc.Args()...)

	comments, err := e.bugs.GetComments(ctx, bug.ID)
	if err != nil {
		return Result{}, fmt.Errorf("get comments of bug %d: %w", bug.ID, err)
	}
	description := ""
	if len(comments) > 0 {
		description = comments[0].Text
	}

	created, err := e.issues.CreateIssue(ctx, e.mapper.CreateFields(bug, description))
	if err != nil {
		return Result{}, fmt.Errorf("create issue for bug %d: %w", bug.ID, err)
	}
	if created == nil || created.Key == "" {
		return Result{}, &models.ValidationError{Op: "create issue", Detail: "response carries no issue key"}
	}
	lc = lc.WithIssue(created.Key)

	// The bug may have been linked by another event while the issue was
	// being created.
	latest, err := e.bugs.GetBug(ctx, bug.ID)
	if err != nil {
		return Result{}, fmt.Errorf("refetch bug %d: %w", bug.ID, err)
	}
	if existing := ExtractIssueKey(latest.SeeAlso, e.opts.Links.JiraBaseURL); existing != "" && existing != created.Key {
		logging.Warn("deleting duplicated issue",
			append(lc.With(logging.OpDelete).Args(), "jira.linked_issue", existing)...)
		if err := e.issues.DeleteIssue(ctx, created.Key); err != nil {
			return Result{}, fmt.Errorf("delete duplicated issue %s for bug %d: %w", created.Key, bug.ID, err)
		}
		return Result{Handled: true, Responses: map[string]any{"jira_deleted": created.Key}}, nil
	}

	issueURL := e.opts.Links.IssueURL(created.Key)
	logging.Debug("linking issue on bug", append(lc.With(logging.OpLink).Args(), "url", issueURL)...)
	bugResponse, err := e.bugs.UpdateBug(ctx, bug.ID, models.BugUpdate{
		SeeAlso: models.SeeAlsoPatch{Add: []string{issueURL}},
	})
	if err != nil {
		return Result{}, fmt.Errorf("link %s on bug %d: %w", created.Key, bug.ID, err)
	}

	bugURL := e.opts.Links.BugURL(bug.ID)
	logging.Debug("linking bug on issue", append(lc.With(logging.OpLink).Args(), "url", bugURL)...)
	if err := e.issues.CreateOrUpdateRemoteLink(ctx, created.Key, bugURL, bugURL); err != nil {
		return Result{}, fmt.Errorf("link bug %d on %s: %w", bug.ID, created.Key, err)
	}

	if err := e.hook.AfterSync(ctx, latest, event, created.Key, true); err != nil {
		return Result{}, fmt.Errorf("post-sync of %s for bug %d: %w", created.Key, bug.ID, err)
	}

	return Result{
		Handled: true,
		Responses: map[string]any{
			"jira_create":       created,
			"bugzilla_response": bugResponse,
		},
	}, nil
}
