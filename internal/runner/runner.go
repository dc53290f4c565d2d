// Package runner routes webhook deliveries to the action configured for the
// bug and runs the matching executor.
package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielolaszy/bugbridge/internal/config"
	"github.com/danielolaszy/bugbridge/internal/engine"
	"github.com/danielolaszy/bugbridge/internal/logging"
	"github.com/danielolaszy/bugbridge/pkg/models"
)

// IgnoreError reports a delivery that was deliberately not processed.
type IgnoreError struct {
	Reason string
}

func (e *IgnoreError) Error() string {
	return "ignored: " + e.Reason
}

// IsIgnored reports whether err is, or wraps, an IgnoreError.
func IsIgnored(err error) bool {
	var ignore *IgnoreError
	return errors.As(err, &ignore)
}

// Report is the outcome of one processed delivery.
type Report struct {
	Action string        `json:"action"`
	BugID  int           `json:"bug_id"`
	Result engine.Result `json:"result"`
}

// Runner dispatches deliveries to executors built from the action table.
type Runner struct {
	actions *config.Actions
	bugs    engine.BugTracker
	issues  engine.IssueTracker
	links   engine.Links
}

// New creates a Runner.
func New(actions *config.Actions, bugs engine.BugTracker, issues engine.IssueTracker, links engine.Links) *Runner {
	return &Runner{actions: actions, bugs: bugs, issues: issues, links: links}
}

// Execute processes one delivery. Deliveries that no action should handle
// are reported with an IgnoreError.
func (r *Runner) Execute(ctx context.Context, req *models.WebhookRequest) (*Report, error) {
	if req == nil || req.Bug == nil || req.Event == nil {
		return nil, errors.New("invalid webhook request: bug and event are required")
	}

	bug := req.Bug
	if req.Event.Target == models.TargetBug {
		latest, err := r.bugs.GetBug(ctx, bug.ID)
		if err != nil {
			return nil, fmt.Errorf("refresh bug %d: %w", bug.ID, err)
		}
		latest.Comment = bug.Comment
		bug = latest
	}

	lc := logging.ActionContext{Event: req.Event, BugID: bug.ID}

	action, ok := r.actions.ForBug(bug)
	if !ok {
		logging.Debug("no action matches bug", append(lc.With(logging.OpIgnore).Args(), "whiteboard", bug.Whiteboard)...)
		return nil, &IgnoreError{Reason: fmt.Sprintf("whiteboard tag not found in %v", bug.ActionTags())}
	}
	lc.Project = action.Parameters.JiraProjectKey
	lc = lc.WithExtra("action", action.WhiteboardTag)

	if bug.IsPrivate && !action.AllowPrivate {
		logging.Debug("private bug ignored", lc.With(logging.OpIgnore).Args()...)
		return nil, &IgnoreError{Reason: fmt.Sprintf("private bugs are not allowed by action %q", action.WhiteboardTag)}
	}
	if !action.Enabled {
		logging.Debug("disabled action ignored", lc.With(logging.OpIgnore).Args()...)
		return nil, &IgnoreError{Reason: fmt.Sprintf("action %q is not enabled", action.WhiteboardTag)}
	}

	result, err := r.Executor(action).Execute(ctx, bug, req.Event)
	if err != nil {
		logging.Error("action failed", append(lc.Args(), "error", err)...)
		return nil, fmt.Errorf("action %s: %w", action.WhiteboardTag, err)
	}

	logging.Info("action executed", append(lc.Args(), "handled", result.Handled)...)
	return &Report{Action: action.WhiteboardTag, BugID: bug.ID, Result: result}, nil
}

// Executor builds the executor for an action. The assignee and status
// module mirrors those fields through a Reconciler instead of comments.
func (r *Runner) Executor(action config.Action) *engine.Executor {
	params := action.Parameters
	opts := engine.Options{
		ProjectKey:           params.JiraProjectKey,
		SyncWhiteboardLabels: params.SyncWhiteboardLabels,
		Links:                r.links,
	}

	switch action.Module {
	case config.ModuleAssigneeAndStatus:
		hook := engine.NewReconciler(r.issues, engine.ReconcilerConfig{
			ProjectKey:      params.JiraProjectKey,
			UnassignedEmail: params.UnassignedEmail,
			StatusMap:       params.StatusMap,
			ResolutionMap:   params.ResolutionMap,
		})
		return engine.New(opts, r.bugs, r.issues, hook)
	default:
		opts.LogStatusChanges = true
		opts.LogAssigneeChanges = true
		return engine.New(opts, r.bugs, r.issues, nil)
	}
}
