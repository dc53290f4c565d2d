package engine

import (
	"context"
	"fmt"

	"github.com/danielolaszy/bugbridge/internal/logging"
	"github.com/danielolaszy/bugbridge/pkg/models"
)

// DefaultUnassignedEmail is the login Bugzilla uses for unassigned bugs.
const DefaultUnassignedEmail = "nobody@mozilla.org"

// ReconcilerConfig holds the lookup tables of a Reconciler.
type ReconcilerConfig struct {
	ProjectKey      string
	UnassignedEmail string
	StatusMap       map[string]string
	ResolutionMap   map[string]string
}

// Reconciler is a Hook that mirrors the bug assignee, status and resolution
// onto the issue.
type Reconciler struct {
	issues IssueTracker
	cfg    ReconcilerConfig
}

// NewReconciler creates a Reconciler.
func NewReconciler(issues IssueTracker, cfg ReconcilerConfig) *Reconciler {
	if cfg.UnassignedEmail == "" {
		cfg.UnassignedEmail = DefaultUnassignedEmail
	}
	return &Reconciler{issues: issues, cfg: cfg}
}

// AssigneeAction is what the reconciler does with the issue assignee.
type AssigneeAction int

const (
	AssigneeKeep AssigneeAction = iota
	AssigneeClear
	AssigneeSet
)

func (a AssigneeAction) String() string {
	switch a {
	case AssigneeClear:
		return "clear"
	case AssigneeSet:
		return "set"
	default:
		return "keep"
	}
}

// AssigneeDecision is the outcome of matching a bug assignee against the
// issue tracker's user directory.
type AssigneeDecision struct {
	Action    AssigneeAction
	AccountID string
	Reason    string
}

// DecideAssignee picks the assignee for a bug given the accounts found for
// its assignee login. Anything but exactly one match clears the assignee.
func DecideAssignee(accounts []models.Account) AssigneeDecision {
	switch len(accounts) {
	case 1:
		return AssigneeDecision{Action: AssigneeSet, AccountID: accounts[0].AccountID, Reason: "single match"}
	case 0:
		return AssigneeDecision{Action: AssigneeClear, Reason: "no matching account"}
	default:
		return AssigneeDecision{Action: AssigneeClear, Reason: fmt.Sprintf("%d matching accounts", len(accounts))}
	}
}

// AfterSync implements Hook.
func (r *Reconciler) AfterSync(ctx context.Context, bug *models.Bug, event *models.Event, issueKey string, isNew bool) error {
	lc := logging.ActionContext{
		Event:     event,
		BugID:     bug.ID,
		Operation: logging.OpUpdate,
		Project:   r.cfg.ProjectKey,
		IssueKey:  issueKey,
	}

	if isNew || event.HasChanged("assigned_to") {
		if err := r.syncAssignee(ctx, bug, issueKey, isNew, lc); err != nil {
			return err
		}
	}

	if isNew || event.HasChanged("status", "resolution") {
		if err := r.syncStatus(ctx, bug, issueKey, lc); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) syncAssignee(ctx context.Context, bug *models.Bug, issueKey string, isNew bool, lc logging.ActionContext) error {
	var decision AssigneeDecision
	if bug.AssignedTo == "" || bug.AssignedTo == r.cfg.UnassignedEmail {
		decision = AssigneeDecision{Action: AssigneeClear, Reason: "bug is unassigned"}
	} else {
		logging.Debug("looking up assignee", lc.Args()...)
		accounts, err := r.issues.FindUsers(ctx, bug.AssignedTo)
		if err != nil {
			return fmt.Errorf("find user for bug %d: %w", bug.ID, err)
		}
		decision = DecideAssignee(accounts)
	}

	lc = lc.WithExtra("assignee.decision", decision.Action.String()).WithExtra("assignee.reason", decision.Reason)

	if decision.Action == AssigneeSet {
		err := r.issues.UpdateIssueFields(ctx, issueKey, map[string]any{
			"assignee": map[string]string{"accountId": decision.AccountID},
		})
		if err == nil {
			logging.Debug("assignee updated", lc.Args()...)
			return nil
		}
		logging.Debug("setting assignee failed, clearing it instead",
			append(lc.Args(), "error", err)...)
		decision = AssigneeDecision{Action: AssigneeClear, Reason: "assignment rejected"}
	}

	if decision.Action != AssigneeClear {
		return nil
	}
	// New issues have no assignee yet.
	if isNew {
		return nil
	}
	logging.Debug("clearing assignee", lc.Args()...)
	if err := r.issues.UpdateIssueFields(ctx, issueKey, map[string]any{"assignee": nil}); err != nil {
		return fmt.Errorf("clear assignee of %s: %w", issueKey, err)
	}
	return nil
}

func (r *Reconciler) syncStatus(ctx context.Context, bug *models.Bug, issueKey string, lc logging.ActionContext) error {
	if resolution, ok := r.cfg.ResolutionMap[bug.Resolution]; ok && bug.Resolution != "" {
		logging.Debug("updating issue resolution", append(lc.Args(), "resolution", resolution)...)
		err := r.issues.UpdateIssueFields(ctx, issueKey, map[string]any{
			"resolution": map[string]string{"name": resolution},
		})
		if err != nil {
			return fmt.Errorf("set resolution of %s: %w", issueKey, err)
		}
	} else {
		logging.Debug("bug resolution is not in the resolution map",
			append(lc.With(logging.OpIgnore).Args(), "resolution", bug.Resolution)...)
	}

	statusKey := bug.Resolution
	if statusKey == "" {
		statusKey = bug.Status
	}
	status, ok := r.cfg.StatusMap[statusKey]
	if !ok {
		logging.Debug("bug status is not in the status map",
			append(lc.With(logging.OpIgnore).Args(), "status", statusKey)...)
		return nil
	}

	logging.Debug("updating issue status", append(lc.Args(), "status", status)...)
	if err := r.issues.SetIssueStatus(ctx, issueKey, status); err != nil {
		return fmt.Errorf("set status of %s: %w", issueKey, err)
	}
	return nil
}
