// Package engine mirrors bug tracker events into the issue tracker.
//
// An Executor decides per event whether the bug is already linked to an
// issue, creates and links one when it is not, and pushes summary, labels and
// comments when it is. Behaviour beyond that is plugged in through a Hook.
package engine

import (
	"context"

	"github.com/danielolaszy/bugbridge/pkg/models"
)

// BugTracker is the subset of the bug tracker API the engine relies on.
type BugTracker interface {
	// GetBug fetches the current snapshot of a bug.
	GetBug(ctx context.Context, id int) (*models.Bug, error)

	// GetComments returns the comments of a bug, oldest first.
	GetComments(ctx context.Context, id int) ([]models.BugComment, error)

	// UpdateBug applies a see_also patch to a bug.
	UpdateBug(ctx context.Context, id int, update models.BugUpdate) (*models.BugUpdateResult, error)
}

// IssueTracker is the subset of the issue tracker API the engine relies on.
type IssueTracker interface {
	// CreateIssue creates an issue from a fields payload. Implementations
	// normalize the remote answer and reject malformed ones with a
	// *models.ValidationError.
	CreateIssue(ctx context.Context, fields map[string]any) (*models.CreatedIssue, error)

	// UpdateIssueFields sets the given fields; a nil value clears a field.
	UpdateIssueFields(ctx context.Context, key string, fields map[string]any) error

	// AddComment posts a comment on an issue.
	AddComment(ctx context.Context, key, body string) (*models.IssueComment, error)

	// DeleteIssue removes an issue.
	DeleteIssue(ctx context.Context, key string) error

	// SetIssueStatus moves an issue through its workflow to the named status.
	SetIssueStatus(ctx context.Context, key, status string) error

	// CreateOrUpdateRemoteLink attaches a link to an external URL, replacing
	// an existing link to the same URL.
	CreateOrUpdateRemoteLink(ctx context.Context, key, url, title string) error

	// FindUsers searches the user directory.
	FindUsers(ctx context.Context, query string) ([]models.Account, error)
}
