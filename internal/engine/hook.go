package engine

import (
	"context"

	"github.com/danielolaszy/bugbridge/pkg/models"
)

// Hook runs after the executor has synchronized a bug with its issue.
// isNew is true when the issue was created by this event.
type Hook interface {
	AfterSync(ctx context.Context, bug *models.Bug, event *models.Event, issueKey string, isNew bool) error
}

// NopHook does nothing.
type NopHook struct{}

func (NopHook) AfterSync(context.Context, *models.Bug, *models.Event, string, bool) error {
	return nil
}
