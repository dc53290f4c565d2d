package logging

import (
	"strings"

	"github.com/danielolaszy/bugbridge/pkg/models"
)

// Operation names the kind of work an action is doing at a call site.
type Operation string

const (
	OpCreate  Operation = "create"
	OpUpdate  Operation = "update"
	OpComment Operation = "comment"
	OpDelete  Operation = "delete"
	OpLink    Operation = "link"
	OpIgnore  Operation = "ignore"
)

// ActionContext carries the structured fields attached to every log line
// emitted while handling one webhook event.
type ActionContext struct {
	Event     *models.Event
	BugID     int
	Operation Operation
	Project   string
	IssueKey  string
	Extra     map[string]string
}

// With returns a copy of the context with a different operation.
func (c ActionContext) With(op Operation) ActionContext {
	c.Operation = op
	return c
}

// WithIssue returns a copy of the context bound to an issue key.
func (c ActionContext) WithIssue(key string) ActionContext {
	c.IssueKey = key
	return c
}

// WithExtra returns a copy of the context with one more extra field.
func (c ActionContext) WithExtra(key, value string) ActionContext {
	extra := make(map[string]string, len(c.Extra)+1)
	for k, v := range c.Extra {
		extra[k] = v
	}
	extra[key] = value
	c.Extra = extra
	return c
}

// Args flattens the context into slog key/value pairs.
func (c ActionContext) Args() []any {
	args := []any{
		"operation", string(c.Operation),
		"bug.id", c.BugID,
		"jira.project", c.Project,
		"jira.issue", c.IssueKey,
	}
	if c.Event != nil {
		args = append(args,
			"event.action", c.Event.Action,
			"event.target", c.Event.Target,
			"event.routing_key", c.Event.RoutingKey,
			"event.user", c.Event.UserLogin(),
			"event.changed_fields", strings.Join(c.Event.ChangedFields(), ","),
		)
	}
	for k, v := range c.Extra {
		args = append(args, k, v)
	}
	return args
}
