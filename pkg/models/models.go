// Package models defines data structures shared across the application.
package models

import (
	"strings"
)

// Bug is a read-only snapshot of a bug as delivered by the bug tracker.
type Bug struct {
	// ID is the bug number (e.g., 1654321)
	ID int `json:"id"`

	// Summary is the one-line bug title
	Summary string `json:"summary"`

	// Status is the bug status (e.g., "NEW", "ASSIGNED", "RESOLVED")
	Status string `json:"status"`

	// Resolution is empty while the bug is open (e.g., "FIXED", "WONTFIX")
	Resolution string `json:"resolution"`

	// AssignedTo is the login of the assignee
	AssignedTo string `json:"assigned_to"`

	// Whiteboard is the free-text status whiteboard (e.g., "[devtest] [perf-triage]")
	Whiteboard string `json:"whiteboard"`

	// SeeAlso holds URLs of related items in other systems
	SeeAlso []string `json:"see_also"`

	// Type is the bug type ("defect", "enhancement" or "task")
	Type string `json:"type"`

	// Product is the product the bug is filed under
	Product string `json:"product"`

	// Component is the component the bug is filed under
	Component string `json:"component"`

	// IsPrivate reports whether the bug is restricted to a security group
	IsPrivate bool `json:"is_private"`

	// Comment is the comment attached to the triggering event, if any
	Comment *Comment `json:"comment,omitempty"`
}

// Comment is the comment carried by a webhook delivery.
type Comment struct {
	ID        int    `json:"id"`
	Number    int    `json:"number"`
	Body      string `json:"body"`
	IsPrivate bool   `json:"is_private"`
}

// BugComment is a comment as returned by the bug tracker's comment listing.
// The first comment of a bug is its description.
type BugComment struct {
	ID        int    `json:"id"`
	Count     int    `json:"count"`
	Text      string `json:"text"`
	Creator   string `json:"creator"`
	IsPrivate bool   `json:"is_private"`
}

// WhiteboardTags splits the whiteboard into its bracketed entries.
// "[devtest] [foo bar]" yields ["devtest", "foo bar"].
func (b *Bug) WhiteboardTags() []string {
	if b.Whiteboard == "" {
		return nil
	}
	parts := strings.Split(strings.ReplaceAll(b.Whiteboard, "[", ""), "]")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tags = append(tags, part)
	}
	return tags
}

// ActionTags returns the candidate action names for the bug: the lowercased
// first word (up to the first "-") of each whiteboard tag, in order.
func (b *Bug) ActionTags() []string {
	var tags []string
	for _, tag := range b.WhiteboardTags() {
		first := strings.SplitN(strings.ToLower(tag), "-", 2)[0]
		if first != "" {
			tags = append(tags, first)
		}
	}
	return tags
}

// User is the account that triggered a webhook event.
type User struct {
	ID       int    `json:"id"`
	Login    string `json:"login"`
	RealName string `json:"real_name"`
}

// EventChange is a single field change reported by a webhook event.
type EventChange struct {
	Field   string `json:"field"`
	Removed string `json:"removed"`
	Added   string `json:"added"`
}

// Event describes what triggered a webhook delivery.
type Event struct {
	// Action is the bug tracker action (e.g., "create", "modify")
	Action string `json:"action"`

	// Time is the event timestamp as sent by the bug tracker
	Time string `json:"time,omitempty"`

	// User is the account that performed the change
	User *User `json:"user,omitempty"`

	// Target is "bug" or "comment"
	Target string `json:"target"`

	// RoutingKey is the webhook routing key (e.g., "bug.modify:status")
	RoutingKey string `json:"routing_key,omitempty"`

	// Changes lists the changed fields; empty for creations
	Changes []EventChange `json:"changes,omitempty"`
}

// Event targets.
const (
	TargetBug     = "bug"
	TargetComment = "comment"
)

// ChangedFields returns the names of the changed fields in delivery order.
func (e *Event) ChangedFields() []string {
	if e == nil {
		return nil
	}
	fields := make([]string, 0, len(e.Changes))
	for _, change := range e.Changes {
		fields = append(fields, change.Field)
	}
	return fields
}

// HasChanged reports whether any of the given fields is among the changes.
func (e *Event) HasChanged(fields ...string) bool {
	if e == nil {
		return false
	}
	for _, change := range e.Changes {
		for _, field := range fields {
			if change.Field == field {
				return true
			}
		}
	}
	return false
}

// UserLogin returns the login of the user behind the event, or "unknown".
func (e *Event) UserLogin() string {
	if e == nil || e.User == nil || e.User.Login == "" {
		return "unknown"
	}
	return e.User.Login
}

// WebhookRequest is a complete webhook delivery.
type WebhookRequest struct {
	WebhookID   int    `json:"webhook_id"`
	WebhookName string `json:"webhook_name"`
	Event       *Event `json:"event"`
	Bug         *Bug   `json:"bug"`
}

// BugUpdate is a patch of the bug's see_also field.
type BugUpdate struct {
	SeeAlso SeeAlsoPatch `json:"see_also"`
}

// SeeAlsoPatch adds and removes see_also URLs.
type SeeAlsoPatch struct {
	Add    []string `json:"add,omitempty"`
	Remove []string `json:"remove,omitempty"`
}

// BugUpdateResult is the bug tracker's answer to a BugUpdate.
type BugUpdateResult struct {
	ID      int                     `json:"id"`
	Changes map[string]FieldChanged `json:"changes,omitempty"`
}

// FieldChanged reports the before/after value of a field update.
type FieldChanged struct {
	Added   string `json:"added"`
	Removed string `json:"removed"`
}

// CreatedIssue is the issue tracker's answer to an issue creation.
type CreatedIssue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

// IssueComment is a comment stored on an issue.
type IssueComment struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

// Account is a user of the issue tracker.
type Account struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress,omitempty"`
	Active       bool   `json:"active"`
}
