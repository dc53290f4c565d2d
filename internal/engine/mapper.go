package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/danielolaszy/bugbridge/pkg/models"
)

// DescriptionCharLimit is the largest description Jira accepts.
const DescriptionCharLimit = 32767

// FieldMapper turns bug snapshots and events into issue tracker payloads.
type FieldMapper struct {
	ProjectKey           string
	SyncWhiteboardLabels bool

	// LogStatusChanges and LogAssigneeChanges control whether status and
	// assignee changes are mirrored as comments.
	LogStatusChanges   bool
	LogAssigneeChanges bool
}

// UpdateFields returns the fields pushed on every bug change.
func (m FieldMapper) UpdateFields(bug *models.Bug) map[string]any {
	fields := map[string]any{
		"summary": bug.Summary,
	}
	if m.SyncWhiteboardLabels {
		fields["labels"] = JiraLabels(bug)
	}
	return fields
}

// CreateFields returns the fields of a new issue mirroring bug.
func (m FieldMapper) CreateFields(bug *models.Bug, description string) map[string]any {
	fields := m.UpdateFields(bug)
	fields["issuetype"] = map[string]string{"name": IssueType(bug)}
	fields["description"] = TruncateDescription(description)
	fields["project"] = map[string]string{"key": m.ProjectKey}
	return fields
}

// JiraLabels derives issue labels from the whiteboard. Jira labels cannot
// contain spaces so they are replaced with dots.
func JiraLabels(bug *models.Bug) []string {
	tags := bug.WhiteboardTags()
	labels := make([]string, 0, 1+2*len(tags))
	labels = append(labels, "bugzilla")
	for _, tag := range tags {
		labels = append(labels, strings.ReplaceAll(tag, " ", "."))
	}
	for _, tag := range tags {
		labels = append(labels, "["+strings.ReplaceAll(tag, " ", ".")+"]")
	}
	return labels
}

// IssueType maps the bug type to an issue type name.
func IssueType(bug *models.Bug) string {
	switch bug.Type {
	case "defect":
		return "Bug"
	default:
		return "Task"
	}
}

// TruncateDescription cuts text to DescriptionCharLimit characters.
func TruncateDescription(text string) string {
	if len(text) <= DescriptionCharLimit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= DescriptionCharLimit {
		return text
	}
	return string(runes[:DescriptionCharLimit])
}

// EventComment formats the comment carried by a comment event.
func EventComment(bug *models.Bug, event *models.Event) string {
	body := ""
	if bug.Comment != nil {
		body = bug.Comment.Body
	}
	return fmt.Sprintf("*(%s)* commented: \n{quote}%s{quote}", event.UserLogin(), body)
}

type statusChange struct {
	ModifiedBy string `json:"modified by"`
	Resolution string `json:"resolution"`
	Status     string `json:"status"`
}

type assigneeChange struct {
	Assignee string `json:"assignee"`
}

// ChangeComments returns one comment per loggable change category found in
// the event, in the order the categories first appear.
func (m FieldMapper) ChangeComments(bug *models.Bug, event *models.Event) []string {
	var (
		comments  []string
		sawStatus bool
		sawAssign bool
	)
	for _, field := range event.ChangedFields() {
		var payload any
		switch field {
		case "status", "resolution":
			if !m.LogStatusChanges || sawStatus {
				continue
			}
			sawStatus = true
			payload = statusChange{
				ModifiedBy: event.UserLogin(),
				Resolution: bug.Resolution,
				Status:     bug.Status,
			}
		case "assigned_to", "assignee":
			if !m.LogAssigneeChanges || sawAssign {
				continue
			}
			sawAssign = true
			payload = assigneeChange{Assignee: bug.AssignedTo}
		default:
			continue
		}

		data, err := json.MarshalIndent(payload, "", "    ")
		if err != nil {
			continue
		}
		comments = append(comments, string(data))
	}
	return comments
}
