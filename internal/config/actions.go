package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/danielolaszy/bugbridge/pkg/models"
	"gopkg.in/yaml.v3"
)

// Action modules.
const (
	ModuleDefault           = "default"
	ModuleAssigneeAndStatus = "default_with_assignee_and_status"
)

// ActionParameters configures how one action syncs bugs.
type ActionParameters struct {
	JiraProjectKey       string            `yaml:"jira_project_key"`
	SyncWhiteboardLabels bool              `yaml:"sync_whiteboard_labels"`
	UnassignedEmail      string            `yaml:"unassigned_email"`
	StatusMap            map[string]string `yaml:"status_map"`
	ResolutionMap        map[string]string `yaml:"resolution_map"`
}

// UnmarshalYAML applies defaults for keys absent from the document.
func (p *ActionParameters) UnmarshalYAML(value *yaml.Node) error {
	type plain ActionParameters
	params := plain{SyncWhiteboardLabels: true}
	if err := value.Decode(&params); err != nil {
		return err
	}
	*p = ActionParameters(params)
	return nil
}

// Action binds a whiteboard tag to a sync module and its parameters.
type Action struct {
	WhiteboardTag string           `yaml:"whiteboard_tag"`
	Description   string           `yaml:"description"`
	Contact       string           `yaml:"contact"`
	Enabled       bool             `yaml:"enabled"`
	Module        string           `yaml:"module"`
	AllowPrivate  bool             `yaml:"allow_private"`
	Parameters    ActionParameters `yaml:"parameters"`
}

// UnmarshalYAML applies defaults for keys absent from the document.
func (a *Action) UnmarshalYAML(value *yaml.Node) error {
	type plain Action
	action := plain{Enabled: true, Module: ModuleDefault}
	if err := value.Decode(&action); err != nil {
		return err
	}
	action.WhiteboardTag = strings.ToLower(strings.TrimSpace(action.WhiteboardTag))
	*a = Action(action)
	return nil
}

// Actions is a validated action table indexed by whiteboard tag.
type Actions struct {
	list  []Action
	byTag map[string]int
}

// LoadActions reads and validates the action table at path.
func LoadActions(path string) (*Actions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read actions file: %w", err)
	}
	actions, err := ParseActions(data)
	if err != nil {
		return nil, fmt.Errorf("invalid actions file %s: %w", path, err)
	}
	return actions, nil
}

// ParseActions decodes and validates a YAML action table.
func ParseActions(data []byte) (*Actions, error) {
	var list []Action
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse actions: %w", err)
	}
	if len(list) == 0 {
		return nil, errors.New("no actions defined")
	}

	actions := &Actions{list: list, byTag: make(map[string]int, len(list))}
	var problems []error
	for i, action := range list {
		if err := validateAction(action); err != nil {
			problems = append(problems, fmt.Errorf("action %d: %w", i+1, err))
			continue
		}
		if _, dup := actions.byTag[action.WhiteboardTag]; dup {
			problems = append(problems, fmt.Errorf("action %d: duplicate whiteboard tag %q", i+1, action.WhiteboardTag))
			continue
		}
		actions.byTag[action.WhiteboardTag] = i
	}
	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}
	return actions, nil
}

func validateAction(action Action) error {
	if action.WhiteboardTag == "" {
		return errors.New("whiteboard_tag is required")
	}
	switch action.Module {
	case ModuleDefault, ModuleAssigneeAndStatus:
	default:
		return fmt.Errorf("%s: unknown module %q", action.WhiteboardTag, action.Module)
	}
	if action.Parameters.JiraProjectKey == "" {
		return fmt.Errorf("%s: jira_project_key is required", action.WhiteboardTag)
	}
	for name, table := range map[string]map[string]string{
		"status_map":     action.Parameters.StatusMap,
		"resolution_map": action.Parameters.ResolutionMap,
	} {
		for from, to := range table {
			if to == "" {
				return fmt.Errorf("%s: %s has an empty value for %q", action.WhiteboardTag, name, from)
			}
		}
	}
	return nil
}

// Get returns the action registered for tag.
func (a *Actions) Get(tag string) (Action, bool) {
	i, ok := a.byTag[strings.ToLower(tag)]
	if !ok {
		return Action{}, false
	}
	return a.list[i], true
}

// ForBug returns the first action matching one of the bug's whiteboard tags.
func (a *Actions) ForBug(bug *models.Bug) (Action, bool) {
	for _, tag := range bug.ActionTags() {
		if action, ok := a.Get(tag); ok {
			return action, true
		}
	}
	return Action{}, false
}

// All returns the actions in file order.
func (a *Actions) All() []Action {
	return append([]Action(nil), a.list...)
}

// ProjectKeys returns the distinct Jira project keys, sorted.
func (a *Actions) ProjectKeys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, action := range a.list {
		key := action.Parameters.JiraProjectKey
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}
