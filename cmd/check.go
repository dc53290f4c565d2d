package cmd

import (
	"fmt"
	"strings"

	"github.com/danielolaszy/bugbridge/internal/bugzilla"
	"github.com/danielolaszy/bugbridge/internal/config"
	"github.com/danielolaszy/bugbridge/internal/jira"
	"github.com/danielolaszy/bugbridge/internal/logging"
	"github.com/spf13/cobra"
)

// checkCmd verifies that bugbridge can do its job with the current settings.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check configuration and remote access",
	Long: `Check the configuration and the credentials of every remote service.

The command validates the action table, authenticates against Bugzilla, and
verifies that every JIRA project used by an action is visible and grants the
` + strings.Join(jira.RequiredPermissions, ", ") + ` permissions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, actions, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		if err := config.ValidateBugzillaConfig(cfg); err != nil {
			return err
		}
		if err := config.ValidateJiraConfig(cfg); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		ctx := cmd.Context()
		var problems []string

		fmt.Fprintf(out, "actions: %d loaded from %s\n", len(actions.All()), cfg.ActionsFile)

		bugzillaClient, err := bugzilla.NewClient(cfg.Bugzilla.BaseURL, cfg.Bugzilla.APIKey, cfg.Bugzilla.MaxRetries)
		if err != nil {
			return fmt.Errorf("failed to initialize bugzilla client: %w", err)
		}
		if who, err := bugzillaClient.WhoAmI(ctx); err != nil {
			problems = append(problems, fmt.Sprintf("bugzilla: %v", err))
		} else {
			fmt.Fprintf(out, "bugzilla: authenticated as %s\n", who.Name)
		}

		jiraClient, err := jira.NewClient(cfg.Jira.BaseURL, cfg.Jira.Username, cfg.Jira.APIKey)
		if err != nil {
			return fmt.Errorf("failed to initialize jira client: %w", err)
		}
		problems = append(problems, checkJiraProjects(cmd, jiraClient, actions.ProjectKeys())...)

		if len(problems) > 0 {
			for _, problem := range problems {
				logging.Error("check failed", "problem", problem)
				fmt.Fprintf(out, "FAIL %s\n", problem)
			}
			return fmt.Errorf("configuration check failed with %d problem(s)", len(problems))
		}

		fmt.Fprintln(out, "all checks passed")
		return nil
	},
}

// checkJiraProjects returns one problem per invisible project or missing
// permission.
func checkJiraProjects(cmd *cobra.Command, client *jira.Client, projects []string) []string {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	visible, err := client.ProjectKeys(ctx)
	if err != nil {
		return []string{fmt.Sprintf("jira: %v", err)}
	}
	visibleSet := make(map[string]bool, len(visible))
	for _, key := range visible {
		visibleSet[key] = true
	}

	var problems []string
	for _, project := range projects {
		if !visibleSet[project] {
			problems = append(problems, fmt.Sprintf("jira: project %s is not visible", project))
			continue
		}
		missing, err := client.MissingPermissions(ctx, project)
		if err != nil {
			problems = append(problems, fmt.Sprintf("jira: %v", err))
			continue
		}
		if len(missing) > 0 {
			problems = append(problems, fmt.Sprintf("jira: project %s lacks %s", project, strings.Join(missing, ", ")))
			continue
		}
		fmt.Fprintf(out, "jira: project %s ok\n", project)
	}
	return problems
}
