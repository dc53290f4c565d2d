package cmd

import (
	"fmt"

	"github.com/danielolaszy/bugbridge/internal/config"
	"github.com/danielolaszy/bugbridge/internal/engine"
	"github.com/danielolaszy/bugbridge/internal/github"
	"github.com/danielolaszy/bugbridge/internal/jira"
	"github.com/danielolaszy/bugbridge/internal/logging"
	"github.com/danielolaszy/bugbridge/internal/runner"
	"github.com/danielolaszy/bugbridge/pkg/models"
	"github.com/spf13/cobra"
)

var githubCmd = &cobra.Command{
	Use:   "github",
	Short: "GitHub related commands",
	Long:  `Commands for mirroring GitHub issues into JIRA.`,
}

// githubSyncCmd runs every open issue of a repository through the action table.
var githubSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize open GitHub issues with JIRA",
	Long: `Synchronize the open issues of a GitHub repository with JIRA.

Each issue is presented as a bug: its labels act as whiteboard tags, so an
issue labeled 'devtest' is handled by the 'devtest' action. Unlinked issues
get a JIRA issue and a "See also:" line pointing to it; linked issues are
updated. With --reconcile, status and assignee are pushed for linked issues
as if they had just changed.

Example:
  bugbridge github sync -r owner/repo --reconcile`,
	RunE: func(cmd *cobra.Command, args []string) error {
		repository, err := cmd.Flags().GetString("repository")
		if err != nil {
			return err
		}
		if repository == "" {
			return fmt.Errorf("repository flag is required")
		}
		reconcile, err := cmd.Flags().GetBool("reconcile")
		if err != nil {
			return err
		}

		cfg, actions, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		if err := config.ValidateGitHubConfig(cfg); err != nil {
			return err
		}
		if err := config.ValidateJiraConfig(cfg); err != nil {
			return err
		}

		githubClient, err := github.NewClient(cfg.GitHub.Token, cfg.GitHub.Domain, repository)
		if err != nil {
			return fmt.Errorf("failed to initialize github client: %w", err)
		}
		if _, err := githubClient.Verify(cmd.Context()); err != nil {
			return err
		}
		jiraClient, err := jira.NewClient(cfg.Jira.BaseURL, cfg.Jira.Username, cfg.Jira.APIKey)
		if err != nil {
			return fmt.Errorf("failed to initialize jira client: %w", err)
		}

		bugs, err := githubClient.ListOpenBugs(cmd.Context())
		if err != nil {
			return err
		}
		logging.Info("found github issues", "repository", repository, "total_count", len(bugs))

		links := engine.Links{JiraBaseURL: cfg.Jira.BaseURL, BugURLFormat: githubClient.BugURLFormat()}
		r := runner.New(actions, githubClient, jiraClient, links)

		var handled, ignored, failed int
		for _, bug := range bugs {
			report, err := r.Execute(cmd.Context(), syncRequest(bug, reconcile))
			switch {
			case runner.IsIgnored(err):
				ignored++
				logging.Debug("issue ignored", "issue_number", bug.ID, "reason", err.Error())
			case err != nil:
				failed++
				logging.Error("failed to sync issue", "issue_number", bug.ID, "error", err)
			default:
				handled++
				logging.Debug("issue synchronized", "issue_number", bug.ID, "action", report.Action, "handled", report.Result.Handled)
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "synchronized %d, ignored %d, failed %d\n", handled, ignored, failed)
		if failed > 0 {
			return fmt.Errorf("%d issue(s) failed to synchronize", failed)
		}
		return nil
	},
}

func init() {
	githubSyncCmd.Flags().StringP("repository", "r", "", "GitHub repository name (e.g., 'owner/repo')")
	githubSyncCmd.Flags().Bool("reconcile", false, "Push status and assignee of linked issues")
	githubCmd.AddCommand(githubSyncCmd)
}

// syncRequest builds the delivery a GitHub issue is processed as.
func syncRequest(bug *models.Bug, reconcile bool) *models.WebhookRequest {
	event := &models.Event{
		Action:     "modify",
		Target:     models.TargetBug,
		RoutingKey: "github.sync",
	}
	if reconcile {
		event.Changes = []models.EventChange{
			{Field: "status", Added: bug.Status},
			{Field: "resolution", Added: bug.Resolution},
			{Field: "assigned_to", Added: bug.AssignedTo},
		}
	}
	return &models.WebhookRequest{Event: event, Bug: bug}
}
