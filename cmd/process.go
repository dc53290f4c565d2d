package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/danielolaszy/bugbridge/internal/bugzilla"
	"github.com/danielolaszy/bugbridge/internal/config"
	"github.com/danielolaszy/bugbridge/internal/engine"
	"github.com/danielolaszy/bugbridge/internal/jira"
	"github.com/danielolaszy/bugbridge/internal/logging"
	"github.com/danielolaszy/bugbridge/internal/runner"
	"github.com/danielolaszy/bugbridge/pkg/models"
	"github.com/spf13/cobra"
)

// processCmd runs one Bugzilla webhook delivery through the action table.
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process one Bugzilla webhook delivery",
	Long: `Process one Bugzilla webhook delivery read from a file or stdin.

The delivery is routed to the action matching the bug's whiteboard tags and
the result is printed as JSON. Deliveries no action should handle (private
bugs, unknown tags, disabled actions) are reported as ignored.

Example:
  bugbridge process --payload delivery.json
  curl -s ... | bugbridge process`,
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := cmd.Flags().GetString("payload")
		if err != nil {
			return err
		}

		req, err := readWebhook(cmd.InOrStdin(), payload)
		if err != nil {
			return err
		}

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

		bugzillaClient, err := bugzilla.NewClient(cfg.Bugzilla.BaseURL, cfg.Bugzilla.APIKey, cfg.Bugzilla.MaxRetries)
		if err != nil {
			return fmt.Errorf("failed to initialize bugzilla client: %w", err)
		}
		jiraClient, err := jira.NewClient(cfg.Jira.BaseURL, cfg.Jira.Username, cfg.Jira.APIKey)
		if err != nil {
			return fmt.Errorf("failed to initialize jira client: %w", err)
		}

		links := engine.BugzillaLinks(cfg.Jira.BaseURL, cfg.Bugzilla.BaseURL)
		report, err := runner.New(actions, bugzillaClient, jiraClient, links).Execute(cmd.Context(), req)
		if runner.IsIgnored(err) {
			logging.Info("delivery ignored", "bug.id", req.Bug.ID, "reason", err.Error())
			return writeJSON(cmd.OutOrStdout(), map[string]string{"status": "ignored", "reason": err.Error()})
		}
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), report)
	},
}

func init() {
	processCmd.Flags().StringP("payload", "p", "-", "Webhook delivery file, or - for stdin")
}

// readWebhook decodes a delivery from path, or from stdin when path is "-".
func readWebhook(stdin io.Reader, path string) (*models.WebhookRequest, error) {
	var r io.Reader = stdin
	if path != "-" && path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open payload: %w", err)
		}
		defer f.Close()
		r = f
	}

	var req models.WebhookRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, fmt.Errorf("failed to decode webhook payload: %w", err)
	}
	if req.Bug == nil || req.Event == nil {
		return nil, fmt.Errorf("webhook payload must contain both bug and event")
	}
	return &req, nil
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
