// Package cmd provides the command-line interface for bugbridge.
package cmd

import (
	"os"

	"github.com/danielolaszy/bugbridge/internal/config"
	"github.com/danielolaszy/bugbridge/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bugbridge",
	Short: "bugbridge mirrors bug tracker changes into JIRA",
	Long: `bugbridge is a CLI tool that mirrors Bugzilla (or GitHub) bugs into JIRA issues.
It creates an issue the first time a bug tagged for an action changes, keeps a
cross-link between the two, and propagates comments, summary, labels, assignee
and status according to the action table.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("log-level") {
			level, _ := cmd.Flags().GetString("log-level")
			logging.SetupLogger(os.Stderr, logging.LogLevel(level))
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path of the actions file (overrides ACTIONS_CONFIG)")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(githubCmd)
}

// loadSettings reads the environment and the action table.
func loadSettings(cmd *cobra.Command) (*config.Config, *config.Actions, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg.ActionsFile = path
	}

	actions, err := config.LoadActions(cfg.ActionsFile)
	if err != nil {
		return nil, nil, err
	}
	logging.Debug("actions loaded", "file", cfg.ActionsFile, "count", len(actions.All()))
	return cfg, actions, nil
}
