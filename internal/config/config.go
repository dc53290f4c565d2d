// Package config provides centralized configuration management for the application.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration parameters for the application.
type Config struct {
	Bugzilla BugzillaConfig
	Jira     JiraConfig
	GitHub   GitHubConfig

	// ActionsFile is the path of the YAML action table.
	ActionsFile string
}

// BugzillaConfig holds Bugzilla specific configuration.
type BugzillaConfig struct {
	BaseURL    string
	APIKey     string
	MaxRetries int
}

// JiraConfig holds JIRA specific configuration.
type JiraConfig struct {
	BaseURL  string
	Username string
	APIKey   string
}

// GitHubConfig holds GitHub specific configuration.
type GitHubConfig struct {
	Token  string
	Domain string
}

// Defaults applied when the matching environment variable is unset.
const (
	DefaultBugzillaBaseURL = "https://bugzilla.mozilla.org"
	DefaultGitHubDomain    = "github.com"
	DefaultActionsFile     = "config/actions.yaml"
	DefaultMaxRetries      = 3
)

// LoadConfig initializes and loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindings := map[string]string{
		"bugzilla.base_url":    "BUGZILLA_BASE_URL",
		"bugzilla.api_key":     "BUGZILLA_API_KEY",
		"bugzilla.max_retries": "BUGZILLA_MAX_RETRIES",
		"jira.base_url":        "JIRA_BASE_URL",
		"jira.username":        "JIRA_USERNAME",
		"jira.api_key":         "JIRA_API_KEY",
		"github.token":         "GITHUB_TOKEN",
		"github.domain":        "GITHUB_DOMAIN",
		"actions_config":       "ACTIONS_CONFIG",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	v.SetDefault("bugzilla.base_url", DefaultBugzillaBaseURL)
	v.SetDefault("bugzilla.max_retries", DefaultMaxRetries)
	v.SetDefault("github.domain", DefaultGitHubDomain)
	v.SetDefault("actions_config", DefaultActionsFile)

	config := &Config{
		Bugzilla: BugzillaConfig{
			BaseURL:    strings.TrimRight(v.GetString("bugzilla.base_url"), "/"),
			APIKey:     v.GetString("bugzilla.api_key"),
			MaxRetries: v.GetInt("bugzilla.max_retries"),
		},
		Jira: JiraConfig{
			BaseURL:  strings.TrimRight(v.GetString("jira.base_url"), "/"),
			Username: v.GetString("jira.username"),
			APIKey:   v.GetString("jira.api_key"),
		},
		GitHub: GitHubConfig{
			Token:  v.GetString("github.token"),
			Domain: v.GetString("github.domain"),
		},
		ActionsFile: v.GetString("actions_config"),
	}

	// An explicitly empty GITHUB_DOMAIN still means github.com.
	if config.GitHub.Domain == "" {
		config.GitHub.Domain = DefaultGitHubDomain
	}
	if config.Bugzilla.MaxRetries < 0 {
		return nil, fmt.Errorf("BUGZILLA_MAX_RETRIES must not be negative, got %d", config.Bugzilla.MaxRetries)
	}

	return config, nil
}

func missing(vars []string) error {
	if len(vars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", vars)
	}
	return nil
}

// ValidateJiraConfig validates JIRA-specific configuration.
func ValidateJiraConfig(config *Config) error {
	var missingVars []string

	if config.Jira.BaseURL == "" {
		missingVars = append(missingVars, "JIRA_BASE_URL")
	}
	if config.Jira.Username == "" {
		missingVars = append(missingVars, "JIRA_USERNAME")
	}
	if config.Jira.APIKey == "" {
		missingVars = append(missingVars, "JIRA_API_KEY")
	}

	return missing(missingVars)
}

// ValidateBugzillaConfig validates Bugzilla-specific configuration.
func ValidateBugzillaConfig(config *Config) error {
	var missingVars []string

	if config.Bugzilla.BaseURL == "" {
		missingVars = append(missingVars, "BUGZILLA_BASE_URL")
	}
	if config.Bugzilla.APIKey == "" {
		missingVars = append(missingVars, "BUGZILLA_API_KEY")
	}

	return missing(missingVars)
}

// ValidateGitHubConfig validates GitHub-specific configuration.
func ValidateGitHubConfig(config *Config) error {
	if config.GitHub.Token == "" {
		return missing([]string{"GITHUB_TOKEN"})
	}
	return nil
}
