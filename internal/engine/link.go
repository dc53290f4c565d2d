package engine

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var issueKeyPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*-[0-9]+$`)

// Links holds the base URLs used to build the human-facing cross-link URLs.
type Links struct {
	// JiraBaseURL is the issue tracker root (e.g., "https://mozilla.atlassian.net")
	JiraBaseURL string

	// BugURLFormat is a fmt pattern taking the bug id
	// (e.g., "https://bugzilla.mozilla.org/show_bug.cgi?id=%d")
	BugURLFormat string
}

// BugzillaLinks builds Links for a Bugzilla instance.
func BugzillaLinks(jiraBaseURL, bugzillaBaseURL string) Links {
	return Links{
		JiraBaseURL:  jiraBaseURL,
		BugURLFormat: strings.TrimSuffix(bugzillaBaseURL, "/") + "/show_bug.cgi?id=%d",
	}
}

// IssueURL returns the browse URL of an issue.
func (l Links) IssueURL(key string) string {
	return strings.TrimSuffix(l.JiraBaseURL, "/") + "/browse/" + key
}

// BugURL returns the web URL of a bug.
func (l Links) BugURL(id int) string {
	return fmt.Sprintf(l.BugURLFormat, id)
}

// ExtractIssueKey returns the issue key of the first see_also URL pointing to
// a browse page of the configured Jira instance, or "" when there is none.
// URLs that do not parse or carry a malformed key are skipped. An empty
// jiraBaseURL accepts browse URLs on any host.
func ExtractIssueKey(seeAlso []string, jiraBaseURL string) string {
	var base *url.URL
	if jiraBaseURL != "" {
		parsed, err := url.Parse(strings.TrimSuffix(jiraBaseURL, "/"))
		if err != nil || parsed.Host == "" {
			return ""
		}
		base = parsed
	}

	for _, ref := range seeAlso {
		if key := issueKeyFromURL(ref, base); key != "" {
			return key
		}
	}
	return ""
}

func issueKeyFromURL(ref string, base *url.URL) string {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil || parsed.Host == "" {
		return ""
	}

	prefix := "/browse/"
	if base != nil {
		if !strings.EqualFold(parsed.Host, base.Host) {
			return ""
		}
		prefix = base.Path + prefix
	}

	path := strings.TrimSuffix(parsed.Path, "/")
	if base == nil {
		idx := strings.LastIndex(path, prefix)
		if idx == -1 {
			return ""
		}
		path = path[idx:]
	}
	if !strings.HasPrefix(path, prefix) {
		return ""
	}

	key := strings.TrimPrefix(path, prefix)
	if !issueKeyPattern.MatchString(key) {
		return ""
	}
	return key
}
