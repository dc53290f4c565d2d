// Package github presents GitHub issues as bugs so that they can be
// synchronized like Bugzilla bugs.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/danielolaszy/bugbridge/internal/logging"
	"github.com/danielolaszy/bugbridge/pkg/models"
	"github.com/google/go-github/v41/github"
	"golang.org/x/oauth2"
)

// seeAlsoPrefix marks issue body lines holding cross-reference URLs.
const seeAlsoPrefix = "See also: "

// Client encapsulates the GitHub API client bound to one repository.
type Client struct {
	client *github.Client
	domain string
	owner  string
	repo   string
}

// APIURL returns the REST endpoint for a GitHub domain.
func APIURL(domain string) string {
	if domain == "" || domain == "github.com" {
		return "https://api.github.com/"
	}
	return fmt.Sprintf("https://%s/api/v3/", domain)
}

// ParseRepository splits "owner/repo".
func ParseRepository(repository string) (string, string, error) {
	parts := strings.Split(repository, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository format: %s, expected format: owner/repo", repository)
	}
	return parts[0], parts[1], nil
}

// NewClient creates a GitHub API client for repository ("owner/repo").
func NewClient(token, domain, repository string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("github token not found in configuration")
	}
	if domain == "" {
		domain = "github.com"
	}

	apiURL := APIURL(domain)
	logging.Info("github configuration",
		"domain", domain,
		"api_url", apiURL,
		"token", logging.MaskSensitive(token))

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(context.Background(), ts)

	return newClient(tc, apiURL, domain, repository)
}

func newClient(httpClient *http.Client, apiURL, domain, repository string) (*Client, error) {
	owner, repo, err := ParseRepository(repository)
	if err != nil {
		return nil, err
	}

	parsedURL, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid github api url: %w", err)
	}

	client := github.NewClient(httpClient)
	client.BaseURL = parsedURL
	client.UploadURL = parsedURL

	return &Client{client: client, domain: domain, owner: owner, repo: repo}, nil
}

// Verify checks the token and returns the login it belongs to.
func (c *Client) Verify(ctx context.Context) (string, error) {
	user, resp, err := c.client.Users.Get(ctx, "")
	if err != nil {
		logging.Error("failed to test github token", "error", err, "status_code", statusCode(resp))
		return "", fmt.Errorf("error testing github token: %w", err)
	}
	logging.Info("github authentication successful", "username", user.GetLogin())
	return user.GetLogin(), nil
}

// BugURLFormat is a fmt pattern taking the issue number.
func (c *Client) BugURLFormat() string {
	return fmt.Sprintf("https://%s/%s/%s/issues/", c.domain, c.owner, c.repo) + "%d"
}

// BugURL returns the web page of an issue.
func (c *Client) BugURL(number int) string {
	return fmt.Sprintf(c.BugURLFormat(), number)
}

// GetBug fetches an issue as a bug snapshot.
func (c *Client) GetBug(ctx context.Context, number int) (*models.Bug, error) {
	issue, resp, err := c.client.Issues.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return nil, fmt.Errorf("failed to get GitHub issue %d: %v (status: %d)", number, err, statusCode(resp))
	}
	return c.toBug(issue), nil
}

// GetComments returns the issue body followed by its comments. The body
// plays the role of the bug description.
func (c *Client) GetComments(ctx context.Context, number int) ([]models.BugComment, error) {
	issue, resp, err := c.client.Issues.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return nil, fmt.Errorf("failed to get GitHub issue %d: %v (status: %d)", number, err, statusCode(resp))
	}

	body, _ := splitSeeAlso(issue.GetBody())
	comments := []models.BugComment{{
		ID:      int(issue.GetID()),
		Count:   0,
		Text:    body,
		Creator: issue.GetUser().GetLogin(),
	}}

	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		page, resp, err := c.client.Issues.ListComments(ctx, c.owner, c.repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list comments of GitHub issue %d: %v", number, err)
		}
		for _, comment := range page {
			comments = append(comments, models.BugComment{
				ID:      int(comment.GetID()),
				Count:   len(comments),
				Text:    comment.GetBody(),
				Creator: comment.GetUser().GetLogin(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return comments, nil
}

// UpdateBug records see_also changes as "See also:" lines of the issue body.
func (c *Client) UpdateBug(ctx context.Context, number int, update models.BugUpdate) (*models.BugUpdateResult, error) {
	issue, resp, err := c.client.Issues.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return nil, fmt.Errorf("failed to get GitHub issue %d: %v (status: %d)", number, err, statusCode(resp))
	}

	body, links := splitSeeAlso(issue.GetBody())
	removed := make(map[string]bool, len(update.SeeAlso.Remove))
	for _, link := range update.SeeAlso.Remove {
		removed[link] = true
	}

	var kept, added, dropped []string
	present := make(map[string]bool)
	for _, link := range links {
		if removed[link] {
			dropped = append(dropped, link)
			continue
		}
		kept = append(kept, link)
		present[link] = true
	}
	for _, link := range update.SeeAlso.Add {
		if !present[link] {
			kept = append(kept, link)
			added = append(added, link)
			present[link] = true
		}
	}

	result := &models.BugUpdateResult{ID: number}
	if len(added) == 0 && len(dropped) == 0 {
		return result, nil
	}

	newBody := joinSeeAlso(body, kept)
	logging.Debug("updating github issue links", "issue_number", number, "added", added, "removed", dropped)
	_, resp, err = c.client.Issues.Edit(ctx, c.owner, c.repo, number, &github.IssueRequest{Body: &newBody})
	if err != nil {
		return nil, fmt.Errorf("failed to update GitHub issue %d: %v (status: %d)", number, err, statusCode(resp))
	}

	result.Changes = map[string]models.FieldChanged{
		"see_also": {Added: strings.Join(added, ", "), Removed: strings.Join(dropped, ", ")},
	}
	return result, nil
}

// ListOpenBugs retrieves every open issue of the repository as a bug,
// skipping pull requests.
func (c *Client) ListOpenBugs(ctx context.Context) ([]*models.Bug, error) {
	opts := &github.IssueListByRepoOptions{
		State: "open",
		ListOptions: github.ListOptions{
			PerPage: 100,
		},
	}

	var bugs []*models.Bug
	for {
		issues, resp, err := c.client.Issues.ListByRepo(ctx, c.owner, c.repo, opts)
		if err != nil {
			logging.Error("failed to fetch github issues", "error", err)
			return nil, fmt.Errorf("failed to fetch GitHub issues: %v", err)
		}

		for _, issue := range issues {
			// Pull requests are also returned by the Issues API.
			if issue.PullRequestLinks != nil {
				continue
			}
			bugs = append(bugs, c.toBug(issue))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return bugs, nil
}

func (c *Client) toBug(issue *github.Issue) *models.Bug {
	labels := make([]string, 0, len(issue.Labels))
	for _, label := range issue.Labels {
		labels = append(labels, strings.ToLower(label.GetName()))
	}

	bug := &models.Bug{
		ID:        issue.GetNumber(),
		Summary:   issue.GetTitle(),
		Status:    "NEW",
		Type:      bugType(labels),
		Product:   c.owner + "/" + c.repo,
		Component: c.repo,
	}

	if assignee := issue.GetAssignee(); assignee != nil {
		bug.AssignedTo = assignee.GetEmail()
		if bug.AssignedTo == "" {
			bug.AssignedTo = assignee.GetLogin()
		}
		bug.Status = "ASSIGNED"
	}
	if issue.GetState() == "closed" {
		bug.Status = "RESOLVED"
		bug.Resolution = resolution(labels)
	}

	tags := make([]string, 0, len(labels))
	for _, label := range labels {
		tags = append(tags, "["+label+"]")
	}
	bug.Whiteboard = strings.Join(tags, " ")

	_, bug.SeeAlso = splitSeeAlso(issue.GetBody())
	return bug
}

func bugType(labels []string) string {
	for _, label := range labels {
		switch label {
		case "enhancement", "feature", "type: feature":
			return "enhancement"
		case "task", "story", "type: story":
			return "task"
		}
	}
	return "defect"
}

func resolution(labels []string) string {
	for _, label := range labels {
		switch label {
		case "wontfix", "duplicate", "invalid":
			return strings.ToUpper(label)
		}
	}
	return "FIXED"
}

// splitSeeAlso separates "See also:" lines from the rest of an issue body.
func splitSeeAlso(body string) (string, []string) {
	var (
		text  []string
		links []string
	)
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, seeAlsoPrefix) {
			if link := strings.TrimSpace(strings.TrimPrefix(trimmed, seeAlsoPrefix)); link != "" {
				links = append(links, link)
			}
			continue
		}
		text = append(text, line)
	}
	return strings.TrimRight(strings.Join(text, "\n"), "\n\r\t "), links
}

func joinSeeAlso(body string, links []string) string {
	if len(links) == 0 {
		return body
	}
	var b strings.Builder
	b.WriteString(body)
	if body != "" {
		b.WriteString("\n\n")
	}
	for i, link := range links {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(seeAlsoPrefix + link)
	}
	return b.String()
}

func statusCode(resp *github.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}
