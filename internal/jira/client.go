package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jira "github.com/andygrunwald/go-jira"
	"github.com/danielolaszy/bugbridge/internal/logging"
	"github.com/danielolaszy/bugbridge/pkg/models"
)

// RequiredPermissions are the project permissions the sync user needs.
var RequiredPermissions = []string{"ADD_COMMENTS", "CREATE_ISSUES", "DELETE_ISSUES", "EDIT_ISSUES"}

// ErrNoTransition is returned when no workflow transition leads to the
// requested status.
var ErrNoTransition = errors.New("no transition to status")

const requestTimeout = 30 * time.Second

// Client handles interactions with the JIRA API
type Client struct {
	client *jira.Client
}

// NewClient creates a new JIRA client authenticated with basic auth.
func NewClient(baseURL, username, apiKey string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("JIRA_BASE_URL environment variable not set")
	}
	if username == "" || apiKey == "" {
		return nil, fmt.Errorf("JIRA_USERNAME and JIRA_API_KEY environment variables must be set")
	}

	tp := jira.BasicAuthTransport{
		Username: username,
		Password: apiKey,
	}
	httpClient := tp.Client()
	httpClient.Timeout = requestTimeout

	client, err := jira.NewClient(httpClient, baseURL)
	if err != nil {
		return nil, fmt.Errorf("error creating JIRA client: %w", err)
	}

	logging.Debug("jira client created", "url", baseURL, "username", username, "api_key", logging.MaskSensitive(apiKey))
	return &Client{client: client}, nil
}

// createResponse is one element of an issue creation answer. Some proxies
// in front of Jira wrap it in a list.
type createResponse struct {
	ID            string            `json:"id"`
	Key           string            `json:"key"`
	Self          string            `json:"self"`
	Errors        map[string]string `json:"errors"`
	ErrorMessages []string          `json:"errorMessages"`
}

// CreateIssue creates an issue from raw field values.
func (c *Client) CreateIssue(ctx context.Context, fields map[string]any) (*models.CreatedIssue, error) {
	req, err := c.client.NewRequestWithContext(ctx, http.MethodPost, "rest/api/2/issue", map[string]any{"fields": fields})
	if err != nil {
		return nil, fmt.Errorf("failed to build create request: %w", err)
	}

	resp, err := c.client.Do(req, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create JIRA issue: %w", responseError(resp, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read create response: %w", err)
	}
	return parseCreateResponse(raw)
}

func parseCreateResponse(raw []byte) (*models.CreatedIssue, error) {
	var created createResponse
	trimmed := bytes.TrimSpace(raw)
	switch {
	case bytes.HasPrefix(trimmed, []byte("[")):
		var list []createResponse
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, &models.ValidationError{Op: "create issue", Detail: err.Error()}
		}
		if len(list) == 0 {
			return nil, &models.ValidationError{Op: "create issue", Detail: "empty list"}
		}
		created = list[0]
	case bytes.HasPrefix(trimmed, []byte("{")):
		if err := json.Unmarshal(trimmed, &created); err != nil {
			return nil, &models.ValidationError{Op: "create issue", Detail: err.Error()}
		}
	default:
		return nil, &models.ValidationError{Op: "create issue", Detail: fmt.Sprintf("unexpected payload %q", string(trimmed))}
	}

	if len(created.Errors) > 0 || len(created.ErrorMessages) > 0 {
		details := append([]string{}, created.ErrorMessages...)
		for field, msg := range created.Errors {
			details = append(details, field+": "+msg)
		}
		return nil, &models.ValidationError{Op: "create issue", Detail: strings.Join(details, "; ")}
	}

	return &models.CreatedIssue{ID: created.ID, Key: created.Key, Self: created.Self}, nil
}

// UpdateIssueFields sets the given fields on an issue.
func (c *Client) UpdateIssueFields(ctx context.Context, key string, fields map[string]any) error {
	resp, err := c.client.Issue.UpdateIssueWithContext(ctx, key, map[string]any{"fields": fields})
	if err != nil {
		return fmt.Errorf("failed to update JIRA issue %s: %v (status: %d)", key, err, statusCode(resp))
	}
	return nil
}

// AddComment adds a comment to an issue.
func (c *Client) AddComment(ctx context.Context, key, body string) (*models.IssueComment, error) {
	comment, resp, err := c.client.Issue.AddCommentWithContext(ctx, key, &jira.Comment{Body: body})
	if err != nil {
		return nil, fmt.Errorf("failed to comment on JIRA issue %s: %v (status: %d)", key, err, statusCode(resp))
	}
	return &models.IssueComment{ID: comment.ID, Body: comment.Body}, nil
}

// DeleteIssue deletes an issue.
func (c *Client) DeleteIssue(ctx context.Context, key string) error {
	resp, err := c.client.Issue.DeleteWithContext(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to delete JIRA issue %s: %v (status: %d)", key, err, statusCode(resp))
	}
	return nil
}

// SetIssueStatus moves an issue to the named status through the first
// transition leading there. Issues already in that status are left alone.
func (c *Client) SetIssueStatus(ctx context.Context, key, status string) error {
	issue, resp, err := c.client.Issue.GetWithContext(ctx, key, &jira.GetQueryOptions{Fields: "status"})
	if err != nil {
		return fmt.Errorf("failed to get JIRA issue %s: %v (status: %d)", key, err, statusCode(resp))
	}
	if issue.Fields != nil && issue.Fields.Status != nil && strings.EqualFold(issue.Fields.Status.Name, status) {
		logging.Debug("issue already in status", "jira.issue", key, "status", status)
		return nil
	}

	transitions, resp, err := c.client.Issue.GetTransitionsWithContext(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to get transitions of JIRA issue %s: %v (status: %d)", key, err, statusCode(resp))
	}

	for _, transition := range transitions {
		if !strings.EqualFold(transition.To.Name, status) {
			continue
		}
		resp, err := c.client.Issue.DoTransitionWithContext(ctx, key, transition.ID)
		if err != nil {
			return fmt.Errorf("failed to transition JIRA issue %s to %q: %v (status: %d)", key, status, err, statusCode(resp))
		}
		return nil
	}

	return fmt.Errorf("%w %q for %s", ErrNoTransition, status, key)
}

// CreateOrUpdateRemoteLink links an issue to an external URL. The URL is
// the link's global id so that repeated calls update the same link.
func (c *Client) CreateOrUpdateRemoteLink(ctx context.Context, key, linkURL, title string) error {
	link := &jira.RemoteLink{
		GlobalID: linkURL,
		Object: &jira.RemoteLinkObject{
			URL:   linkURL,
			Title: title,
		},
	}
	_, resp, err := c.client.Issue.AddRemoteLinkWithContext(ctx, key, link)
	if err != nil {
		return fmt.Errorf("failed to link %s on JIRA issue %s: %v (status: %d)", linkURL, key, err, statusCode(resp))
	}
	return nil
}

// FindUsers searches the user directory.
func (c *Client) FindUsers(ctx context.Context, query string) ([]models.Account, error) {
	users, resp, err := c.client.User.FindWithContext(ctx, url.QueryEscape(query))
	if err != nil {
		return nil, fmt.Errorf("failed to search JIRA users: %v (status: %d)", err, statusCode(resp))
	}

	accounts := make([]models.Account, 0, len(users))
	for _, user := range users {
		accounts = append(accounts, models.Account{
			AccountID:    user.AccountID,
			DisplayName:  user.DisplayName,
			EmailAddress: user.EmailAddress,
			Active:       user.Active,
		})
	}
	return accounts, nil
}

// ProjectKeys lists the keys of every project visible to the user.
func (c *Client) ProjectKeys(ctx context.Context) ([]string, error) {
	projects, resp, err := c.client.Project.GetListWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list JIRA projects: %v (status: %d)", err, statusCode(resp))
	}

	keys := make([]string, 0, len(*projects))
	for _, project := range *projects {
		keys = append(keys, project.Key)
	}
	return keys, nil
}

type permissionsResponse struct {
	Permissions map[string]struct {
		HavePermission bool `json:"havePermission"`
	} `json:"permissions"`
}

// MissingPermissions returns, for one project, the permissions of
// RequiredPermissions the user does not hold.
func (c *Client) MissingPermissions(ctx context.Context, projectKey string) ([]string, error) {
	query := url.Values{}
	query.Set("projectKey", projectKey)
	query.Set("permissions", strings.Join(RequiredPermissions, ","))

	req, err := c.client.NewRequestWithContext(ctx, http.MethodGet, "rest/api/2/mypermissions?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build permissions request: %w", err)
	}

	var result permissionsResponse
	resp, err := c.client.Do(req, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to get JIRA permissions for %s: %w", projectKey, responseError(resp, err))
	}

	var missing []string
	for _, name := range RequiredPermissions {
		if !result.Permissions[name].HavePermission {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

// responseError expands an HTTP error with the body Jira sent back. Only
// use it on responses whose body has not been read yet.
func responseError(resp *jira.Response, err error) error {
	if resp == nil || resp.Response == nil || resp.StatusCode < http.StatusMultipleChoices {
		return err
	}
	return jira.NewJiraError(resp, err)
}

func statusCode(resp *jira.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}
