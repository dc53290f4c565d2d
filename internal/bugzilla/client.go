// Package bugzilla implements a client for the Bugzilla REST API.
package bugzilla

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/danielolaszy/bugbridge/internal/logging"
	"github.com/danielolaszy/bugbridge/pkg/models"
)

const (
	requestTimeout  = 30 * time.Second
	retryMaxElapsed = 30 * time.Second
	userAgent       = "bugbridge/1.0"
)

// APIError is a failed Bugzilla call, either a non-2xx status or a 2xx
// payload flagged with "error": true.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("bugzilla API returned %d (code %d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("bugzilla API returned %d: %s", e.StatusCode, e.Message)
}

// Client handles interactions with the Bugzilla REST API.
type Client struct {
	baseURL    string
	apiKey     string
	maxRetries int
	httpClient *http.Client

	// newBackOff returns a fresh policy per call; BackOff values are stateful.
	newBackOff func() backoff.BackOff
}

// NewClient creates a Bugzilla client. Idempotent reads are retried up to
// maxRetries times on transient failures.
func NewClient(baseURL, apiKey string, maxRetries int) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("BUGZILLA_BASE_URL environment variable not set")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("BUGZILLA_API_KEY environment variable not set")
	}

	logging.Debug("bugzilla client created", "url", baseURL, "api_key", logging.MaskSensitive(apiKey))
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		maxRetries: maxRetries,
		httpClient: &http.Client{Timeout: requestTimeout},
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxElapsedTime = retryMaxElapsed
			return bo
		},
	}, nil
}

// BugURL returns the web page of a bug.
func (c *Client) BugURL(id int) string {
	return fmt.Sprintf("%s/show_bug.cgi?id=%d", c.baseURL, id)
}

type bugsResponse struct {
	Bugs []models.Bug `json:"bugs"`
}

// GetBug fetches the current snapshot of a bug.
func (c *Client) GetBug(ctx context.Context, id int) (*models.Bug, error) {
	var result bugsResponse
	if err := c.get(ctx, fmt.Sprintf("/rest/bug/%d", id), &result); err != nil {
		return nil, fmt.Errorf("get bug %d: %w", id, err)
	}
	if len(result.Bugs) == 0 {
		return nil, fmt.Errorf("get bug %d: bug not found", id)
	}
	return &result.Bugs[0], nil
}

type commentsResponse struct {
	Bugs map[string]struct {
		Comments []models.BugComment `json:"comments"`
	} `json:"bugs"`
}

// GetComments lists the comments of a bug, oldest first. The first one is
// the bug description.
func (c *Client) GetComments(ctx context.Context, id int) ([]models.BugComment, error) {
	var result commentsResponse
	if err := c.get(ctx, fmt.Sprintf("/rest/bug/%d/comment", id), &result); err != nil {
		return nil, fmt.Errorf("get comments of bug %d: %w", id, err)
	}
	return result.Bugs[strconv.Itoa(id)].Comments, nil
}

type updateResponse struct {
	Bugs []models.BugUpdateResult `json:"bugs"`
}

// UpdateBug applies a see_also patch. Writes are never retried.
func (c *Client) UpdateBug(ctx context.Context, id int, update models.BugUpdate) (*models.BugUpdateResult, error) {
	body, err := json.Marshal(update)
	if err != nil {
		return nil, fmt.Errorf("marshal update: %w", err)
	}

	data, err := c.doRequest(ctx, http.MethodPut, fmt.Sprintf("/rest/bug/%d", id), body)
	if err != nil {
		return nil, fmt.Errorf("update bug %d: %w", id, err)
	}

	var result updateResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("update bug %d: parse response: %w", id, err)
	}
	if len(result.Bugs) == 0 {
		return &models.BugUpdateResult{ID: id}, nil
	}
	return &result.Bugs[0], nil
}

// WhoAmI is the account owning the API key.
type WhoAmI struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	RealName string `json:"real_name"`
}

// WhoAmI checks the API key and returns its owner.
func (c *Client) WhoAmI(ctx context.Context) (*WhoAmI, error) {
	var result WhoAmI
	if err := c.get(ctx, "/rest/whoami", &result); err != nil {
		return nil, fmt.Errorf("whoami: %w", err)
	}
	return &result, nil
}

// get runs an idempotent GET with retry and decodes the answer into v.
func (c *Client) get(ctx context.Context, path string, v any) error {
	var data []byte
	err := c.withRetry(ctx, func() error {
		var reqErr error
		data, reqErr = c.doRequest(ctx, http.MethodGet, path, nil)
		return reqErr
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// withRetry executes an operation with retry for transient errors.
func (c *Client) withRetry(ctx context.Context, op func() error) error {
	bo := backoff.WithMaxRetries(c.newBackOff(), uint64(c.maxRetries))
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !isRetryableError(err) {
			return backoff.Permanent(err)
		}
		logging.Debug("retrying bugzilla request", "attempt", attempt, "error", err)
		return err
	}, backoff.WithContext(bo, ctx))
}

// isRetryableError reports whether err is a transport failure, a rate limit
// or a server-side error.
func isRetryableError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

type errorPayload struct {
	Error   bool   `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// doRequest executes an authenticated HTTP request and returns the response body.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("X-BUGZILLA-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var payload errorPayload
	_ = json.Unmarshal(respBody, &payload)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := payload.Message
		if message == "" {
			message = string(respBody)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Code: payload.Code, Message: message}
	}
	// Bugzilla reports some failures with a 200 status.
	if payload.Error {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: payload.Code, Message: payload.Message}
	}

	return respBody, nil
}
