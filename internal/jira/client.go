package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tract-sync/internal/common"
)

// Client is a remote ticketing REST API client. Calls carry no
// built-in retry: network-level failures surface as RemoteUnavailable,
// 4xx responses as RemoteRejected with the remote error payload.
type Client struct {
	baseURL    string
	authHeader string
	httpClient *http.Client
}

// NewClient creates a client from the given connection settings.
func NewClient(cfg common.JiraConfig) *Client {
	creds := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Token))
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		authHeader: "Basic " + creds,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// GetIssue fetches a single issue by key, including comments and links.
func (c *Client) GetIssue(ctx context.Context, key string) (*Issue, error) {
	var issue Issue
	path := fmt.Sprintf("/rest/api/2/issue/%s", key)
	if err := c.do(ctx, http.MethodGet, path, nil, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// CreateIssue creates an issue and returns the assigned key.
func (c *Client) CreateIssue(ctx context.Context, payload CreatePayload) (string, error) {
	var resp createResponse
	if err := c.do(ctx, http.MethodPost, "/rest/api/2/issue", payload, &resp); err != nil {
		return "", err
	}
	return resp.Key, nil
}

// UpdateIssue applies a coalesced field update in a single call.
func (c *Client) UpdateIssue(ctx context.Context, key string, fields map[string]any) error {
	path := fmt.Sprintf("/rest/api/2/issue/%s", key)
	body := map[string]any{"fields": fields}
	return c.do(ctx, http.MethodPut, path, body, nil)
}

// GetTransitions lists the workflow transitions available from the
// issue's current status.
func (c *Client) GetTransitions(ctx context.Context, key string) ([]TransitionInfo, error) {
	var resp transitionsResponse
	path := fmt.Sprintf("/rest/api/2/issue/%s/transitions", key)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Transitions, nil
}

// DoTransition executes a workflow transition.
func (c *Client) DoTransition(ctx context.Context, key, transitionID string) error {
	var payload transitionPayload
	payload.Transition.ID = transitionID
	path := fmt.Sprintf("/rest/api/2/issue/%s/transitions", key)
	return c.do(ctx, http.MethodPost, path, payload, nil)
}

// AddComment posts a comment and returns the remote comment id.
func (c *Client) AddComment(ctx context.Context, key, body string) (string, error) {
	var resp Comment
	path := fmt.Sprintf("/rest/api/2/issue/%s/comment", key)
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"body": body}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// CreateLink creates a typed link between two issues. The record reads
// "inwardKey <outward phrasing> outwardKey".
func (c *Client) CreateLink(ctx context.Context, typeName, inwardKey, outwardKey string) error {
	payload := linkPayload{
		Type:         Named{Name: typeName},
		InwardIssue:  IssueRef{Key: inwardKey},
		OutwardIssue: IssueRef{Key: outwardKey},
	}
	return c.do(ctx, http.MethodPost, "/rest/api/2/issueLink", payload, nil)
}

// DeleteLink removes a link by its remote id.
func (c *Client) DeleteLink(ctx context.Context, linkID string) error {
	return c.do(ctx, http.MethodDelete, "/rest/api/2/issueLink/"+linkID, nil, nil)
}

// AddWorklog posts a time-log entry to an issue.
func (c *Client) AddWorklog(ctx context.Context, key string, payload WorklogPayload) error {
	path := fmt.Sprintf("/rest/api/2/issue/%s/worklog", key)
	return c.do(ctx, http.MethodPost, path, payload, nil)
}

// SearchIssues runs a JQL query, following pagination until max issues
// are collected (max <= 0 means all).
func (c *Client) SearchIssues(ctx context.Context, jql string, max int) ([]Issue, error) {
	var issues []Issue
	startAt := 0
	pageSize := 50

	for {
		path := fmt.Sprintf("/rest/api/2/search?jql=%s&startAt=%d&maxResults=%d",
			url.QueryEscape(jql), startAt, pageSize)

		var page searchResponse
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}

		issues = append(issues, page.Issues...)

		if max > 0 && len(issues) >= max {
			return issues[:max], nil
		}
		startAt += len(page.Issues)
		if startAt >= page.Total || len(page.Issues) == 0 {
			return issues, nil
		}
	}
}

// do executes one request and decodes the response into out when out
// is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling payload: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return common.NewRemoteUnavailableError("remote API unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(resp.Body)
		msg := fmt.Sprintf("%s %s returned %d", method, path, resp.StatusCode)
		if resp.StatusCode < 500 {
			return common.NewRemoteRejectedError(msg).WithDetails(string(payload))
		}
		// 5xx: the service is up but failing; creation treats this the
		// same as unreachable and falls back to the offline queue.
		return common.NewRemoteUnavailableError(msg).WithDetails(string(payload))
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
