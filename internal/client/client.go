// Package client is the HTTP client the CLI uses against a running
// toolgate server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/toolgate/toolgate/internal/flow"
	"github.com/toolgate/toolgate/pkg/types"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func New(baseURL string, apiKey string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CheckResult mirrors the /check response.
type CheckResult struct {
	Decision types.DecisionKind   `json:"decision"`
	Reason   string               `json:"reason,omitempty"`
	Source   types.DecisionSource `json:"source"`
}

func (c *Client) Check(ctx context.Context, toolName, input string, fileWrite bool, targetPath string) (CheckResult, error) {
	var out CheckResult
	body := map[string]any{
		"tool_name":   toolName,
		"input":       input,
		"file_write":  fileWrite,
		"target_path": targetPath,
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/check", nil, body, &out); err != nil {
		return out, err
	}
	return out, nil
}

// AuthorizeResult mirrors the /authorize response.
type AuthorizeResult struct {
	CallID string               `json:"call_id"`
	Status types.ToolCallStatus `json:"status"`
	Reason string               `json:"reason,omitempty"`
}

func (c *Client) Authorize(ctx context.Context, toolName, input, sessionID string) (AuthorizeResult, error) {
	var out AuthorizeResult
	body := map[string]any{"tool_name": toolName, "input": input, "session_id": sessionID}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/authorize", nil, body, &out); err != nil {
		return out, err
	}
	return out, nil
}

func (c *Client) ListApprovals(ctx context.Context) ([]flow.PromptRequest, error) {
	var out []flow.PromptRequest
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/approvals", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveApproval resolves a pending exchange. decision is "allow" or
// "deny"; totpCode may be empty when TOTP is disabled server-side.
func (c *Client) ResolveApproval(ctx context.Context, id, decision, totpCode string) error {
	body := map[string]any{"decision": decision, "totp_code": totpCode}
	return c.doJSON(ctx, http.MethodPost, "/api/v1/approvals/"+url.PathEscape(id), nil, body, nil)
}

// CancelApproval cancels a pending exchange, leaving the call Cancelled.
func (c *Client) CancelApproval(ctx context.Context, id string) error {
	body := map[string]any{"cancel": true}
	return c.doJSON(ctx, http.MethodPost, "/api/v1/approvals/"+url.PathEscape(id), nil, body, nil)
}

func (c *Client) SearchEvents(ctx context.Context, q url.Values) ([]types.Event, error) {
	var out []types.Event
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/events/search", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, q url.Values, body any, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return err
	}
	c.addAuth(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(b)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) addAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
}
