// Package rbacclient lets other services ask the gate for decisions over HTTP.
// Every failure resolves to deny.
package rbacclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultTimeout = 2 * time.Second

// Client is the HTTP client for the rbacgate service
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logrus.Logger
}

// CheckRequest is the request body for POST /permissions/check
type CheckRequest struct {
	UserID string   `json:"user_id"`
	Code   string   `json:"code,omitempty"`
	Codes  []string `json:"codes,omitempty"`
	Mode   string   `json:"mode,omitempty"`
}

type checkResponse struct {
	Allowed bool `json:"allowed"`
}

type expandBody struct {
	Codes []string `json:"codes"`
}

type effectiveResponse struct {
	UserID      string   `json:"user_id"`
	Permissions []string `json:"permissions"`
}

// Option configures a Client
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(log *logrus.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a client for the service at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Check(ctx context.Context, userID, code string) bool {
	return c.decide(ctx, CheckRequest{UserID: userID, Code: code})
}

func (c *Client) CheckAny(ctx context.Context, userID string, codes []string) bool {
	if len(codes) == 0 {
		return false
	}
	return c.decide(ctx, CheckRequest{UserID: userID, Codes: codes, Mode: "any"})
}

func (c *Client) CheckAll(ctx context.Context, userID string, codes []string) bool {
	if len(codes) == 0 {
		return false
	}
	return c.decide(ctx, CheckRequest{UserID: userID, Codes: codes, Mode: "all"})
}

func (c *Client) decide(ctx context.Context, req CheckRequest) bool {
	allowed, err := c.Authorize(ctx, req)
	if err != nil {
		c.log.WithError(err).WithField("user_id", req.UserID).Warn("permission check failed, denying")
		return false
	}
	return allowed
}

// Authorize performs the check and reports transport failures to the caller
func (c *Client) Authorize(ctx context.Context, req CheckRequest) (bool, error) {
	if req.UserID == "" {
		return false, nil
	}

	body, err := json.Marshal(req)
	if err != nil {
		return false, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/permissions/check", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var result checkResponse
	if err := c.do(httpReq, &result); err != nil {
		return false, fmt.Errorf("permission check: %w", err)
	}
	return result.Allowed, nil
}

// Effective returns the user's permission codes for UI gating, or an
// empty list on failure. callerID is sent as the requesting user.
func (c *Client) Effective(ctx context.Context, callerID, userID string) []string {
	out := []string{}
	if userID == "" {
		return out
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/users/"+url.PathEscape(userID)+"/permissions", nil)
	if err != nil {
		return out
	}
	if callerID != "" {
		httpReq.Header.Set("x-user-id", callerID)
	}

	var result effectiveResponse
	if err := c.do(httpReq, &result); err != nil {
		c.log.WithError(err).WithField("user_id", userID).Warn("effective permissions lookup failed")
		return out
	}
	if result.Permissions != nil {
		out = result.Permissions
	}
	return out
}

// Expand returns codes together with all of their descendants in the
// catalog. Failures are returned rather than resolved to an empty list.
func (c *Client) Expand(ctx context.Context, callerID string, codes []string) ([]string, error) {
	if codes == nil {
		codes = []string{}
	}
	body, err := json.Marshal(expandBody{Codes: codes})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/permissions/expand", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if callerID != "" {
		httpReq.Header.Set("x-user-id", callerID)
	}

	var result expandBody
	if err := c.do(httpReq, &result); err != nil {
		return nil, fmt.Errorf("expand permissions: %w", err)
	}
	if result.Codes == nil {
		result.Codes = []string{}
	}
	return result.Codes, nil
}

func (c *Client) do(req *http.Request, v interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
