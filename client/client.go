// Package client is the formula store client: it maps the four REST
// operations of the payroll formula service onto typed calls, carrying the
// bearer credential of an authenticated session. It contains no business
// logic beyond request/response mapping; errors from the server are
// surfaced verbatim.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SessionContext is the authenticated caller. It is passed in explicitly
// instead of read from ambient storage so the client is testable without a
// browser shim.
type SessionContext struct {
	Token string
	Role  string
}

// Formula is the wire shape of a stored formula.
type Formula struct {
	ID          string    `json:"id"`
	Key         string    `json:"formula_key"`
	Expression  string    `json:"formula_expression"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// APIError is a non-2xx response. Message is the server's error text,
// unedited, so duplicate-key and validation messages reach the user as the
// backend phrased them.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// Client talks to the payroll formula REST surface.
type Client struct {
	baseURL string
	session SessionContext
	http    *http.Client
}

// New builds a client for the given API base URL.
func New(baseURL string, session SessionContext) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: session,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// NewWithHTTPClient overrides the underlying HTTP client, for tests and
// custom transports.
func NewWithHTTPClient(baseURL string, session SessionContext, hc *http.Client) *Client {
	c := New(baseURL, session)
	c.http = hc
	return c
}

type createRequest struct {
	Key         string `json:"formula_key"`
	Expression  string `json:"formula_expression"`
	Description string `json:"description"`
}

// updateRequest never carries the key; it travels in the URL only.
type updateRequest struct {
	Expression  string `json:"formula_expression"`
	Description string `json:"description"`
}

// List fetches every formula. No pagination parameters exist server-side;
// search and paging happen on the caller's copy.
func (c *Client) List(ctx context.Context) ([]Formula, error) {
	var out []Formula
	if err := c.do(ctx, http.MethodGet, "/api/payroll-formulas", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create stores a new formula. A duplicate key is rejected by the server
// and the error message propagates unchanged.
func (c *Client) Create(ctx context.Context, key, expression, description string) (Formula, error) {
	var out Formula
	body := createRequest{Key: key, Expression: expression, Description: description}
	if err := c.do(ctx, http.MethodPost, "/api/payroll-formulas", body, &out); err != nil {
		return Formula{}, err
	}
	return out, nil
}

// Update replaces expression and description of an existing formula.
func (c *Client) Update(ctx context.Context, key, expression, description string) (Formula, error) {
	var out Formula
	body := updateRequest{Expression: expression, Description: description}
	if err := c.do(ctx, http.MethodPut, "/api/payroll-formulas/"+key, body, &out); err != nil {
		return Formula{}, err
	}
	return out, nil
}

// Delete removes a formula by key.
func (c *Client) Delete(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, "/api/payroll-formulas/"+key, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.session.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.apiError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) apiError(resp *http.Response) error {
	var envelope struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Error == "" {
		// generic fallback when the server gave no usable message
		return &APIError{Status: resp.StatusCode, Message: "request failed with status " + resp.Status}
	}
	return &APIError{Status: resp.StatusCode, Message: envelope.Error}
}
