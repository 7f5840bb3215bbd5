// Package client talks to a running Tunnel Fight server over its HTTP and
// WebSocket API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/tunnelfight/internal/database"
	"github.com/lawnchairsociety/tunnelfight/internal/server"
)

// DefaultTimeout bounds plain HTTP calls. Streams are bounded by their
// context instead.
const DefaultTimeout = 2 * time.Minute

// Client is a connection to one simulator server.
type Client struct {
	baseURL string
	http    *http.Client
	dialer  *websocket.Dialer
}

// New creates a client for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		dialer:  websocket.DefaultDialer,
	}
}

// APIError is a non-2xx answer from the server, or an error frame on a
// stream (Status 0).
type APIError struct {
	Status     int
	Message    string
	RetryAfter time.Duration // set on 429 responses
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return "simulation failed: " + e.Message
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an *APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Health checks GET /health.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return err
	}
	if out.Status != "ok" {
		return fmt.Errorf("unexpected health status %q", out.Status)
	}
	return nil
}

// Simulate runs one simulation with POST /simulate.
func (c *Client) Simulate(ctx context.Context, req server.SimulateRequest) (*server.SimulateResponse, error) {
	var resp server.SimulateResponse
	if err := c.do(ctx, http.MethodPost, "/simulate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListReports lists archived reports matching filter.
func (c *Client) ListReports(ctx context.Context, filter database.ReportFilter) ([]database.Report, error) {
	q := url.Values{}
	if filter.EncounterName != "" {
		q.Set("encounter", filter.EncounterName)
	}
	if filter.Fingerprint != "" {
		q.Set("fingerprint", filter.Fingerprint)
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	path := "/reports"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out struct {
		Reports []database.Report `json:"reports"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Reports, nil
}

// GetReport fetches one archived report.
func (c *Client) GetReport(ctx context.Context, id string) (*database.Report, error) {
	var report database.Report
	if err := c.do(ctx, http.MethodGet, "/reports/"+url.PathEscape(id), nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// DeleteReport removes one archived report.
func (c *Client) DeleteReport(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/reports/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return readAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func readAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var body struct {
		Error string `json:"error"`
	}
	if json.NewDecoder(resp.Body).Decode(&body) == nil && body.Error != "" {
		apiErr.Message = body.Error
	}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
		apiErr.RetryAfter = time.Duration(secs) * time.Second
	}
	return apiErr
}
