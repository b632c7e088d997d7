package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/surfacehq/surface/asset"
	"github.com/surfacehq/surface/audit"
	"github.com/surfacehq/surface/finding"
)

const apiPrefix = "/api/v1"

// Options configures the API client.
type Options struct {
	// BaseURL is the API root (e.g., "https://api.surfacehq.io").
	BaseURL string

	// Token is the bearer token attached to every request.
	Token string

	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client

	// MaxRetries bounds automatic retries of transient failures
	// (transport errors, HTTP 5xx, 429). 4xx responses are never retried.
	MaxRetries int

	// RetryBackoff is the base delay between retries; it doubles per attempt.
	RetryBackoff time.Duration

	// Logger receives request diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Client is the JSON-over-HTTP client for the Surface API. All methods are
// safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
	tracer     trace.Tracer
}

// New creates an API client with the given options.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = 250 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		httpClient: httpClient,
		maxRetries: opts.MaxRetries,
		backoff:    opts.RetryBackoff,
		logger:     logger,
		tracer:     otel.Tracer("surface/client"),
	}, nil
}

// ListOptions selects and paginates findings queries.
type ListOptions struct {
	Status     finding.Status
	Severity   finding.Severity
	AssigneeID string
	AssetID    string
	Page       int
	PerPage    int
}

// Query returns the options encoded as a canonical query string. The same
// string keys the query cache, so equal filters share a cache entry.
func (o ListOptions) Query() string {
	v := url.Values{}
	if o.Status != "" {
		v.Set("status", o.Status.String())
	}
	if o.Severity != "" {
		v.Set("severity", o.Severity.String())
	}
	if o.AssigneeID != "" {
		v.Set("assignee_id", o.AssigneeID)
	}
	if o.AssetID != "" {
		v.Set("asset_id", o.AssetID)
	}
	if o.Page > 0 {
		v.Set("page", strconv.Itoa(o.Page))
	}
	if o.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(o.PerPage))
	}
	return v.Encode()
}

// ListFindings returns the tenant's findings matching the options, along
// with the total count across all pages.
func (c *Client) ListFindings(ctx context.Context, tenantID string, opts ListOptions) ([]*finding.Finding, int, error) {
	path := fmt.Sprintf("%s/tenants/%s/findings", apiPrefix, tenantID)
	if q := opts.Query(); q != "" {
		path += "?" + q
	}

	var page findingPage
	if err := c.do(ctx, "Client.ListFindings", http.MethodGet, path, nil, &page); err != nil {
		return nil, 0, err
	}

	findings := make([]*finding.Finding, 0, len(page.Findings))
	for i := range page.Findings {
		findings = append(findings, page.Findings[i].toDomain())
	}
	return findings, page.Total, nil
}

// GetFinding returns a single finding by ID.
func (c *Client) GetFinding(ctx context.Context, tenantID, id string) (*finding.Finding, error) {
	path := fmt.Sprintf("%s/tenants/%s/findings/%s", apiPrefix, tenantID, id)

	var w findingWire
	if err := c.do(ctx, "Client.GetFinding", http.MethodGet, path, nil, &w); err != nil {
		return nil, err
	}
	return w.toDomain(), nil
}

// UpdateStatus issues the status mutation and returns the updated finding.
// The server re-validates the transition; use finding.CanTransition first
// to reject illegal edges without a network call.
func (c *Client) UpdateStatus(ctx context.Context, tenantID, id string, status finding.Status, resolution string) (*finding.Finding, error) {
	path := fmt.Sprintf("%s/tenants/%s/findings/%s/status", apiPrefix, tenantID, id)
	body := statusPatch{Status: status.String(), Resolution: resolution}

	var w findingWire
	if err := c.do(ctx, "Client.UpdateStatus", http.MethodPatch, path, body, &w); err != nil {
		return nil, err
	}
	return w.toDomain(), nil
}

// UpdateSeverity issues the severity mutation and returns the updated finding.
func (c *Client) UpdateSeverity(ctx context.Context, tenantID, id string, severity finding.Severity, cvssScore *float64, cvssVector string) (*finding.Finding, error) {
	path := fmt.Sprintf("%s/tenants/%s/findings/%s/severity", apiPrefix, tenantID, id)
	body := severityPatch{Severity: severity.String(), CVSSScore: cvssScore, CVSSVector: cvssVector}

	var w findingWire
	if err := c.do(ctx, "Client.UpdateSeverity", http.MethodPatch, path, body, &w); err != nil {
		return nil, err
	}
	return w.toDomain(), nil
}

// Assign assigns the finding to a user and returns the updated finding.
func (c *Client) Assign(ctx context.Context, id, userID string) (*finding.Finding, error) {
	path := fmt.Sprintf("%s/findings/%s/assign", apiPrefix, id)

	var w findingWire
	if err := c.do(ctx, "Client.Assign", http.MethodPost, path, assignBody{UserID: userID}, &w); err != nil {
		return nil, err
	}
	return w.toDomain(), nil
}

// Unassign clears the finding's assignee and returns the updated finding.
func (c *Client) Unassign(ctx context.Context, id, userID string) (*finding.Finding, error) {
	path := fmt.Sprintf("%s/findings/%s/unassign", apiPrefix, id)

	var w findingWire
	if err := c.do(ctx, "Client.Unassign", http.MethodPost, path, assignBody{UserID: userID}, &w); err != nil {
		return nil, err
	}
	return w.toDomain(), nil
}

// ListAssets returns the tenant's assets.
func (c *Client) ListAssets(ctx context.Context, tenantID string) ([]*asset.Asset, int, error) {
	path := fmt.Sprintf("%s/tenants/%s/assets", apiPrefix, tenantID)

	var page assetPage
	if err := c.do(ctx, "Client.ListAssets", http.MethodGet, path, nil, &page); err != nil {
		return nil, 0, err
	}

	assets := make([]*asset.Asset, 0, len(page.Assets))
	for i := range page.Assets {
		assets = append(assets, page.Assets[i].toDomain())
	}
	return assets, page.Total, nil
}

// ListAuditEntries returns the tenant's audit log, most recent first.
func (c *Client) ListAuditEntries(ctx context.Context, tenantID string) ([]*audit.Entry, error) {
	path := fmt.Sprintf("%s/tenants/%s/audit", apiPrefix, tenantID)

	var page auditPage
	if err := c.do(ctx, "Client.ListAuditEntries", http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}

	entries := make([]*audit.Entry, 0, len(page.Entries))
	for i := range page.Entries {
		entries = append(entries, page.Entries[i].toDomain())
	}
	return entries, nil
}

// do issues the request, retrying transient failures up to MaxRetries with
// doubling backoff. The response body is decoded into out when non-nil.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	ctx, span := c.tracer.Start(ctx, op)
	defer span.End()

	var lastErr *RESTError
	backoff := c.backoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying request",
				"op", op, "attempt", attempt, "backoff", backoff, "error", lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return lastErr
			}
			backoff *= 2
		}

		rerr := c.doOnce(ctx, op, method, path, body, out)
		if rerr == nil {
			return nil
		}
		lastErr = rerr
		if !rerr.Retryable() {
			return rerr
		}
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, op, method, path string, body, out any) *RESTError {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &RESTError{Op: op, Method: method, Path: path, Code: CodeDecodeError, Class: ClassPermanent, Cause: err}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return &RESTError{Op: op, Method: method, Path: path, Code: CodeNetworkError, Class: ClassPermanent, Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport errors are transient unless the context is done.
		class := ClassTransient
		if ctx.Err() != nil {
			class = ClassPermanent
		}
		return &RESTError{Op: op, Method: method, Path: path, Code: CodeNetworkError, Class: class, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		code, class := classify(resp.StatusCode)
		msg := ""
		var envelope apiError
		if decodeErr := json.NewDecoder(resp.Body).Decode(&envelope); decodeErr == nil {
			msg = envelope.Error
		}
		return &RESTError{
			Op: op, Method: method, Path: path,
			StatusCode: resp.StatusCode, Code: code, Message: msg, Class: class,
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &RESTError{Op: op, Method: method, Path: path, StatusCode: resp.StatusCode, Code: CodeDecodeError, Class: ClassPermanent, Cause: err}
		}
	}
	return nil
}
