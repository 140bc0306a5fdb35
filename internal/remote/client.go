package remote

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
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/goodtune/timesheet-mcp/internal/metrics"
	"github.com/goodtune/timesheet-mcp/internal/timesheet"
)

// Auth headers sent on every request.
const (
	headerAPIKey   = "X-Api-Key"
	headerTenantID = "X-Tenant-Id"
)

// maxErrorBody bounds how much of a failed response body is folded into the
// error message.
const maxErrorBody = 4096

// Operation labels, shared by logs and metrics.
const (
	opResolveIdentity = "resolve-identity"
	opSearchClients   = "search-clients"
	opListProjects    = "list-projects"
	opListCategories  = "list-categories"
	opListLocations   = "list-locations"
	opGetRate         = "get-rate"
	opListRecords     = "list-records"
	opGetRecord       = "get-record"
	opCreateRecord    = "create-record"
	opReplaceRecord   = "replace-record"
	opDeleteRecord    = "delete-record"
)

// APIError is a non-2xx response from the timesheet service. The adapter
// makes exactly one attempt per call and surfaces the failure verbatim.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("timesheet service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("timesheet service returned status %d: %s", e.StatusCode, e.Body)
}

// Config holds the connection settings for the timesheet service.
type Config struct {
	BaseURL  string
	APIKey   string
	TenantID string
	Timeout  time.Duration
	Encoding Encoding
}

// Client talks to the remote timesheet service. Beyond the HTTP plumbing it
// owns the only piece of adapter state: the memoized employee identity.
type Client struct {
	baseURL  *url.URL
	apiKey   string
	tenantID string
	encoding Encoding
	http     *http.Client
	logger   zerolog.Logger

	flight     singleflight.Group
	mu         sync.Mutex
	employeeID string
}

// NewClient validates the configuration and returns a ready client. Missing
// encoding fields fall back to the canonical clock/minutes representation.
func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", cfg.BaseURL)
	}

	if cfg.Encoding.TimeFormat == "" {
		cfg.Encoding.TimeFormat = TimeFormatClock
	}
	if cfg.Encoding.BreakUnit == "" {
		cfg.Encoding.BreakUnit = BreakUnitMinutes
	}
	if err := cfg.Encoding.validate(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:  base,
		apiKey:   cfg.APIKey,
		tenantID: cfg.TenantID,
		encoding: cfg.Encoding,
		http:     &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "remote").Logger(),
	}, nil
}

// EmployeeID returns the calling user's employee id, resolving it from the
// authenticated session on first use. Concurrent first callers share a
// single in-flight lookup; the resolved value is kept for the process
// lifetime.
func (c *Client) EmployeeID(ctx context.Context) (string, error) {
	c.mu.Lock()
	id := c.employeeID
	c.mu.Unlock()
	if id != "" {
		return id, nil
	}

	v, err, _ := c.flight.Do("employee-id", func() (interface{}, error) {
		metrics.IdentityLookupsTotal.Inc()
		var raw rawIdentity
		if err := c.do(ctx, opResolveIdentity, http.MethodGet, "api/employees/me", nil, nil, &raw); err != nil {
			return nil, err
		}
		if raw.EmployeeID == "" {
			return nil, errors.New("identity response carried no employee id")
		}
		c.mu.Lock()
		c.employeeID = raw.EmployeeID
		c.mu.Unlock()
		c.logger.Debug().Str("employee_id", raw.EmployeeID).Msg("resolved employee identity")
		return raw.EmployeeID, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// SearchClients returns clients matching the free-text search. An empty
// search returns everything the tenant exposes.
func (c *Client) SearchClients(ctx context.Context, search string) ([]timesheet.Client, error) {
	query := url.Values{}
	if search != "" {
		query.Set("search", search)
	}
	var raw []rawClient
	if err := c.do(ctx, opSearchClients, http.MethodGet, "api/clients", query, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]timesheet.Client, 0, len(raw))
	for _, rc := range raw {
		out = append(out, timesheet.Client{ID: rc.ClientID, Name: rc.ClientName})
	}
	return out, nil
}

// ListProjects returns the projects available under a client.
func (c *Client) ListProjects(ctx context.Context, clientID string) ([]timesheet.Project, error) {
	var raw []rawProject
	path := "api/clients/" + url.PathEscape(clientID) + "/projects"
	if err := c.do(ctx, opListProjects, http.MethodGet, path, nil, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]timesheet.Project, 0, len(raw))
	for _, rp := range raw {
		out = append(out, timesheet.Project{ID: rp.ProjectID, Name: rp.ProjectName})
	}
	return out, nil
}

// ListCategories returns the tenant's work categories.
func (c *Client) ListCategories(ctx context.Context) ([]timesheet.Category, error) {
	var raw []rawCategory
	if err := c.do(ctx, opListCategories, http.MethodGet, "api/categories", nil, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]timesheet.Category, 0, len(raw))
	for _, rc := range raw {
		out = append(out, timesheet.Category{ID: rc.CategoryID, Name: rc.CategoryName})
	}
	return out, nil
}

// ListLocations returns the tenant's work locations.
func (c *Client) ListLocations(ctx context.Context) ([]timesheet.Location, error) {
	var raw []rawLocation
	if err := c.do(ctx, opListLocations, http.MethodGet, "api/locations", nil, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]timesheet.Location, 0, len(raw))
	for _, rl := range raw {
		out = append(out, timesheet.Location{ID: rl.LocationID, Name: rl.LocationName})
	}
	return out, nil
}

// BillingRate looks up the negotiated sell rate for an employee/client pair.
func (c *Client) BillingRate(ctx context.Context, employeeID, clientID string) (timesheet.Rate, error) {
	query := url.Values{
		"employeeId": {employeeID},
		"clientId":   {clientID},
	}
	var raw rawRate
	if err := c.do(ctx, opGetRate, http.MethodGet, "api/rates", query, nil, &raw); err != nil {
		return timesheet.Rate{}, err
	}
	return timesheet.Rate{
		UnitSellPrice: raw.UnitSellPrice,
		SalesTaxRate:  raw.SalesTaxRate,
		Currency:      raw.Currency,
	}, nil
}

// ListEntries returns calendar-style summaries of an employee's entries in
// the inclusive date range.
func (c *Client) ListEntries(ctx context.Context, employeeID, from, to string) ([]timesheet.EntrySummary, error) {
	query := url.Values{
		"employeeId": {employeeID},
		"from":       {from},
		"to":         {to},
	}
	var raw []rawSummary
	if err := c.do(ctx, opListRecords, http.MethodGet, "api/timesheets", query, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]timesheet.EntrySummary, 0, len(raw))
	for _, rs := range raw {
		out = append(out, timesheet.EntrySummary{ID: rs.TimesheetID, Title: rs.Title, Start: rs.Start, End: rs.End})
	}
	return out, nil
}

// GetEntry fetches one full record by id.
func (c *Client) GetEntry(ctx context.Context, id string) (timesheet.Entry, error) {
	var raw rawEntry
	path := "api/timesheets/" + url.PathEscape(id)
	if err := c.do(ctx, opGetRecord, http.MethodGet, path, nil, nil, &raw); err != nil {
		return timesheet.Entry{}, err
	}
	return decodeEntry(raw), nil
}

// CreateEntry submits a new entry and returns the stored record, including
// the id the service assigned.
func (c *Client) CreateEntry(ctx context.Context, entry timesheet.Entry) (timesheet.Entry, error) {
	payload := c.encoding.encodeEntry(entry)
	var raw rawEntry
	if err := c.do(ctx, opCreateRecord, http.MethodPost, "api/timesheets", nil, payload, &raw); err != nil {
		return timesheet.Entry{}, err
	}
	return decodeEntry(raw), nil
}

// ReplaceEntry writes the full record over the stored one. The service has
// no partial-update semantics; callers must send a complete entry.
func (c *Client) ReplaceEntry(ctx context.Context, entry timesheet.Entry) error {
	if entry.ID == "" {
		return errors.New("entry id is required for replace")
	}
	payload := c.encoding.encodeEntry(entry)
	path := "api/timesheets/" + url.PathEscape(entry.ID)
	return c.do(ctx, opReplaceRecord, http.MethodPut, path, nil, payload, nil)
}

// DeleteEntry removes a record by id.
func (c *Client) DeleteEntry(ctx context.Context, id string) error {
	path := "api/timesheets/" + url.PathEscape(id)
	return c.do(ctx, opDeleteRecord, http.MethodDelete, path, nil, nil, nil)
}

// do performs one request against the service: auth headers, JSON bodies,
// one attempt, no retries. Non-2xx responses become an *APIError carrying
// the status and the (bounded) body text. An empty body on success is an
// empty structure, not an error.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("building %s request: %w", op, err)
	}
	req.Header.Set(headerAPIKey, c.apiKey)
	req.Header.Set(headerTenantID, c.tenantID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RemoteRequestsTotal.WithLabelValues(op, "transport_error").Inc()
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	metrics.RemoteRequestsTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()
	metrics.RemoteRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn().
			Str("operation", op).
			Int("status", resp.StatusCode).
			Msg("remote request failed")
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", op, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", op, err)
	}
	return nil
}
