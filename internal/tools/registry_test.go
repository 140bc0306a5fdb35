package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/goodtune/timesheet-mcp/internal/remote"
	"github.com/goodtune/timesheet-mcp/internal/timesheet"
)

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

// newTestRegistry wires a registry to a fake timesheet service with a
// pinned clock and known defaults.
func newTestRegistry(t *testing.T, handler http.Handler) *Registry {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := remote.NewClient(remote.Config{
		BaseURL:  srv.URL,
		APIKey:   "test-key",
		TenantID: "test-tenant",
	}, testLogger())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	r := NewRegistry(client, Defaults{
		StartTime:    "08:30",
		EndTime:      "17:00",
		BreakMinutes: 30,
	}, testLogger())
	r.clock = &TestClock{CurrentTime: time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)}
	return r
}

func callReq(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("result has no content")
		return ""
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want mcp.TextContent", res.Content[0])
		return ""
	}
	return tc.Text
}

const entryFixture = `{
	"timesheetId": "ts-100",
	"employeeId": "emp-7",
	"clientId": "cl-1",
	"projectId": "pr-2",
	"categoryId": "cat-3",
	"locationId": "loc-4",
	"date": "2025-03-10",
	"startTime": "09:00:00",
	"endTime": "18:00:00",
	"breakMinutes": 60,
	"billableHours": 8,
	"totalHours": 9,
	"unitSellPrice": 150,
	"salesTaxRate": 0.1,
	"notes": "original note"
}`

func TestCreateTimesheet(t *testing.T) {
	var posted map[string]any
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/employees/me":
			fmt.Fprint(w, `{"employeeId":"emp-7"}`)
		case r.URL.Path == "/api/rates":
			q := r.URL.Query()
			if q.Get("employeeId") != "emp-7" || q.Get("clientId") != "cl-1" {
				t.Errorf("rate lookup query = %v", q)
			}
			fmt.Fprint(w, `{"unitSellPrice":150,"salesTaxRate":0.1,"currency":"AUD"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/api/timesheets":
			if err := json.NewDecoder(r.Body).Decode(&posted); err != nil {
				t.Errorf("decoding posted entry: %v", err)
			}
			fmt.Fprint(w, entryFixture)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	r := newTestRegistry(t, handler)

	res, err := r.createTimesheet(context.Background(), callReq("create_timesheet", map[string]any{
		"client_id":     "cl-1",
		"project_id":    "pr-2",
		"category_id":   "cat-3",
		"date":          "2025-03-10",
		"start_time":    "09:00",
		"end_time":      "18:00",
		"break_minutes": float64(60),
		"notes":         "sprint planning",
	}))
	if err != nil {
		t.Fatalf("create_timesheet: %v", err)
	}
	if res.IsError {
		t.Fatalf("create_timesheet failed: %s", resultText(t, res))
	}

	if posted == nil {
		t.Fatal("no entry reached the service")
	}
	checks := map[string]any{
		"employeeId":    "emp-7",
		"clientId":      "cl-1",
		"date":          "2025-03-10",
		"startTime":     "09:00:00",
		"endTime":       "18:00:00",
		"break":         60.0,
		"billableHours": 8.0,
		"totalHours":    9.0,
		"unitSellPrice": 150.0,
		"salesTaxRate":  0.1,
		"notes":         "sprint planning",
	}
	for field, want := range checks {
		if got := posted[field]; got != want {
			t.Errorf("posted %s = %v, want %v", field, got, want)
		}
	}
	if _, ok := posted["timesheetId"]; ok {
		t.Error("a new entry must not carry an id")
	}

	if text := resultText(t, res); !strings.Contains(text, "ts-100") {
		t.Errorf("result does not name the stored entry: %s", text)
	}
}

func TestCreateTimesheetRejectsImpossibleRange(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	r := newTestRegistry(t, handler)

	_, err := r.createTimesheet(context.Background(), callReq("create_timesheet", map[string]any{
		"client_id":     "cl-1",
		"project_id":    "pr-2",
		"category_id":   "cat-3",
		"date":          "2025-03-10",
		"start_time":    "09:00",
		"end_time":      "10:00",
		"break_minutes": float64(60),
	}))
	var rangeErr *timesheet.InvalidTimeRangeError
	if !errors.As(err, &rangeErr) {
		t.Fatalf("expected *timesheet.InvalidTimeRangeError, got %T: %v", err, err)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("an impossible range reached the service (%d requests)", n)
	}
}

func TestCreateTimesheetMissingClientStaysLocal(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"employeeId":"emp-7"}`)
	})
	r := newTestRegistry(t, handler)

	_, err := r.createTimesheet(context.Background(), callReq("create_timesheet", map[string]any{
		"project_id":  "pr-2",
		"category_id": "cat-3",
		"date":        "2025-03-10",
		"start_time":  "09:00",
		"end_time":    "18:00",
	}))
	wantInvalid(t, err, "client_id")
	if n := calls.Load(); n != 0 {
		t.Errorf("rejected arguments reached the service (%d requests)", n)
	}
}

func TestCreateTimesheetRemoteFailure(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/employees/me":
			fmt.Fprint(w, `{"employeeId":"emp-7"}`)
		case r.URL.Path == "/api/rates":
			fmt.Fprint(w, `{"unitSellPrice":150,"salesTaxRate":0.1,"currency":"AUD"}`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, "database exploded")
		}
	})
	r := newTestRegistry(t, handler)

	res, err := r.createTimesheet(context.Background(), callReq("create_timesheet", map[string]any{
		"client_id":   "cl-1",
		"project_id":  "pr-2",
		"category_id": "cat-3",
		"date":        "2025-03-10",
		"start_time":  "09:00",
		"end_time":    "18:00",
	}))
	if err != nil {
		t.Fatalf("a remote failure must be a failed result, not a protocol error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected a failed tool result")
	}
	text := resultText(t, res)
	if !strings.Contains(text, "500") || !strings.Contains(text, "database exploded") {
		t.Errorf("failure text hides the cause: %s", text)
	}
}

func TestUpdateTimesheetMergesBeforeReplace(t *testing.T) {
	var put map[string]any
	var rateCalls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/timesheets/ts-100":
			fmt.Fprint(w, entryFixture)
		case r.Method == http.MethodPut && r.URL.Path == "/api/timesheets/ts-100":
			if err := json.NewDecoder(r.Body).Decode(&put); err != nil {
				t.Errorf("decoding replacement: %v", err)
			}
		case r.URL.Path == "/api/rates":
			rateCalls.Add(1)
			fmt.Fprint(w, `{"unitSellPrice":999,"salesTaxRate":0.9,"currency":"AUD"}`)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	r := newTestRegistry(t, handler)

	res, err := r.updateTimesheet(context.Background(), callReq("update_timesheet", map[string]any{
		"timesheet_id": "ts-100",
		"end_time":     "17:00",
		"notes":        "",
	}))
	if err != nil {
		t.Fatalf("update_timesheet: %v", err)
	}
	if res.IsError {
		t.Fatalf("update_timesheet failed: %s", resultText(t, res))
	}

	if put == nil {
		t.Fatal("no replacement reached the service")
	}
	checks := map[string]any{
		"timesheetId":   "ts-100",
		"startTime":     "09:00:00",
		"endTime":       "17:00:00",
		"break":         60.0,
		"billableHours": 7.0,
		"totalHours":    8.0,
		"unitSellPrice": 150.0,
		"notes":         "",
	}
	for field, want := range checks {
		if got := put[field]; got != want {
			t.Errorf("replacement %s = %v, want %v", field, got, want)
		}
	}
	// The stored rate rides along; updates never consult the rate endpoint.
	if n := rateCalls.Load(); n != 0 {
		t.Errorf("update looked up the billing rate %d times", n)
	}
}

func TestUpdateTimesheetInvalidMergedRange(t *testing.T) {
	var gets, puts atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			gets.Add(1)
			fmt.Fprint(w, entryFixture)
		case http.MethodPut:
			puts.Add(1)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	})
	r := newTestRegistry(t, handler)

	_, err := r.updateTimesheet(context.Background(), callReq("update_timesheet", map[string]any{
		"timesheet_id": "ts-100",
		"end_time":     "08:00",
	}))
	var rangeErr *timesheet.InvalidTimeRangeError
	if !errors.As(err, &rangeErr) {
		t.Fatalf("expected *timesheet.InvalidTimeRangeError, got %T: %v", err, err)
	}
	if gets.Load() != 1 {
		t.Errorf("fetched the entry %d times, want 1", gets.Load())
	}
	if puts.Load() != 0 {
		t.Errorf("an invalid merge reached the replace call (%d requests)", puts.Load())
	}
}

func TestDeleteTimesheet(t *testing.T) {
	var method, path string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})
	r := newTestRegistry(t, handler)

	res, err := r.deleteTimesheet(context.Background(), callReq("delete_timesheet", map[string]any{
		"timesheet_id": "ts-100",
	}))
	if err != nil {
		t.Fatalf("delete_timesheet: %v", err)
	}
	if res.IsError {
		t.Fatalf("delete_timesheet failed: %s", resultText(t, res))
	}
	if method != http.MethodDelete || path != "/api/timesheets/ts-100" {
		t.Errorf("service saw %s %s, want DELETE /api/timesheets/ts-100", method, path)
	}
	text := resultText(t, res)
	if !strings.Contains(text, "ts-100") || !strings.Contains(text, "deleted") {
		t.Errorf("result does not confirm the deletion: %s", text)
	}
}

func TestGetTimesheet(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/timesheets/ts-100" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		fmt.Fprint(w, entryFixture)
	})
	r := newTestRegistry(t, handler)

	res, err := r.getTimesheet(context.Background(), callReq("get_timesheet", map[string]any{
		"timesheet_id": "ts-100",
	}))
	if err != nil {
		t.Fatalf("get_timesheet: %v", err)
	}
	text := resultText(t, res)
	// Times come back in canonical wall-clock form.
	for _, want := range []string{`"ts-100"`, `"09:00"`, `"18:00"`, `"original note"`} {
		if !strings.Contains(text, want) {
			t.Errorf("result lacks %s: %s", want, text)
		}
	}
}

func TestGetTimesheetDefaultsIsLocal(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	r := newTestRegistry(t, handler)

	res, err := r.getTimesheetDefaults(context.Background(), callReq("get_timesheet_defaults", nil))
	if err != nil {
		t.Fatalf("get_timesheet_defaults: %v", err)
	}
	text := resultText(t, res)
	for _, want := range []string{"2025-03-10", "08:30", "17:00", "30"} {
		if !strings.Contains(text, want) {
			t.Errorf("defaults lack %s: %s", want, text)
		}
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("defaults are local but the service saw %d requests", n)
	}
}

func TestGetBillingRate(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/employees/me":
			fmt.Fprint(w, `{"employeeId":"emp-7"}`)
		case "/api/rates":
			fmt.Fprint(w, `{"unitSellPrice":150,"salesTaxRate":0.1,"currency":"AUD"}`)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	})
	r := newTestRegistry(t, handler)

	res, err := r.getBillingRate(context.Background(), callReq("get_billing_rate", map[string]any{
		"client_id": "cl-1",
	}))
	if err != nil {
		t.Fatalf("get_billing_rate: %v", err)
	}
	text := resultText(t, res)
	for _, want := range []string{"emp-7", "cl-1", "150", "AUD"} {
		if !strings.Contains(text, want) {
			t.Errorf("rate result lacks %s: %s", want, text)
		}
	}
}

func TestListTimesheetsResolvesIdentityOnce(t *testing.T) {
	var identityCalls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/employees/me":
			identityCalls.Add(1)
			fmt.Fprint(w, `{"employeeId":"emp-7"}`)
		case "/api/timesheets":
			if got := r.URL.Query().Get("employeeId"); got != "emp-7" {
				t.Errorf("list query employeeId = %q, want emp-7", got)
			}
			fmt.Fprint(w, `[{"timesheetId":"ts-1","title":"Acme / build","start":"2025-03-10T09:00:00","end":"2025-03-10T18:00:00"}]`)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	})
	r := newTestRegistry(t, handler)

	args := map[string]any{"from_date": "2025-03-01", "to_date": "2025-03-31"}
	for i := 0; i < 2; i++ {
		res, err := r.listTimesheets(context.Background(), callReq("list_timesheets", args))
		if err != nil {
			t.Fatalf("list_timesheets: %v", err)
		}
		if !strings.Contains(resultText(t, res), "ts-1") {
			t.Errorf("listing lacks the entry")
		}
	}
	if n := identityCalls.Load(); n != 1 {
		t.Errorf("identity resolved %d times across two listings, want 1", n)
	}
}

func TestListClientsPassesSearch(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/clients" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("search"); got != "acme" {
			t.Errorf("search = %q, want acme", got)
		}
		fmt.Fprint(w, `[{"clientId":"cl-1","clientName":"Acme Pty Ltd"}]`)
	})
	r := newTestRegistry(t, handler)

	res, err := r.listClients(context.Background(), callReq("list_clients", map[string]any{
		"search": "acme",
	}))
	if err != nil {
		t.Fatalf("list_clients: %v", err)
	}
	if !strings.Contains(resultText(t, res), "Acme Pty Ltd") {
		t.Errorf("listing lacks the client name")
	}
}

func TestCatalogueAndHandlersAligned(t *testing.T) {
	r := newTestRegistry(t, http.NotFoundHandler())
	hs := r.handlers()

	if len(catalogue) != 11 {
		t.Fatalf("catalogue has %d tools, want 11", len(catalogue))
	}
	seen := make(map[string]bool, len(catalogue))
	for _, spec := range catalogue {
		if seen[spec.Name] {
			t.Errorf("duplicate tool %q", spec.Name)
		}
		seen[spec.Name] = true
		if _, ok := hs[spec.Name]; !ok {
			t.Errorf("tool %q has no handler", spec.Name)
		}
	}
	for name := range hs {
		if !seen[name] {
			t.Errorf("handler %q is not in the catalogue", name)
		}
	}
}

func TestInstallRegistersEveryTool(t *testing.T) {
	r := newTestRegistry(t, http.NotFoundHandler())
	srv := server.NewMCPServer("timesheet-mcp", "test", server.WithToolCapabilities(false))
	r.Install(srv)
}

func TestToolSchemas(t *testing.T) {
	requires := func(tool mcp.Tool, name string) bool {
		for _, r := range tool.InputSchema.Required {
			if r == name {
				return true
			}
		}
		return false
	}

	for _, spec := range catalogue {
		tool := spec.tool()
		if tool.Name != spec.Name {
			t.Errorf("tool name %q, want %q", tool.Name, spec.Name)
		}
		if tool.Description == "" {
			t.Errorf("tool %q has no description", spec.Name)
		}
		for _, arg := range spec.Args {
			if _, ok := tool.InputSchema.Properties[arg.Name]; !ok {
				t.Errorf("tool %q: argument %q missing from schema", spec.Name, arg.Name)
			}
			if arg.Required != requires(tool, arg.Name) {
				t.Errorf("tool %q: argument %q required = %v in schema, want %v",
					spec.Name, arg.Name, requires(tool, arg.Name), arg.Required)
			}
		}

		ann := tool.Annotations
		if ann.ReadOnlyHint == nil || *ann.ReadOnlyHint != spec.ReadOnly {
			t.Errorf("tool %q: read-only hint = %v, want %v", spec.Name, ann.ReadOnlyHint, spec.ReadOnly)
		}
		if ann.DestructiveHint == nil || *ann.DestructiveHint != spec.Destructive {
			t.Errorf("tool %q: destructive hint = %v, want %v", spec.Name, ann.DestructiveHint, spec.Destructive)
		}
		if ann.IdempotentHint == nil || *ann.IdempotentHint != spec.Idempotent {
			t.Errorf("tool %q: idempotent hint = %v, want %v", spec.Name, ann.IdempotentHint, spec.Idempotent)
		}
	}
}

func TestInstrumentPassesResultsThrough(t *testing.T) {
	r := newTestRegistry(t, http.NotFoundHandler())

	ok := r.instrument("ok_tool", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("fine"), nil
	})
	res, err := ok(context.Background(), callReq("ok_tool", nil))
	if err != nil || resultText(t, res) != "fine" {
		t.Errorf("instrumented handler altered the result: %v, %v", res, err)
	}

	boom := errors.New("boom")
	failing := r.instrument("failing_tool", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return nil, boom
	})
	if _, err := failing(context.Background(), callReq("failing_tool", nil)); !errors.Is(err, boom) {
		t.Errorf("instrumented handler swallowed the error: %v", err)
	}
}
