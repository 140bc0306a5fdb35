package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/goodtune/timesheet-mcp/internal/metrics"
	"github.com/goodtune/timesheet-mcp/internal/remote"
	"github.com/goodtune/timesheet-mcp/internal/timesheet"
)

// Defaults are the workday values advertised by get_timesheet_defaults.
type Defaults struct {
	StartTime    string
	EndTime      string
	BreakMinutes int
}

// Registry wires the tool catalogue to the derivation engine and the remote
// service gateway. It holds no per-call state; the identity cache lives in
// the gateway.
type Registry struct {
	client   *remote.Client
	defaults Defaults
	clock    Clock
	logger   zerolog.Logger
}

// NewRegistry returns a registry serving the full catalogue.
func NewRegistry(client *remote.Client, defaults Defaults, logger zerolog.Logger) *Registry {
	return &Registry{
		client:   client,
		defaults: defaults,
		clock:    RealClock{},
		logger:   logger.With().Str("component", "tools").Logger(),
	}
}

// handlers maps catalogue names to implementations.
func (r *Registry) handlers() map[string]server.ToolHandlerFunc {
	return map[string]server.ToolHandlerFunc{
		"list_clients":           r.listClients,
		"list_projects":          r.listProjects,
		"list_categories":        r.listCategories,
		"list_locations":         r.listLocations,
		"get_timesheet_defaults": r.getTimesheetDefaults,
		"get_billing_rate":       r.getBillingRate,
		"list_timesheets":        r.listTimesheets,
		"get_timesheet":          r.getTimesheet,
		"create_timesheet":       r.createTimesheet,
		"update_timesheet":       r.updateTimesheet,
		"delete_timesheet":       r.deleteTimesheet,
	}
}

// Install registers every catalogue entry on the server. A catalogue name
// without a handler is a programming error and panics at startup.
func (r *Registry) Install(srv *server.MCPServer) {
	hs := r.handlers()
	for _, spec := range catalogue {
		h, ok := hs[spec.Name]
		if !ok {
			panic(fmt.Sprintf("tool %q has no handler", spec.Name))
		}
		srv.AddTool(spec.tool(), r.instrument(spec.Name, h))
	}
	r.logger.Info().Int("tools", len(catalogue)).Msg("tool catalogue installed")
}

// instrument wraps a handler with logging and metrics. A returned error is
// a protocol-level rejection (bad arguments); a result flagged IsError is a
// failed call against the remote service.
func (r *Registry) instrument(name string, h server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		result, err := h(ctx, req)

		outcome := "ok"
		switch {
		case err != nil:
			outcome = "invalid"
		case result != nil && result.IsError:
			outcome = "remote_error"
		}
		metrics.ToolCallsTotal.WithLabelValues(name, outcome).Inc()
		metrics.ToolCallDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

		evt := r.logger.Debug()
		if outcome != "ok" {
			evt = r.logger.Warn()
		}
		evt.Str("tool", name).
			Str("outcome", outcome).
			Dur("elapsed", time.Since(start)).
			Err(err).
			Msg("tool call")
		return result, err
	}
}

// jsonResult renders one pretty-printed JSON success payload.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// remoteFailure folds a remote error into a failed tool result. The failure
// is the assistant's to handle: it can retry, correct the inputs or give
// up. One attempt was made; none follow.
func remoteFailure(what string, err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", what, err)), nil
}

func (r *Registry) listClients(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decodeListClients(req.GetArguments())
	if err != nil {
		return nil, err
	}
	clients, err := r.client.SearchClients(ctx, in.Search)
	if err != nil {
		return remoteFailure("listing clients", err)
	}
	return jsonResult(clients)
}

func (r *Registry) listProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decodeClientScoped(req.GetArguments())
	if err != nil {
		return nil, err
	}
	projects, err := r.client.ListProjects(ctx, in.ClientID)
	if err != nil {
		return remoteFailure("listing projects", err)
	}
	return jsonResult(projects)
}

func (r *Registry) listCategories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	categories, err := r.client.ListCategories(ctx)
	if err != nil {
		return remoteFailure("listing categories", err)
	}
	return jsonResult(categories)
}

func (r *Registry) listLocations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	locations, err := r.client.ListLocations(ctx)
	if err != nil {
		return remoteFailure("listing locations", err)
	}
	return jsonResult(locations)
}

// getTimesheetDefaults answers from configuration and the clock alone, so
// the defaults stay available when the timesheet service is down.
func (r *Registry) getTimesheetDefaults(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{
		"date":          r.clock.Now().Format("2006-01-02"),
		"start_time":    r.defaults.StartTime,
		"end_time":      r.defaults.EndTime,
		"break_minutes": r.defaults.BreakMinutes,
	})
}

func (r *Registry) getBillingRate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decodeClientScoped(req.GetArguments())
	if err != nil {
		return nil, err
	}
	employeeID, err := r.client.EmployeeID(ctx)
	if err != nil {
		return remoteFailure("resolving employee identity", err)
	}
	rate, err := r.client.BillingRate(ctx, employeeID, in.ClientID)
	if err != nil {
		return remoteFailure("looking up billing rate", err)
	}
	return jsonResult(map[string]any{
		"employee_id": employeeID,
		"client_id":   in.ClientID,
		"rate":        rate,
	})
}

func (r *Registry) listTimesheets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decodeListTimesheets(req.GetArguments())
	if err != nil {
		return nil, err
	}
	employeeID, err := r.client.EmployeeID(ctx)
	if err != nil {
		return remoteFailure("resolving employee identity", err)
	}
	entries, err := r.client.ListEntries(ctx, employeeID, in.From, in.To)
	if err != nil {
		return remoteFailure("listing timesheet entries", err)
	}
	return jsonResult(entries)
}

func (r *Registry) getTimesheet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decodeRecordID(req.GetArguments())
	if err != nil {
		return nil, err
	}
	entry, err := r.client.GetEntry(ctx, in.ID)
	if err != nil {
		return remoteFailure("fetching timesheet entry", err)
	}
	return jsonResult(entry)
}

func (r *Registry) createTimesheet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decodeCreate(req.GetArguments())
	if err != nil {
		return nil, err
	}
	// Reject impossible ranges before touching the network.
	if _, err := in.Range.Derive(); err != nil {
		return nil, err
	}

	employeeID, err := r.client.EmployeeID(ctx)
	if err != nil {
		return remoteFailure("resolving employee identity", err)
	}
	rate, err := r.client.BillingRate(ctx, employeeID, in.ClientID)
	if err != nil {
		return remoteFailure("looking up billing rate", err)
	}

	entry, err := timesheet.DeriveForCreate(timesheet.CreateInput{
		EmployeeID: employeeID,
		ClientID:   in.ClientID,
		ProjectID:  in.ProjectID,
		CategoryID: in.CategoryID,
		LocationID: in.LocationID,
		BillableID: in.BillableID,
		Range:      in.Range,
		Note:       in.Note,
		Rate:       rate,
	})
	if err != nil {
		return nil, err
	}

	created, err := r.client.CreateEntry(ctx, entry)
	if err != nil {
		return remoteFailure("creating timesheet entry", err)
	}
	return jsonResult(created)
}

func (r *Registry) updateTimesheet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decodeUpdate(req.GetArguments())
	if err != nil {
		return nil, err
	}
	existing, err := r.client.GetEntry(ctx, in.ID)
	if err != nil {
		return remoteFailure("fetching timesheet entry", err)
	}
	// An invalid merged range fails here, before the replace is sent.
	merged, err := timesheet.DeriveForUpdate(existing, in.Overrides)
	if err != nil {
		return nil, err
	}
	if err := r.client.ReplaceEntry(ctx, merged); err != nil {
		return remoteFailure("updating timesheet entry", err)
	}
	return jsonResult(merged)
}

func (r *Registry) deleteTimesheet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decodeRecordID(req.GetArguments())
	if err != nil {
		return nil, err
	}
	if err := r.client.DeleteEntry(ctx, in.ID); err != nil {
		return remoteFailure("deleting timesheet entry", err)
	}
	return jsonResult(map[string]any{
		"timesheet_id": in.ID,
		"deleted":      true,
	})
}
