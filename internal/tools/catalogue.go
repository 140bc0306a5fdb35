package tools

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// ArgType is the JSON schema type of a tool argument.
type ArgType string

const (
	ArgString ArgType = "string"
	ArgNumber ArgType = "number"
)

// Arg describes one named argument of a tool.
type Arg struct {
	Name        string
	Type        ArgType
	Required    bool
	Description string
}

// Spec describes one catalogue entry: the schema the host shows the
// assistant and the behaviour hints it uses to gate confirmations.
type Spec struct {
	Name        string
	Description string
	ReadOnly    bool
	Destructive bool
	Idempotent  bool
	Args        []Arg
}

// catalogue is the single source of truth for the tool surface. The handler
// map in registry.go is keyed by these names; Install panics on drift.
var catalogue = []Spec{
	{
		Name:        "list_clients",
		Description: "List the clients available for timesheet booking, optionally filtered by a search string.",
		ReadOnly:    true,
		Idempotent:  true,
		Args: []Arg{
			{Name: "search", Type: ArgString, Description: "Free-text filter on client names. Omit to list every client."},
		},
	},
	{
		Name:        "list_projects",
		Description: "List the projects that can be booked against a client.",
		ReadOnly:    true,
		Idempotent:  true,
		Args: []Arg{
			{Name: "client_id", Type: ArgString, Required: true, Description: "Client id from list_clients."},
		},
	},
	{
		Name:        "list_categories",
		Description: "List the work categories (for example development, support, travel).",
		ReadOnly:    true,
		Idempotent:  true,
	},
	{
		Name:        "list_locations",
		Description: "List the work locations that can be recorded on a timesheet entry.",
		ReadOnly:    true,
		Idempotent:  true,
	},
	{
		Name:        "get_timesheet_defaults",
		Description: "Get today's date and the configured workday defaults (start time, end time, break minutes) to prefill create_timesheet. Answers locally without contacting the timesheet service.",
		ReadOnly:    true,
		Idempotent:  true,
	},
	{
		Name:        "get_billing_rate",
		Description: "Look up the negotiated billing rate for the calling employee and a client.",
		ReadOnly:    true,
		Idempotent:  true,
		Args: []Arg{
			{Name: "client_id", Type: ArgString, Required: true, Description: "Client id from list_clients."},
		},
	},
	{
		Name:        "list_timesheets",
		Description: "List the calling employee's timesheet entries in a date range as calendar-style summaries.",
		ReadOnly:    true,
		Idempotent:  true,
		Args: []Arg{
			{Name: "from_date", Type: ArgString, Required: true, Description: "First day of the range, YYYY-MM-DD."},
			{Name: "to_date", Type: ArgString, Required: true, Description: "Last day of the range (inclusive), YYYY-MM-DD."},
		},
	},
	{
		Name:        "get_timesheet",
		Description: "Fetch one timesheet entry in full by id.",
		ReadOnly:    true,
		Idempotent:  true,
		Args: []Arg{
			{Name: "timesheet_id", Type: ArgString, Required: true, Description: "Entry id from list_timesheets or a previous create."},
		},
	},
	{
		Name:        "create_timesheet",
		Description: "Create a timesheet entry. Billable and total hours are derived from the times and break; the billing rate is looked up from the client assignment. Call get_timesheet_defaults for the usual workday times.",
		Args: []Arg{
			{Name: "client_id", Type: ArgString, Required: true, Description: "Client id from list_clients."},
			{Name: "project_id", Type: ArgString, Required: true, Description: "Project id from list_projects."},
			{Name: "category_id", Type: ArgString, Required: true, Description: "Category id from list_categories."},
			{Name: "date", Type: ArgString, Required: true, Description: "Day worked, YYYY-MM-DD."},
			{Name: "start_time", Type: ArgString, Required: true, Description: "Start of work, HH:MM wall clock."},
			{Name: "end_time", Type: ArgString, Required: true, Description: "End of work, HH:MM wall clock. Must be after start_time."},
			{Name: "break_minutes", Type: ArgNumber, Description: "Unpaid break in whole minutes. Omit for no break."},
			{Name: "location_id", Type: ArgString, Description: "Work location id from list_locations."},
			{Name: "billable_id", Type: ArgString, Description: "Billable reference to attach to the entry."},
			{Name: "notes", Type: ArgString, Description: "Free-text note on the entry."},
		},
	},
	{
		Name:        "update_timesheet",
		Description: "Update a timesheet entry. Omitted fields keep their stored values; hours are re-derived from the merged times. Passing notes as an empty string clears the note. The billing rate is kept from the original entry.",
		Destructive: true,
		Idempotent:  true,
		Args: []Arg{
			{Name: "timesheet_id", Type: ArgString, Required: true, Description: "Id of the entry to update."},
			{Name: "client_id", Type: ArgString, Description: "New client id."},
			{Name: "project_id", Type: ArgString, Description: "New project id."},
			{Name: "category_id", Type: ArgString, Description: "New category id."},
			{Name: "location_id", Type: ArgString, Description: "New location id. An empty string clears it."},
			{Name: "billable_id", Type: ArgString, Description: "New billable reference. An empty string clears it."},
			{Name: "date", Type: ArgString, Description: "New day, YYYY-MM-DD."},
			{Name: "start_time", Type: ArgString, Description: "New start of work, HH:MM."},
			{Name: "end_time", Type: ArgString, Description: "New end of work, HH:MM."},
			{Name: "break_minutes", Type: ArgNumber, Description: "New unpaid break in whole minutes."},
			{Name: "notes", Type: ArgString, Description: "New note. An empty string clears it; omit to keep the current note."},
		},
	},
	{
		Name:        "delete_timesheet",
		Description: "Delete a timesheet entry by id.",
		Destructive: true,
		Idempotent:  true,
		Args: []Arg{
			{Name: "timesheet_id", Type: ArgString, Required: true, Description: "Id of the entry to delete."},
		},
	},
}

// tool renders the spec as an MCP tool descriptor.
func (s Spec) tool() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(s.Description),
		mcp.WithReadOnlyHintAnnotation(s.ReadOnly),
		mcp.WithDestructiveHintAnnotation(s.Destructive),
		mcp.WithIdempotentHintAnnotation(s.Idempotent),
		mcp.WithOpenWorldHintAnnotation(true),
	}
	for _, a := range s.Args {
		props := []mcp.PropertyOption{mcp.Description(a.Description)}
		if a.Required {
			props = append(props, mcp.Required())
		}
		switch a.Type {
		case ArgNumber:
			opts = append(opts, mcp.WithNumber(a.Name, props...))
		default:
			opts = append(opts, mcp.WithString(a.Name, props...))
		}
	}
	return mcp.NewTool(s.Name, opts...)
}
