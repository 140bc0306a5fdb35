package tools

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/goodtune/timesheet-mcp/internal/timesheet"
)

// ValidationError reports a tool call whose arguments cannot be used. It is
// raised before any remote call, so a rejected call has no side effects.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Field, e.Message)
}

func invalidArg(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// requiredString returns the named argument, failing when it is missing,
// not a string, or blank.
func requiredString(args map[string]any, name string) (string, error) {
	v, ok := args[name]
	if !ok {
		return "", &ValidationError{Field: name, Message: "required argument is missing"}
	}
	s, ok := v.(string)
	if !ok {
		return "", invalidArg(name, "expected a string, got %T", v)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &ValidationError{Field: name, Message: "must not be blank"}
	}
	return s, nil
}

// optionalString preserves the presence distinction: nil when the argument
// is absent, a pointer otherwise — a pointer to the empty string means
// "explicitly cleared", not "unset".
func optionalString(args map[string]any, name string) (*string, error) {
	v, ok := args[name]
	if !ok {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, invalidArg(name, "expected a string, got %T", v)
	}
	return &s, nil
}

// minutesOf decodes a whole, non-negative number of minutes.
func minutesOf(name string, v any) (int, error) {
	f, ok := v.(float64)
	if !ok {
		return 0, invalidArg(name, "expected a number of minutes, got %T", v)
	}
	if f != math.Trunc(f) {
		return 0, invalidArg(name, "must be a whole number of minutes, got %v", f)
	}
	if f < 0 {
		return 0, invalidArg(name, "must not be negative, got %v", f)
	}
	return int(f), nil
}

func optionalMinutes(args map[string]any, name string) (*int, error) {
	v, ok := args[name]
	if !ok {
		return nil, nil
	}
	n, err := minutesOf(name, v)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func requiredDate(args map[string]any, name string) (string, error) {
	s, err := requiredString(args, name)
	if err != nil {
		return "", err
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return "", invalidArg(name, "%q is not a YYYY-MM-DD date", s)
	}
	return s, nil
}

func requiredClock(args map[string]any, name string) (string, error) {
	s, err := requiredString(args, name)
	if err != nil {
		return "", err
	}
	if !validClock(s) {
		return "", invalidArg(name, "%q is not a HH:MM time", s)
	}
	return s, nil
}

/// optionalDate and optionalClock reject explicit empty values: time fields
// on a record can be changed but never cleared.
func optionalDate(args map[string]any, name string) (*string, error) {
	v, ok := args[name]
	if !ok {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, invalidArg(name, "expected a string, got %T", v)
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return nil, invalidArg(name, "%q is not a YYYY-MM-DD date", s)
	}
	return &s, nil
}

func optionalClock(args map[string]any, name string) (*string, error) {
	v, ok := args[name]
	if !ok {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, invalidArg(name, "expected a string, got %T", v)
	}
	if !validClock(s) {
		return nil, invalidArg(name, "%q is not a HH:MM time", s)
	}
	return &s, nil
}

func validClock(s string) bool {
	if _, err := time.Parse("15:04", s); err == nil {
		return true
	}
	if _, err := time.Parse("15:04:05", s); err == nil {
		return true
	}
	return false
}

// Typed request values, one per operation with arguments. Decoding runs
// before any business logic or remote call.

type listClientsRequest struct {
	Search string
}

func decodeListClients(args map[string]any) (listClientsRequest, error) {
	var req listClientsRequest
	s, err := optionalString(args, "search")
	if err != nil {
		return req, err
	}
	if s != nil {
		req.Search = *s
	}
	return req, nil
}

type clientScopedRequest struct {
	ClientID string
}

func decodeClientScoped(args map[string]any) (clientScopedRequest, error) {
	var req clientScopedRequest
	var err error
	req.ClientID, err = requiredString(args, "client_id")
	return req, err
}

type recordIDRequest struct {
	ID string
}

func decodeRecordID(args map[string]any) (recordIDRequest, error) {
	var req recordIDRequest
	var err error
	req.ID, err = requiredString(args, "timesheet_id")
	return req, err
}

type listTimesheetsRequest struct {
	From string
	To   string
}

func decodeListTimesheets(args map[string]any) (listTimesheetsRequest, error) {
	var req listTimesheetsRequest
	var err error
	if req.From, err = requiredDate(args, "from_date"); err != nil {
		return req, err
	}
	if req.To, err = requiredDate(args, "to_date"); err != nil {
		return req, err
	}
	// ISO dates order lexicographically
	if req.To < req.From {
		return req, invalidArg("to_date", "%q is before from_date %q", req.To, req.From)
	}
	return req, nil
}

type createRequest struct {
	ClientID   string
	ProjectID  string
	CategoryID string
	LocationID string
	BillableID string
	Note       string
	Range      timesheet.TimeRange
}

func decodeCreate(args map[string]any) (createRequest, error) {
	var req createRequest
	var err error
	if req.ClientID, err = requiredString(args, "client_id"); err != nil {
		return req, err
	}
	if req.ProjectID, err = requiredString(args, "project_id"); err != nil {
		return req, err
	}
	if req.CategoryID, err = requiredString(args, "category_id"); err != nil {
		return req, err
	}
	if req.Range.Date, err = requiredDate(args, "date"); err != nil {
		return req, err
	}
	if req.Range.Start, err = requiredClock(args, "start_time"); err != nil {
		return req, err
	}
	if req.Range.End, err = requiredClock(args, "end_time"); err != nil {
		return req, err
	}

	// An omitted break means no break, not the configured default; the
	// defaults are advertised, never silently injected.
	br, err := optionalMinutes(args, "break_minutes")
	if err != nil {
		return req, err
	}
	if br != nil {
		req.Range.BreakMinutes = *br
	}

	for _, opt := range []struct {
		name string
		dst  *string
	}{
		{"location_id", &req.LocationID},
		{"billable_id", &req.BillableID},
		{"notes", &req.Note},
	} {
		s, err := optionalString(args, opt.name)
		if err != nil {
			return req, err
		}
		if s != nil {
			*opt.dst = *s
		}
	}
	return req, nil
}

type updateRequest struct {
	ID        string
	Overrides timesheet.Overrides
}

func decodeUpdate(args map[string]any) (updateRequest, error) {
	var req updateRequest
	var err error
	if req.ID, err = requiredString(args, "timesheet_id"); err != nil {
		return req, err
	}

	ov := &req.Overrides
	if ov.ClientID, err = optionalString(args, "client_id"); err != nil {
		return req, err
	}
	if ov.ProjectID, err = optionalString(args, "project_id"); err != nil {
		return req, err
	}
	if ov.CategoryID, err = optionalString(args, "category_id"); err != nil {
		return req, err
	}
	if ov.LocationID, err = optionalString(args, "location_id"); err != nil {
		return req, err
	}
	if ov.BillableID, err = optionalString(args, "billable_id"); err != nil {
		return req, err
	}
	if ov.Date, err = optionalDate(args, "date"); err != nil {
		return req, err
	}
	if ov.Start, err = optionalClock(args, "start_time"); err != nil {
		return req, err
	}
	if ov.End, err = optionalClock(args, "end_time"); err != nil {
		return req, err
	}
	if ov.BreakMinutes, err = optionalMinutes(args, "break_minutes"); err != nil {
		return req, err
	}
	if ov.Note, err = optionalString(args, "notes"); err != nil {
		return req, err
	}
	return req, nil
}
