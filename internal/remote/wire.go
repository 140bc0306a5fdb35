package remote

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/goodtune/timesheet-mcp/internal/timesheet"
)

// TimeFormat selects how start and end times are rendered on the write path.
type TimeFormat string

const (
	TimeFormatClock    TimeFormat = "clock"    // bare wall clock, "09:00:00"
	TimeFormatDateTime TimeFormat = "datetime" // date joined with time, "2025-03-10T09:00:00"
)

// BreakUnit selects the unit of the break field on the write path. The read
// path always reports minutes regardless of this setting.
type BreakUnit string

const (
	BreakUnitMinutes BreakUnit = "minutes"
	BreakUnitHours   BreakUnit = "hours"
)

// Encoding parameterizes the wire rendering of write payloads. Deployed
// service variants disagree on time and break representations; the
// conversion here is the only place that difference exists. Derivation
// always happens in canonical units (HH:MM strings, whole break minutes)
// and the unit is never inferred from magnitude.
type Encoding struct {
	TimeFormat TimeFormat
	BreakUnit  BreakUnit
}

func (e Encoding) validate() error {
	switch e.TimeFormat {
	case TimeFormatClock, TimeFormatDateTime:
	default:
		return fmt.Errorf("unknown time format %q (want %q or %q)", e.TimeFormat, TimeFormatClock, TimeFormatDateTime)
	}
	switch e.BreakUnit {
	case BreakUnitMinutes, BreakUnitHours:
	default:
		return fmt.Errorf("unknown break unit %q (want %q or %q)", e.BreakUnit, BreakUnitMinutes, BreakUnitHours)
	}
	return nil
}

// Raw wire shapes, mirrored from the service's JSON contract and mapped to
// domain types at this boundary.

type rawIdentity struct {
	EmployeeID string `json:"employeeId"`
}

type rawClient struct {
	ClientID   string `json:"clientId"`
	ClientName string `json:"clientName"`
}

type rawProject struct {
	ProjectID   string `json:"projectId"`
	ProjectName string `json:"projectName"`
}

type rawCategory struct {
	CategoryID   string `json:"categoryId"`
	CategoryName string `json:"categoryName"`
}

type rawLocation struct {
	LocationID   string `json:"locationId"`
	LocationName string `json:"locationName"`
}

type rawRate struct {
	UnitSellPrice float64 `json:"unitSellPrice"`
	SalesTaxRate  float64 `json:"salesTaxRate"`
	Currency      string  `json:"currency"`
}

type rawSummary struct {
	TimesheetID string `json:"timesheetId"`
	Title       string `json:"title"`
	Start       string `json:"start"`
	End         string `json:"end"`
}

// rawEntry is the read shape of a full record. The break arrives in minutes
// on every known deployment, occasionally with a fractional part, so it is
// decoded as a float and rounded to whole minutes.
type rawEntry struct {
	TimesheetID   string  `json:"timesheetId"`
	EmployeeID    string  `json:"employeeId"`
	ClientID      string  `json:"clientId"`
	ProjectID     string  `json:"projectId"`
	CategoryID    string  `json:"categoryId"`
	LocationID    string  `json:"locationId"`
	BillableID    string  `json:"billableId"`
	Date          string  `json:"date"`
	StartTime     string  `json:"startTime"`
	EndTime       string  `json:"endTime"`
	BreakMinutes  float64 `json:"breakMinutes"`
	BillableHours float64 `json:"billableHours"`
	TotalHours    float64 `json:"totalHours"`
	UnitSellPrice float64 `json:"unitSellPrice"`
	SalesTaxRate  float64 `json:"salesTaxRate"`
	Notes         string  `json:"notes"`
}

func decodeEntry(raw rawEntry) timesheet.Entry {
	return timesheet.Entry{
		ID:            raw.TimesheetID,
		EmployeeID:    raw.EmployeeID,
		ClientID:      raw.ClientID,
		ProjectID:     raw.ProjectID,
		CategoryID:    raw.CategoryID,
		LocationID:    raw.LocationID,
		BillableID:    raw.BillableID,
		Date:          raw.Date,
		Start:         clockOf(raw.StartTime),
		End:           clockOf(raw.EndTime),
		BreakMinutes:  int(math.Round(raw.BreakMinutes)),
		BillableHours: raw.BillableHours,
		TotalHours:    raw.TotalHours,
		UnitSellPrice: raw.UnitSellPrice,
		SalesTaxRate:  raw.SalesTaxRate,
		Note:          raw.Notes,
	}
}

// clockOf normalizes a wire time to the canonical HH:MM form. Deployments
// answer with either bare clock times or date+time strings; anything
// unparseable is passed through for the derivation layer to reject.
func clockOf(s string) string {
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		s = s[i+1:]
	}
	if t, err := time.Parse("15:04:05", s); err == nil {
		return t.Format("15:04")
	}
	if t, err := time.Parse("15:04", s); err == nil {
		return t.Format("15:04")
	}
	return s
}

// entryPayload is the write shape. Start/end rendering and the break unit
// follow the configured Encoding; everything else is canonical.
type entryPayload struct {
	TimesheetID   string  `json:"timesheetId,omitempty"`
	EmployeeID    string  `json:"employeeId"`
	ClientID      string  `json:"clientId"`
	ProjectID     string  `json:"projectId"`
	CategoryID    string  `json:"categoryId"`
	LocationID    string  `json:"locationId,omitempty"`
	BillableID    string  `json:"billableId,omitempty"`
	Date          string  `json:"date"`
	StartTime     string  `json:"startTime"`
	EndTime       string  `json:"endTime"`
	Break         float64 `json:"break"`
	BillableHours float64 `json:"billableHours"`
	TotalHours    float64 `json:"totalHours"`
	UnitSellPrice float64 `json:"unitSellPrice"`
	SalesTaxRate  float64 `json:"salesTaxRate"`
	Notes         string  `json:"notes"`
}

func (e Encoding) encodeEntry(entry timesheet.Entry) entryPayload {
	return entryPayload{
		TimesheetID:   entry.ID,
		EmployeeID:    entry.EmployeeID,
		ClientID:      entry.ClientID,
		ProjectID:     entry.ProjectID,
		CategoryID:    entry.CategoryID,
		LocationID:    entry.LocationID,
		BillableID:    entry.BillableID,
		Date:          entry.Date,
		StartTime:     e.wireTime(entry.Date, entry.Start),
		EndTime:       e.wireTime(entry.Date, entry.End),
		Break:         e.wireBreak(entry.BreakMinutes),
		BillableHours: entry.BillableHours,
		TotalHours:    entry.TotalHours,
		UnitSellPrice: entry.UnitSellPrice,
		SalesTaxRate:  entry.SalesTaxRate,
		Notes:         entry.Note,
	}
}

func (e Encoding) wireTime(date, clock string) string {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		t, err = time.Parse("15:04:05", clock)
	}
	if err != nil {
		return clock
	}
	if e.TimeFormat == TimeFormatDateTime {
		return date + "T" + t.Format("15:04:05")
	}
	return t.Format("15:04:05")
}

func (e Encoding) wireBreak(minutes int) float64 {
	if e.BreakUnit == BreakUnitHours {
		return float64(minutes) / 60
	}
	return float64(minutes)
}
