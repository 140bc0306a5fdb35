package timesheet

import (
	"errors"
	"fmt"
	"time"
)

// TimeRange is a same-day wall-clock interval with an unpaid break. Times
// carry no timezone component. Invariant: end > start and the net worked
// duration (end - start - break) must be strictly positive.
type TimeRange struct {
	Date         string `json:"date"`          // "2025-03-10"
	Start        string `json:"start_time"`    // "09:00", seconds accepted
	End          string `json:"end_time"`      // "17:30"
	BreakMinutes int    `json:"break_minutes"` // whole minutes, >= 0
}

// Derived holds the duration fields computed from a TimeRange. Both are
// outputs of Derive and never independently settable.
type Derived struct {
	BillableHours float64 `json:"billable_hours"` // net worked time
	TotalHours    float64 `json:"total_hours"`    // gross elapsed time including break
}

// InvalidTimeRangeError reports a range whose inputs cannot produce a
// positive worked duration. The message names the offending values so the
// caller can self-correct without inspecting server state.
type InvalidTimeRangeError struct {
	Start        string
	End          string
	BreakMinutes int
	Reason       string
}

func (e *InvalidTimeRangeError) Error() string {
	return fmt.Sprintf("invalid time range (start %s, end %s, break %d min): %s",
		e.Start, e.End, e.BreakMinutes, e.Reason)
}

// parseClock parses "HH:MM" or "HH:MM:SS" into minutes since midnight.
// Seconds are truncated; entries are kept at minute granularity.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		t, err = time.Parse("15:04", s)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: expected HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Derive computes billable and total hours for the range. Billable hours are
// the net worked minutes divided by 60; total hours add the break back on
// top, so totalHours - billableHours always equals breakMinutes/60.
func (r TimeRange) Derive() (Derived, error) {
	if _, err := time.Parse("2006-01-02", r.Date); err != nil {
		return Derived{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", r.Date)
	}
	start, err := parseClock(r.Start)
	if err != nil {
		return Derived{}, fmt.Errorf("start time: %w", err)
	}
	end, err := parseClock(r.End)
	if err != nil {
		return Derived{}, fmt.Errorf("end time: %w", err)
	}

	if r.BreakMinutes < 0 {
		return Derived{}, &InvalidTimeRangeError{
			Start: r.Start, End: r.End, BreakMinutes: r.BreakMinutes,
			Reason: "break must not be negative",
		}
	}
	if end <= start {
		return Derived{}, &InvalidTimeRangeError{
			Start: r.Start, End: r.End, BreakMinutes: r.BreakMinutes,
			Reason: "end must be after start",
		}
	}
	worked := end - start - r.BreakMinutes
	if worked <= 0 {
		return Derived{}, &InvalidTimeRangeError{
			Start: r.Start, End: r.End, BreakMinutes: r.BreakMinutes,
			Reason: "break leaves no worked time",
		}
	}

	billable := float64(worked) / 60
	return Derived{
		BillableHours: billable,
		TotalHours:    billable + float64(r.BreakMinutes)/60,
	}, nil
}

// CreateInput carries everything needed to build a new entry. EmployeeID and
// Rate are resolved by the caller before derivation; the rate is copied into
// the record as-is, never validated or adjusted here.
type CreateInput struct {
	EmployeeID string
	ClientID   string
	ProjectID  string
	CategoryID string
	LocationID string
	BillableID string
	Range      TimeRange
	Note       string
	Rate       Rate
}

// DeriveForCreate builds a fully specified entry from fresh inputs. The
// returned entry has no record id; the remote service assigns one on create.
func DeriveForCreate(in CreateInput) (Entry, error) {
	if err := requireAssignment(in.EmployeeID, in.ClientID, in.ProjectID, in.CategoryID); err != nil {
		return Entry{}, err
	}
	d, err := in.Range.Derive()
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		EmployeeID:    in.EmployeeID,
		ClientID:      in.ClientID,
		ProjectID:     in.ProjectID,
		CategoryID:    in.CategoryID,
		LocationID:    in.LocationID,
		BillableID:    in.BillableID,
		Date:          in.Range.Date,
		Start:         in.Range.Start,
		End:           in.Range.End,
		BreakMinutes:  in.Range.BreakMinutes,
		BillableHours: d.BillableHours,
		TotalHours:    d.TotalHours,
		UnitSellPrice: in.Rate.UnitSellPrice,
		SalesTaxRate:  in.Rate.SalesTaxRate,
		Note:          in.Note,
	}, nil
}

// Overrides is the sparse change set applied to an existing entry during an
// update. A nil field keeps the current value; a non-nil field wins,
// including a pointer to the empty string, which clears the field. Absence
// and explicit-empty are distinct on every field.
type Overrides struct {
	ClientID     *string
	ProjectID    *string
	CategoryID   *string
	LocationID   *string
	BillableID   *string
	Date         *string
	Start        *string
	End          *string
	BreakMinutes *int
	Note         *string
}

// DeriveForUpdate merges overrides onto an existing entry and recomputes the
// derived hours from the merged range; duration fields carried over from the
// existing record are never trusted. The sell price and tax rate are kept
// from the existing record: rates are fixed when an entry is created and not
// re-looked-up on update.
func DeriveForUpdate(existing Entry, ov Overrides) (Entry, error) {
	merged := existing
	if ov.ClientID != nil {
		merged.ClientID = *ov.ClientID
	}
	if ov.ProjectID != nil {
		merged.ProjectID = *ov.ProjectID
	}
	if ov.CategoryID != nil {
		merged.CategoryID = *ov.CategoryID
	}
	if ov.LocationID != nil {
		merged.LocationID = *ov.LocationID
	}
	if ov.BillableID != nil {
		merged.BillableID = *ov.BillableID
	}
	if ov.Date != nil {
		merged.Date = *ov.Date
	}
	if ov.Start != nil {
		merged.Start = *ov.Start
	}
	if ov.End != nil {
		merged.End = *ov.End
	}
	if ov.BreakMinutes != nil {
		merged.BreakMinutes = *ov.BreakMinutes
	}
	if ov.Note != nil {
		merged.Note = *ov.Note
	}

	if err := requireAssignment(merged.EmployeeID, merged.ClientID, merged.ProjectID, merged.CategoryID); err != nil {
		return Entry{}, err
	}
	d, err := merged.Range().Derive()
	if err != nil {
		return Entry{}, err
	}
	merged.BillableHours = d.BillableHours
	merged.TotalHours = d.TotalHours
	return merged, nil
}

func requireAssignment(employeeID, clientID, projectID, categoryID string) error {
	switch {
	case employeeID == "":
		return errors.New("employee id is required")
	case clientID == "":
		return errors.New("client id is required")
	case projectID == "":
		return errors.New("project id is required")
	case categoryID == "":
		return errors.New("category id is required")
	}
	return nil
}
