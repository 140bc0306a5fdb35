package timesheet

// Entry represents one logged work entry as stored by the timesheet service.
// The remote service assigns ID on create; every later write replaces the
// full record.
type Entry struct {
	ID            string  `json:"timesheet_id,omitempty"`
	EmployeeID    string  `json:"employee_id"`
	ClientID      string  `json:"client_id"`
	ProjectID     string  `json:"project_id"`
	CategoryID    string  `json:"category_id"`
	LocationID    string  `json:"location_id,omitempty"`
	BillableID    string  `json:"billable_id,omitempty"`
	Date          string  `json:"date"`       // "2025-03-10"
	Start         string  `json:"start_time"` // "09:00"
	End           string  `json:"end_time"`   // "17:30"
	BreakMinutes  int     `json:"break_minutes"`
	BillableHours float64 `json:"billable_hours"`
	TotalHours    float64 `json:"total_hours"`
	UnitSellPrice float64 `json:"unit_sell_price"`
	SalesTaxRate  float64 `json:"sales_tax_rate"`
	Note          string  `json:"notes"`
}

// Range returns the entry's time fields as a TimeRange.
func (e Entry) Range() TimeRange {
	return TimeRange{
		Date:         e.Date,
		Start:        e.Start,
		End:          e.End,
		BreakMinutes: e.BreakMinutes,
	}
}

// Client represents a billable client account
type Client struct {
	ID   string `json:"client_id"`
	Name string `json:"client_name"`
}

// Project represents a project under a client
type Project struct {
	ID   string `json:"project_id"`
	Name string `json:"project_name"`
}

// Category represents a work category (development, support, travel)
type Category struct {
	ID   string `json:"category_id"`
	Name string `json:"category_name"`
}

// Location represents a work location
type Location struct {
	ID   string `json:"location_id"`
	Name string `json:"location_name"`
}

// Rate is the negotiated sell rate for an employee/client pair. The engine
// treats it as opaque and places it into records unchanged.
type Rate struct {
	UnitSellPrice float64 `json:"unit_sell_price"`
	SalesTaxRate  float64 `json:"sales_tax_rate"`
	Currency      string  `json:"currency,omitempty"`
}

// EntrySummary is one calendar-style row from a date-range listing.
type EntrySummary struct {
	ID    string `json:"timesheet_id"`
	Title string `json:"title"`
	Start string `json:"start"`
	End   string `json:"end"`
}
