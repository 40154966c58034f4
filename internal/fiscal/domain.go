package fiscal

import "time"

// LinkStatus tracks a client's progress on a year-scoped activity.
type LinkStatus string

const (
	// LinkTodo is the initial status of every client link.
	LinkTodo       LinkStatus = "todo"
	LinkInProgress LinkStatus = "in_progress"
	LinkDone       LinkStatus = "done"
)

// Valid reports whether the status is one of the known values.
func (s LinkStatus) Valid() bool {
	switch s {
	case LinkTodo, LinkInProgress, LinkDone:
		return true
	}
	return false
}

// FiscalYear is a calendar year the practice works in. At most one is current.
type FiscalYear struct {
	ID        int64     `json:"id"`
	Year      int       `json:"year"`
	IsActive  bool      `json:"is_active"`
	IsCurrent bool      `json:"is_current"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// YearInput carries fields for create and update. MakeCurrent promotes the
// year to current; false leaves the flag as it is.
type YearInput struct {
	Year        int  `json:"year" validate:"required,min=1900,max=9999"`
	IsActive    bool `json:"is_active"`
	MakeCurrent bool `json:"make_current"`
}

// Activity is an activity type instantiated for one fiscal year.
type Activity struct {
	ID               int64      `json:"id"`
	FiscalYearID     int64      `json:"fiscal_year_id"`
	ActivityTypeID   int64      `json:"activity_type_id"`
	ActivityTypeName string     `json:"activity_type_name"`
	DisplayOrder     int        `json:"display_order"`
	IsActive         bool       `json:"is_active"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// ActivityInput carries fields for a new year-scoped activity.
type ActivityInput struct {
	ActivityTypeID int64      `json:"activity_type_id" validate:"required,gt=0"`
	IsActive       bool       `json:"is_active"`
	DueDate        *time.Time `json:"due_date"`
}

// ClientLink attaches a client to a year-scoped activity.
type ClientLink struct {
	ID         int64      `json:"id"`
	ActivityID int64      `json:"activity_id"`
	ClientID   int64      `json:"client_id"`
	Status     LinkStatus `json:"status"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// CopyResult reports how many rows a copy-forward run created.
type CopyResult struct {
	SourceYear  int `json:"source_year"`
	Activities  int `json:"activities"`
	ClientLinks int `json:"client_links"`
}

// advanceDueDate moves a due date forward by exactly one calendar year.
func advanceDueDate(due *time.Time) *time.Time {
	if due == nil {
		return nil
	}
	next := due.AddDate(1, 0, 0)
	return &next
}
