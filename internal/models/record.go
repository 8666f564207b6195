package models

// UnknownProject is the project name recorded when a time entry has no
// resolvable project.
const UnknownProject = "NA"

// Record is one persisted row of the record table: a flattened time entry
// plus the names resolved at sync time and the calendar cross-reference.
// Rows are append-only except for the leading entry ID and the trailing
// columns covered by Trailer.
type Record struct {
	RowID        int64 // storage key, not a sheet column
	TimeEntryID  int64
	WorkspaceID  int64
	Workspace    string
	ProjectID    *int64
	Project      string
	Description  string
	Tags         string // comma-joined
	Start        string // localized, LocalTimeFormat
	Stop         string
	DurationSec  int64
	UserID       int64
	GUID         string
	Billable     bool
	DurOnly      bool
	LastModified string
	ICalID       string
	Timestamp    string // sync time, localized
	CalendarID   string
	UpdateFlag   int
}

// Trailer holds the trailing columns the reconciliation engine rewrites in
// place after pushing a row's edits back to Toggl.
type Trailer struct {
	LastModified string
	ICalID       string
	Timestamp    string
	CalendarID   string
	UpdateFlag   int
}
