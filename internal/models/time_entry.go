package models

// Date formats used on the Toggl API and in the record table.
const (
	// WriteTimeFormat is the UTC millisecond-precision format the API
	// expects on create/update payloads.
	WriteTimeFormat = "2006-01-02T15:04:05.000Z"
	// LocalTimeFormat is the offset-carrying format used for the localized
	// START, STOP, LAST_MODIFIED and TIMESTAMP columns.
	LocalTimeFormat = "2006-01-02T15:04:05-07:00"
)

// TimeEntry is a Toggl time entry as returned by the API.
// Duration is negative while the entry is still running.
type TimeEntry struct {
	ID          int64    `json:"id"`
	WorkspaceID int64    `json:"wid"`
	ProjectID   *int64   `json:"pid,omitempty"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	Start       string   `json:"start"`
	Stop        string   `json:"stop"`
	Duration    int64    `json:"duration"`
	UserID      int64    `json:"uid"`
	GUID        string   `json:"guid"`
	Billable    bool     `json:"billable"`
	DurOnly     bool     `json:"duronly"`
	At          string   `json:"at"` // last modified, ISO 8601
}

// Running reports whether the entry has not been stopped yet.
func (e *TimeEntry) Running() bool {
	return e.Duration < 0
}

// Workspace is a Toggl workspace.
type Workspace struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Project is a Toggl project within a workspace.
type Project struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	WorkspaceID int64  `json:"wid"`
}

// TimeEntrySpec carries the fields accepted by the create/update endpoints.
// Start and Stop must be in WriteTimeFormat.
type TimeEntrySpec struct {
	WorkspaceID int64    `json:"wid"`
	ProjectID   *int64   `json:"pid,omitempty"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Start       string   `json:"start,omitempty"`
	Stop        string   `json:"stop,omitempty"`
	Duration    int64    `json:"duration,omitempty"`
	CreatedWith string   `json:"created_with,omitempty"`
	GUID        string   `json:"guid,omitempty"`
}

// TimeEntryPayload is the request envelope for create/update calls.
type TimeEntryPayload struct {
	TimeEntry TimeEntrySpec `json:"time_entry"`
}

// BulkTagSpec is the payload body of a bulk tag update.
type BulkTagSpec struct {
	Tags      []string `json:"tags"`
	TagAction string   `json:"tag_action,omitempty"`
}

// BulkTagPayload is the request envelope for bulk tag updates.
type BulkTagPayload struct {
	TimeEntry BulkTagSpec `json:"time_entry"`
}
