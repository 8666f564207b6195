package calendar

import (
	"context"
	"fmt"
	"time"
)

// Event is one calendar event mirroring a time entry.
type Event struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
}

// EventStore is the calendar surface the sync and reconciliation engines
// need: create an event and get back the provider-assigned ID, delete an
// event by that ID.
type EventStore interface {
	CreateEvent(ctx context.Context, calendarID string, ev Event) (string, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// EventTitle formats the mirrored event title.
func EventTitle(projectName, description string) string {
	return fmt.Sprintf("[%s] %s", projectName, description)
}

// EventDescription formats the mirrored event description.
func EventDescription(entryID int64, workspaceName, tags string) string {
	return fmt.Sprintf("Time Entry ID: %d\nWorkspace: %s\nTags: %s", entryID, workspaceName, tags)
}
