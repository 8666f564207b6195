package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ttsukagoshi/toggl-scripts/internal/calendar"
	"github.com/ttsukagoshi/toggl-scripts/internal/models"

	"go.uber.org/zap"
)

// ErrNoUpdates reports a reconciliation pass that found no row flagged for
// update. A no-op outcome, not a failure.
var ErrNoUpdates = errors.New("no updates")

// createdWith identifies entries this service creates on Toggl.
const createdWith = "toggl-scripts"

// togglAPI is the slice of the Toggl client the engine needs.
type togglAPI interface {
	GetTimeEntry(ctx context.Context, id int64) (*models.TimeEntry, error)
	CreateTimeEntry(ctx context.Context, spec models.TimeEntrySpec) (*models.TimeEntry, error)
	UpdateTimeEntry(ctx context.Context, id int64, spec models.TimeEntrySpec) (*models.TimeEntry, error)
	DeleteTimeEntry(ctx context.Context, id int64) error
}

// recordStore is the slice of the tabular store the engine needs.
type recordStore interface {
	Records(table string) ([]models.Record, error)
	SetEntryID(table string, rowID, entryID int64) error
	UpdateTrailer(table string, rowID int64, t models.Trailer) error
	MaxEntryID(table string) (int64, error)
	SetWatermark(id int64) error
	AppendLog(timestamp, actor, message string) error
}

// Engine pushes user-edited rows back to Toggl and the mirrored calendar.
// A row is selected when the ones digit of its update flag is 1. The desired
// remote state is re-derived entirely from the row's contents; the remote
// entry is then updated in place, or recreated in the new workspace when the
// row's workspace ID no longer matches the remote one. Rows are processed
// independently: one row's failure is logged and the scan continues.
type Engine struct {
	api         togglAPI
	store       recordStore
	events      calendar.EventStore
	calendarIDs map[string]string // workspace name -> calendar ID
	location    *time.Location
	actor       string
	logger      *zap.Logger

	now func() time.Time
}

// NewEngine creates a reconciliation engine.
func NewEngine(
	api togglAPI,
	store recordStore,
	events calendar.EventStore,
	calendarIDs map[string]string,
	location *time.Location,
	actor string,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		api:         api,
		store:       store,
		events:      events,
		calendarIDs: calendarIDs,
		location:    location,
		actor:       actor,
		logger:      logger,
		now:         time.Now,
	}
}

// RowError is one row's reconciliation failure.
type RowError struct {
	TimeEntryID int64
	Err         error
}

func (e RowError) Error() string {
	return fmt.Sprintf("time entry %d: %v", e.TimeEntryID, e.Err)
}

// Result summarizes one reconciliation pass.
type Result struct {
	Updated int
	Errors  []RowError
}

// Run scans the record table and reconciles every row flagged for update.
func (e *Engine) Run(ctx context.Context, table string) (*Result, error) {
	records, err := e.store.Records(table)
	if err != nil {
		return nil, err
	}

	timestamp := e.now().In(e.location).Format(models.LocalTimeFormat)
	result := &Result{}

	for i := range records {
		record := &records[i]
		flag := models.ParseFlag(record.UpdateFlag)
		if !flag.Pending {
			continue
		}

		if err := e.reconcileRow(ctx, table, record, flag, timestamp); err != nil {
			e.logger.Error("Row reconciliation failed",
				zap.Int64("time_entry_id", record.TimeEntryID),
				zap.Error(err),
			)
			if logErr := e.store.AppendLog(timestamp, e.actor,
				fmt.Sprintf("Error: updating time entry %d: %v", record.TimeEntryID, err)); logErr != nil {
				e.logger.Warn("Failed to append log entry", zap.Error(logErr))
			}
			result.Errors = append(result.Errors, RowError{TimeEntryID: record.TimeEntryID, Err: err})
			continue
		}
		result.Updated++
	}

	if result.Updated == 0 && len(result.Errors) == 0 {
		return nil, ErrNoUpdates
	}

	if err := e.store.AppendLog(timestamp, e.actor,
		fmt.Sprintf("Updated: %d Toggl time entry(ies)", result.Updated)); err != nil {
		e.logger.Warn("Failed to append log entry", zap.Error(err))
	}

	e.logger.Info("Reconciliation completed",
		zap.Int("updated", result.Updated),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// reconcileRow applies one flagged row: push the row's state to Toggl,
// replace the mirrored calendar event, rewrite the trailer columns.
func (e *Engine) reconcileRow(ctx context.Context, table string, record *models.Record, flag models.Flag, timestamp string) error {
	start, err := time.Parse(models.LocalTimeFormat, record.Start)
	if err != nil {
		return fmt.Errorf("invalid stored start time %q: %w", record.Start, err)
	}
	stop, err := time.Parse(models.LocalTimeFormat, record.Stop)
	if err != nil {
		return fmt.Errorf("invalid stored stop time %q: %w", record.Stop, err)
	}

	spec := models.TimeEntrySpec{
		WorkspaceID: record.WorkspaceID,
		ProjectID:   record.ProjectID,
		Description: record.Description,
		Tags:        splitTags(record.Tags),
		Start:       start.UTC().Format(models.WriteTimeFormat),
		Stop:        stop.UTC().Format(models.WriteTimeFormat),
		Duration:    int64(stop.Sub(start).Seconds()),
		CreatedWith: createdWith,
	}

	// The remote entry's current workspace decides update vs. recreate.
	oldEntry, err := e.api.GetTimeEntry(ctx, record.TimeEntryID)
	if err != nil {
		return fmt.Errorf("failed to fetch remote entry: %w", err)
	}
	if oldEntry.WorkspaceID == 0 {
		return fmt.Errorf("workspace ID missing on remote entry %d, inconsistent remote state", record.TimeEntryID)
	}

	entryID := record.TimeEntryID
	var newEntry *models.TimeEntry

	if record.WorkspaceID == oldEntry.WorkspaceID {
		newEntry, err = e.api.UpdateTimeEntry(ctx, entryID, spec)
		if err != nil {
			return fmt.Errorf("failed to update remote entry: %w", err)
		}
	} else {
		// Workspace changed: Toggl cannot move an entry across workspaces,
		// so create it anew and delete the original.
		spec.GUID = uuid.NewString()
		newEntry, err = e.api.CreateTimeEntry(ctx, spec)
		if err != nil {
			return fmt.Errorf("failed to create remote entry in workspace %d: %w", record.WorkspaceID, err)
		}
		if err := e.store.AppendLog(timestamp, e.actor,
			fmt.Sprintf("Created: 1 Toggl time entry (id %d)", newEntry.ID)); err != nil {
			e.logger.Warn("Failed to append log entry", zap.Error(err))
		}

		if err := e.api.DeleteTimeEntry(ctx, record.TimeEntryID); err != nil {
			return fmt.Errorf("failed to delete superseded entry %d: %w", record.TimeEntryID, err)
		}
		if err := e.store.AppendLog(timestamp, e.actor,
			fmt.Sprintf("Deleted: 1 Toggl time entry (id %d)", record.TimeEntryID)); err != nil {
			e.logger.Warn("Failed to append log entry", zap.Error(err))
		}

		entryID = newEntry.ID
		if err := e.store.SetEntryID(table, record.RowID, entryID); err != nil {
			return err
		}
		maxID, err := e.store.MaxEntryID(table)
		if err != nil {
			return err
		}
		if err := e.store.SetWatermark(maxID); err != nil {
			return err
		}
	}

	// Replace the mirrored calendar event: delete the old one, create a new
	// one reflecting the updated contents.
	if err := e.events.DeleteEvent(ctx, record.CalendarID, record.ICalID); err != nil {
		return fmt.Errorf("failed to delete old calendar event: %w", err)
	}

	calendarID, ok := e.calendarIDs[record.Workspace]
	if !ok {
		return fmt.Errorf("no calendar mapped for workspace %q", record.Workspace)
	}
	eventID, err := e.events.CreateEvent(ctx, calendarID, calendar.Event{
		Title:       calendar.EventTitle(record.Project, newEntry.Description),
		Description: calendar.EventDescription(entryID, record.Workspace, record.Tags),
		Start:       start,
		End:         stop,
	})
	if err != nil {
		return fmt.Errorf("failed to create calendar event: %w", err)
	}

	lastModified := timestamp
	if newEntry.At != "" {
		if at, err := time.Parse(time.RFC3339, newEntry.At); err == nil {
			lastModified = at.In(e.location).Format(models.LocalTimeFormat)
		}
	}

	trailer := models.Trailer{
		LastModified: lastModified,
		ICalID:       eventID,
		Timestamp:    timestamp,
		CalendarID:   calendarID,
		UpdateFlag:   flag.Apply().Encode(),
	}
	if err := e.store.UpdateTrailer(table, record.RowID, trailer); err != nil {
		return err
	}

	// Audit trail with before/after snapshots.
	oldJSON, _ := json.Marshal(oldEntry)
	newJSON, _ := json.Marshal(newEntry)
	if err := e.store.AppendLog(timestamp, e.actor,
		fmt.Sprintf("Updated time entry %d\nold: %s\nnew: %s", entryID, oldJSON, newJSON)); err != nil {
		e.logger.Warn("Failed to append log entry", zap.Error(err))
	}

	return nil
}

// splitTags parses the comma-joined tag column back into a tag list.
func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
