package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ttsukagoshi/toggl-scripts/internal/calendar"
	"github.com/ttsukagoshi/toggl-scripts/internal/index"
	"github.com/ttsukagoshi/toggl-scripts/internal/models"

	"go.uber.org/zap"
)

// ErrNoNewEntries reports an empty sync pass: nothing above the watermark
// that has finished running. A no-op outcome, not a failure.
var ErrNoNewEntries = errors.New("no new time entry available")

// togglAPI is the slice of the Toggl client the engine needs.
type togglAPI interface {
	GetTimeEntries(ctx context.Context, start, stop *time.Time) ([]models.TimeEntry, error)
	BulkAddTags(ctx context.Context, ids []int64, tags []string) ([]models.TimeEntry, error)
}

// recordStore is the slice of the tabular store the engine needs.
type recordStore interface {
	AppendRecords(table string, records []models.Record) error
	MaxEntryID(table string) (int64, error)
	Watermark() (int64, error)
	SetWatermark(id int64) error
	AppendLog(timestamp, actor, message string) error
}

// Engine fetches time entries from Toggl, mirrors each admitted entry as a
// calendar event, appends the flattened rows to the record table and
// advances the watermark. An entry is admitted when its ID is above the
// watermark and it is not currently running; those are the only two rules.
//
// Calendar events are created before the rows are durably appended, so a
// crash in between leaves orphaned events with no matching row. At-least-once
// with idempotent re-application is the contract here, not exactly-once.
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

// NewEngine creates a sync engine. calendarIDs maps workspace names to the
// calendars their entries are mirrored into.
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

// Result summarizes one sync pass.
type Result struct {
	Appended     int
	NewWatermark int64
}

// Run performs one sync pass into the given record table.
func (e *Engine) Run(ctx context.Context, table string, ix *index.NameIndex) (*Result, error) {
	watermark, err := e.store.Watermark()
	if err != nil {
		return nil, err
	}

	entries, err := e.api.GetTimeEntries(ctx, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch time entries: %w", err)
	}

	logTime := e.now().In(e.location).Format(models.LocalTimeFormat)

	var records []models.Record
	for i := range entries {
		entry := &entries[i]
		if entry.ID <= watermark || entry.Running() {
			continue
		}

		record, err := e.assembleRecord(ctx, entry, ix, logTime)
		if err != nil {
			return nil, fmt.Errorf("time entry %d: %w", entry.ID, err)
		}
		records = append(records, *record)
	}

	if len(records) == 0 {
		return nil, ErrNoNewEntries
	}

	if err := e.store.AppendRecords(table, records); err != nil {
		return nil, fmt.Errorf("failed to append records: %w", err)
	}

	maxID, err := e.store.MaxEntryID(table)
	if err != nil {
		return nil, err
	}
	if maxID < watermark {
		maxID = watermark
	}
	if err := e.store.SetWatermark(maxID); err != nil {
		return nil, err
	}

	if err := e.store.AppendLog(logTime, e.actor,
		fmt.Sprintf("Recorded: %d Toggl time entries", len(records))); err != nil {
		e.logger.Warn("Failed to append log entry", zap.Error(err))
	}

	e.logger.Info("Sync completed",
		zap.Int("appended", len(records)),
		zap.Int64("watermark", maxID),
	)
	return &Result{Appended: len(records), NewWatermark: maxID}, nil
}

// assembleRecord resolves names, localizes timestamps, creates the mirrored
// calendar event and builds the row for one admitted entry.
func (e *Engine) assembleRecord(ctx context.Context, entry *models.TimeEntry, ix *index.NameIndex, logTime string) (*models.Record, error) {
	workspaceName := ix.WorkspaceName(entry.WorkspaceID)
	projectName := ix.ProjectName(entry.ProjectID)
	tagStr := strings.Join(entry.Tags, ",")

	start, err := time.Parse(time.RFC3339, entry.Start)
	if err != nil {
		return nil, fmt.Errorf("invalid start time %q: %w", entry.Start, err)
	}
	stop, err := time.Parse(time.RFC3339, entry.Stop)
	if err != nil {
		return nil, fmt.Errorf("invalid stop time %q: %w", entry.Stop, err)
	}
	lastModified, err := time.Parse(time.RFC3339, entry.At)
	if err != nil {
		return nil, fmt.Errorf("invalid last-modified time %q: %w", entry.At, err)
	}

	calendarID, ok := e.calendarIDs[workspaceName]
	if !ok {
		return nil, fmt.Errorf("no calendar mapped for workspace %q", workspaceName)
	}

	eventID, err := e.events.CreateEvent(ctx, calendarID, calendar.Event{
		Title:       calendar.EventTitle(projectName, entry.Description),
		Description: calendar.EventDescription(entry.ID, workspaceName, tagStr),
		Start:       start.In(e.location),
		End:         stop.In(e.location),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar event: %w", err)
	}

	return &models.Record{
		TimeEntryID:  entry.ID,
		WorkspaceID:  entry.WorkspaceID,
		Workspace:    workspaceName,
		ProjectID:    entry.ProjectID,
		Project:      projectName,
		Description:  entry.Description,
		Tags:         tagStr,
		Start:        start.In(e.location).Format(models.LocalTimeFormat),
		Stop:         stop.In(e.location).Format(models.LocalTimeFormat),
		DurationSec:  entry.Duration,
		UserID:       entry.UserID,
		GUID:         entry.GUID,
		Billable:     entry.Billable,
		DurOnly:      entry.DurOnly,
		LastModified: lastModified.In(e.location).Format(models.LocalTimeFormat),
		ICalID:       eventID,
		Timestamp:    logTime,
		CalendarID:   calendarID,
		UpdateFlag:   0,
	}, nil
}
