package sync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ttsukagoshi/toggl-scripts/internal/calendar"
	"github.com/ttsukagoshi/toggl-scripts/internal/index"
	"github.com/ttsukagoshi/toggl-scripts/internal/models"
	"go.uber.org/zap"
)

type bulkCall struct {
	ids  []int64
	tags []string
}

type fakeAPI struct {
	entries   []models.TimeEntry
	fetchErr  error
	bulkCalls []bulkCall
	bulkErr   error
}

func (f *fakeAPI) GetTimeEntries(ctx context.Context, start, stop *time.Time) ([]models.TimeEntry, error) {
	return f.entries, f.fetchErr
}

func (f *fakeAPI) BulkAddTags(ctx context.Context, ids []int64, tags []string) ([]models.TimeEntry, error) {
	f.bulkCalls = append(f.bulkCalls, bulkCall{ids: ids, tags: tags})
	return nil, f.bulkErr
}

type fakeStore struct {
	records   map[string][]models.Record
	watermark int64
	logs      []string
	nextRowID int64
}

func newFakeStore(watermark int64) *fakeStore {
	return &fakeStore{records: make(map[string][]models.Record), watermark: watermark}
}

func (f *fakeStore) AppendRecords(table string, records []models.Record) error {
	for _, r := range records {
		f.nextRowID++
		r.RowID = f.nextRowID
		f.records[table] = append(f.records[table], r)
	}
	return nil
}

func (f *fakeStore) MaxEntryID(table string) (int64, error) {
	var max int64
	for _, r := range f.records[table] {
		if r.TimeEntryID > max {
			max = r.TimeEntryID
		}
	}
	return max, nil
}

func (f *fakeStore) Watermark() (int64, error) { return f.watermark, nil }

func (f *fakeStore) SetWatermark(id int64) error {
	if id > f.watermark {
		f.watermark = id
	}
	return nil
}

func (f *fakeStore) AppendLog(timestamp, actor, message string) error {
	f.logs = append(f.logs, message)
	return nil
}

type createdEvent struct {
	calendarID string
	event      calendar.Event
}

type fakeCalendar struct {
	created   []createdEvent
	deleted   [][2]string
	createErr error
	deleteErr error
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, calendarID string, ev calendar.Event) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, createdEvent{calendarID: calendarID, event: ev})
	return fmt.Sprintf("event-%d", len(f.created)), nil
}

func (f *fakeCalendar) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, [2]string{calendarID, eventID})
	return nil
}

func testIndex() *index.NameIndex {
	return &index.NameIndex{
		Workspaces: map[int64]string{1: "Work", 2: "Private"},
		Projects:   map[int64]string{10: "Audit"},
	}
}

func testCalendarIDs() map[string]string {
	return map[string]string{"Work": "cal-work", "Private": "cal-private"}
}

func testEntry(id int64) models.TimeEntry {
	pid := int64(10)
	return models.TimeEntry{
		ID:          id,
		WorkspaceID: 1,
		ProjectID:   &pid,
		Description: "review",
		Tags:        []string{"office", "billable"},
		Start:       "2026-01-15T02:00:00Z",
		Stop:        "2026-01-15T03:00:00Z",
		Duration:    3600,
		UserID:      12,
		GUID:        fmt.Sprintf("guid-%d", id),
		At:          "2026-01-15T03:00:05Z",
	}
}

func newTestEngine(api *fakeAPI, st *fakeStore, cal *fakeCalendar) *Engine {
	loc, _ := time.LoadLocation("Asia/Tokyo")
	e := NewEngine(api, st, cal, testCalendarIDs(), loc, "tester", zap.NewNop())
	e.now = func() time.Time { return time.Date(2026, 1, 15, 12, 0, 0, 0, loc) }
	return e
}

func TestRunAdmissionAndWatermark(t *testing.T) {
	running := testEntry(102)
	running.Duration = -5
	running.Stop = ""

	api := &fakeAPI{entries: []models.TimeEntry{testEntry(98), testEntry(101), running}}
	st := newFakeStore(100)
	cal := &fakeCalendar{}

	result, err := newTestEngine(api, st, cal).Run(context.Background(), "rec", testIndex())
	require.NoError(t, err)

	// 98 is below the watermark, 102 is still running: only 101 admitted.
	assert.Equal(t, 1, result.Appended)
	assert.Equal(t, int64(101), result.NewWatermark)
	assert.Equal(t, int64(101), st.watermark)

	require.Len(t, st.records["rec"], 1)
	rec := st.records["rec"][0]
	assert.Equal(t, int64(101), rec.TimeEntryID)
	assert.Equal(t, "Work", rec.Workspace)
	assert.Equal(t, "Audit", rec.Project)
	assert.Equal(t, "office,billable", rec.Tags)
	assert.Equal(t, 0, rec.UpdateFlag)

	// Timestamps localized to the configured zone.
	assert.Equal(t, "2026-01-15T11:00:00+09:00", rec.Start)
	assert.Equal(t, "2026-01-15T12:00:00+09:00", rec.Stop)

	require.Len(t, cal.created, 1)
	assert.Equal(t, "cal-work", cal.created[0].calendarID)
	assert.Equal(t, "[Audit] review", cal.created[0].event.Title)
	assert.Equal(t, "Time Entry ID: 101\nWorkspace: Work\nTags: office,billable", cal.created[0].event.Description)
	assert.Equal(t, "event-1", rec.ICalID)
	assert.Equal(t, "cal-work", rec.CalendarID)
}

func TestRunNothingToSync(t *testing.T) {
	api := &fakeAPI{entries: []models.TimeEntry{testEntry(50)}}
	st := newFakeStore(100)
	cal := &fakeCalendar{}

	_, err := newTestEngine(api, st, cal).Run(context.Background(), "rec", testIndex())
	assert.ErrorIs(t, err, ErrNoNewEntries)
	assert.Empty(t, st.records["rec"])
	assert.Equal(t, int64(100), st.watermark)
	assert.Empty(t, cal.created)
}

func TestRunNoProjectFallbacks(t *testing.T) {
	entry := testEntry(101)
	entry.ProjectID = nil
	entry.Tags = nil

	api := &fakeAPI{entries: []models.TimeEntry{entry}}
	st := newFakeStore(100)
	cal := &fakeCalendar{}

	_, err := newTestEngine(api, st, cal).Run(context.Background(), "rec", testIndex())
	require.NoError(t, err)

	rec := st.records["rec"][0]
	assert.Equal(t, "NA", rec.Project)
	assert.Nil(t, rec.ProjectID)
	assert.Equal(t, "", rec.Tags)
	assert.Equal(t, "[NA] review", cal.created[0].event.Title)
	assert.Equal(t, "Time Entry ID: 101\nWorkspace: Work\nTags: ", cal.created[0].event.Description)
}

func TestRunUnmappedWorkspaceFails(t *testing.T) {
	entry := testEntry(101)
	entry.WorkspaceID = 99 // not in the index, resolves to ""

	api := &fakeAPI{entries: []models.TimeEntry{entry}}
	st := newFakeStore(100)

	_, err := newTestEngine(api, st, &fakeCalendar{}).Run(context.Background(), "rec", testIndex())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no calendar mapped")
	assert.Empty(t, st.records["rec"])
}

func TestRunWatermarkNeverDecreasesOnLowIDs(t *testing.T) {
	// The appended batch's max is below the stored watermark only if the
	// table already held higher IDs; the new watermark must keep the old one.
	api := &fakeAPI{entries: []models.TimeEntry{testEntry(101)}}
	st := newFakeStore(100)
	st.records["rec"] = []models.Record{} // empty table, watermark carried by property

	result, err := newTestEngine(api, st, &fakeCalendar{}).Run(context.Background(), "rec", testIndex())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.NewWatermark, int64(100))
}

func TestRunRepeatedFetchIsIdempotent(t *testing.T) {
	api := &fakeAPI{entries: []models.TimeEntry{testEntry(101), testEntry(102)}}
	st := newFakeStore(100)
	cal := &fakeCalendar{}
	e := newTestEngine(api, st, cal)

	_, err := e.Run(context.Background(), "rec", testIndex())
	require.NoError(t, err)

	// Remote returns the same window again; everything is now below the
	// watermark.
	_, err = e.Run(context.Background(), "rec", testIndex())
	assert.ErrorIs(t, err, ErrNoNewEntries)

	assert.Len(t, st.records["rec"], 2)
	assert.Len(t, cal.created, 2)
}
