package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ttsukagoshi/toggl-scripts/internal/models"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRecord(entryID int64) models.Record {
	pid := int64(7)
	return models.Record{
		TimeEntryID:  entryID,
		WorkspaceID:  1,
		Workspace:    "Work",
		ProjectID:    &pid,
		Project:      "Audit",
		Description:  "review",
		Tags:         "office,billable",
		Start:        "2026-01-10T09:00:00+09:00",
		Stop:         "2026-01-10T10:00:00+09:00",
		DurationSec:  3600,
		UserID:       12,
		GUID:         "guid-" + string(rune('a'+entryID%26)),
		Billable:     true,
		DurOnly:      false,
		LastModified: "2026-01-10T10:00:05+09:00",
		ICalID:       "ical-1",
		Timestamp:    "2026-01-10T10:05:00+09:00",
		CalendarID:   "cal-work",
		UpdateFlag:   0,
	}
}

func TestCreateRecordTableIdempotent(t *testing.T) {
	db := newTestDB(t)

	name, err := db.CreateRecordTable(2026)
	require.NoError(t, err)
	assert.Equal(t, "toggl_record_2026", name)

	again, err := db.CreateRecordTable(2026)
	require.NoError(t, err)
	assert.Equal(t, name, again)

	found, ok, err := db.RecordTable(2026)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, name, found)

	_, ok, err = db.RecordTable(2025)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLatestRecordTable(t *testing.T) {
	db := newTestDB(t)

	_, ok, err := db.LatestRecordTable()
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = db.CreateRecordTable(2025)
	require.NoError(t, err)
	_, err = db.CreateRecordTable(2026)
	require.NoError(t, err)

	latest, ok, err := db.LatestRecordTable()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "toggl_record_2026", latest)
}

func TestAppendAndReadRecords(t *testing.T) {
	db := newTestDB(t)
	table, err := db.CreateRecordTable(2026)
	require.NoError(t, err)

	batch := []models.Record{sampleRecord(101), sampleRecord(102), sampleRecord(103)}
	require.NoError(t, db.AppendRecords(table, batch))

	records, err := db.Records(table)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Append order preserved.
	assert.Equal(t, int64(101), records[0].TimeEntryID)
	assert.Equal(t, int64(103), records[2].TimeEntryID)

	got := records[0]
	assert.Equal(t, "Work", got.Workspace)
	require.NotNil(t, got.ProjectID)
	assert.Equal(t, int64(7), *got.ProjectID)
	assert.Equal(t, "office,billable", got.Tags)
	assert.True(t, got.Billable)
	assert.Equal(t, 0, got.UpdateFlag)

	max, err := db.MaxEntryID(table)
	require.NoError(t, err)
	assert.Equal(t, int64(103), max)
}

func TestNilProjectIDRoundTrip(t *testing.T) {
	db := newTestDB(t)
	table, err := db.CreateRecordTable(2026)
	require.NoError(t, err)

	rec := sampleRecord(200)
	rec.ProjectID = nil
	rec.Project = models.UnknownProject
	require.NoError(t, db.AppendRecords(table, []models.Record{rec}))

	records, err := db.Records(table)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].ProjectID)
	assert.Equal(t, "NA", records[0].Project)
}

func TestSetEntryIDAndTrailer(t *testing.T) {
	db := newTestDB(t)
	table, err := db.CreateRecordTable(2026)
	require.NoError(t, err)
	require.NoError(t, db.AppendRecords(table, []models.Record{sampleRecord(101)}))

	records, err := db.Records(table)
	require.NoError(t, err)
	rowID := records[0].RowID

	require.NoError(t, db.SetEntryID(table, rowID, 999))
	require.NoError(t, db.UpdateTrailer(table, rowID, models.Trailer{
		LastModified: "2026-02-01T00:00:00+09:00",
		ICalID:       "ical-2",
		Timestamp:    "2026-02-01T00:05:00+09:00",
		CalendarID:   "cal-private",
		UpdateFlag:   100,
	}))

	records, err = db.Records(table)
	require.NoError(t, err)
	got := records[0]
	assert.Equal(t, int64(999), got.TimeEntryID)
	assert.Equal(t, "ical-2", got.ICalID)
	assert.Equal(t, "cal-private", got.CalendarID)
	assert.Equal(t, 100, got.UpdateFlag)
	// Leading content columns untouched.
	assert.Equal(t, "review", got.Description)

	assert.Error(t, db.SetEntryID(table, 12345, 1))
	assert.Error(t, db.UpdateTrailer(table, 12345, models.Trailer{}))
}

func TestWatermarkNeverRegresses(t *testing.T) {
	db := newTestDB(t)

	wm, err := db.Watermark()
	require.NoError(t, err)
	assert.Equal(t, int64(0), wm)

	require.NoError(t, db.SetWatermark(100))
	require.NoError(t, db.SetWatermark(50)) // ignored

	wm, err = db.Watermark()
	require.NoError(t, err)
	assert.Equal(t, int64(100), wm)

	require.NoError(t, db.SetWatermark(101))
	wm, err = db.Watermark()
	require.NoError(t, err)
	assert.Equal(t, int64(101), wm)
}

func TestProperties(t *testing.T) {
	db := newTestDB(t)

	v, err := db.Property("missing")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, db.SetProperty(PropRecordingYear, "2026"))
	require.NoError(t, db.SetProperty(PropRecordingYear, "2027"))

	v, err = db.Property(PropRecordingYear)
	require.NoError(t, err)
	assert.Equal(t, "2027", v)
}

func TestAppendLog(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.AppendLog("2026-01-10T10:05:00+09:00", "toggl-sync", "Recorded: 3 Toggl time entries"))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM log`).Scan(&count))
	assert.Equal(t, 1, count)
}
