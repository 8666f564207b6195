package store

import (
	"fmt"

	"github.com/ttsukagoshi/toggl-scripts/internal/models"

	"go.uber.org/zap"
)

const recordColumns = `row_id, time_entry_id, workspace_id, workspace, project_id, project,
	description, tags, start, stop, duration_sec, user_id, guid, billable, duronly,
	last_modified, ical_id, timestamp, calendar_id, update_flag`

// AppendRecords appends a batch of rows to a record table in a single
// transaction, preserving the slice order.
func (db *DB) AppendRecords(table string, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(fmt.Sprintf(`
		INSERT INTO %s (time_entry_id, workspace_id, workspace, project_id, project,
			description, tags, start, stop, duration_sec, user_id, guid, billable, duronly,
			last_modified, ical_id, timestamp, calendar_id, update_flag)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, table))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.Exec(
			r.TimeEntryID, r.WorkspaceID, r.Workspace, r.ProjectID, r.Project,
			r.Description, r.Tags, r.Start, r.Stop, r.DurationSec, r.UserID, r.GUID,
			r.Billable, r.DurOnly, r.LastModified, r.ICalID, r.Timestamp,
			r.CalendarID, r.UpdateFlag,
		)
		if err != nil {
			return fmt.Errorf("failed to append record %d: %w", r.TimeEntryID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	db.logger.Debug("Records appended",
		zap.String("table", table),
		zap.Int("count", len(records)),
	)
	return nil
}

// Records returns all rows of a record table in append order.
func (db *DB) Records(table string) ([]models.Record, error) {
	rows, err := db.Query(fmt.Sprintf(`SELECT %s FROM %s ORDER BY row_id ASC`, recordColumns, table))
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var r models.Record
		err := rows.Scan(
			&r.RowID, &r.TimeEntryID, &r.WorkspaceID, &r.Workspace, &r.ProjectID, &r.Project,
			&r.Description, &r.Tags, &r.Start, &r.Stop, &r.DurationSec, &r.UserID, &r.GUID,
			&r.Billable, &r.DurOnly, &r.LastModified, &r.ICalID, &r.Timestamp,
			&r.CalendarID, &r.UpdateFlag,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}

// MaxEntryID returns the highest time entry ID in a record table, 0 when the
// table is empty.
func (db *DB) MaxEntryID(table string) (int64, error) {
	var max int64
	err := db.QueryRow(fmt.Sprintf(`SELECT COALESCE(MAX(time_entry_id), 0) FROM %s`, table)).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to read max entry ID: %w", err)
	}
	return max, nil
}

// SetEntryID rewrites the leading time-entry-ID column of one row. Used when
// reconciliation recreates an entry in a different workspace.
func (db *DB) SetEntryID(table string, rowID, entryID int64) error {
	result, err := db.Exec(fmt.Sprintf(`UPDATE %s SET time_entry_id = ? WHERE row_id = ?`, table),
		entryID, rowID)
	if err != nil {
		return fmt.Errorf("failed to rewrite entry ID: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("record row %d not found", rowID)
	}
	return nil
}

// UpdateTrailer rewrites the trailing columns of one row after a successful
// reconciliation.
func (db *DB) UpdateTrailer(table string, rowID int64, t models.Trailer) error {
	result, err := db.Exec(fmt.Sprintf(`
		UPDATE %s
		SET last_modified = ?, ical_id = ?, timestamp = ?, calendar_id = ?, update_flag = ?
		WHERE row_id = ?
	`, table), t.LastModified, t.ICalID, t.Timestamp, t.CalendarID, t.UpdateFlag, rowID)
	if err != nil {
		return fmt.Errorf("failed to update trailer: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("record row %d not found", rowID)
	}
	return nil
}
