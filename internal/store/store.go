package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Property keys.
const (
	PropLastTimeEntryID = "lastTimeEntryId"
	PropRecordingYear   = "recordingYear"
)

// DB is the tabular store backing the sync service: one record table per
// year, a registry of those tables, an append-only log sheet and a small
// key/value property store (watermark, recording year).
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// New opens the store and runs migrations.
func New(storagePath string, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("sqlite", storagePath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &DB{
		DB:     db,
		logger: logger,
	}

	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Record store opened", zap.String("path", storagePath))
	return database, nil
}

func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS properties (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		// Registry of yearly record tables
		`CREATE TABLE IF NOT EXISTS record_sheets (
			year INTEGER PRIMARY KEY,
			table_name TEXT UNIQUE NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		// Append-only log sheet
		`CREATE TABLE IF NOT EXISTS log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			actor TEXT NOT NULL,
			message TEXT NOT NULL
		)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	db.logger.Debug("Store migrations completed")
	return nil
}

// recordTableTemplate is the fixed 19-column layout every yearly record
// table is created from. Column order mirrors the sheet layout.
const recordTableTemplate = `CREATE TABLE IF NOT EXISTS %s (
	row_id INTEGER PRIMARY KEY AUTOINCREMENT,
	time_entry_id INTEGER NOT NULL UNIQUE,
	workspace_id INTEGER NOT NULL,
	workspace TEXT NOT NULL,
	project_id INTEGER,
	project TEXT NOT NULL,
	description TEXT NOT NULL,
	tags TEXT NOT NULL,
	start TEXT NOT NULL,
	stop TEXT NOT NULL,
	duration_sec INTEGER NOT NULL,
	user_id INTEGER NOT NULL,
	guid TEXT NOT NULL,
	billable INTEGER NOT NULL,
	duronly INTEGER NOT NULL,
	last_modified TEXT NOT NULL,
	ical_id TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	calendar_id TEXT NOT NULL,
	update_flag INTEGER NOT NULL DEFAULT 0
)`

// RecordTable looks up the registered record table for a year.
func (db *DB) RecordTable(year int) (string, bool, error) {
	var name string
	err := db.QueryRow(`SELECT table_name FROM record_sheets WHERE year = ?`, year).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up record table for %d: %w", year, err)
	}
	return name, true, nil
}

// LatestRecordTable returns the record table of the most recent registered
// year, or ok=false when no table has been created yet.
func (db *DB) LatestRecordTable() (string, bool, error) {
	var name string
	err := db.QueryRow(`SELECT table_name FROM record_sheets ORDER BY year DESC LIMIT 1`).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up latest record table: %w", err)
	}
	return name, true, nil
}

// CreateRecordTable creates the record table for a year from the template
// and registers it. Creating an already-registered year is a no-op that
// returns the existing name.
func (db *DB) CreateRecordTable(year int) (string, error) {
	if name, ok, err := db.RecordTable(year); err != nil || ok {
		return name, err
	}

	name := fmt.Sprintf("toggl_record_%d", year)
	if _, err := db.Exec(fmt.Sprintf(recordTableTemplate, name)); err != nil {
		return "", fmt.Errorf("failed to create record table %s: %w", name, err)
	}
	if _, err := db.Exec(`INSERT INTO record_sheets (year, table_name) VALUES (?, ?)`, year, name); err != nil {
		return "", fmt.Errorf("failed to register record table %s: %w", name, err)
	}

	db.logger.Info("Record table created",
		zap.Int("year", year),
		zap.String("table", name),
	)
	return name, nil
}

// Property returns a stored property value, or "" when unset.
func (db *DB) Property(key string) (string, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM properties WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read property %s: %w", key, err)
	}
	return value, nil
}

// SetProperty stores a property value.
func (db *DB) SetProperty(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO properties (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set property %s: %w", key, err)
	}
	return nil
}

// Watermark returns the highest time entry ID already persisted, 0 when no
// sync has run yet.
func (db *DB) Watermark() (int64, error) {
	value, err := db.Property(PropLastTimeEntryID)
	if err != nil {
		return 0, err
	}
	if value == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt watermark %q: %w", value, err)
	}
	return id, nil
}

// SetWatermark advances the watermark. The watermark never regresses: a
// value below the current one is ignored.
func (db *DB) SetWatermark(id int64) error {
	current, err := db.Watermark()
	if err != nil {
		return err
	}
	if id < current {
		db.logger.Warn("Ignoring watermark regression",
			zap.Int64("current", current),
			zap.Int64("requested", id),
		)
		return nil
	}
	return db.SetProperty(PropLastTimeEntryID, strconv.FormatInt(id, 10))
}

// AppendLog appends one row to the log sheet.
func (db *DB) AppendLog(timestamp, actor, message string) error {
	_, err := db.Exec(`INSERT INTO log (timestamp, actor, message) VALUES (?, ?, ?)`,
		timestamp, actor, message)
	if err != nil {
		return fmt.Errorf("failed to append log: %w", err)
	}
	return nil
}

// Close closes the store.
func (db *DB) Close() error {
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	db.logger.Info("Record store closed")
	return nil
}
