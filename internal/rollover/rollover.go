package rollover

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ttsukagoshi/toggl-scripts/internal/models"
	"github.com/ttsukagoshi/toggl-scripts/internal/store"

	"go.uber.org/zap"
)

// registryStore is the slice of the tabular store the checker needs.
type registryStore interface {
	Property(key string) (string, error)
	SetProperty(key, value string) error
	RecordTable(year int) (string, bool, error)
	CreateRecordTable(year int) (string, error)
	AppendLog(timestamp, actor, message string) error
}

// Checker performs the yearly rollover of the record table: when the
// calendar year (in the configured zone) has advanced past the stored
// recording year, the previous period is flushed, a new record table is
// created from the template and registered, and the recording year moves
// forward.
type Checker struct {
	store    registryStore
	location *time.Location
	actor    string
	logger   *zap.Logger

	now func() time.Time

	// Flush, when set, runs a final catch-up pass (tagging + sync) into the
	// previous period's table before the new table takes over. Flush errors
	// are logged, not fatal: a rollover must not be blocked by a transient
	// remote failure.
	Flush func(ctx context.Context, previousTable string) error
}

// NewChecker creates a rollover checker.
func NewChecker(st registryStore, location *time.Location, actor string, logger *zap.Logger) *Checker {
	return &Checker{
		store:    st,
		location: location,
		actor:    actor,
		logger:   logger,
		now:      time.Now,
	}
}

// Ensure returns the record table for the current year, creating it (and
// rolling the period over) when needed. rolled reports whether a new table
// was created by this call.
func (c *Checker) Ensure(ctx context.Context) (table string, rolled bool, err error) {
	year := c.now().In(c.location).Year()

	if table, ok, err := c.store.RecordTable(year); err != nil {
		return "", false, err
	} else if ok {
		return table, false, nil
	}

	// No table for the current year: flush the previous period first, if one
	// exists.
	recYearStr, err := c.store.Property(store.PropRecordingYear)
	if err != nil {
		return "", false, err
	}
	if recYearStr != "" && c.Flush != nil {
		recYear, err := strconv.Atoi(recYearStr)
		if err != nil {
			return "", false, fmt.Errorf("corrupt recording year %q: %w", recYearStr, err)
		}
		if previousTable, ok, err := c.store.RecordTable(recYear); err != nil {
			return "", false, err
		} else if ok {
			if err := c.Flush(ctx, previousTable); err != nil {
				c.logger.Warn("Failed to flush previous period before rollover",
					zap.String("table", previousTable),
					zap.Error(err),
				)
			}
		}
	}

	table, err = c.store.CreateRecordTable(year)
	if err != nil {
		return "", false, err
	}
	if err := c.store.SetProperty(store.PropRecordingYear, strconv.Itoa(year)); err != nil {
		return "", false, err
	}

	timestamp := c.now().In(c.location).Format(models.LocalTimeFormat)
	if err := c.store.AppendLog(timestamp, c.actor,
		fmt.Sprintf("Created record table for year %d", year)); err != nil {
		c.logger.Warn("Failed to append log entry", zap.Error(err))
	}

	c.logger.Info("Rolled over to new record table",
		zap.Int("year", year),
		zap.String("table", table),
	)
	return table, true, nil
}
