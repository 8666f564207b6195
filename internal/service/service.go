package service

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/ttsukagoshi/toggl-scripts/internal/client"
	"github.com/ttsukagoshi/toggl-scripts/internal/config"
	"github.com/ttsukagoshi/toggl-scripts/internal/index"
	"github.com/ttsukagoshi/toggl-scripts/internal/models"
	"github.com/ttsukagoshi/toggl-scripts/internal/notify"
	"github.com/ttsukagoshi/toggl-scripts/internal/reconcile"
	"github.com/ttsukagoshi/toggl-scripts/internal/rollover"
	"github.com/ttsukagoshi/toggl-scripts/internal/store"
	syncengine "github.com/ttsukagoshi/toggl-scripts/internal/sync"

	"go.uber.org/zap"
)

// Service wires the sync, tagging, reconciliation and rollover components
// and exposes the top-level run modes. A mutex serializes runs: two
// overlapping syncs would read the same watermark and double-create calendar
// events for the same entries.
type Service struct {
	cfg        *config.Config
	db         *store.DB
	client     *client.TogglClient
	syncEngine *syncengine.Engine
	reconciler *reconcile.Engine
	rollover   *rollover.Checker
	notifier   *notify.Notifier
	logger     *zap.Logger

	mu stdsync.Mutex
}

// New assembles the service from its collaborators.
func New(
	cfg *config.Config,
	db *store.DB,
	togglClient *client.TogglClient,
	syncEngine *syncengine.Engine,
	reconciler *reconcile.Engine,
	checker *rollover.Checker,
	notifier *notify.Notifier,
	logger *zap.Logger,
) *Service {
	s := &Service{
		cfg:        cfg,
		db:         db,
		client:     togglClient,
		syncEngine: syncEngine,
		reconciler: reconciler,
		rollover:   checker,
		notifier:   notifier,
		logger:     logger,
	}
	checker.Flush = s.flushPeriod
	return s
}

// Sync runs one sync pass: rollover check, name index rebuild, fetch,
// filter, mirror, append, watermark advance.
func (s *Service) Sync(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncLocked(ctx)
}

func (s *Service) syncLocked(ctx context.Context) error {
	table, _, err := s.rollover.Ensure(ctx)
	if err != nil {
		return s.reportFailure("Rollover check failed", err)
	}

	ix, err := index.Build(ctx, s.client)
	if err != nil {
		return s.reportFailure("Recording Toggl time entries failed", err)
	}

	result, err := s.syncEngine.Run(ctx, table, ix)
	if errors.Is(err, syncengine.ErrNoNewEntries) {
		s.logger.Info("Nothing to sync")
		return nil
	}
	if err != nil {
		return s.reportFailure("Recording Toggl time entries failed", err)
	}

	s.logger.Info("Sync run finished",
		zap.Int("appended", result.Appended),
		zap.Int64("watermark", result.NewWatermark),
	)
	return nil
}

// AutoTag runs one bulk-tagging pass with the configured workspace filter
// and tag list.
func (s *Service) AutoTag(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoTagLocked(ctx)
}

func (s *Service) autoTagLocked(ctx context.Context) error {
	result, err := s.syncEngine.AutoTag(ctx, s.cfg.AutoTag.WorkspaceID, s.cfg.AutoTag.Tags)
	if errors.Is(err, syncengine.ErrNoTagsConfigured) || errors.Is(err, syncengine.ErrNoEligibleEntries) {
		s.logger.Warn("Auto-tag skipped", zap.Error(err))
		s.appendLog(fmt.Sprintf("AutoTag skipped: %v", err))
		return nil
	}
	if err != nil {
		return s.reportFailure("Auto-tagging Toggl time entries failed", err)
	}

	s.logger.Info("Auto-tag run finished",
		zap.Int("tagged", result.Tagged),
		zap.Int("workspaces", result.Workspaces),
	)
	return nil
}

// Update runs the back-edit flow: stop any running entry, record everything
// up to now, then reconcile rows flagged for update.
func (s *Service) Update(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stopped, err := s.client.StopRunningTimeEntry(ctx)
	switch {
	case errors.Is(err, client.ErrNoRunningEntry):
		s.logger.Debug("No running time entry to stop")
	case err != nil:
		return s.reportFailure("Stopping running time entry failed", err)
	default:
		s.logger.Info("Stopped running time entry for update", zap.Int64("id", stopped.ID))
		s.appendLog(fmt.Sprintf("Running time entry stopped for update: id %d", stopped.ID))
	}

	if err := s.syncLocked(ctx); err != nil {
		return err
	}

	table, _, err := s.rollover.Ensure(ctx)
	if err != nil {
		return s.reportFailure("Rollover check failed", err)
	}

	result, err := s.reconciler.Run(ctx, table)
	if errors.Is(err, reconcile.ErrNoUpdates) {
		s.logger.Info("No rows flagged for update")
		return nil
	}
	if err != nil {
		return s.reportFailure("Updating Toggl time entries failed", err)
	}

	for _, rowErr := range result.Errors {
		s.logger.Warn("Row left pending after failed reconciliation",
			zap.Int64("time_entry_id", rowErr.TimeEntryID),
			zap.Error(rowErr.Err),
		)
	}
	s.logger.Info("Update run finished",
		zap.Int("updated", result.Updated),
		zap.Int("row_errors", len(result.Errors)),
	)
	return nil
}

// RunPeriodic syncs on a fixed interval until the context is cancelled.
func (s *Service) RunPeriodic(ctx context.Context, interval time.Duration) error {
	s.logger.Info("Starting periodic sync", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.Sync(ctx); err != nil {
			// Already reported; the next tick is the retry.
			s.logger.Error("Sync run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			s.logger.Info("Periodic sync stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// flushPeriod is the rollover hook: one last tag + sync pass into the
// previous period's table before the new one takes over.
func (s *Service) flushPeriod(ctx context.Context, previousTable string) error {
	if err := s.autoTagLocked(ctx); err != nil {
		return err
	}

	ix, err := index.Build(ctx, s.client)
	if err != nil {
		return err
	}
	_, err = s.syncEngine.Run(ctx, previousTable, ix)
	if errors.Is(err, syncengine.ErrNoNewEntries) {
		return nil
	}
	return err
}

// reportFailure records a top-level failure in the log sheet and sends the
// out-of-band notification, then returns the error.
func (s *Service) reportFailure(title string, err error) error {
	s.appendLog(fmt.Sprintf("Error: %s: %v", title, err))

	body := fmt.Sprintf("%v\n\nRecord store: %s", err, s.cfg.Storage.Path)
	if notifyErr := s.notifier.Send("[Error] "+title, body); notifyErr != nil {
		s.logger.Error("Failed to send failure notification", zap.Error(notifyErr))
	}
	return err
}

func (s *Service) appendLog(message string) {
	timestamp := time.Now().In(s.cfg.Location()).Format(models.LocalTimeFormat)
	if err := s.db.AppendLog(timestamp, s.cfg.Notify.Actor, message); err != nil {
		s.logger.Warn("Failed to append log entry", zap.Error(err))
	}
}
