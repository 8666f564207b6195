package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ttsukagoshi/toggl-scripts/internal/models"

	"go.uber.org/zap"
)

// Auto-tag no-op conditions. Both are reported loudly by callers, never
// silently dropped.
var (
	ErrNoTagsConfigured  = errors.New("no tag set for auto-tag")
	ErrNoEligibleEntries = errors.New("no time entry subject to auto-tag")
)

// TagResult summarizes one auto-tag pass.
type TagResult struct {
	Tagged     int
	Workspaces int
}

// AutoTag adds the configured tags to every recent entry that is not yet
// recorded (ID above the watermark), has finished running, and — when a
// target workspace is set — belongs to that workspace. IDs are grouped per
// workspace and tagged with one bulk call each, so tags never leak across
// workspaces.
func (e *Engine) AutoTag(ctx context.Context, targetWorkspaceID *int64, tags []string) (*TagResult, error) {
	if len(tags) == 0 {
		return nil, ErrNoTagsConfigured
	}

	watermark, err := e.store.Watermark()
	if err != nil {
		return nil, err
	}

	entries, err := e.api.GetTimeEntries(ctx, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch time entries: %w", err)
	}

	byWorkspace := make(map[int64][]int64)
	for i := range entries {
		entry := &entries[i]
		if entry.ID <= watermark || entry.Running() {
			continue
		}
		if targetWorkspaceID != nil && entry.WorkspaceID != *targetWorkspaceID {
			continue
		}
		byWorkspace[entry.WorkspaceID] = append(byWorkspace[entry.WorkspaceID], entry.ID)
	}

	if len(byWorkspace) == 0 {
		return nil, ErrNoEligibleEntries
	}

	workspaceIDs := make([]int64, 0, len(byWorkspace))
	for wid := range byWorkspace {
		workspaceIDs = append(workspaceIDs, wid)
	}
	sort.Slice(workspaceIDs, func(i, j int) bool { return workspaceIDs[i] < workspaceIDs[j] })

	tagged := 0
	for _, wid := range workspaceIDs {
		ids := byWorkspace[wid]
		if _, err := e.api.BulkAddTags(ctx, ids, tags); err != nil {
			return nil, fmt.Errorf("failed to tag %d entries in workspace %d: %w", len(ids), wid, err)
		}
		tagged += len(ids)
	}

	logTime := e.now().In(e.location).Format(models.LocalTimeFormat)
	if err := e.store.AppendLog(logTime, e.actor,
		fmt.Sprintf("Updated: %d time entry(ies) tagged across %d workspace(s)", tagged, len(workspaceIDs))); err != nil {
		e.logger.Warn("Failed to append log entry", zap.Error(err))
	}

	e.logger.Info("Auto-tag completed",
		zap.Int("tagged", tagged),
		zap.Int("workspaces", len(workspaceIDs)),
		zap.Strings("tags", tags),
	)
	return &TagResult{Tagged: tagged, Workspaces: len(workspaceIDs)}, nil
}
