package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ttsukagoshi/toggl-scripts/internal/models"
)

func TestAutoTagGroupsPerWorkspace(t *testing.T) {
	inOther := testEntry(103)
	inOther.WorkspaceID = 2
	running := testEntry(104)
	running.Duration = -10

	api := &fakeAPI{entries: []models.TimeEntry{
		testEntry(99),  // below watermark
		testEntry(101), // workspace 1
		testEntry(102), // workspace 1
		inOther,        // workspace 2
		running,        // excluded
	}}
	st := newFakeStore(100)

	result, err := newTestEngine(api, st, &fakeCalendar{}).AutoTag(context.Background(), nil, []string{"office"})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Tagged)
	assert.Equal(t, 2, result.Workspaces)

	// One bulk call per workspace, lower workspace ID first.
	require.Len(t, api.bulkCalls, 2)
	assert.Equal(t, []int64{101, 102}, api.bulkCalls[0].ids)
	assert.Equal(t, []string{"office"}, api.bulkCalls[0].tags)
	assert.Equal(t, []int64{103}, api.bulkCalls[1].ids)
}

func TestAutoTagTargetWorkspaceFilter(t *testing.T) {
	inOther := testEntry(103)
	inOther.WorkspaceID = 2

	api := &fakeAPI{entries: []models.TimeEntry{testEntry(101), inOther}}
	st := newFakeStore(100)

	target := int64(2)
	result, err := newTestEngine(api, st, &fakeCalendar{}).AutoTag(context.Background(), &target, []string{"office"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Tagged)
	require.Len(t, api.bulkCalls, 1)
	assert.Equal(t, []int64{103}, api.bulkCalls[0].ids)
}

func TestAutoTagNoTagsConfigured(t *testing.T) {
	api := &fakeAPI{entries: []models.TimeEntry{testEntry(101)}}
	_, err := newTestEngine(api, newFakeStore(100), &fakeCalendar{}).AutoTag(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrNoTagsConfigured)
	assert.Empty(t, api.bulkCalls)
}

func TestAutoTagNoEligibleEntries(t *testing.T) {
	api := &fakeAPI{entries: []models.TimeEntry{testEntry(50)}}
	_, err := newTestEngine(api, newFakeStore(100), &fakeCalendar{}).AutoTag(context.Background(), nil, []string{"office"})
	assert.ErrorIs(t, err, ErrNoEligibleEntries)
}

func TestAutoTagBulkFailureSurfaces(t *testing.T) {
	api := &fakeAPI{
		entries: []models.TimeEntry{testEntry(101)},
		bulkErr: errors.New("rate limited"),
	}
	_, err := newTestEngine(api, newFakeStore(100), &fakeCalendar{}).AutoTag(context.Background(), nil, []string{"office"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}
