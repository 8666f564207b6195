package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ttsukagoshi/toggl-scripts/internal/models"

	"go.uber.org/zap"
)

// ErrNoRunningEntry is returned by StopRunningTimeEntry when no time entry
// is currently running.
var ErrNoRunningEntry = errors.New("no running time entry")

// TogglClient handles communication with the Toggl time-tracking API.
// It is a pure protocol wrapper: no retries, no business logic. Every
// non-2xx response surfaces as *APIError; retry policy belongs to callers.
type TogglClient struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewTogglClient creates a new Toggl API client. The token is carried as a
// basic-auth credential (token:api_token) on every call.
func NewTogglClient(baseURL, apiToken string, timeout time.Duration, logger *zap.Logger) *TogglClient {
	return &TogglClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// APIError is a non-2xx response from the Toggl API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("toggl api returned status %d: %s", e.StatusCode, e.Body)
}

// do performs one request against the API. When out is non-nil the response
// body is unmarshalled into it.
func (c *TogglClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.apiToken, "api_token")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		c.logger.Error("Toggl request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
			zap.Duration("duration", duration),
		)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("Toggl API error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode),
			zap.String("response", string(respBody)),
		)
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	c.logger.Debug("Toggl request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("duration", duration),
	)

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// dataEnvelope is the {"data": ...} wrapper on single-entry endpoints.
type dataEnvelope struct {
	Data *models.TimeEntry `json:"data"`
}

// GetTimeEntries returns time entries started in the given range. With a nil
// range the API returns its own bounded recent window: entries from the last
// 9 days, capped at 1000 results. Both limits are enforced remotely, not
// here.
func (c *TogglClient) GetTimeEntries(ctx context.Context, start, stop *time.Time) ([]models.TimeEntry, error) {
	path := "/time_entries"
	if start != nil && stop != nil {
		q := url.Values{}
		q.Set("start_date", start.Format(time.RFC3339))
		q.Set("end_date", stop.Format(time.RFC3339))
		path += "?" + q.Encode()
	}

	var entries []models.TimeEntry
	if err := c.do(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetTimeEntry returns the details of one time entry.
func (c *TogglClient) GetTimeEntry(ctx context.Context, id int64) (*models.TimeEntry, error) {
	var env dataEnvelope
	if err := c.do(ctx, http.MethodGet, "/time_entries/"+strconv.FormatInt(id, 10), nil, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, fmt.Errorf("time entry %d: empty response", id)
	}
	return env.Data, nil
}

// CreateTimeEntry creates a new time entry.
func (c *TogglClient) CreateTimeEntry(ctx context.Context, spec models.TimeEntrySpec) (*models.TimeEntry, error) {
	var env dataEnvelope
	payload := models.TimeEntryPayload{TimeEntry: spec}
	if err := c.do(ctx, http.MethodPost, "/time_entries", payload, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, fmt.Errorf("create time entry: empty response")
	}
	return env.Data, nil
}

// UpdateTimeEntry replaces the contents of an existing time entry.
func (c *TogglClient) UpdateTimeEntry(ctx context.Context, id int64, spec models.TimeEntrySpec) (*models.TimeEntry, error) {
	var env dataEnvelope
	payload := models.TimeEntryPayload{TimeEntry: spec}
	if err := c.do(ctx, http.MethodPut, "/time_entries/"+strconv.FormatInt(id, 10), payload, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, fmt.Errorf("update time entry %d: empty response", id)
	}
	return env.Data, nil
}

// DeleteTimeEntry deletes a time entry.
func (c *TogglClient) DeleteTimeEntry(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/time_entries/"+strconv.FormatInt(id, 10), nil, nil)
}

// BulkAddTags adds the given tags to every listed time entry in one call.
func (c *TogglClient) BulkAddTags(ctx context.Context, ids []int64, tags []string) ([]models.TimeEntry, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("cannot bulk tag an empty ID set")
	}

	joined := make([]string, len(ids))
	for i, id := range ids {
		joined[i] = strconv.FormatInt(id, 10)
	}
	payload := models.BulkTagPayload{
		TimeEntry: models.BulkTagSpec{Tags: tags, TagAction: "add"},
	}

	var env struct {
		Data []models.TimeEntry `json:"data"`
	}
	if err := c.do(ctx, http.MethodPut, "/time_entries/"+strings.Join(joined, ","), payload, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// GetWorkspaces returns all workspaces the token owner belongs to.
func (c *TogglClient) GetWorkspaces(ctx context.Context) ([]models.Workspace, error) {
	var workspaces []models.Workspace
	if err := c.do(ctx, http.MethodGet, "/workspaces", nil, &workspaces); err != nil {
		return nil, err
	}
	return workspaces, nil
}

// GetWorkspaceProjects returns all projects in a workspace.
func (c *TogglClient) GetWorkspaceProjects(ctx context.Context, workspaceID int64) ([]models.Project, error) {
	var projects []models.Project
	path := fmt.Sprintf("/workspaces/%d/projects", workspaceID)
	if err := c.do(ctx, http.MethodGet, path, nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// GetRunningTimeEntry returns the currently running time entry, or nil when
// nothing is running.
func (c *TogglClient) GetRunningTimeEntry(ctx context.Context) (*models.TimeEntry, error) {
	var env dataEnvelope
	if err := c.do(ctx, http.MethodGet, "/time_entries/current", nil, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// StopTimeEntry stops the given time entry.
func (c *TogglClient) StopTimeEntry(ctx context.Context, id int64) (*models.TimeEntry, error) {
	var env dataEnvelope
	path := fmt.Sprintf("/time_entries/%d/stop", id)
	if err := c.do(ctx, http.MethodPut, path, nil, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, fmt.Errorf("stop time entry %d: empty response", id)
	}
	return env.Data, nil
}

// StopRunningTimeEntry stops whichever time entry is currently running and
// returns it. Returns ErrNoRunningEntry when nothing is running.
func (c *TogglClient) StopRunningTimeEntry(ctx context.Context) (*models.TimeEntry, error) {
	running, err := c.GetRunningTimeEntry(ctx)
	if err != nil {
		return nil, err
	}
	if running == nil {
		return nil, ErrNoRunningEntry
	}
	return c.StopTimeEntry(ctx, running.ID)
}
