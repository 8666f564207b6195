package index

import (
	"context"
	"fmt"

	"github.com/ttsukagoshi/toggl-scripts/internal/models"
)

// workspaceLister is the slice of the Toggl client the builder needs.
type workspaceLister interface {
	GetWorkspaces(ctx context.Context) ([]models.Workspace, error)
	GetWorkspaceProjects(ctx context.Context, workspaceID int64) ([]models.Project, error)
}

// NameIndex maps workspace and project IDs to their display names. It is
// rebuilt on every sync run and never persisted; project IDs are globally
// unique across workspaces, so a single flat project map suffices
// (last write wins if that ever stops holding upstream).
type NameIndex struct {
	Workspaces map[int64]string
	Projects   map[int64]string
}

// Build enumerates all workspaces and their projects into a NameIndex.
func Build(ctx context.Context, api workspaceLister) (*NameIndex, error) {
	ix := &NameIndex{
		Workspaces: make(map[int64]string),
		Projects:   make(map[int64]string),
	}

	workspaces, err := api.GetWorkspaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}

	for _, ws := range workspaces {
		ix.Workspaces[ws.ID] = ws.Name
		projects, err := api.GetWorkspaceProjects(ctx, ws.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list projects of workspace %d: %w", ws.ID, err)
		}
		for _, p := range projects {
			ix.Projects[p.ID] = p.Name
		}
	}

	return ix, nil
}

// WorkspaceName resolves a workspace ID, or "" when unknown.
func (ix *NameIndex) WorkspaceName(id int64) string {
	return ix.Workspaces[id]
}

// ProjectName resolves a project ID. Entries without a project, and IDs the
// index cannot resolve, map to the "NA" sentinel.
func (ix *NameIndex) ProjectName(id *int64) string {
	if id == nil {
		return models.UnknownProject
	}
	name, ok := ix.Projects[*id]
	if !ok {
		return models.UnknownProject
	}
	return name
}
