package mcptools

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/agentforge/internal/export"
	"github.com/dusk-indust/agentforge/internal/scheduler"
	"github.com/dusk-indust/agentforge/internal/store"
)

// BuildService holds the scheduler and status store used by MCP tool
// handlers. Status reads go straight to the store and never block on an
// in-flight pipeline run.
type BuildService struct {
	sched *scheduler.Scheduler
	store store.Store
}

// NewBuildService creates a BuildService over the given collaborators.
func NewBuildService(sched *scheduler.Scheduler, st store.Store) *BuildService {
	return &BuildService{sched: sched, store: st}
}

// SubmitBuild queues a build for a project. Submitting while a build is
// queued or running is a no-op that reports the existing state.
func (s *BuildService) SubmitBuild(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SubmitBuildInput,
) (*mcp.CallToolResult, SubmitBuildOutput, error) {
	if input.ProjectID == "" {
		return nil, SubmitBuildOutput{}, fmt.Errorf("projectId is required")
	}

	outcome, state, err := s.sched.Submit(ctx, input.ProjectID, input.ProjectName)
	if err != nil {
		return nil, SubmitBuildOutput{}, err
	}

	// Submit creates the project record before queuing, so the snapshot is
	// available even while the build waits for a worker slot.
	proj, err := s.store.GetProject(ctx, input.ProjectID)
	if err != nil {
		return nil, SubmitBuildOutput{}, err
	}
	return nil, SubmitBuildOutput{
		Outcome: string(outcome),
		State:   string(state),
		Project: export.Project(proj),
	}, nil
}

// BuildStatus returns the full persisted project record plus the scheduler
// state for the project.
func (s *BuildService) BuildStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input BuildStatusInput,
) (*mcp.CallToolResult, BuildStatusOutput, error) {
	if input.ProjectID == "" {
		return nil, BuildStatusOutput{}, fmt.Errorf("projectId is required")
	}

	proj, err := s.store.GetProject(ctx, input.ProjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, BuildStatusOutput{}, fmt.Errorf("project %q not found", input.ProjectID)
		}
		return nil, BuildStatusOutput{}, err
	}

	info := s.sched.Status(input.ProjectID)
	return nil, BuildStatusOutput{
		State:     string(info.State),
		LastError: info.LastError,
		Project:   export.Project(proj),
	}, nil
}

// CancelBuild sets the cooperative cancellation flag for a project's build.
func (s *BuildService) CancelBuild(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input CancelBuildInput,
) (*mcp.CallToolResult, CancelBuildOutput, error) {
	if input.ProjectID == "" {
		return nil, CancelBuildOutput{}, fmt.Errorf("projectId is required")
	}

	canceled := s.sched.Cancel(input.ProjectID)
	info := s.sched.Status(input.ProjectID)
	return nil, CancelBuildOutput{
		Canceled: canceled,
		State:    string(info.State),
	}, nil
}

// PauseBuild sets the cooperative pause flag for a project's build.
func (s *BuildService) PauseBuild(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input PauseBuildInput,
) (*mcp.CallToolResult, PauseBuildOutput, error) {
	if input.ProjectID == "" {
		return nil, PauseBuildOutput{}, fmt.Errorf("projectId is required")
	}

	paused := s.sched.Pause(input.ProjectID)
	info := s.sched.Status(input.ProjectID)
	return nil, PauseBuildOutput{
		Paused: paused,
		State:  string(info.State),
	}, nil
}

// ListProjects returns a status snapshot for every known project.
func (s *BuildService) ListProjects(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListProjectsInput,
) (*mcp.CallToolResult, ListProjectsOutput, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, ListProjectsOutput{}, err
	}

	out := ListProjectsOutput{Projects: make([]export.ProjectExport, 0, len(projects))}
	for i := range projects {
		out.Projects = append(out.Projects, *export.Project(&projects[i]))
	}
	return nil, out, nil
}
