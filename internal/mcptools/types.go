package mcptools

import "github.com/dusk-indust/agentforge/internal/export"

// SubmitBuildInput requests a build for a project.
type SubmitBuildInput struct {
	ProjectID   string `json:"projectId" jsonschema:"project identifier (kebab-case)"`
	ProjectName string `json:"projectName,omitempty" jsonschema:"human-readable project name"`
}

// SubmitBuildOutput reports how the request was handled plus a status
// snapshot of the project.
type SubmitBuildOutput struct {
	Outcome string                `json:"outcome"` // "accepted" or "already-running"
	State   string                `json:"state"`
	Project *export.ProjectExport `json:"project,omitempty"`
}

// BuildStatusInput queries one project's full status record.
type BuildStatusInput struct {
	ProjectID string `json:"projectId" jsonschema:"project identifier"`
}

// BuildStatusOutput carries the full project record and the scheduler state.
type BuildStatusOutput struct {
	State     string                `json:"state"`
	LastError string                `json:"lastError,omitempty"`
	Project   *export.ProjectExport `json:"project"`
}

// CancelBuildInput requests cooperative cancellation of a running build.
type CancelBuildInput struct {
	ProjectID string `json:"projectId" jsonschema:"project identifier"`
}

// CancelBuildOutput reports whether a build was there to cancel.
type CancelBuildOutput struct {
	Canceled bool   `json:"canceled"`
	State    string `json:"state"`
}

// PauseBuildInput requests a cooperative pause at the next stage boundary.
type PauseBuildInput struct {
	ProjectID string `json:"projectId" jsonschema:"project identifier"`
}

// PauseBuildOutput reports whether a build was there to pause.
type PauseBuildOutput struct {
	Paused bool   `json:"paused"`
	State  string `json:"state"`
}

// ListProjectsInput has no parameters.
type ListProjectsInput struct{}

// ListProjectsOutput lists status snapshots for every known project.
type ListProjectsOutput struct {
	Projects []export.ProjectExport `json:"projects"`
}
