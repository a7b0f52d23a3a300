// Package store persists project and per-stage build status. It is the
// single source of truth for resuming a pipeline across process restarts.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dusk-indust/agentforge/internal/artifact"
)

// ProjectStatus is the overall state of a project build.
type ProjectStatus string

const (
	StatusPending   ProjectStatus = "pending"
	StatusBuilding  ProjectStatus = "building"
	StatusCompleted ProjectStatus = "completed"
	StatusFailed    ProjectStatus = "failed"
	StatusPaused    ProjectStatus = "paused"
)

// Project is one agent-build project and its full per-stage status list.
// Every sequenced stage has exactly one StageStatus entry, always.
type Project struct {
	ID           string
	Name         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Status       ProjectStatus
	CurrentStage int
	Stages       []StageStatus
}

// StageStatus records the completion state of one stage of one project.
type StageStatus struct {
	Stage     string
	Completed bool
	UpdatedAt time.Time
	Error     string
	Artifacts []artifact.Ref
}

// ErrNotFound is returned when a project id is not known to the store.
var ErrNotFound = errors.New("store: project not found")

// UnknownStageError reports a stage id the store has no status slot for.
// It is a configuration error: the stage sequence and the status schema
// have drifted apart, and continuing would let stages complete without
// ever recording status.
type UnknownStageError struct {
	Stage string
}

func (e *UnknownStageError) Error() string {
	return fmt.Sprintf("store: unknown stage %q", e.Stage)
}

// Store is the durable status persistence contract.
// Implementations: KuzuStore (production), MemStore (testing).
//
// Updates are atomic per (project, stage) pair. The store does not serialize
// concurrent updates to the same project; the scheduler's one-active-run-per
// -project rule provides that.
type Store interface {
	io.Closer

	// Init prepares the backing schema. Called once before any other method.
	Init(ctx context.Context) error

	// CreateProject registers a project. Idempotent: a second call with the
	// same id returns the existing project unchanged, since build requests
	// may race.
	CreateProject(ctx context.Context, id, name string) (*Project, error)

	// GetProject returns a copy of the project, or ErrNotFound.
	GetProject(ctx context.Context, id string) (*Project, error)

	// ListProjects returns copies of all projects in creation order.
	ListProjects(ctx context.Context) ([]Project, error)

	// SetProjectStatus updates the overall status and current stage index.
	SetProjectStatus(ctx context.Context, id string, status ProjectStatus, currentStage int) error

	// GetStageStatus returns a copy of one stage's status. A stage id the
	// store does not recognize yields an UnknownStageError, never a nil
	// result.
	GetStageStatus(ctx context.Context, id, stage string) (*StageStatus, error)

	// MarkStageCompleted records a stage as completed with the artifacts it
	// produced. Fails loudly with UnknownStageError for unsequenced stage
	// ids; it must never silently no-op.
	MarkStageCompleted(ctx context.Context, id, stage string, artifacts []artifact.Ref) error

	// MarkStageFailed records a stage failure with a human-readable cause.
	// Same UnknownStageError contract as MarkStageCompleted.
	MarkStageFailed(ctx context.Context, id, stage, cause string) error

	// StageIDs returns the stage ids this store records status for,
	// in pipeline order.
	StageIDs() []string
}

// CheckStageConsistency asserts that the store's accepted stage id set equals
// the sequenced id set. Any divergence means a stage could run without a
// status slot (or a status slot could never be filled), so startup must
// refuse to proceed.
func CheckStageConsistency(s Store, sequenced []string) error {
	got := append([]string(nil), s.StageIDs()...)
	want := append([]string(nil), sequenced...)

	if len(got) != len(want) {
		return fmt.Errorf("store: stage set mismatch: store records %d stages, sequence has %d", len(got), len(want))
	}

	for i := range want {
		if got[i] != want[i] {
			sort.Strings(got)
			sort.Strings(want)
			for j := range want {
				if got[j] != want[j] {
					return &UnknownStageError{Stage: want[j]}
				}
			}
			return fmt.Errorf("store: stage order mismatch at index %d: store %q, sequence %q", i, got[i], want[i])
		}
	}
	return nil
}

// newStageStatuses builds the fixed-order status list for a fresh project.
func newStageStatuses(stageIDs []string, now time.Time) []StageStatus {
	stages := make([]StageStatus, len(stageIDs))
	for i, id := range stageIDs {
		stages[i] = StageStatus{Stage: id, UpdatedAt: now}
	}
	return stages
}
