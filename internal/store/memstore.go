package store

import (
	"context"
	"sync"
	"time"

	"github.com/dusk-indust/agentforge/internal/artifact"
)

// Compile-time check that MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore implements Store using Go maps. Thread-safe via sync.RWMutex.
// Projects are deep-copied on the way out so readers never observe a
// concurrent mutation.
type MemStore struct {
	mu       sync.RWMutex
	stageIDs []string
	projects map[string]*Project
	orderIDs []string // insertion-order project ids
	now      func() time.Time
}

// NewMemStore returns a MemStore recording status for exactly the given
// stage ids, in order.
func NewMemStore(stageIDs []string) *MemStore {
	return &MemStore{
		stageIDs: append([]string(nil), stageIDs...),
		projects: make(map[string]*Project),
		now:      time.Now,
	}
}

// Init is a no-op for the in-memory store.
func (m *MemStore) Init(_ context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error { return nil }

// StageIDs returns the recorded stage ids in pipeline order.
func (m *MemStore) StageIDs() []string {
	return append([]string(nil), m.stageIDs...)
}

// CreateProject registers a project, or returns the existing one for the id.
func (m *MemStore) CreateProject(_ context.Context, id, name string) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.projects[id]; ok {
		return deepCopyProject(p), nil
	}

	now := m.now()
	p := &Project{
		ID:        id,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
		Status:    StatusPending,
		Stages:    newStageStatuses(m.stageIDs, now),
	}
	m.projects[id] = p
	m.orderIDs = append(m.orderIDs, id)
	return deepCopyProject(p), nil
}

// GetProject returns a deep copy of the project, or ErrNotFound.
func (m *MemStore) GetProject(_ context.Context, id string) (*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return deepCopyProject(p), nil
}

// ListProjects returns deep copies of all projects in creation order.
func (m *MemStore) ListProjects(_ context.Context) ([]Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Project, 0, len(m.orderIDs))
	for _, id := range m.orderIDs {
		out = append(out, *deepCopyProject(m.projects[id]))
	}
	return out, nil
}

// SetProjectStatus updates the overall status and current stage index.
func (m *MemStore) SetProjectStatus(_ context.Context, id string, status ProjectStatus, currentStage int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.projects[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	p.CurrentStage = currentStage
	p.UpdatedAt = m.now()
	return nil
}

// GetStageStatus returns a copy of one stage's status.
func (m *MemStore) GetStageStatus(_ context.Context, id, stage string) (*StageStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	for i := range p.Stages {
		if p.Stages[i].Stage == stage {
			ss := deepCopyStage(&p.Stages[i])
			return &ss, nil
		}
	}
	return nil, &UnknownStageError{Stage: stage}
}

// MarkStageCompleted records a stage completion with its artifact refs.
func (m *MemStore) MarkStageCompleted(_ context.Context, id, stage string, artifacts []artifact.Ref) error {
	return m.updateStage(id, stage, func(ss *StageStatus) {
		ss.Completed = true
		ss.Error = ""
		ss.Artifacts = append([]artifact.Ref(nil), artifacts...)
	})
}

// MarkStageFailed records a stage failure with its cause.
func (m *MemStore) MarkStageFailed(_ context.Context, id, stage, cause string) error {
	return m.updateStage(id, stage, func(ss *StageStatus) {
		ss.Completed = false
		ss.Error = cause
	})
}

// updateStage applies fn to the named stage under the write lock. An unknown
// stage id is a loud UnknownStageError, never a silent no-op: a no-op here is
// indistinguishable from "nothing ran yet" and corrupts resume decisions.
func (m *MemStore) updateStage(id, stage string, fn func(*StageStatus)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.projects[id]
	if !ok {
		return ErrNotFound
	}
	for i := range p.Stages {
		if p.Stages[i].Stage == stage {
			fn(&p.Stages[i])
			p.Stages[i].UpdatedAt = m.now()
			p.UpdatedAt = p.Stages[i].UpdatedAt
			return nil
		}
	}
	return &UnknownStageError{Stage: stage}
}

// deepCopyProject returns a Project copy whose slices are independent of the
// stored value.
func deepCopyProject(src *Project) *Project {
	dst := *src
	dst.Stages = make([]StageStatus, len(src.Stages))
	for i := range src.Stages {
		dst.Stages[i] = deepCopyStage(&src.Stages[i])
	}
	return &dst
}

// deepCopyStage returns a StageStatus copy with an independent artifact slice.
func deepCopyStage(src *StageStatus) StageStatus {
	dst := *src
	if src.Artifacts != nil {
		dst.Artifacts = append([]artifact.Ref(nil), src.Artifacts...)
	}
	return dst
}
