// Package scheduler accepts build requests, bounds global build concurrency
// with a fixed worker-slot pool, and guarantees at most one active pipeline
// run per project at any time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/dusk-indust/agentforge/internal/pipeline"
	"github.com/dusk-indust/agentforge/internal/store"
)

// State is the scheduler-side lifecycle of a project.
type State string

const (
	StateIdle      State = "idle"
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StatePaused    State = "paused"
)

// SubmitOutcome reports how a build request was handled.
type SubmitOutcome string

const (
	// Accepted means a new pipeline run was queued.
	Accepted SubmitOutcome = "accepted"

	// AlreadyRunning means the project already has a queued or running
	// build; the request was a no-op. Informational, not an error.
	AlreadyRunning SubmitOutcome = "already-running"
)

// ErrShutdown is returned by Submit after Shutdown has been called.
var ErrShutdown = errors.New("scheduler: shut down")

// Runner executes one project's pipeline run. *pipeline.Runner satisfies it.
type Runner interface {
	Run(ctx context.Context, projectID, name string, halt func() pipeline.Halt) (*store.Project, error)
}

// Info is a point-in-time view of one project's scheduler state.
type Info struct {
	State     State
	LastError string
}

// projectState tracks one project between and during runs. The cancel and
// pause flags are cooperative: the pipeline observes them only at stage
// boundaries, so an in-flight artifact transaction always completes.
type projectState struct {
	state      State
	lastError  string
	cancelFlag atomic.Bool
	pauseFlag  atomic.Bool
	done       chan struct{}
}

// Scheduler runs project pipelines on a fixed pool of worker slots.
type Scheduler struct {
	runner Runner
	store  store.Store
	log    *zap.Logger
	slots  *semaphore.Weighted

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu       sync.Mutex
	projects map[string]*projectState
	closed   bool
}

// New creates a Scheduler over the given status store with the given number
// of worker slots.
func New(runner Runner, st store.Store, workers int, log *zap.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, fmt.Errorf("scheduler: runner is required")
	}
	if st == nil {
		return nil, fmt.Errorf("scheduler: status store is required")
	}
	if workers <= 0 {
		return nil, fmt.Errorf("scheduler: worker count must be positive, got %d", workers)
	}
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		runner:   runner,
		store:    st,
		log:      log,
		slots:    semaphore.NewWeighted(int64(workers)),
		baseCtx:  ctx,
		cancel:   cancel,
		projects: make(map[string]*projectState),
	}, nil
}

// Submit queues a build for the project. Idempotent: a project that is
// already queued or running gets AlreadyRunning and no second pipeline run.
// The project record is created before the request is queued, so status
// queries see the project even while it waits for a worker slot.
func (s *Scheduler) Submit(ctx context.Context, projectID, name string) (SubmitOutcome, State, error) {
	if projectID == "" {
		return "", StateIdle, fmt.Errorf("scheduler: project id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", StateIdle, ErrShutdown
	}

	ps, ok := s.projects[projectID]
	if !ok {
		ps = &projectState{state: StateIdle}
		s.projects[projectID] = ps
	}

	if ps.state == StateQueued || ps.state == StateRunning {
		return AlreadyRunning, ps.state, nil
	}

	if _, err := s.store.CreateProject(ctx, projectID, name); err != nil {
		return "", ps.state, fmt.Errorf("scheduler: create project %s: %w", projectID, err)
	}

	ps.state = StateQueued
	ps.lastError = ""
	ps.cancelFlag.Store(false)
	ps.pauseFlag.Store(false)
	ps.done = make(chan struct{})

	s.wg.Add(1)
	go s.run(ps, projectID, name)

	s.log.Info("build queued", zap.String("project", projectID))
	return Accepted, StateQueued, nil
}

// run waits for a worker slot, then drives the pipeline and records the
// terminal scheduler state for this run.
func (s *Scheduler) run(ps *projectState, projectID, name string) {
	defer s.wg.Done()
	defer close(ps.done)

	if err := s.slots.Acquire(s.baseCtx, 1); err != nil {
		// Shutdown while queued.
		s.setState(ps, StateIdle, "")
		return
	}
	defer s.slots.Release(1)

	if ps.cancelFlag.Load() {
		// Canceled before a slot became available; nothing ran.
		s.setState(ps, StateIdle, "")
		return
	}

	s.setState(ps, StateRunning, "")
	s.log.Info("build started", zap.String("project", projectID))

	halt := func() pipeline.Halt {
		switch {
		case ps.cancelFlag.Load():
			return pipeline.HaltCancel
		case ps.pauseFlag.Load():
			return pipeline.HaltPause
		default:
			return pipeline.HaltNone
		}
	}

	_, err := s.runner.Run(s.baseCtx, projectID, name, halt)
	switch {
	case err == nil:
		s.setState(ps, StateCompleted, "")
		s.log.Info("build completed", zap.String("project", projectID))
	case errors.Is(err, pipeline.ErrHalted):
		if ps.pauseFlag.Load() {
			s.setState(ps, StatePaused, "")
			s.log.Info("build paused", zap.String("project", projectID))
		} else {
			s.setState(ps, StateIdle, "")
			s.log.Info("build canceled", zap.String("project", projectID))
		}
	default:
		s.setState(ps, StateFailed, err.Error())
		s.log.Warn("build failed", zap.String("project", projectID), zap.Error(err))
	}
}

func (s *Scheduler) setState(ps *projectState, state State, lastError string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps.state = state
	ps.lastError = lastError
}

// Status returns the project's scheduler state. Projects the scheduler has
// never seen are idle.
func (s *Scheduler) Status(projectID string) Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	ps, ok := s.projects[projectID]
	if !ok {
		return Info{State: StateIdle}
	}
	return Info{State: ps.state, LastError: ps.lastError}
}

// Cancel requests cooperative cancellation of the project's active build.
// The pipeline observes the flag at the next stage boundary; an in-flight
// write-validate-commit transaction is never truncated. Returns false when
// no build is queued or running.
func (s *Scheduler) Cancel(projectID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ps, ok := s.projects[projectID]
	if !ok || (ps.state != StateQueued && ps.state != StateRunning) {
		return false
	}
	ps.cancelFlag.Store(true)
	s.log.Info("cancel requested", zap.String("project", projectID))
	return true
}

// Pause requests a cooperative pause at the next stage boundary. Returns
// false when no build is queued or running.
func (s *Scheduler) Pause(projectID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ps, ok := s.projects[projectID]
	if !ok || (ps.state != StateQueued && ps.state != StateRunning) {
		return false
	}
	ps.pauseFlag.Store(true)
	s.log.Info("pause requested", zap.String("project", projectID))
	return true
}

// Wait blocks until the project's current run finishes, or ctx expires.
// Returns immediately when no run is active.
func (s *Scheduler) Wait(ctx context.Context, projectID string) (Info, error) {
	s.mu.Lock()
	ps, ok := s.projects[projectID]
	var done chan struct{}
	if ok {
		done = ps.done
	}
	s.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return Info{}, ctx.Err()
		}
	}
	return s.Status(projectID), nil
}

// Shutdown stops accepting builds, asks active runs to halt at their next
// stage boundary, and waits for them to drain or for ctx to expire.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, ps := range s.projects {
		ps.cancelFlag.Store(true)
	}
	s.mu.Unlock()

	s.cancel()

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler: shutdown wait: %w", ctx.Err())
	}
}
