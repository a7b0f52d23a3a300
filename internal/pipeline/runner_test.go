package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/agentforge/internal/artifact"
	"github.com/dusk-indust/agentforge/internal/store"
	"github.com/dusk-indust/agentforge/internal/validate"
)

// testStages is a short sequence so runs stay fast; all three produce
// design documents, so one registered validator covers them.
var testStages = []Stage{
	StageRequirementsAnalysis,
	StageArchitectureDesign,
	StageReview,
}

// genResult is one scripted generator answer.
type genResult struct {
	content string
	err     error
}

// scriptedGenerator plays back per-stage answers in order and records what it
// was asked. When a stage's script is exhausted, the last entry repeats.
type scriptedGenerator struct {
	mu      sync.Mutex
	scripts map[Stage][]genResult
	calls   map[Stage]int
	lastReq map[Stage]GenerationRequest
}

func newScriptedGenerator() *scriptedGenerator {
	return &scriptedGenerator{
		scripts: make(map[Stage][]genResult),
		calls:   make(map[Stage]int),
		lastReq: make(map[Stage]GenerationRequest),
	}
}

func (g *scriptedGenerator) script(stage Stage, results ...genResult) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scripts[stage] = append(g.scripts[stage], results...)
}

func (g *scriptedGenerator) callCount(stage Stage) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[stage]
}

func (g *scriptedGenerator) request(stage Stage) GenerationRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastReq[stage]
}

func (g *scriptedGenerator) Generate(_ context.Context, req GenerationRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := g.calls[req.Stage]
	g.calls[req.Stage] = n + 1
	g.lastReq[req.Stage] = req

	script := g.scripts[req.Stage]
	if len(script) == 0 {
		return fmt.Sprintf("generated content for %s", req.Stage), nil
	}
	if n >= len(script) {
		n = len(script) - 1
	}
	return script[n].content, script[n].err
}

// fixture wires a Runner over in-memory collaborators. The test validator
// rejects any content containing the INVALID marker.
type fixture struct {
	store  *store.MemStore
	arts   *artifact.FSStore
	gen    *scriptedGenerator
	runner *Runner
}

func newFixture(t *testing.T, gen *scriptedGenerator) *fixture {
	t.Helper()

	seq, err := NewSequencer(testStages)
	require.NoError(t, err)

	st := store.NewMemStore(seq.StageIDs())
	require.NoError(t, st.Init(context.Background()))

	arts, err := artifact.NewFSStore(t.TempDir())
	require.NoError(t, err)

	reg := validate.NewRegistry()
	reg.Register(artifact.KindDesignDocument, validate.Func(func(content string) validate.Result {
		if strings.Contains(content, "INVALID") {
			return validate.Result{RuleSet: "test/v1", Violations: []string{"contains INVALID marker"}}
		}
		return validate.Result{Valid: true, RuleSet: "test/v1"}
	}))

	runner, err := NewRunner(RunnerConfig{
		Sequencer:  seq,
		Store:      st,
		Artifacts:  arts,
		Validators: reg,
		Generator:  gen,
		Preamble:   func(s Stage) string { return "instructions for " + string(s) },
		GenTimeout: 5 * time.Second,
	})
	require.NoError(t, err)

	return &fixture{store: st, arts: arts, gen: gen, runner: runner}
}

func TestRun_FreshProjectCompletesAllStages(t *testing.T) {
	gen := newScriptedGenerator()
	f := newFixture(t, gen)
	ctx := context.Background()

	proj, err := f.runner.Run(ctx, "p1", "Support Bot", nil)
	require.NoError(t, err)

	assert.Equal(t, store.StatusCompleted, proj.Status)
	require.Len(t, proj.Stages, len(testStages))
	for _, ss := range proj.Stages {
		assert.True(t, ss.Completed, "stage %s not completed", ss.Stage)
		require.Len(t, ss.Artifacts, 1)
	}

	// Each stage generated exactly once, and its artifact is committed.
	for _, stage := range testStages {
		assert.Equal(t, 1, gen.callCount(stage))
		content, err := f.arts.Read("p1", string(stage), stage.ArtifactName())
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("generated content for %s", stage), content)
	}

	// The last stage saw the committed output of both predecessors, in order.
	req := gen.request(StageReview)
	require.Len(t, req.Inputs, 2)
	assert.Equal(t, StageRequirementsAnalysis, req.Inputs[0].Stage)
	assert.Equal(t, StageArchitectureDesign, req.Inputs[1].Stage)
	assert.Equal(t, "instructions for review", req.Preamble)
	assert.Equal(t, "Support Bot", req.ProjectName)
}

func TestRun_ValidationRejectionFailsStageOnly(t *testing.T) {
	gen := newScriptedGenerator()
	gen.script(StageArchitectureDesign,
		genResult{content: "INVALID draft"},
		genResult{content: "revised architecture"},
	)
	f := newFixture(t, gen)
	ctx := context.Background()

	proj, err := f.runner.Run(ctx, "p1", "Support Bot", nil)

	var vErr *ValidationFailedError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, StageArchitectureDesign, vErr.Stage)

	require.NotNil(t, proj)
	assert.Equal(t, store.StatusFailed, proj.Status)

	// The first stage keeps its completion and artifact; the rejected
	// candidate is nowhere on disk.
	assert.True(t, proj.Stages[0].Completed)
	assert.True(t, f.arts.Exists("p1", string(StageRequirementsAnalysis), StageRequirementsAnalysis.ArtifactName()))
	assert.False(t, proj.Stages[1].Completed)
	assert.Contains(t, proj.Stages[1].Error, "validation failed")
	assert.False(t, f.arts.Exists("p1", string(StageArchitectureDesign), StageArchitectureDesign.ArtifactName()))

	// A new build request resumes at the failed stage, regenerates it, and
	// never re-runs the completed predecessor.
	proj, err = f.runner.Run(ctx, "p1", "Support Bot", nil)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, proj.Status)
	assert.Equal(t, 1, gen.callCount(StageRequirementsAnalysis))
	assert.Equal(t, 2, gen.callCount(StageArchitectureDesign))

	content, err := f.arts.Read("p1", string(StageArchitectureDesign), StageArchitectureDesign.ArtifactName())
	require.NoError(t, err)
	assert.Equal(t, "revised architecture", content)
}

func TestRun_GenerationFailureExhaustsRetries(t *testing.T) {
	gen := newScriptedGenerator()
	gen.script(StageRequirementsAnalysis, genResult{err: errors.New("upstream unavailable")})
	f := newFixture(t, gen)

	proj, err := f.runner.Run(context.Background(), "p1", "Support Bot", nil)

	var tErr *GenerationTimeoutError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, StageRequirementsAnalysis, tErr.Stage)
	assert.Equal(t, 3, tErr.Attempts)
	assert.Equal(t, 3, gen.callCount(StageRequirementsAnalysis))

	require.NotNil(t, proj)
	assert.Equal(t, store.StatusFailed, proj.Status)
	assert.False(t, proj.Stages[0].Completed)
	assert.NotEmpty(t, proj.Stages[0].Error)
	assert.False(t, f.arts.Exists("p1", string(StageRequirementsAnalysis), StageRequirementsAnalysis.ArtifactName()))

	// Later stages were never attempted.
	assert.Equal(t, 0, gen.callCount(StageArchitectureDesign))
}

func TestRun_GenerationRejectionIsPermanent(t *testing.T) {
	gen := newScriptedGenerator()
	gen.script(StageRequirementsAnalysis, genResult{
		err: &GenerationRejectedError{Stage: StageRequirementsAnalysis, Reason: "request refused"},
	})
	f := newFixture(t, gen)

	proj, err := f.runner.Run(context.Background(), "p1", "Support Bot", nil)

	var rej *GenerationRejectedError
	require.ErrorAs(t, err, &rej)

	// A refusal is not retried within the run.
	assert.Equal(t, 1, gen.callCount(StageRequirementsAnalysis))
	assert.Equal(t, store.StatusFailed, proj.Status)
}

func TestRun_CompletedProjectIsIdempotent(t *testing.T) {
	gen := newScriptedGenerator()
	f := newFixture(t, gen)
	ctx := context.Background()

	_, err := f.runner.Run(ctx, "p1", "Support Bot", nil)
	require.NoError(t, err)

	proj, err := f.runner.Run(ctx, "p1", "Support Bot", nil)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, proj.Status)

	// No stage was regenerated.
	for _, stage := range testStages {
		assert.Equal(t, 1, gen.callCount(stage))
	}
}

func TestRun_PauseBeforeFirstStage(t *testing.T) {
	gen := newScriptedGenerator()
	f := newFixture(t, gen)

	proj, err := f.runner.Run(context.Background(), "p1", "Support Bot", func() Halt { return HaltPause })

	require.ErrorIs(t, err, ErrHalted)
	assert.Equal(t, store.StatusPaused, proj.Status)
	assert.Equal(t, 0, gen.callCount(StageRequirementsAnalysis))
}

func TestRun_PauseBetweenStages(t *testing.T) {
	gen := newScriptedGenerator()
	f := newFixture(t, gen)

	// Allow exactly one stage boundary to pass, then request pause.
	checks := 0
	halt := func() Halt {
		checks++
		if checks > 1 {
			return HaltPause
		}
		return HaltNone
	}

	proj, err := f.runner.Run(context.Background(), "p1", "Support Bot", halt)

	require.ErrorIs(t, err, ErrHalted)
	assert.Equal(t, store.StatusPaused, proj.Status)
	assert.True(t, proj.Stages[0].Completed)
	assert.Equal(t, 1, gen.callCount(StageRequirementsAnalysis))
	assert.Equal(t, 0, gen.callCount(StageArchitectureDesign))

	// Resuming picks up at the second stage.
	proj, err = f.runner.Run(context.Background(), "p1", "Support Bot", nil)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, proj.Status)
	assert.Equal(t, 1, gen.callCount(StageRequirementsAnalysis))
	assert.Equal(t, 1, gen.callCount(StageArchitectureDesign))
}

func TestRun_CancelLeavesProjectPending(t *testing.T) {
	gen := newScriptedGenerator()
	f := newFixture(t, gen)

	proj, err := f.runner.Run(context.Background(), "p1", "Support Bot", func() Halt { return HaltCancel })

	require.ErrorIs(t, err, ErrHalted)
	assert.Equal(t, store.StatusPending, proj.Status)
}

func TestRun_CanceledContextHaltsAtBoundary(t *testing.T) {
	gen := newScriptedGenerator()
	f := newFixture(t, gen)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	proj, err := f.runner.Run(ctx, "p1", "Support Bot", nil)

	require.ErrorIs(t, err, ErrHalted)
	assert.Equal(t, store.StatusPending, proj.Status)
	assert.Equal(t, 0, gen.callCount(StageRequirementsAnalysis))
}

func TestNewRunner_RejectsStageSetMismatch(t *testing.T) {
	seq, err := NewSequencer(testStages)
	require.NoError(t, err)

	// A store configured with a different stage set must be refused at
	// wiring time, before any build can run against it.
	st := store.NewMemStore([]string{"requirements-analysis", "deployment"})
	arts, err := artifact.NewFSStore(t.TempDir())
	require.NoError(t, err)

	_, err = NewRunner(RunnerConfig{
		Sequencer:  seq,
		Store:      st,
		Artifacts:  arts,
		Validators: validate.NewRegistry(),
		Generator:  newScriptedGenerator(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disagree")
}

func TestNewRunner_RejectsStageWithoutArtifactKind(t *testing.T) {
	seq, err := NewSequencer([]Stage{StageRequirementsAnalysis, "deployment"})
	require.NoError(t, err)

	st := store.NewMemStore(seq.StageIDs())
	arts, err := artifact.NewFSStore(t.TempDir())
	require.NoError(t, err)

	_, err = NewRunner(RunnerConfig{
		Sequencer:  seq,
		Store:      st,
		Artifacts:  arts,
		Validators: validate.NewRegistry(),
		Generator:  newScriptedGenerator(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "artifact kind")
}

func TestNewRunner_RequiresCollaborators(t *testing.T) {
	seq, err := NewSequencer(testStages)
	require.NoError(t, err)
	st := store.NewMemStore(seq.StageIDs())
	arts, err := artifact.NewFSStore(t.TempDir())
	require.NoError(t, err)

	base := RunnerConfig{
		Sequencer:  seq,
		Store:      st,
		Artifacts:  arts,
		Validators: validate.NewRegistry(),
		Generator:  newScriptedGenerator(),
	}

	tests := []struct {
		name   string
		mutate func(*RunnerConfig)
	}{
		{"missing store", func(c *RunnerConfig) { c.Store = nil }},
		{"missing artifacts", func(c *RunnerConfig) { c.Artifacts = nil }},
		{"missing validators", func(c *RunnerConfig) { c.Validators = nil }},
		{"missing generator", func(c *RunnerConfig) { c.Generator = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			_, err := NewRunner(cfg)
			assert.Error(t, err)
		})
	}
}
