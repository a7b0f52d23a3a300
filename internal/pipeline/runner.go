package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/dusk-indust/agentforge/internal/artifact"
	"github.com/dusk-indust/agentforge/internal/prompts"
	"github.com/dusk-indust/agentforge/internal/store"
	"github.com/dusk-indust/agentforge/internal/validate"
)

// Halt is the cooperative stop signal checked between stages.
type Halt int

const (
	HaltNone Halt = iota
	HaltCancel
	HaltPause
)

// RunnerConfig wires a Runner's collaborators. Store, Artifacts, Validators,
// and Generator are required; everything else has a default.
type RunnerConfig struct {
	Sequencer  *Sequencer
	Store      store.Store
	Artifacts  *artifact.FSStore
	Validators *validate.Registry
	Generator  ContentGenerator
	Logger     *zap.Logger
	Reporter   *Reporter

	// Preamble supplies the per-stage prompt preamble. Defaults to the
	// embedded templates.
	Preamble func(Stage) string

	// GenTimeout bounds each individual generation attempt. Default 60s.
	GenTimeout time.Duration

	// MaxAttempts bounds generation attempts per stage per run. Default 3.
	MaxAttempts int
}

// Runner drives one project from its persisted resume point to the terminal
// stage, or to a recorded failure. A Runner is safe for concurrent use
// across different projects; the scheduler guarantees at most one active run
// per project.
type Runner struct {
	seq         *Sequencer
	store       store.Store
	artifacts   *artifact.FSStore
	validators  *validate.Registry
	gen         ContentGenerator
	log         *zap.Logger
	reporter    *Reporter
	preamble    func(Stage) string
	genTimeout  time.Duration
	maxAttempts int
}

// NewRunner validates the configuration and asserts, before any build can
// start, that the status store records exactly the sequenced stage ids. A
// sequence/status mismatch is rejected here rather than discovered mid-run
// as a silently skipped stage.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("pipeline: status store is required")
	}
	if cfg.Artifacts == nil {
		return nil, fmt.Errorf("pipeline: artifact store is required")
	}
	if cfg.Validators == nil {
		return nil, fmt.Errorf("pipeline: validator registry is required")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("pipeline: content generator is required")
	}

	seq := cfg.Sequencer
	if seq == nil {
		seq = DefaultSequencer()
	}
	if err := store.CheckStageConsistency(cfg.Store, seq.StageIDs()); err != nil {
		return nil, fmt.Errorf("pipeline: stage sequence and status store disagree: %w", err)
	}
	for _, s := range seq.Stages() {
		if _, ok := stageKinds[s]; !ok {
			return nil, fmt.Errorf("pipeline: stage %q has no registered artifact kind", s)
		}
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	preamble := cfg.Preamble
	if preamble == nil {
		preamble = func(s Stage) string { return prompts.Preamble(string(s)) }
	}
	genTimeout := cfg.GenTimeout
	if genTimeout <= 0 {
		genTimeout = 60 * time.Second
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	return &Runner{
		seq:         seq,
		store:       cfg.Store,
		artifacts:   cfg.Artifacts,
		validators:  cfg.Validators,
		gen:         cfg.Generator,
		log:         log,
		reporter:    cfg.Reporter,
		preamble:    preamble,
		genTimeout:  genTimeout,
		maxAttempts: maxAttempts,
	}, nil
}

// Sequencer returns the stage sequencer the runner was built with.
func (r *Runner) Sequencer() *Sequencer {
	return r.seq
}

// Run resumes the project from its first not-completed stage and advances
// one stage at a time. halt is consulted only at stage boundaries, so a
// write-validate-commit transaction always runs to completion; it may be
// nil when no cooperative stop is needed.
//
// Failure is forward-only: a failed or halted stage never touches the
// status of previously completed stages, and the project stays resumable.
func (r *Runner) Run(ctx context.Context, projectID, name string, halt func() Halt) (*store.Project, error) {
	if halt == nil {
		halt = func() Halt { return HaltNone }
	}

	proj, err := r.store.CreateProject(ctx, projectID, name)
	if err != nil {
		return nil, err
	}

	resume, err := r.resumeIndex(proj)
	if err != nil {
		return nil, err
	}

	stages := r.seq.Stages()
	if resume == len(stages) {
		// Idempotent restart: everything already completed.
		if proj.Status != store.StatusCompleted {
			if err := r.store.SetProjectStatus(ctx, projectID, store.StatusCompleted, len(stages)-1); err != nil {
				return nil, err
			}
		}
		return r.store.GetProject(ctx, projectID)
	}

	if err := r.store.SetProjectStatus(ctx, projectID, store.StatusBuilding, resume); err != nil {
		return nil, err
	}

	r.log.Info("pipeline run starting",
		zap.String("project", projectID),
		zap.String("resume_stage", string(stages[resume])),
	)

	for i := resume; i < len(stages); i++ {
		if err := r.checkHalt(ctx, projectID, i, halt); err != nil {
			proj, _ := r.store.GetProject(ctx, projectID)
			return proj, err
		}

		if err := r.runStage(ctx, projectID, name, stages, i); err != nil {
			proj, _ := r.store.GetProject(ctx, projectID)
			return proj, err
		}
	}

	if err := r.store.SetProjectStatus(ctx, projectID, store.StatusCompleted, len(stages)-1); err != nil {
		return nil, err
	}
	r.log.Info("pipeline run completed", zap.String("project", projectID))
	return r.store.GetProject(ctx, projectID)
}

// checkHalt handles the cooperative stop points between stages. Pause
// persists the paused status; cancel leaves the project pending so a new
// build request picks it up cleanly.
func (r *Runner) checkHalt(ctx context.Context, projectID string, stageIdx int, halt func() Halt) error {
	h := halt()
	if h == HaltNone && ctx.Err() != nil {
		h = HaltCancel
	}

	switch h {
	case HaltNone:
		return nil
	case HaltPause:
		if err := r.store.SetProjectStatus(ctx, projectID, store.StatusPaused, stageIdx); err != nil {
			return err
		}
	default:
		if err := r.store.SetProjectStatus(context.WithoutCancel(ctx), projectID, store.StatusPending, stageIdx); err != nil {
			return err
		}
	}
	r.log.Info("pipeline run halted",
		zap.String("project", projectID),
		zap.Int("stage_index", stageIdx),
		zap.Bool("paused", h == HaltPause),
	)
	return ErrHalted
}

// runStage executes one stage: generate with bounded retry, then the
// write-validate-commit transaction, then the status update.
func (r *Runner) runStage(ctx context.Context, projectID, name string, stages []Stage, i int) error {
	stage := stages[i]
	r.emit(Event{ProjectID: projectID, Stage: stage, Status: EventWorking})

	inputs, err := r.stageInputs(ctx, projectID, stages[:i])
	if err != nil {
		return r.failStage(ctx, projectID, stage, i, err)
	}

	req := GenerationRequest{
		ProjectID:   projectID,
		ProjectName: name,
		Stage:       stage,
		Preamble:    r.preamble(stage),
		Inputs:      inputs,
	}

	content, err := r.generate(ctx, req)
	if err != nil {
		if errors.Is(err, ErrHalted) {
			// Canceled mid-generation (for instance by shutdown): the stage
			// never produced a candidate, so it stays pending rather than
			// being recorded as failed.
			_ = r.store.SetProjectStatus(context.WithoutCancel(ctx), projectID, store.StatusPending, i)
			return err
		}
		return r.failStage(ctx, projectID, stage, i, err)
	}

	ref, err := r.commit(projectID, stage, content)
	if err != nil {
		return r.failStage(ctx, projectID, stage, i, err)
	}

	if err := r.store.MarkStageCompleted(ctx, projectID, string(stage), []artifact.Ref{ref}); err != nil {
		// An unknown stage here means the configuration drifted after the
		// startup check; surface it, never skip.
		return r.failProject(ctx, projectID, i, err)
	}

	if i < len(stages)-1 {
		if err := r.store.SetProjectStatus(ctx, projectID, store.StatusBuilding, i+1); err != nil {
			return err
		}
	}

	r.emit(Event{ProjectID: projectID, Stage: stage, Status: EventCompleted})
	r.log.Info("stage completed",
		zap.String("project", projectID),
		zap.String("stage", string(stage)),
		zap.String("artifact", ref.Path),
	)
	return nil
}

// commit runs the write-validate-commit transaction for one candidate.
// Content is written to staging, validated, and then either promoted to its
// permanent path or discarded. Invalid content is never observable outside
// this method.
func (r *Runner) commit(projectID string, stage Stage, content string) (artifact.Ref, error) {
	a := artifact.Artifact{
		ProjectID: projectID,
		Stage:     string(stage),
		Name:      stage.ArtifactName(),
		Kind:      stage.ArtifactKind(),
		Content:   content,
	}

	staged, err := r.artifacts.Stage(a)
	if err != nil {
		return artifact.Ref{}, err
	}

	result, err := r.validators.Validate(a.Kind, content)
	if err != nil {
		// No validator for the kind: configuration error, and the staged
		// candidate must still not survive.
		if derr := staged.Discard(); derr != nil {
			r.log.Warn("discard after validator lookup failure", zap.Error(derr))
		}
		return artifact.Ref{}, err
	}

	if !result.Valid {
		if derr := staged.Discard(); derr != nil {
			r.log.Warn("discard invalid artifact", zap.Error(derr))
		}
		return artifact.Ref{}, &ValidationFailedError{
			Stage:    stage,
			Artifact: a.Name,
			Result:   result,
		}
	}

	return staged.Promote()
}

// failStage records a stage failure and marks the project failed. Completed
// stages are left untouched.
func (r *Runner) failStage(ctx context.Context, projectID string, stage Stage, stageIdx int, cause error) error {
	r.emit(Event{ProjectID: projectID, Stage: stage, Status: EventFailed, Message: cause.Error()})
	r.log.Warn("stage failed",
		zap.String("project", projectID),
		zap.String("stage", string(stage)),
		zap.Error(cause),
	)

	msg := cause.Error()
	var vErr *ValidationFailedError
	if errors.As(cause, &vErr) {
		// Record the violation list itself; it is what the next attempt
		// needs to see.
		msg = fmt.Sprintf("validation failed (%s): %s",
			vErr.Result.RuleSet, strings.Join(vErr.Result.Violations, "; "))
	}

	if err := r.store.MarkStageFailed(ctx, projectID, string(stage), msg); err != nil {
		return r.failProject(ctx, projectID, stageIdx, err)
	}
	if err := r.store.SetProjectStatus(ctx, projectID, store.StatusFailed, stageIdx); err != nil {
		return err
	}
	return cause
}

// failProject marks the project failed without touching stage records, for
// errors that have no stage status slot to land in.
func (r *Runner) failProject(ctx context.Context, projectID string, stageIdx int, cause error) error {
	if err := r.store.SetProjectStatus(ctx, projectID, store.StatusFailed, stageIdx); err != nil {
		r.log.Error("record project failure", zap.String("project", projectID), zap.Error(err))
	}
	return cause
}

// generate invokes the content generator with a per-attempt deadline and
// exponential backoff between attempts. Explicit refusals are permanent;
// everything else is retried up to the attempt bound.
func (r *Runner) generate(ctx context.Context, req GenerationRequest) (string, error) {
	var content string
	attempts := 0

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 0

	op := func() error {
		attempts++
		actx, cancel := context.WithTimeout(ctx, r.genTimeout)
		defer cancel()

		c, err := r.gen.Generate(actx, req)
		if err != nil {
			var rej *GenerationRejectedError
			if errors.As(err, &rej) {
				return backoff.Permanent(err)
			}
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				err = fmt.Errorf("attempt deadline exceeded: %w", err)
			}
			r.log.Debug("generation attempt failed",
				zap.String("project", req.ProjectID),
				zap.String("stage", string(req.Stage)),
				zap.Int("attempt", attempts),
				zap.Error(err),
			)
			return err
		}
		content = c
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(r.maxAttempts-1)), ctx))
	if err != nil {
		var rej *GenerationRejectedError
		if errors.As(err, &rej) {
			return "", rej
		}
		if ctx.Err() != nil {
			return "", ErrHalted
		}
		return "", &GenerationTimeoutError{Stage: req.Stage, Attempts: attempts, Err: err}
	}
	return content, nil
}

// resumeIndex returns the index of the first not-completed stage, or
// len(stages) when everything is done. A project whose status list is
// missing a sequenced stage is corrupt; that surfaces as an
// UnknownStageError instead of a silent skip.
func (r *Runner) resumeIndex(proj *store.Project) (int, error) {
	byStage := make(map[string]*store.StageStatus, len(proj.Stages))
	for i := range proj.Stages {
		byStage[proj.Stages[i].Stage] = &proj.Stages[i]
	}

	stages := r.seq.Stages()
	resume := len(stages)
	for i, stage := range stages {
		ss, ok := byStage[string(stage)]
		if !ok {
			return 0, &UnknownStageError{Stage: stage}
		}
		if !ss.Completed && i < resume {
			resume = i
		}
	}
	return resume, nil
}

// stageInputs reads the committed artifacts of the given completed stages.
func (r *Runner) stageInputs(ctx context.Context, projectID string, completed []Stage) ([]StageInput, error) {
	var inputs []StageInput
	for _, stage := range completed {
		ss, err := r.store.GetStageStatus(ctx, projectID, string(stage))
		if err != nil {
			return nil, err
		}
		for _, ref := range ss.Artifacts {
			content, err := r.artifacts.Read(projectID, string(stage), ref.Name)
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, StageInput{
				Stage:   stage,
				Name:    ref.Name,
				Content: content,
			})
		}
	}
	return inputs, nil
}

// emit sends a progress event when a reporter is attached.
func (r *Runner) emit(ev Event) {
	if r.reporter != nil {
		r.reporter.Emit(ev)
	}
}
