package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dusk-indust/agentforge/internal/artifact"
	"github.com/dusk-indust/agentforge/internal/config"
	"github.com/dusk-indust/agentforge/internal/genclient"
	"github.com/dusk-indust/agentforge/internal/pipeline"
	"github.com/dusk-indust/agentforge/internal/scheduler"
	"github.com/dusk-indust/agentforge/internal/store"
	"github.com/dusk-indust/agentforge/internal/validate"
)

// runtime bundles the wired orchestration core for one process.
type runtime struct {
	cfg      *config.Config
	log      *zap.Logger
	store    store.Store
	reporter *pipeline.Reporter
	sched    *scheduler.Scheduler
}

// newRuntime wires the status store, artifact store, validator registry,
// generation client, pipeline runner, and scheduler. The stage-consistency
// check runs inside pipeline.NewRunner, so a misconfigured store is rejected
// here, before any build is accepted.
func newRuntime(ctx context.Context, flags cliFlags) (*runtime, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	seq := pipeline.DefaultSequencer()
	st, err := openStore(ctx, cfg, seq.StageIDs())
	if err != nil {
		return nil, err
	}

	arts, err := artifact.NewFSStore(cfg.ArtifactDir())
	if err != nil {
		st.Close()
		return nil, err
	}

	gen, err := genclient.New(cfg.GeneratorEndpoint,
		genclient.WithTimeout(cfg.GeneratorTimeout()))
	if err != nil {
		st.Close()
		return nil, err
	}

	validators := validate.NewDefaultRegistry()
	log.Debug("validator registry initialized", zap.Any("kinds", validators.Kinds()))

	reporter := pipeline.NewReporter()
	runner, err := pipeline.NewRunner(pipeline.RunnerConfig{
		Sequencer:   seq,
		Store:       st,
		Artifacts:   arts,
		Validators:  validators,
		Generator:   gen,
		Logger:      log,
		Reporter:    reporter,
		GenTimeout:  cfg.GeneratorTimeout(),
		MaxAttempts: cfg.MaxAttempts,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	sched, err := scheduler.New(runner, st, cfg.Workers, log)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &runtime{
		cfg:      cfg,
		log:      log,
		store:    st,
		reporter: reporter,
		sched:    sched,
	}, nil
}

// close shuts the scheduler down and releases the store.
func (rt *runtime) close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := rt.sched.Shutdown(shutdownCtx); err != nil {
		rt.log.Warn("scheduler shutdown", zap.Error(err))
	}
	rt.reporter.Close()
	rt.store.Close()
	rt.log.Sync()
}

// runBuild submits one project build and blocks until it finishes.
func runBuild(flags cliFlags, projectID string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, flags)
	if err != nil {
		return err
	}
	defer rt.close()

	go func() {
		for ev := range rt.reporter.Subscribe() {
			fmt.Println(pipeline.FormatEvent(ev))
		}
	}()

	outcome, _, err := rt.sched.Submit(ctx, projectID, flags.Name)
	if err != nil {
		return err
	}
	if outcome == scheduler.AlreadyRunning {
		fmt.Printf("build for %s already in progress\n", projectID)
		return nil
	}

	fmt.Printf("building %s\n", projectID)
	info, err := rt.sched.Wait(ctx, projectID)
	if err != nil {
		return err
	}

	proj, perr := rt.store.GetProject(context.WithoutCancel(ctx), projectID)
	if perr == nil {
		fmt.Println()
		printStageTable(proj)
	}

	switch info.State {
	case scheduler.StateFailed:
		return fmt.Errorf("build failed: %s", info.LastError)
	case scheduler.StatePaused:
		fmt.Println("build paused; resume with another 'agentforge build'")
	}
	return nil
}

// printStageTable prints the per-stage status list for one project.
func printStageTable(p *store.Project) {
	fmt.Printf("Project: %s (%s)\n", p.ID, p.Status)
	for i, ss := range p.Stages {
		marker := "  "
		label := "pending"
		switch {
		case ss.Completed:
			label = "complete"
		case ss.Error != "":
			label = "failed"
		}
		if i == p.CurrentStage && p.Status != store.StatusCompleted {
			marker = "->"
		}
		fmt.Printf("  %s %-24s [%s]\n", marker, ss.Stage, label)
		if ss.Error != "" {
			fmt.Printf("       %s\n", ss.Error)
		}
	}
}
