// Package runner coordinates one evaluation run: a batch of questions fanned
// across one worker per pipeline, judged by the matcher, appended to the
// ledger, and checkpointed durably as it goes.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"pipeval/internal/dataset"
	"pipeval/internal/ledger"
	"pipeval/internal/match"
	"pipeval/internal/pipeline"
	"pipeval/internal/spec"
)

// checkpointEvery is the attempt cadence for durable flushes.
const checkpointEvery = 10

// ErrInterrupted reports that the run's context was cancelled before every
// question was dispatched. Recorded attempts are checkpointed and the
// iteration stays open, so the next run resumes where this one stopped.
var ErrInterrupted = errors.New("run interrupted")

// Asker sends one question to one pipeline.
type Asker interface {
	Ask(ctx context.Context, questionText, sessionID, runID string) pipeline.Outcome
}

// LedgerStore persists the ledger. *ledger.Store is the production
// implementation; tests substitute fakes.
type LedgerStore interface {
	Acquire() error
	Release() error
	Load() (*ledger.Ledger, error)
	Save(*ledger.Ledger) error
}

// Dependencies are the swappable collaborators of a run.
type Dependencies struct {
	// Clients maps pipeline name to its client; missing entries are built
	// from the pipeline's endpoint config.
	Clients map[string]Asker
	Store   LedgerStore
	RunID   func() (string, error)
	Now     func() time.Time
}

// Params configures one run.
type Params struct {
	Label     string
	Pipelines []string // subset filter; empty means all configured
	Limit     int      // max questions per pipeline; zero means no cap
	Fresh     bool     // ignore a checkpointed open iteration
	SessionID string

	Verbose       bool
	VerboseWriter io.Writer
	NoColor       bool

	Observer   Observer
	PulseEvery int
	OnPulse    func(Pulse)

	Deps Dependencies
}

// Result is a completed run.
type Result struct {
	Iteration ledger.Iteration
	State     *RunState
	Resumed   bool
}

// Run executes one evaluation iteration. Individual question failures are
// recorded as errored attempts and never fail the run; the returned error is
// reserved for configuration and storage failures.
func Run(ctx context.Context, cfg spec.Config, params Params) (Result, error) {
	plan, err := planRun(cfg, params)
	if err != nil {
		return Result{}, err
	}

	store := params.Deps.Store
	if store == nil {
		store = ledger.NewStore(cfg.Store.LedgerPath)
	}
	if err := store.Acquire(); err != nil {
		return Result{}, err
	}
	defer func() { _ = store.Release() }()

	led, err := store.Load()
	if err != nil {
		return Result{}, err
	}

	now := params.Deps.Now
	if now == nil {
		now = time.Now
	}
	state, resumed, err := resolveState(led, params, now)
	if err != nil {
		return Result{}, err
	}

	coord := &coordinator{
		led:       led,
		store:     store,
		state:     state,
		observer:  params.Observer,
		pulse:     newPulseTracker(params.PulseEvery, params.OnPulse),
		matchOpts: match.Options{F1Threshold: cfg.Match.F1Threshold},
		sessionID: params.SessionID,
		verbose:   params.Verbose,
		vw:        wrapVerboseWriter(len(plan.pipelines), params.VerboseWriter),
		noColor:   params.NoColor,
		now:       now,
	}
	if coord.observer != nil {
		coord.observer.OnRunStart(state.RunID, state.Sequence)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	coord.cancel = cancel

	var wg sync.WaitGroup
	for _, entry := range plan.pipelines {
		client := params.Deps.Clients[entry.config.Name]
		if client == nil {
			client = pipeline.NewClient(pipeline.Config{
				Endpoint:    entry.config.Endpoint,
				Timeout:     time.Duration(cfg.Client.TimeoutSeconds) * time.Second,
				MaxAttempts: cfg.Client.MaxAttempts,
				BackoffBase: time.Duration(cfg.Client.BackoffBaseMS) * time.Millisecond,
				BackoffCap:  time.Duration(cfg.Client.BackoffCapMS) * time.Millisecond,
			})
		}
		wg.Add(1)
		go func(entry plannedPipeline, client Asker) {
			defer wg.Done()
			coord.runWorker(runCtx, entry.config, client, entry.questions)
		}(entry, client)
	}
	wg.Wait()

	if err := coord.fatal(); err != nil {
		return Result{}, err
	}
	if ctx.Err() != nil {
		// Cancelled mid-run: checkpoint what was recorded but do not close
		// the iteration, so undispatched questions stay pending for the
		// next resume.
		if err := store.Save(led); err != nil {
			return Result{}, err
		}
		open, ok := led.OpenIteration()
		if !ok {
			return Result{}, ErrInterrupted
		}
		return Result{Iteration: open, State: state, Resumed: resumed}, ErrInterrupted
	}
	if err := led.FinishIteration(state.Sequence, now()); err != nil {
		return Result{}, err
	}
	if err := store.Save(led); err != nil {
		return Result{}, err
	}

	iterations := led.Iterations()
	iteration := iterations[state.Sequence-1]
	if coord.observer != nil {
		coord.observer.OnRunEnd(iteration)
	}
	return Result{Iteration: iteration, State: state, Resumed: resumed}, nil
}

// plannedPipeline pairs a pipeline config with its question slice.
type plannedPipeline struct {
	config    spec.PipelineConfig
	questions []dataset.Question
}

type runPlan struct {
	pipelines []plannedPipeline
}

// planRun loads the dataset and fails fast on configuration errors: unknown
// pipelines and empty selections abort before any worker starts.
func planRun(cfg spec.Config, params Params) (runPlan, error) {
	questionSpec, err := dataset.LoadSpec(cfg.Dataset)
	if err != nil {
		return runPlan{}, err
	}
	grouped := dataset.ByPipeline(questionSpec)

	configured := map[string]spec.PipelineConfig{}
	for _, pipelineCfg := range cfg.Pipelines {
		configured[pipelineCfg.Name] = pipelineCfg
	}
	for name := range grouped {
		if _, ok := configured[name]; !ok {
			return runPlan{}, fmt.Errorf("dataset targets unknown pipeline %q", name)
		}
	}

	selected := params.Pipelines
	if len(selected) == 0 {
		for _, pipelineCfg := range cfg.Pipelines {
			selected = append(selected, pipelineCfg.Name)
		}
	}

	plan := runPlan{}
	total := 0
	for _, name := range selected {
		pipelineCfg, ok := configured[name]
		if !ok {
			return runPlan{}, fmt.Errorf("unknown pipeline %q", name)
		}
		questions := grouped[name]
		if params.Limit > 0 && len(questions) > params.Limit {
			questions = questions[:params.Limit]
		}
		if len(questions) == 0 {
			continue
		}
		total += len(questions)
		plan.pipelines = append(plan.pipelines, plannedPipeline{config: pipelineCfg, questions: questions})
	}
	if total == 0 {
		return runPlan{}, fmt.Errorf("no questions for selected pipelines")
	}
	return plan, nil
}

// resolveState resumes the open iteration when one exists, unless the caller
// asked for a fresh run, in which case the stale iteration is closed first.
func resolveState(led *ledger.Ledger, params Params, now func() time.Time) (*RunState, bool, error) {
	open, ok := led.OpenIteration()
	if ok && !params.Fresh {
		return ResumeRunState(open), true, nil
	}
	if ok && params.Fresh {
		if err := led.FinishIteration(open.Sequence, now()); err != nil {
			return nil, false, err
		}
	}
	newID := params.Deps.RunID
	if newID == nil {
		newID = NewRunID
	}
	runID, err := newID()
	if err != nil {
		return nil, false, err
	}
	sequence := led.StartIteration(runID, params.Label, now())
	return NewRunState(runID, sequence), false, nil
}
