package runner

import (
	"context"
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

// coordinator is the shared state of one run's worker pool. Pipelines run
// concurrently; questions within a pipeline run strictly in order.
type coordinator struct {
	led       *ledger.Ledger
	store     LedgerStore
	state     *RunState
	observer  Observer
	pulse     *pulseTracker
	matchOpts match.Options
	sessionID string

	verbose bool
	vw      io.Writer
	noColor bool
	now     func() time.Time

	cancel context.CancelFunc

	// progressMu guards the pulse tracker and the checkpoint counter.
	progressMu sync.Mutex
	sinceFlush int

	fatalMu  sync.Mutex
	fatalErr error
}

// runWorker drains one pipeline's questions sequentially. A cancelled context
// stops the loop between questions; everything not yet attempted stays in the
// dataset for the next resume.
func (c *coordinator) runWorker(ctx context.Context, pipelineCfg spec.PipelineConfig, client Asker, questions []dataset.Question) {
	name := pipelineCfg.Name
	for _, question := range questions {
		if ctx.Err() != nil {
			return
		}
		if c.state.AlreadyTested(question.ID) {
			c.emit(AttemptEvent{Pipeline: name, QuestionID: question.ID, Type: AttemptSkipped, EmittedAt: c.now()})
			continue
		}

		c.emit(AttemptEvent{Pipeline: name, QuestionID: question.ID, Type: AttemptAsking, EmittedAt: c.now()})
		logVerbose(c.verbose, c.vw, c.noColor, stylePipeline, "%s asking %s", name, question.ID)

		outcome := client.Ask(ctx, question.Text, c.sessionID, c.state.RunID)
		attempt := c.buildAttempt(name, question, outcome)
		if err := c.recordAttempt(attempt); err != nil {
			// Storage failure is fatal for the whole pool; the shared
			// context is already cancelled.
			return
		}
		c.emitJudged(attempt)
	}
	if err := c.flushPending(); err != nil {
		return
	}
	if c.observer != nil {
		c.observer.OnPipelineDone(name, c.pipelineSummary(name))
	}
}

// buildAttempt turns a pipeline outcome into a ledger attempt. Transport and
// extraction failures are recorded as errored attempts; only successful
// answers are judged.
func (c *coordinator) buildAttempt(pipelineName string, question dataset.Question, outcome pipeline.Outcome) ledger.Attempt {
	attempt := ledger.Attempt{
		QuestionID: question.ID,
		Pipeline:   pipelineName,
		LatencyMS:  outcome.LatencyMS,
		Timestamp:  c.now(),
	}
	if outcome.Err != "" {
		attempt.Error = outcome.Err
		attempt.ErrorType = string(outcome.ErrType)
		return attempt
	}
	attempt.ProducedAnswer = outcome.Answer
	result := evaluateSafe(outcome.Answer, question.ExpectedAnswer, c.matchOpts)
	attempt.Correct = result.Correct
	attempt.Score = result.Score
	attempt.MatchMethod = string(result.Method)
	return attempt
}

// evaluateSafe judges an answer, converting a matcher panic into a definite
// incorrect verdict so one pathological answer cannot take down the pool.
func evaluateSafe(produced, expected string, opts match.Options) (result match.Result) {
	defer func() {
		if recover() != nil {
			result = match.Result{Correct: false, Score: 0, Method: match.MethodNoAnswer}
		}
	}()
	return match.Evaluate(produced, expected, opts)
}

// recordAttempt appends to the ledger, advances progress, and checkpoints
// every checkpointEvery attempts.
func (c *coordinator) recordAttempt(attempt ledger.Attempt) error {
	if err := c.led.Append(c.state.Sequence, attempt); err != nil {
		c.fail(err)
		return err
	}
	c.state.MarkTested(attempt.QuestionID)

	c.progressMu.Lock()
	c.pulse.record(attempt)
	c.sinceFlush++
	flush := c.sinceFlush >= checkpointEvery
	if flush {
		c.sinceFlush = 0
	}
	c.progressMu.Unlock()

	if flush {
		if err := c.store.Save(c.led); err != nil {
			c.fail(fmt.Errorf("checkpoint: %w", err))
			return err
		}
	}
	return nil
}

// flushPending checkpoints any attempts recorded since the last flush.
func (c *coordinator) flushPending() error {
	c.progressMu.Lock()
	pending := c.sinceFlush
	c.sinceFlush = 0
	c.progressMu.Unlock()
	if pending == 0 {
		return nil
	}
	if err := c.store.Save(c.led); err != nil {
		c.fail(fmt.Errorf("checkpoint: %w", err))
		return err
	}
	return nil
}

// pipelineSummary summarizes the current iteration's attempts for one
// pipeline.
func (c *coordinator) pipelineSummary(pipelineName string) ledger.PipelineSummary {
	open, ok := c.led.OpenIteration()
	if !ok {
		return ledger.PipelineSummary{}
	}
	return ledger.Summarize(open.Attempts)[pipelineName]
}

// fail records the first fatal error and cancels the pool.
func (c *coordinator) fail(err error) {
	c.fatalMu.Lock()
	if c.fatalErr == nil {
		c.fatalErr = err
	}
	c.fatalMu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *coordinator) fatal() error {
	c.fatalMu.Lock()
	defer c.fatalMu.Unlock()
	return c.fatalErr
}

func (c *coordinator) emit(event AttemptEvent) {
	if c.observer != nil {
		c.observer.OnAttemptEvent(event)
	}
}

func (c *coordinator) emitJudged(attempt ledger.Attempt) {
	event := AttemptEvent{
		Pipeline:   attempt.Pipeline,
		QuestionID: attempt.QuestionID,
		Method:     attempt.MatchMethod,
		Score:      attempt.Score,
		LatencyMS:  attempt.LatencyMS,
		Error:      attempt.Error,
		EmittedAt:  c.now(),
	}
	switch {
	case attempt.Errored():
		event.Type = AttemptErrored
		logVerbose(c.verbose, c.vw, c.noColor, styleError, "%s %s errored: %s", attempt.Pipeline, attempt.QuestionID, attempt.Error)
	case attempt.Correct:
		event.Type = AttemptCorrect
		logVerbose(c.verbose, c.vw, c.noColor, styleCorrect, "%s %s correct (%s, %dms)", attempt.Pipeline, attempt.QuestionID, attempt.MatchMethod, attempt.LatencyMS)
	default:
		event.Type = AttemptIncorrect
		logVerbose(c.verbose, c.vw, c.noColor, styleDefault, "%s %s incorrect (%s, score %.2f)", attempt.Pipeline, attempt.QuestionID, attempt.MatchMethod, attempt.Score)
	}
	c.emit(event)
}
