package runner

import (
	"time"

	"pipeval/internal/ledger"
)

// AttemptEventType identifies an attempt status update for observers.
type AttemptEventType string

const (
	// AttemptAsking marks a pipeline call in flight.
	AttemptAsking AttemptEventType = "asking"
	// AttemptCorrect marks a judged-correct answer.
	AttemptCorrect AttemptEventType = "correct"
	// AttemptIncorrect marks a judged-incorrect answer.
	AttemptIncorrect AttemptEventType = "incorrect"
	// AttemptErrored marks a failure before judging.
	AttemptErrored AttemptEventType = "errored"
	// AttemptSkipped marks a question filtered out by resume.
	AttemptSkipped AttemptEventType = "skipped"
)

// AttemptEvent carries one status update for one question.
type AttemptEvent struct {
	Pipeline   string
	QuestionID string
	Type       AttemptEventType
	Method     string
	Score      float64
	LatencyMS  int64
	Error      string
	EmittedAt  time.Time
}

// Observer receives run lifecycle events for logging or collapse detection.
type Observer interface {
	// OnRunStart signals the start of an iteration.
	OnRunStart(runID string, sequence int)
	// OnAttemptEvent delivers one attempt status update.
	OnAttemptEvent(event AttemptEvent)
	// OnPipelineDone signals one pipeline worker draining.
	OnPipelineDone(pipeline string, summary ledger.PipelineSummary)
	// OnRunEnd signals iteration completion.
	OnRunEnd(iteration ledger.Iteration)
}

// Pulse is a periodic snapshot for early quality-collapse detection.
type Pulse struct {
	Completed int
	Correct   int
	Errored   int
}

// Accuracy is the running share of judged-correct attempts.
func (p Pulse) Accuracy() float64 {
	if p.Completed == 0 {
		return 0
	}
	return float64(p.Correct) / float64(p.Completed)
}

// pulseTracker fires the pulse callback every N completed attempts.
type pulseTracker struct {
	every int
	fire  func(Pulse)

	completed int
	correct   int
	errored   int
}

func newPulseTracker(every int, fire func(Pulse)) *pulseTracker {
	if fire == nil || every <= 0 {
		return nil
	}
	return &pulseTracker{every: every, fire: fire}
}

// record must be called under the coordinator's progress lock.
func (p *pulseTracker) record(attempt ledger.Attempt) {
	if p == nil {
		return
	}
	p.completed++
	switch {
	case attempt.Errored():
		p.errored++
	case attempt.Correct:
		p.correct++
	}
	if p.completed%p.every == 0 {
		p.fire(Pulse{Completed: p.completed, Correct: p.correct, Errored: p.errored})
	}
}
