package runner

import (
	"sync"

	"pipeval/internal/ledger"
)

// RunState is the explicit dedup/progress state for one run: which question
// ids have already been tested in the current iteration, and which iteration
// is being filled. It is loaded from the ledger at start, threaded through
// the workers, and persisted with every checkpoint; there is no hidden
// process-wide state.
type RunState struct {
	RunID    string
	Sequence int

	mu     sync.Mutex
	tested map[string]bool
}

// NewRunState builds state for a fresh iteration.
func NewRunState(runID string, sequence int) *RunState {
	return &RunState{RunID: runID, Sequence: sequence, tested: map[string]bool{}}
}

// ResumeRunState builds state from a previously checkpointed open iteration:
// every attempt already flushed counts as tested.
func ResumeRunState(open ledger.Iteration) *RunState {
	state := NewRunState(open.ID, open.Sequence)
	for _, attempt := range open.Attempts {
		state.tested[attempt.QuestionID] = true
	}
	return state
}

// AlreadyTested reports whether the question was handled this iteration.
func (s *RunState) AlreadyTested(questionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tested[questionID]
}

// MarkTested records a question as handled.
func (s *RunState) MarkTested(questionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tested[questionID] = true
}

// TestedCount returns how many questions have been handled.
func (s *RunState) TestedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tested)
}
