package ledger

import "time"

// Attempt is one question sent to one pipeline, with its outcome. Immutable
// once appended.
type Attempt struct {
	QuestionID     string    `json:"question_id"`
	Pipeline       string    `json:"pipeline"`
	ProducedAnswer string    `json:"produced_answer,omitempty"`
	Correct        bool      `json:"correct"`
	Score          float64   `json:"score"`
	MatchMethod    string    `json:"match_method"`
	LatencyMS      int64     `json:"latency_ms"`
	Error          string    `json:"error,omitempty"`
	ErrorType      string    `json:"error_type,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Errored reports whether the attempt failed before it could be judged.
func (a Attempt) Errored() bool {
	return a.ErrorType != ""
}

// PipelineSummary aggregates one pipeline's attempts within an iteration.
type PipelineSummary struct {
	Tested       int     `json:"tested"`
	Correct      int     `json:"correct"`
	Errored      int     `json:"errored"`
	Accuracy     float64 `json:"accuracy"`
	LatencyP50MS int64   `json:"latency_p50_ms"`
	LatencyP95MS int64   `json:"latency_p95_ms"`
}

// Iteration is one evaluation run's batch of attempts. Append-only and
// totally ordered by Sequence.
type Iteration struct {
	ID         string                     `json:"id"`
	Sequence   int                        `json:"sequence"`
	Label      string                     `json:"label,omitempty"`
	StartedAt  time.Time                  `json:"started_at"`
	FinishedAt time.Time                  `json:"finished_at"`
	Attempts   []Attempt                  `json:"attempts"`
	Summary    map[string]PipelineSummary `json:"summary,omitempty"`
}

// Finished reports whether the iteration was closed by a completed run.
func (it Iteration) Finished() bool {
	return !it.FinishedAt.IsZero()
}

// RunRecord is one attempt as remembered by a registry entry.
type RunRecord struct {
	IterationID string    `json:"iteration_id"`
	Sequence    int       `json:"sequence"`
	Pipeline    string    `json:"pipeline"`
	Correct     bool      `json:"correct"`
	Score       float64   `json:"score"`
	MatchMethod string    `json:"match_method"`
	ErrorType   string    `json:"error_type,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Trend labels how a question's outcome moved between its first and latest
// runs.
type Trend string

const (
	TrendImproving  Trend = "improving"
	TrendRegressing Trend = "regressing"
	TrendStable     Trend = "stable"
)

// Status is a question's outcome in its most recent run.
type Status string

const (
	StatusPassing Status = "passing"
	StatusFailing Status = "failing"
	StatusErrored Status = "errored"
)

// Entry is the cross-run history of one question. Runs are never reordered
// or truncated.
type Entry struct {
	QuestionID    string      `json:"question_id"`
	Runs          []RunRecord `json:"runs"`
	PassCount     int         `json:"pass_count"`
	PassRate      float64     `json:"pass_rate"`
	CurrentStatus Status      `json:"current_status"`
	Trend         Trend       `json:"trend"`
}

// Flaky reports whether the question alternates: two or more runs with a
// pass rate away from both extremes.
func (e Entry) Flaky() bool {
	return len(e.Runs) >= 2 && e.PassRate > 0.1 && e.PassRate < 0.9
}

// document is the persisted ledger schema.
type document struct {
	Version    int               `json:"version"`
	Revision   int               `json:"revision"`
	Iterations []*Iteration      `json:"iterations"`
	Registry   map[string]*Entry `json:"registry"`
}

// schemaVersion is the current persisted schema. Loads tolerate older
// versions by defaulting missing fields.
const schemaVersion = 2
