// Package ledger owns the durable cross-run state: the ordered iteration
// history and the per-question registry. Everything else in pipeval derives
// its view from here.
package ledger

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"
)

// entryStripes is the size of the per-question lock stripe. Mutations of the
// same question id serialize; different ids proceed in parallel.
const entryStripes = 64

// Ledger is the in-memory working copy of the persisted document.
//
// Locking: appends hold mu.RLock so they can run concurrently, with the
// question id's stripe lock serializing same-id mutation, iterMu serializing
// attempt slice growth, and regMu guarding registry map inserts. Snapshots
// and derivations take mu.Lock, which excludes every in-flight append and
// yields a consistent view.
type Ledger struct {
	mu      sync.RWMutex
	iterMu  sync.Mutex
	regMu   sync.RWMutex
	stripes [entryStripes]sync.Mutex
	doc     document
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{doc: document{
		Version:  schemaVersion,
		Registry: map[string]*Entry{},
	}}
}

// StartIteration appends a new open iteration and returns its sequence.
func (l *Ledger) StartIteration(id, label string, startedAt time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	sequence := len(l.doc.Iterations) + 1
	l.doc.Iterations = append(l.doc.Iterations, &Iteration{
		ID:        id,
		Sequence:  sequence,
		Label:     label,
		StartedAt: startedAt,
		Attempts:  []Attempt{},
	})
	return sequence
}

// OpenIteration returns the latest iteration when it is still unfinished.
// Like every snapshot it takes the write lock: cloning the attempt slice
// under a read lock would race with in-flight appends growing it.
func (l *Ledger) OpenIteration() (Iteration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.doc.Iterations) == 0 {
		return Iteration{}, false
	}
	last := l.doc.Iterations[len(l.doc.Iterations)-1]
	if last.Finished() {
		return Iteration{}, false
	}
	return cloneIteration(last), true
}

// Append records one attempt on the open iteration and updates the
// question's registry entry.
func (l *Ledger) Append(sequence int, attempt Attempt) error {
	stripe := l.stripe(attempt.QuestionID)
	stripe.Lock()
	defer stripe.Unlock()

	l.mu.RLock()
	defer l.mu.RUnlock()
	iteration, err := l.iterationLocked(sequence)
	if err != nil {
		return err
	}
	if iteration.Finished() {
		return fmt.Errorf("iteration %d is finished", sequence)
	}

	l.appendAttemptLocked(iteration, attempt)
	l.updateEntryLocked(iteration, attempt)
	return nil
}

func (l *Ledger) appendAttemptLocked(iteration *Iteration, attempt Attempt) {
	l.iterMu.Lock()
	iteration.Attempts = append(iteration.Attempts, attempt)
	l.iterMu.Unlock()
}

func (l *Ledger) updateEntryLocked(iteration *Iteration, attempt Attempt) {
	l.regMu.RLock()
	entry, ok := l.doc.Registry[attempt.QuestionID]
	l.regMu.RUnlock()
	if !ok {
		entry = &Entry{QuestionID: attempt.QuestionID}
		l.regMu.Lock()
		l.doc.Registry[attempt.QuestionID] = entry
		l.regMu.Unlock()
	}
	entry.Runs = append(entry.Runs, RunRecord{
		IterationID: iteration.ID,
		Sequence:    iteration.Sequence,
		Pipeline:    attempt.Pipeline,
		Correct:     attempt.Correct,
		Score:       attempt.Score,
		MatchMethod: attempt.MatchMethod,
		ErrorType:   attempt.ErrorType,
		Timestamp:   attempt.Timestamp,
	})
	recomputeEntry(entry)
}

// recomputeEntry rederives pass count, rate, status, and trend from runs.
func recomputeEntry(entry *Entry) {
	passes := 0
	for _, run := range entry.Runs {
		if run.Correct {
			passes++
		}
	}
	entry.PassCount = passes
	entry.PassRate = float64(passes) / float64(len(entry.Runs))

	last := entry.Runs[len(entry.Runs)-1]
	switch {
	case last.ErrorType != "":
		entry.CurrentStatus = StatusErrored
	case last.Correct:
		entry.CurrentStatus = StatusPassing
	default:
		entry.CurrentStatus = StatusFailing
	}

	first := entry.Runs[0]
	switch {
	case !first.Correct && last.Correct:
		entry.Trend = TrendImproving
	case first.Correct && !last.Correct:
		entry.Trend = TrendRegressing
	default:
		entry.Trend = TrendStable
	}
}

// FinishIteration closes the iteration and computes its summary.
func (l *Ledger) FinishIteration(sequence int, finishedAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	iteration, err := l.iterationLocked(sequence)
	if err != nil {
		return err
	}
	iteration.FinishedAt = finishedAt
	iteration.Summary = Summarize(iteration.Attempts)
	return nil
}

// Entry returns a copy of one question's registry entry.
func (l *Ledger) Entry(questionID string) (Entry, bool) {
	stripe := l.stripe(questionID)
	stripe.Lock()
	defer stripe.Unlock()
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.regMu.RLock()
	entry, ok := l.doc.Registry[questionID]
	l.regMu.RUnlock()
	if !ok {
		return Entry{}, false
	}
	return cloneEntry(entry), true
}

// Entries returns copies of all registry entries sorted by question id.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := make([]Entry, 0, len(l.doc.Registry))
	for _, entry := range l.doc.Registry {
		entries = append(entries, cloneEntry(entry))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].QuestionID < entries[j].QuestionID })
	return entries
}

// Flaky returns the entries classified as flaky, sorted by question id.
func (l *Ledger) Flaky() []Entry {
	all := l.Entries()
	flaky := all[:0]
	for _, entry := range all {
		if entry.Flaky() {
			flaky = append(flaky, entry)
		}
	}
	return flaky
}

// Iterations returns copies of all iterations in sequence order.
func (l *Ledger) Iterations() []Iteration {
	l.mu.Lock()
	defer l.mu.Unlock()
	iterations := make([]Iteration, 0, len(l.doc.Iterations))
	for _, iteration := range l.doc.Iterations {
		iterations = append(iterations, cloneIteration(iteration))
	}
	return iterations
}

// CurrentAccuracy computes a pipeline's accuracy from each question's most
// recent run, so repeated tests of one question never double-count.
func (l *Ledger) CurrentAccuracy(pipeline string) (float64, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tested, correct := 0, 0
	for _, entry := range l.doc.Registry {
		if len(entry.Runs) == 0 {
			continue
		}
		last := entry.Runs[len(entry.Runs)-1]
		if last.Pipeline != pipeline {
			continue
		}
		tested++
		if last.Correct {
			correct++
		}
	}
	if tested == 0 {
		return 0, 0
	}
	return float64(correct) / float64(tested), tested
}

// OverallAccuracy computes accuracy across all pipelines from most recent
// runs.
func (l *Ledger) OverallAccuracy() (float64, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tested, correct := 0, 0
	for _, entry := range l.doc.Registry {
		if len(entry.Runs) == 0 {
			continue
		}
		tested++
		if entry.Runs[len(entry.Runs)-1].Correct {
			correct++
		}
	}
	if tested == 0 {
		return 0, 0
	}
	return float64(correct) / float64(tested), tested
}

// Revision returns the persisted revision counter.
func (l *Ledger) Revision() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.doc.Revision
}

func (l *Ledger) stripe(questionID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(questionID))
	return &l.stripes[h.Sum32()%entryStripes]
}

func (l *Ledger) iterationLocked(sequence int) (*Iteration, error) {
	if sequence < 1 || sequence > len(l.doc.Iterations) {
		return nil, fmt.Errorf("unknown iteration %d", sequence)
	}
	return l.doc.Iterations[sequence-1], nil
}

func cloneIteration(iteration *Iteration) Iteration {
	out := *iteration
	out.Attempts = append([]Attempt(nil), iteration.Attempts...)
	if iteration.Summary != nil {
		out.Summary = make(map[string]PipelineSummary, len(iteration.Summary))
		for k, v := range iteration.Summary {
			out.Summary[k] = v
		}
	}
	return out
}

func cloneEntry(entry *Entry) Entry {
	out := *entry
	out.Runs = append([]RunRecord(nil), entry.Runs...)
	return out
}
