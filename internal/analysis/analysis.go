// Package analysis derives regressions, error groupings, accuracy gaps, and
// plateau signals from the ledger. Everything here is a pure function over
// ledger snapshots; nothing mutates state.
package analysis

import (
	"sort"

	"pipeval/internal/ledger"
)

// Priority ranks an error group for attention.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// Change is one question whose verdict moved between two iterations.
type Change struct {
	QuestionID string
	Pipeline   string
}

// Comparison holds verdict movements between the two most recent iterations.
type Comparison struct {
	Regressions []Change // passing before, not passing now
	Fixes       []Change // not passing before, passing now
}

// CompareLastTwo diffs the two most recent finished iterations. Only
// questions attempted in both count; an errored attempt counts as not
// passing. Fewer than two finished iterations yields an empty comparison.
func CompareLastTwo(led *ledger.Ledger) Comparison {
	finished := finishedIterations(led)
	if len(finished) < 2 {
		return Comparison{}
	}
	previous := verdicts(finished[len(finished)-2])
	latest := verdicts(finished[len(finished)-1])

	var comparison Comparison
	for _, id := range sortedKeys(latest) {
		current := latest[id]
		before, inBoth := previous[id]
		if !inBoth {
			continue
		}
		switch {
		case before.correct && !current.correct:
			comparison.Regressions = append(comparison.Regressions, Change{QuestionID: id, Pipeline: current.pipeline})
		case !before.correct && current.correct:
			comparison.Fixes = append(comparison.Fixes, Change{QuestionID: id, Pipeline: current.pipeline})
		}
	}
	return comparison
}

type verdict struct {
	correct  bool
	pipeline string
}

func verdicts(iteration ledger.Iteration) map[string]verdict {
	out := map[string]verdict{}
	for _, attempt := range iteration.Attempts {
		out[attempt.QuestionID] = verdict{
			correct:  attempt.Correct && !attempt.Errored(),
			pipeline: attempt.Pipeline,
		}
	}
	return out
}

func sortedKeys(m map[string]verdict) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ErrorGroup is a bucket of same-type failures in one iteration.
type ErrorGroup struct {
	ErrorType   string
	Count       int
	Priority    Priority
	QuestionIDs []string
}

// GroupErrors buckets an iteration's errored attempts by error type. Five or
// more of a kind is HIGH priority, three or more MEDIUM, otherwise LOW.
// Groups come back largest first, ties broken by type name.
func GroupErrors(iteration ledger.Iteration) []ErrorGroup {
	byType := map[string][]string{}
	for _, attempt := range iteration.Attempts {
		if !attempt.Errored() {
			continue
		}
		byType[attempt.ErrorType] = append(byType[attempt.ErrorType], attempt.QuestionID)
	}

	groups := make([]ErrorGroup, 0, len(byType))
	for errType, ids := range byType {
		groups = append(groups, ErrorGroup{
			ErrorType:   errType,
			Count:       len(ids),
			Priority:    groupPriority(len(ids)),
			QuestionIDs: ids,
		})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].ErrorType < groups[j].ErrorType
	})
	return groups
}

func groupPriority(count int) Priority {
	switch {
	case count >= 5:
		return PriorityHigh
	case count >= 3:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Gap is one pipeline's distance from its accuracy target, in percentage
// points. Positive means the pipeline is below target.
type Gap struct {
	Pipeline string
	Target   float64
	Current  float64
	GapPP    float64
	Tested   int
}

// Gaps measures each target pipeline against its current registry accuracy
// (most recent run per question). Largest gap first; ties broken by name.
func Gaps(led *ledger.Ledger, targets map[string]float64) []Gap {
	gaps := make([]Gap, 0, len(targets))
	for pipeline, target := range targets {
		current, tested := led.CurrentAccuracy(pipeline)
		gaps = append(gaps, Gap{
			Pipeline: pipeline,
			Target:   target,
			Current:  current,
			GapPP:    (target - current) * 100,
			Tested:   tested,
		})
	}
	sort.Slice(gaps, func(i, j int) bool {
		if gaps[i].GapPP != gaps[j].GapPP {
			return gaps[i].GapPP > gaps[j].GapPP
		}
		return gaps[i].Pipeline < gaps[j].Pipeline
	})
	return gaps
}

// TrendPoint is one pipeline's accuracy in one finished iteration.
type TrendPoint struct {
	Sequence int
	Accuracy float64
}

// AccuracyTrend extracts a pipeline's accuracy series across finished
// iterations, in sequence order. Iterations where the pipeline was not
// exercised are skipped.
func AccuracyTrend(led *ledger.Ledger, pipeline string) []TrendPoint {
	var points []TrendPoint
	for _, iteration := range finishedIterations(led) {
		summary, ok := iteration.Summary[pipeline]
		if !ok || summary.Tested == 0 {
			continue
		}
		points = append(points, TrendPoint{Sequence: iteration.Sequence, Accuracy: summary.Accuracy})
	}
	return points
}

// Plateaued reports whether accuracy moved less than plateauPP percentage
// points between the two most recent trend points. Fewer than two points is
// never a plateau.
func Plateaued(points []TrendPoint, plateauPP float64) bool {
	if len(points) < 2 {
		return false
	}
	last := points[len(points)-1].Accuracy
	previous := points[len(points)-2].Accuracy
	delta := (last - previous) * 100
	if delta < 0 {
		delta = -delta
	}
	return delta < plateauPP
}

func finishedIterations(led *ledger.Ledger) []ledger.Iteration {
	var finished []ledger.Iteration
	for _, iteration := range led.Iterations() {
		if iteration.Finished() {
			finished = append(finished, iteration)
		}
	}
	return finished
}
