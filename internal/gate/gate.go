// Package gate decides whether a development phase's exit criteria hold
// against the ledger. Every criterion is always evaluated so a report shows
// the full picture, never just the first failure.
package gate

import (
	"fmt"

	"pipeval/internal/ledger"
	"pipeval/internal/spec"
)

// CriterionResult is one evaluated criterion with its measured value.
type CriterionResult struct {
	Kind      string
	Pipeline  string
	Passed    bool
	Actual    float64
	Threshold float64
	Detail    string
}

// Decision is the outcome of checking one phase.
type Decision struct {
	Phase    int
	Name     string
	Passed   bool
	Criteria []CriterionResult
}

// Check evaluates every criterion of the given phase. A prerequisite phase
// is checked recursively and appended as one blocking criterion. Passed is
// the conjunction of all results.
func Check(cfg spec.Config, phaseNumber int, led *ledger.Ledger) (Decision, error) {
	return check(cfg, phaseNumber, led, map[int]bool{})
}

func check(cfg spec.Config, phaseNumber int, led *ledger.Ledger, visiting map[int]bool) (Decision, error) {
	if visiting[phaseNumber] {
		return Decision{}, fmt.Errorf("phase %d: requires_phase cycle", phaseNumber)
	}
	visiting[phaseNumber] = true
	defer delete(visiting, phaseNumber)

	phase, ok := findPhase(cfg, phaseNumber)
	if !ok {
		return Decision{}, fmt.Errorf("unknown phase %d", phaseNumber)
	}

	decision := Decision{Phase: phase.Number, Name: phase.Name, Passed: true}
	if phase.RequiresPhase != nil {
		prerequisite, err := check(cfg, *phase.RequiresPhase, led, visiting)
		if err != nil {
			return Decision{}, err
		}
		result := CriterionResult{
			Kind:   "requires_phase",
			Passed: prerequisite.Passed,
			Detail: fmt.Sprintf("phase %d (%s)", prerequisite.Phase, prerequisite.Name),
		}
		decision.Criteria = append(decision.Criteria, result)
	}

	for _, criterion := range phase.Criteria {
		decision.Criteria = append(decision.Criteria, evaluate(cfg, criterion, led))
	}
	for _, result := range decision.Criteria {
		decision.Passed = decision.Passed && result.Passed
	}
	return decision, nil
}

func findPhase(cfg spec.Config, number int) (spec.PhaseConfig, bool) {
	for _, phase := range cfg.Phases {
		if phase.Number == number {
			return phase, true
		}
	}
	return spec.PhaseConfig{}, false
}

func evaluate(cfg spec.Config, criterion spec.CriterionConfig, led *ledger.Ledger) CriterionResult {
	result := CriterionResult{Kind: criterion.Kind, Pipeline: criterion.Pipeline}
	switch criterion.Kind {
	case spec.CriterionPipelineAccuracy:
		accuracy, tested := led.CurrentAccuracy(criterion.Pipeline)
		result.Actual = accuracy
		result.Threshold = criterion.Threshold
		if tested == 0 {
			result.Detail = "no attempts recorded"
			return result
		}
		result.Passed = accuracy >= criterion.Threshold
	case spec.CriterionOverallAccuracy:
		accuracy, tested := led.OverallAccuracy()
		result.Actual = accuracy
		result.Threshold = criterion.Threshold
		if tested == 0 {
			result.Detail = "no attempts recorded"
			return result
		}
		result.Passed = accuracy >= criterion.Threshold
	case spec.CriterionLatencyP95:
		summary, ok := latestSummary(led, criterion.Pipeline)
		result.Threshold = float64(criterion.CeilingMS)
		if !ok {
			result.Detail = "no finished iteration for pipeline"
			return result
		}
		result.Actual = float64(summary.LatencyP95MS)
		result.Passed = summary.LatencyP95MS <= criterion.CeilingMS
	case spec.CriterionErrorRate:
		summary, ok := latestSummary(led, criterion.Pipeline)
		result.Threshold = criterion.Ceiling
		if !ok {
			result.Detail = "no finished iteration for pipeline"
			return result
		}
		rate := 0.0
		if summary.Tested > 0 {
			rate = float64(summary.Errored) / float64(summary.Tested)
		}
		result.Actual = rate
		result.Passed = rate <= criterion.Ceiling
	case spec.CriterionStability:
		required := criterion.Iterations
		if required <= 0 {
			required = cfg.Gate.StableIterations
		}
		stable := ConsecutiveStable(led, cfg.Gate.DropTolerancePP)
		result.Actual = float64(stable)
		result.Threshold = float64(required)
		result.Passed = stable >= required
	default:
		result.Detail = fmt.Sprintf("unknown criterion kind %q", criterion.Kind)
	}
	return result
}

// latestSummary finds the pipeline's summary in the most recent finished
// iteration that exercised it.
func latestSummary(led *ledger.Ledger, pipeline string) (ledger.PipelineSummary, bool) {
	iterations := led.Iterations()
	for i := len(iterations) - 1; i >= 0; i-- {
		if !iterations[i].Finished() {
			continue
		}
		if summary, ok := iterations[i].Summary[pipeline]; ok && summary.Tested > 0 {
			return summary, true
		}
	}
	return ledger.PipelineSummary{}, false
}

// ConsecutiveStable walks finished iterations backward, counting how many in
// a row saw no pipeline drop more than dropTolerancePP percentage points
// against its predecessor. The walk stops at the first violation. Pipelines
// absent from either side of a pair are not compared.
func ConsecutiveStable(led *ledger.Ledger, dropTolerancePP float64) int {
	var finished []ledger.Iteration
	for _, iteration := range led.Iterations() {
		if iteration.Finished() {
			finished = append(finished, iteration)
		}
	}

	stable := 0
	for i := len(finished) - 1; i >= 1; i-- {
		if dropped(finished[i-1], finished[i], dropTolerancePP) {
			break
		}
		stable++
	}
	return stable
}

func dropped(previous, current ledger.Iteration, tolerancePP float64) bool {
	for pipeline, summary := range current.Summary {
		if summary.Tested == 0 {
			continue
		}
		before, ok := previous.Summary[pipeline]
		if !ok || before.Tested == 0 {
			continue
		}
		if (before.Accuracy-summary.Accuracy)*100 > tolerancePP {
			return true
		}
	}
	return false
}
