// Package report renders a plain-text summary of the ledger: latest
// iteration results, movement since the previous one, accuracy gaps, error
// groups, and flaky questions.
package report

import (
	"fmt"
	"io"
	"sort"

	"pipeval/internal/analysis"
	"pipeval/internal/ledger"
	"pipeval/internal/spec"
)

// Data is everything a rendered report needs, derived once from the ledger.
type Data struct {
	Latest      ledger.Iteration
	HasLatest   bool
	Comparison  analysis.Comparison
	Gaps        []analysis.Gap
	ErrorGroups []analysis.ErrorGroup
	Flaky       []ledger.Entry
	Plateaus    []PipelinePlateau
}

// PipelinePlateau marks one pipeline whose accuracy trend has flattened.
type PipelinePlateau struct {
	Pipeline string
	Accuracy float64
}

// TrendSource supplies a pipeline's accuracy series, typically read from the
// analytics mirror. Build falls back to the ledger-derived trend when the
// source is nil, fails, or has no rows for the pipeline.
type TrendSource func(pipeline string) ([]analysis.TrendPoint, error)

// Build derives report data from the ledger and the configured targets.
func Build(cfg spec.Config, led *ledger.Ledger, trends TrendSource) Data {
	data := Data{
		Comparison: analysis.CompareLastTwo(led),
		Flaky:      led.Flaky(),
	}

	targets := map[string]float64{}
	for _, pipelineCfg := range cfg.Pipelines {
		targets[pipelineCfg.Name] = pipelineCfg.AccuracyTarget
	}
	data.Gaps = analysis.Gaps(led, targets)

	for _, iteration := range led.Iterations() {
		if iteration.Finished() {
			data.Latest = iteration
			data.HasLatest = true
		}
	}
	if data.HasLatest {
		data.ErrorGroups = analysis.GroupErrors(data.Latest)
	}

	for _, pipelineCfg := range cfg.Pipelines {
		trend := pipelineTrend(led, pipelineCfg.Name, trends)
		if analysis.Plateaued(trend, cfg.Analysis.PlateauPP) {
			data.Plateaus = append(data.Plateaus, PipelinePlateau{
				Pipeline: pipelineCfg.Name,
				Accuracy: trend[len(trend)-1].Accuracy,
			})
		}
	}
	return data
}

func pipelineTrend(led *ledger.Ledger, pipeline string, trends TrendSource) []analysis.TrendPoint {
	if trends != nil {
		if points, err := trends(pipeline); err == nil && len(points) > 0 {
			return points
		}
	}
	return analysis.AccuracyTrend(led, pipeline)
}

// Render writes the report as plain text.
func Render(w io.Writer, data Data) {
	if !data.HasLatest {
		fmt.Fprintln(w, "No finished iterations recorded yet.")
		return
	}

	fmt.Fprintf(w, "Iteration %d (%s)", data.Latest.Sequence, data.Latest.ID)
	if data.Latest.Label != "" {
		fmt.Fprintf(w, " %q", data.Latest.Label)
	}
	fmt.Fprintln(w)

	for _, name := range sortedPipelines(data.Latest.Summary) {
		summary := data.Latest.Summary[name]
		fmt.Fprintf(w, "  %-20s %3d tested  %3d correct  %3d errored  accuracy %5.1f%%  p95 %dms\n",
			name, summary.Tested, summary.Correct, summary.Errored, summary.Accuracy*100, summary.LatencyP95MS)
	}

	if len(data.Comparison.Regressions) > 0 || len(data.Comparison.Fixes) > 0 {
		fmt.Fprintln(w, "\nSince previous iteration:")
		for _, change := range data.Comparison.Regressions {
			fmt.Fprintf(w, "  REGRESSED  %s (%s)\n", change.QuestionID, change.Pipeline)
		}
		for _, change := range data.Comparison.Fixes {
			fmt.Fprintf(w, "  FIXED      %s (%s)\n", change.QuestionID, change.Pipeline)
		}
	}

	if len(data.Gaps) > 0 {
		fmt.Fprintln(w, "\nAccuracy vs target:")
		for _, gap := range data.Gaps {
			status := "OK"
			if gap.GapPP > 0 {
				status = fmt.Sprintf("%.1fpp below target", gap.GapPP)
			}
			fmt.Fprintf(w, "  %-20s current %5.1f%%  target %5.1f%%  %s\n",
				gap.Pipeline, gap.Current*100, gap.Target*100, status)
		}
	}

	if len(data.ErrorGroups) > 0 {
		fmt.Fprintln(w, "\nError groups (latest iteration):")
		for _, group := range data.ErrorGroups {
			fmt.Fprintf(w, "  %-7s %-20s %d question(s)\n", group.Priority, group.ErrorType, group.Count)
		}
	}

	if len(data.Flaky) > 0 {
		fmt.Fprintln(w, "\nFlaky questions:")
		for _, entry := range data.Flaky {
			fmt.Fprintf(w, "  %-20s pass rate %.0f%% over %d runs\n",
				entry.QuestionID, entry.PassRate*100, len(entry.Runs))
		}
	}

	for _, plateau := range data.Plateaus {
		fmt.Fprintf(w, "\nPlateau: %s has flattened at %.1f%% accuracy\n",
			plateau.Pipeline, plateau.Accuracy*100)
	}
}

func sortedPipelines(summary map[string]ledger.PipelineSummary) []string {
	names := make([]string, 0, len(summary))
	for name := range summary {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
