package ledger

import "sort"

// Summarize computes per-pipeline counts, accuracy, and latency percentiles
// for a batch of attempts.
func Summarize(attempts []Attempt) map[string]PipelineSummary {
	latencies := map[string][]int64{}
	summaries := map[string]PipelineSummary{}
	for _, attempt := range attempts {
		summary := summaries[attempt.Pipeline]
		summary.Tested++
		switch {
		case attempt.Errored():
			summary.Errored++
		case attempt.Correct:
			summary.Correct++
		}
		summaries[attempt.Pipeline] = summary
		latencies[attempt.Pipeline] = append(latencies[attempt.Pipeline], attempt.LatencyMS)
	}
	for pipeline, summary := range summaries {
		if summary.Tested > 0 {
			summary.Accuracy = float64(summary.Correct) / float64(summary.Tested)
		}
		summary.LatencyP50MS = percentile(latencies[pipeline], 0.50)
		summary.LatencyP95MS = percentile(latencies[pipeline], 0.95)
		summaries[pipeline] = summary
	}
	return summaries
}

// percentile uses the nearest-rank method over a copy of values.
func percentile(values []int64, p float64) int64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]int64(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	rank := int(p*float64(len(sorted))+0.5) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
