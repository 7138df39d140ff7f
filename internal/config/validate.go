package config

import (
	"fmt"
	"strings"

	"pipeval/internal/spec"
)

// Issue is one validation problem in a config document.
type Issue struct {
	Field   string
	Message string
}

// ValidationError aggregates all issues found in one pass.
type ValidationError struct {
	Issues []Issue
}

// Error renders every issue so callers see all blockers at once.
func (e *ValidationError) Error() string {
	lines := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		lines = append(lines, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
	}
	return "invalid config:\n  " + strings.Join(lines, "\n  ")
}

type issueCollector struct {
	issues []Issue
}

func (c *issueCollector) add(field, message string) {
	c.issues = append(c.issues, Issue{Field: field, Message: message})
}

func (c *issueCollector) result() error {
	if len(c.issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: c.issues}
}

// Validate checks a normalized config for correctness.
func Validate(cfg *spec.Config) error {
	collector := &issueCollector{}

	if cfg.Version == 0 {
		collector.add("version", "is required")
	} else if cfg.Version != 1 {
		collector.add("version", fmt.Sprintf("unsupported version %d", cfg.Version))
	}

	if strings.TrimSpace(cfg.Dataset) == "" {
		collector.add("dataset", "is required")
	}

	pipelineNames := validatePipelines(cfg, collector)
	validatePhases(cfg, pipelineNames, collector)

	if cfg.Match.F1Threshold != 0 && (cfg.Match.F1Threshold < 0.3 || cfg.Match.F1Threshold > 0.5) {
		collector.add("match.f1_threshold", "must be within [0.3, 0.5]")
	}

	return collector.result()
}

func validatePipelines(cfg *spec.Config, collector *issueCollector) map[string]bool {
	names := map[string]bool{}
	if len(cfg.Pipelines) == 0 {
		collector.add("pipelines", "at least one pipeline is required")
	}
	for i, pipeline := range cfg.Pipelines {
		field := fmt.Sprintf("pipelines[%d]", i)
		if strings.TrimSpace(pipeline.Name) == "" {
			collector.add(field+".name", "is required")
			continue
		}
		if names[pipeline.Name] {
			collector.add(field+".name", fmt.Sprintf("duplicate pipeline %q", pipeline.Name))
		}
		names[pipeline.Name] = true
		if strings.TrimSpace(pipeline.Endpoint) == "" {
			collector.add(field+".endpoint", "is required")
		}
		if pipeline.AccuracyTarget <= 0 || pipeline.AccuracyTarget > 1 {
			collector.add(field+".accuracy_target", "must be within (0, 1]")
		}
		if pipeline.LatencyCeilingMS < 0 {
			collector.add(field+".latency_ceiling_ms", "must not be negative")
		}
		if pipeline.ErrorRateCeiling != nil && (*pipeline.ErrorRateCeiling < 0 || *pipeline.ErrorRateCeiling > 1) {
			collector.add(field+".error_rate_ceiling", "must be within [0, 1]")
		}
	}
	return names
}

func validatePhases(cfg *spec.Config, pipelineNames map[string]bool, collector *issueCollector) {
	numbers := map[int]bool{}
	for i, phase := range cfg.Phases {
		field := fmt.Sprintf("phases[%d]", i)
		if numbers[phase.Number] {
			collector.add(field+".number", fmt.Sprintf("duplicate phase %d", phase.Number))
		}
		numbers[phase.Number] = true
		if len(phase.Criteria) == 0 {
			collector.add(field+".criteria", "at least one criterion is required")
		}
		for j, criterion := range phase.Criteria {
			validateCriterion(criterion, fmt.Sprintf("%s.criteria[%d]", field, j), pipelineNames, collector)
		}
	}
	for i, phase := range cfg.Phases {
		if phase.RequiresPhase == nil {
			continue
		}
		field := fmt.Sprintf("phases[%d].requires_phase", i)
		if !numbers[*phase.RequiresPhase] {
			collector.add(field, fmt.Sprintf("unknown phase %d", *phase.RequiresPhase))
		}
		if *phase.RequiresPhase == phase.Number {
			collector.add(field, "phase cannot require itself")
		}
	}
	if cycle := findPhaseCycle(cfg.Phases); cycle != 0 {
		collector.add("phases", fmt.Sprintf("requires_phase cycle through phase %d", cycle))
	}
}

func validateCriterion(criterion spec.CriterionConfig, field string, pipelineNames map[string]bool, collector *issueCollector) {
	switch criterion.Kind {
	case spec.CriterionPipelineAccuracy:
		if !pipelineNames[criterion.Pipeline] {
			collector.add(field+".pipeline", fmt.Sprintf("unknown pipeline %q", criterion.Pipeline))
		}
		if criterion.Threshold <= 0 || criterion.Threshold > 1 {
			collector.add(field+".threshold", "must be within (0, 1]")
		}
	case spec.CriterionOverallAccuracy:
		if criterion.Threshold <= 0 || criterion.Threshold > 1 {
			collector.add(field+".threshold", "must be within (0, 1]")
		}
	case spec.CriterionLatencyP95:
		if criterion.CeilingMS <= 0 {
			collector.add(field+".ceiling_ms", "must be positive (here or as the pipeline's latency_ceiling_ms)")
		}
		if criterion.Pipeline != "" && !pipelineNames[criterion.Pipeline] {
			collector.add(field+".pipeline", fmt.Sprintf("unknown pipeline %q", criterion.Pipeline))
		}
	case spec.CriterionErrorRate:
		if criterion.Ceiling < 0 || criterion.Ceiling > 1 {
			collector.add(field+".ceiling", "must be within [0, 1]")
		}
		if criterion.Pipeline != "" && !pipelineNames[criterion.Pipeline] {
			collector.add(field+".pipeline", fmt.Sprintf("unknown pipeline %q", criterion.Pipeline))
		}
	case spec.CriterionStability:
		if criterion.Iterations <= 0 {
			collector.add(field+".iterations", "must be positive")
		}
	default:
		collector.add(field+".kind", fmt.Sprintf("unknown criterion kind %q", criterion.Kind))
	}
}

// findPhaseCycle returns a phase number on a requires_phase cycle, or zero.
func findPhaseCycle(phases []spec.PhaseConfig) int {
	requires := map[int]*int{}
	for _, phase := range phases {
		requires[phase.Number] = phase.RequiresPhase
	}
	for _, phase := range phases {
		seen := map[int]bool{}
		current := phase.Number
		for {
			seen[current] = true
			next := requires[current]
			if next == nil {
				break
			}
			if seen[*next] {
				return *next
			}
			current = *next
		}
	}
	return 0
}
