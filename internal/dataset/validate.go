package dataset

import (
	"fmt"
	"strings"
)

// validateSpec checks fixture invariants: unique non-empty ids, non-empty
// question text and expected answers, and a target pipeline per question.
func validateSpec(spec Spec) error {
	if len(spec.Questions) == 0 {
		return fmt.Errorf("dataset has no questions")
	}
	seen := map[string]bool{}
	for i, q := range spec.Questions {
		if strings.TrimSpace(q.ID) == "" {
			return fmt.Errorf("question %d: id is required", i)
		}
		if seen[q.ID] {
			return fmt.Errorf("question %d: duplicate id %q", i, q.ID)
		}
		seen[q.ID] = true
		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("question %q: text is required", q.ID)
		}
		if strings.TrimSpace(q.ExpectedAnswer) == "" {
			return fmt.Errorf("question %q: expected_answer is required", q.ID)
		}
		if strings.TrimSpace(q.TargetPipeline) == "" {
			return fmt.Errorf("question %q: pipeline is required", q.ID)
		}
	}
	return nil
}
