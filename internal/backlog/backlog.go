// Package backlog tracks improvement items and selects the next one to
// apply. Selection is data-driven: the widest accuracy gap wins, priority
// and expected impact break ties, and the order is fully deterministic.
package backlog

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"pipeval/internal/analysis"
)

// ErrExhausted reports that no pending improvement matches the selection.
var ErrExhausted = errors.New("no pending improvements")

// ErrUnknownItem reports a transition on an id not in the backlog.
var ErrUnknownItem = errors.New("unknown improvement")

// ErrBadTransition reports an illegal status change.
var ErrBadTransition = errors.New("illegal status transition")

// Status is an improvement's lifecycle state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApplied  Status = "applied"
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
)

// Improvement is one backlog item. Failed items are terminal and never
// selectable again.
type Improvement struct {
	ID               string    `json:"id"`
	Pipeline         string    `json:"pipeline"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	Priority         int       `json:"priority"` // lower is more urgent
	ExpectedImpactPP float64   `json:"expected_impact_pp"`
	ActualImpactPP   float64   `json:"actual_impact_pp,omitempty"`
	Status           Status    `json:"status"`
	FailureReason    string    `json:"failure_reason,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	AppliedAt        time.Time `json:"applied_at"`
	ResolvedAt       time.Time `json:"resolved_at"`
}

// SelectNext picks the pending improvement to apply next.
//
// With a forced pipeline, only that pipeline's pending items are considered.
// Otherwise pipelines are visited in descending accuracy-gap order and the
// first one holding a pending item wins; pipelines at or above target are
// skipped. Within a pipeline: priority ascending, expected impact
// descending, id ascending.
func SelectNext(items []Improvement, gaps []analysis.Gap, forced string) (Improvement, error) {
	if forced != "" {
		candidates := pendingFor(items, forced)
		if len(candidates) == 0 {
			return Improvement{}, fmt.Errorf("%w for pipeline %q", ErrExhausted, forced)
		}
		return best(candidates), nil
	}
	for _, gap := range gaps {
		if gap.GapPP <= 0 {
			continue
		}
		candidates := pendingFor(items, gap.Pipeline)
		if len(candidates) > 0 {
			return best(candidates), nil
		}
	}
	return Improvement{}, ErrExhausted
}

func pendingFor(items []Improvement, pipeline string) []Improvement {
	var out []Improvement
	for _, item := range items {
		if item.Status == StatusPending && item.Pipeline == pipeline {
			out = append(out, item)
		}
	}
	return out
}

func best(candidates []Improvement) Improvement {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.ExpectedImpactPP != b.ExpectedImpactPP {
			return a.ExpectedImpactPP > b.ExpectedImpactPP
		}
		return a.ID < b.ID
	})
	return candidates[0]
}

// MarkApplied moves a pending item to applied.
func MarkApplied(item *Improvement, now time.Time) error {
	if item.Status != StatusPending {
		return fmt.Errorf("%w: %s is %s, not pending", ErrBadTransition, item.ID, item.Status)
	}
	item.Status = StatusApplied
	item.AppliedAt = now
	return nil
}

// MarkVerified moves an applied item to verified, recording the measured
// accuracy impact.
func MarkVerified(item *Improvement, actualImpactPP float64, now time.Time) error {
	if item.Status != StatusApplied {
		return fmt.Errorf("%w: %s is %s, not applied", ErrBadTransition, item.ID, item.Status)
	}
	item.Status = StatusVerified
	item.ActualImpactPP = actualImpactPP
	item.ResolvedAt = now
	return nil
}

// MarkFailed moves an applied item to failed. Failed is terminal.
func MarkFailed(item *Improvement, reason string, now time.Time) error {
	if item.Status != StatusApplied {
		return fmt.Errorf("%w: %s is %s, not applied", ErrBadTransition, item.ID, item.Status)
	}
	item.Status = StatusFailed
	item.FailureReason = reason
	item.ResolvedAt = now
	return nil
}
