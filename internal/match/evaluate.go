// Package match judges a produced answer against an expected one using a
// fixed ladder of approximate-matching strategies. Evaluate is a pure
// function: callers flatten structured responses to plain text first.
package match

import "strings"

// Method identifies which matching strategy decided the result.
type Method string

const (
	MethodNoAnswer  Method = "NO_ANSWER"
	MethodEntity    Method = "ENTITY_MATCH"
	MethodF1        Method = "F1_MATCH"
	MethodNumeric   Method = "NUMERIC_MATCH"
	MethodSubstring Method = "SUBSTRING_MATCH"
	MethodPartial   Method = "PARTIAL"
)

// F1 threshold bounds; callers may tune within this range.
const (
	MinF1Threshold     = 0.3
	MaxF1Threshold     = 0.5
	DefaultF1Threshold = 0.5
)

// Options tunes matching behavior.
type Options struct {
	// F1Threshold is the minimum token F1 for an F1_MATCH. Zero means the
	// default; out-of-range values are clamped.
	F1Threshold float64
}

// Result is the outcome of judging one produced answer.
type Result struct {
	Correct bool
	Score   float64
	Method  Method
}

// Evaluate judges produced against expected. Strategies are tried in order
// and the first success wins; the token F1 is always reported as Score no
// matter which strategy decides.
func Evaluate(produced, expected string, opts Options) Result {
	if strings.TrimSpace(produced) == "" {
		return Result{Correct: false, Score: 0, Method: MethodNoAnswer}
	}

	score := TokenF1(produced, expected)

	if entityMajorityFound(produced, expected) {
		return Result{Correct: true, Score: score, Method: MethodEntity}
	}
	if score >= clampThreshold(opts.F1Threshold) {
		return Result{Correct: true, Score: score, Method: MethodF1}
	}
	if numbersAgree(produced, expected) {
		return Result{Correct: true, Score: score, Method: MethodNumeric}
	}
	if normalizedSubstring(produced, expected) {
		return Result{Correct: true, Score: score, Method: MethodSubstring}
	}
	return Result{Correct: false, Score: score, Method: MethodPartial}
}

func clampThreshold(threshold float64) float64 {
	if threshold == 0 {
		return DefaultF1Threshold
	}
	if threshold < MinF1Threshold {
		return MinF1Threshold
	}
	if threshold > MaxF1Threshold {
		return MaxF1Threshold
	}
	return threshold
}

func normalizedSubstring(produced, expected string) bool {
	normExpected := NormalizeText(expected)
	if normExpected == "" {
		return false
	}
	return strings.Contains(NormalizeText(produced), normExpected)
}
