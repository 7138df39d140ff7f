package match

import (
	"math/rand"
	"strings"
	"testing"
)

func TestEvaluate_EmptyProduced_NoAnswer(t *testing.T) {
	for _, expected := range []string{"", "anything", "42", "Alice Smith, Bob Jones"} {
		result := Evaluate("", expected, Options{})
		if result.Correct {
			t.Fatalf("expected incorrect for empty produced, expected=%q", expected)
		}
		if result.Method != MethodNoAnswer {
			t.Fatalf("expected NO_ANSWER, got %s", result.Method)
		}
		if result.Score != 0 {
			t.Fatalf("expected zero score, got %f", result.Score)
		}
	}
	result := Evaluate("   \t\n", "anything", Options{})
	if result.Method != MethodNoAnswer {
		t.Fatalf("expected NO_ANSWER for whitespace-only produced, got %s", result.Method)
	}
}

func TestEvaluate_Pure_SameInputsSameResult(t *testing.T) {
	produced := "The merger closed in Q3 with revenue of $4.2 million"
	expected := "4,200,000"
	first := Evaluate(produced, expected, Options{})
	for i := 0; i < 10; i++ {
		again := Evaluate(produced, expected, Options{})
		if again != first {
			t.Fatalf("evaluate not pure: %#v vs %#v", again, first)
		}
	}
}

func TestEvaluate_NumericMatch_YearExcluded(t *testing.T) {
	result := Evaluate("Revenue was 2024 at $150,000", "150000", Options{})
	if !result.Correct {
		t.Fatalf("expected correct, got %#v", result)
	}
	if result.Method != MethodNumeric {
		t.Fatalf("expected NUMERIC_MATCH, got %s", result.Method)
	}
}

func TestEvaluate_EntityMatch_StrictMajority(t *testing.T) {
	produced := "Alice Smith and Bob Jones attended"

	result := Evaluate(produced, "Alice Smith, Carol White", Options{})
	if result.Correct {
		t.Fatalf("expected incorrect at one of two entities, got %#v", result)
	}

	result = Evaluate(produced, "Alice Smith, Bob Jones", Options{})
	if !result.Correct {
		t.Fatalf("expected correct with both entities present, got %#v", result)
	}
	if result.Method != MethodEntity {
		t.Fatalf("expected ENTITY_MATCH, got %s", result.Method)
	}
}

func TestEvaluate_SubstringMatch(t *testing.T) {
	produced := "the final status of the deployment pipeline is ok after several retries"
	result := Evaluate(produced, "ok", Options{})
	if !result.Correct {
		t.Fatalf("expected correct, got %#v", result)
	}
	if result.Method != MethodSubstring {
		t.Fatalf("expected SUBSTRING_MATCH, got %s", result.Method)
	}
}

func TestEvaluate_Partial_KeepsF1Score(t *testing.T) {
	result := Evaluate("completely unrelated words here", "quarterly revenue figures", Options{})
	if result.Correct {
		t.Fatalf("expected incorrect, got %#v", result)
	}
	if result.Method != MethodPartial {
		t.Fatalf("expected PARTIAL, got %s", result.Method)
	}
	if result.Score != TokenF1("completely unrelated words here", "quarterly revenue figures") {
		t.Fatalf("PARTIAL score must equal token F1")
	}
}

func TestEvaluate_F1Match_ThresholdClamped(t *testing.T) {
	produced := "alpha beta gamma delta"
	expected := "alpha beta gamma epsilon"
	f1 := TokenF1(produced, expected)
	if f1 < MaxF1Threshold {
		t.Fatalf("fixture should clear the max threshold, f1=%f", f1)
	}
	for _, threshold := range []float64{0.01, 0.3, 0.4, 0.5, 9.0} {
		result := Evaluate(produced, expected, Options{F1Threshold: threshold})
		if !result.Correct || result.Method != MethodF1 {
			t.Fatalf("threshold %f: expected F1_MATCH, got %#v", threshold, result)
		}
	}
}

func TestTokenF1_BoundsAndPermutationSymmetry(t *testing.T) {
	produced := "one two three four five"
	expected := "three four five six"
	base := TokenF1(produced, expected)
	if base < 0 || base > 1 {
		t.Fatalf("f1 out of [0,1]: %f", base)
	}

	rng := rand.New(rand.NewSource(7))
	shuffle := func(s string) string {
		fields := strings.Fields(s)
		rng.Shuffle(len(fields), func(i, j int) { fields[i], fields[j] = fields[j], fields[i] })
		return strings.Join(fields, " ")
	}
	for i := 0; i < 20; i++ {
		got := TokenF1(shuffle(produced), shuffle(expected))
		if got != base {
			t.Fatalf("f1 not permutation-invariant: %f vs %f", got, base)
		}
	}
}

func TestNormalizeText_KeepsInternalDecimals(t *testing.T) {
	got := NormalizeText("Growth was 3.5%, up from 2.1% (YoY).")
	want := "growth was 3.5 up from 2.1 yoy"
	if got != want {
		t.Fatalf("normalize: got %q want %q", got, want)
	}
}

func TestPrimaryNumber_AllYearsFallsBack(t *testing.T) {
	n, ok := primaryNumber("between 2020 and 2025")
	if !ok {
		t.Fatalf("expected a primary number")
	}
	if n != 2025 {
		t.Fatalf("expected fallback to largest year, got %f", n)
	}
}
