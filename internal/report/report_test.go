package report

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"pipeval/internal/analysis"
	"pipeval/internal/ledger"
	"pipeval/internal/spec"
)

func reportLedger(t *testing.T, iterations ...[]ledger.Attempt) *ledger.Ledger {
	t.Helper()
	led := ledger.New()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i, attempts := range iterations {
		seq := led.StartIteration(fmt.Sprintf("run-%d", i+1), "", base.Add(time.Duration(i)*time.Hour))
		for _, attempt := range attempts {
			attempt.Timestamp = base.Add(time.Duration(i) * time.Hour)
			if err := led.Append(seq, attempt); err != nil {
				t.Fatal(err)
			}
		}
		if err := led.FinishIteration(seq, base.Add(time.Duration(i)*time.Hour+time.Minute)); err != nil {
			t.Fatal(err)
		}
	}
	return led
}

func reportConfig() spec.Config {
	return spec.Config{
		Pipelines: []spec.PipelineConfig{
			{Name: "alpha", AccuracyTarget: 0.9},
		},
		Analysis: spec.AnalysisConfig{PlateauPP: 1.0},
	}
}

func TestBuildAndRender(t *testing.T) {
	led := reportLedger(t,
		[]ledger.Attempt{
			{QuestionID: "q1", Pipeline: "alpha", Correct: true, MatchMethod: "ENTITY_MATCH", LatencyMS: 10},
			{QuestionID: "q2", Pipeline: "alpha", Correct: true, MatchMethod: "F1_MATCH", LatencyMS: 20},
		},
		[]ledger.Attempt{
			{QuestionID: "q1", Pipeline: "alpha", Correct: true, MatchMethod: "ENTITY_MATCH", LatencyMS: 12},
			{QuestionID: "q2", Pipeline: "alpha", MatchMethod: "PARTIAL", Score: 0.2, LatencyMS: 18},
			{QuestionID: "q3", Pipeline: "alpha", Error: "boom", ErrorType: "timeout", LatencyMS: 90},
		},
	)

	data := Build(reportConfig(), led, nil)
	if !data.HasLatest || data.Latest.Sequence != 2 {
		t.Fatalf("latest = %+v", data.Latest)
	}
	if len(data.Comparison.Regressions) != 1 || data.Comparison.Regressions[0].QuestionID != "q2" {
		t.Errorf("regressions = %+v", data.Comparison.Regressions)
	}
	if len(data.ErrorGroups) != 1 || data.ErrorGroups[0].ErrorType != "timeout" {
		t.Errorf("error groups = %+v", data.ErrorGroups)
	}

	var buf bytes.Buffer
	Render(&buf, data)
	out := buf.String()
	for _, want := range []string{
		"Iteration 2 (run-2)",
		"alpha",
		"REGRESSED  q2",
		"below target",
		"timeout",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestBuild_TrendSourcePreferred(t *testing.T) {
	// The ledger shows a 50pp jump for alpha, so the ledger-derived trend is
	// not a plateau. A trend source (the analytics mirror) reporting a flat
	// series must win over it.
	led := reportLedger(t,
		[]ledger.Attempt{
			{QuestionID: "q1", Pipeline: "alpha", Correct: false, MatchMethod: "PARTIAL", LatencyMS: 10},
			{QuestionID: "q2", Pipeline: "alpha", Correct: true, MatchMethod: "ENTITY_MATCH", LatencyMS: 10},
		},
		[]ledger.Attempt{
			{QuestionID: "q1", Pipeline: "alpha", Correct: true, MatchMethod: "ENTITY_MATCH", LatencyMS: 10},
			{QuestionID: "q2", Pipeline: "alpha", Correct: true, MatchMethod: "ENTITY_MATCH", LatencyMS: 10},
		},
	)

	flat := func(pipeline string) ([]analysis.TrendPoint, error) {
		return []analysis.TrendPoint{
			{Sequence: 1, Accuracy: 0.7},
			{Sequence: 2, Accuracy: 0.7},
		}, nil
	}
	data := Build(reportConfig(), led, flat)
	if len(data.Plateaus) != 1 || data.Plateaus[0].Pipeline != "alpha" {
		t.Fatalf("plateaus = %+v, want alpha from the trend source", data.Plateaus)
	}
	if data.Plateaus[0].Accuracy != 0.7 {
		t.Errorf("plateau accuracy = %f, want the source's 0.7", data.Plateaus[0].Accuracy)
	}
}

func TestBuild_TrendSourceFailureFallsBackToLedger(t *testing.T) {
	led := reportLedger(t,
		[]ledger.Attempt{
			{QuestionID: "q1", Pipeline: "alpha", Correct: true, MatchMethod: "ENTITY_MATCH", LatencyMS: 10},
		},
		[]ledger.Attempt{
			{QuestionID: "q1", Pipeline: "alpha", Correct: true, MatchMethod: "ENTITY_MATCH", LatencyMS: 10},
		},
	)

	broken := func(pipeline string) ([]analysis.TrendPoint, error) {
		return nil, errors.New("mirror offline")
	}
	data := Build(reportConfig(), led, broken)
	// Ledger trend is flat at 1.0 across both iterations: a plateau.
	if len(data.Plateaus) != 1 {
		t.Fatalf("plateaus = %+v, want ledger fallback to detect one", data.Plateaus)
	}
	if data.Plateaus[0].Accuracy != 1.0 {
		t.Errorf("plateau accuracy = %f, want ledger-derived 1.0", data.Plateaus[0].Accuracy)
	}
}

func TestRender_EmptyLedger(t *testing.T) {
	var buf bytes.Buffer
	Render(&buf, Build(reportConfig(), ledger.New(), nil))
	if !strings.Contains(buf.String(), "No finished iterations") {
		t.Errorf("empty report = %q", buf.String())
	}
}
