package analytics_test

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"pipeval/internal/analytics"
	"pipeval/internal/ledger"
	"pipeval/internal/testutil"
)

func openMirror(t *testing.T) *sql.DB {
	t.Helper()
	db, err := analytics.Open(":memory:")
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := analytics.EnsureSchema(db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return db
}

func mirrorLedger(t *testing.T, iterations ...[]ledger.Attempt) *ledger.Ledger {
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

func verdictAttempt(id, pipeline string, correct bool) ledger.Attempt {
	return ledger.Attempt{QuestionID: id, Pipeline: pipeline, Correct: correct, LatencyMS: 25, MatchMethod: "ENTITY_MATCH"}
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	db := openMirror(t)
	if err := analytics.EnsureSchema(db); err != nil {
		t.Fatalf("second EnsureSchema: %v", err)
	}
}

func TestIngest_Idempotent(t *testing.T) {
	ctx := testutil.Context(t, 0)
	db := openMirror(t)
	led := mirrorLedger(t, []ledger.Attempt{
		verdictAttempt("q1", "alpha", true),
		verdictAttempt("q2", "alpha", false),
	})

	for i := 0; i < 3; i++ {
		if err := analytics.Ingest(ctx, db, led.Iterations()); err != nil {
			t.Fatalf("ingest pass %d: %v", i, err)
		}
	}

	var attempts int
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM attempts").Scan(&attempts); err != nil {
		t.Fatal(err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d after repeated ingest, want 2", attempts)
	}
	var iterations int
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM iterations").Scan(&iterations); err != nil {
		t.Fatal(err)
	}
	if iterations != 1 {
		t.Errorf("iterations = %d, want 1", iterations)
	}
}

func TestIngest_SkipsOpenIterations(t *testing.T) {
	ctx := testutil.Context(t, 0)
	db := openMirror(t)

	led := ledger.New()
	seq := led.StartIteration("run-open", "", time.Now().UTC())
	if err := led.Append(seq, verdictAttempt("q1", "alpha", true)); err != nil {
		t.Fatal(err)
	}
	if err := analytics.Ingest(ctx, db, led.Iterations()); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM iterations").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("open iteration mirrored: count = %d", count)
	}
}

func TestTrendSeries(t *testing.T) {
	ctx := testutil.Context(t, 0)
	db := openMirror(t)
	led := mirrorLedger(t,
		[]ledger.Attempt{
			verdictAttempt("q1", "alpha", true),
			verdictAttempt("q2", "alpha", false),
			verdictAttempt("b1", "beta", true),
		},
		[]ledger.Attempt{
			verdictAttempt("q1", "alpha", true),
			verdictAttempt("q2", "alpha", true),
		},
	)
	if err := analytics.Ingest(ctx, db, led.Iterations()); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	points, err := analytics.TrendSeries(ctx, db, "alpha")
	if err != nil {
		t.Fatalf("TrendSeries: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("points = %+v, want 2", points)
	}
	if points[0].Sequence != 1 || points[0].Accuracy != 0.5 {
		t.Errorf("first point = %+v, want sequence 1 accuracy 0.5", points[0])
	}
	if points[1].Sequence != 2 || points[1].Accuracy != 1.0 {
		t.Errorf("second point = %+v, want sequence 2 accuracy 1.0", points[1])
	}

	beta, err := analytics.TrendSeries(ctx, db, "beta")
	if err != nil {
		t.Fatal(err)
	}
	if len(beta) != 1 {
		t.Errorf("beta points = %+v, want 1", beta)
	}
}
