package analytics

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"pipeval/internal/analysis"
	"pipeval/internal/ledger"
)

// Ingest mirrors finished iterations into the database. Rows are keyed by a
// content fingerprint, so re-ingesting the same ledger is a no-op and a
// partially mirrored database converges on the next call.
func Ingest(ctx context.Context, db *sql.DB, iterations []ledger.Iteration) error {
	if db == nil {
		return fmt.Errorf("analytics: db is nil")
	}
	for _, iteration := range iterations {
		if !iteration.Finished() {
			continue
		}
		iterationID, err := upsertIteration(ctx, db, iteration)
		if err != nil {
			return err
		}
		for _, attempt := range iteration.Attempts {
			if err := upsertAttempt(ctx, db, iterationID, iteration.Sequence, attempt); err != nil {
				return err
			}
		}
	}
	return nil
}

func upsertIteration(ctx context.Context, db *sql.DB, iteration ledger.Iteration) (string, error) {
	key, err := fingerprintJSON(map[string]any{
		"run_id":   iteration.ID,
		"sequence": iteration.Sequence,
	})
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	if _, err := db.ExecContext(
		ctx,
		`INSERT INTO iterations (iteration_id, iteration_key, run_id, sequence, label, started_at, finished_at, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, now())
		 ON CONFLICT (iteration_key) DO NOTHING`,
		id,
		key,
		iteration.ID,
		iteration.Sequence,
		iteration.Label,
		iteration.StartedAt,
		iteration.FinishedAt,
	); err != nil {
		return "", fmt.Errorf("upsert iteration: %w", err)
	}
	outID, err := lookupID(ctx, db, "iterations", "iteration_id", "iteration_key", key)
	if err != nil {
		return "", fmt.Errorf("lookup iteration id: %w", err)
	}
	return outID, nil
}

func upsertAttempt(ctx context.Context, db *sql.DB, iterationID string, sequence int, attempt ledger.Attempt) error {
	key, err := fingerprintJSON(map[string]any{
		"sequence":    sequence,
		"question_id": attempt.QuestionID,
		"pipeline":    attempt.Pipeline,
	})
	if err != nil {
		return err
	}
	id := uuid.NewString()
	if _, err := db.ExecContext(
		ctx,
		`INSERT INTO attempts (
		   attempt_id, attempt_key, iteration_id, sequence, question_id, pipeline,
		   correct, score, match_method, latency_ms, error_type, attempted_at, ingested_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, now())
		 ON CONFLICT (attempt_key) DO NOTHING`,
		id,
		key,
		iterationID,
		sequence,
		attempt.QuestionID,
		attempt.Pipeline,
		attempt.Correct,
		attempt.Score,
		attempt.MatchMethod,
		attempt.LatencyMS,
		attempt.ErrorType,
		attempt.Timestamp,
	); err != nil {
		return fmt.Errorf("upsert attempt: %w", err)
	}
	return nil
}

// lookupID fetches a single ID column value for a row keyed by keyColumn.
func lookupID(ctx context.Context, db *sql.DB, table, idColumn, keyColumn, key string) (string, error) {
	query := fmt.Sprintf("SELECT CAST(%s AS VARCHAR) FROM %s WHERE %s = ?", idColumn, table, keyColumn)
	var id string
	if err := db.QueryRowContext(ctx, query, key).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

// TrendSeries reads a pipeline's accuracy per iteration from the mirror, in
// sequence order.
func TrendSeries(ctx context.Context, db *sql.DB, pipeline string) ([]analysis.TrendPoint, error) {
	rows, err := db.QueryContext(
		ctx,
		`SELECT sequence, accuracy FROM v_pipeline_trend WHERE pipeline = ? ORDER BY sequence`,
		pipeline,
	)
	if err != nil {
		return nil, fmt.Errorf("query trend: %w", err)
	}
	defer rows.Close()

	var points []analysis.TrendPoint
	for rows.Next() {
		var point analysis.TrendPoint
		if err := rows.Scan(&point.Sequence, &point.Accuracy); err != nil {
			return nil, fmt.Errorf("scan trend: %w", err)
		}
		points = append(points, point)
	}
	return points, rows.Err()
}
