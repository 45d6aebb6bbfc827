package trace

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ListRuns returns all runs ordered by ID, which is creation order.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, seed, started_at
		FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			r       Run
			seed    int64
			started string
		)
		if err := rows.Scan(&r.ID, &r.Name, &seed, &started); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Seed = uint64(seed)
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse started_at of run %s: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

// ReadSamples returns a run's samples ordered by state.
func (s *Store) ReadSamples(ctx context.Context, runID string) ([]Sample, error) {
	return s.readStates(ctx, "samples", runID)
}

// ReadBestStates returns a run's best states ordered by state.
func (s *Store) ReadBestStates(ctx context.Context, runID string) ([]Sample, error) {
	return s.readStates(ctx, "best_states", runID)
}

func (s *Store) readStates(ctx context.Context, table, runID string) ([]Sample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT state, score, parameters
		FROM `+table+`
		WHERE run_id = ?
		ORDER BY state ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	samples := []Sample{}
	for rows.Next() {
		var (
			smp    Sample
			params string
		)
		if err := rows.Scan(&smp.State, &smp.Score, &params); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		if err := json.Unmarshal([]byte(params), &smp.Parameters); err != nil {
			return nil, fmt.Errorf("unmarshal parameters at state %d: %w", smp.State, err)
		}
		samples = append(samples, smp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}

	return samples, nil
}

// ReadSummary returns a run's summary, or ErrNotFound if the run has not
// finished.
func (s *Store) ReadSummary(ctx context.Context, runID string) (Summary, error) {
	var sum Summary
	err := s.db.QueryRowContext(ctx, `
		SELECT length, initial_score, best_score, final_score, stopped, error
		FROM run_summaries
		WHERE run_id = ?
	`, runID).Scan(
		&sum.Length,
		&sum.InitialScore,
		&sum.BestScore,
		&sum.FinalScore,
		&sum.Stopped,
		&sum.Error,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Summary{}, fmt.Errorf("summary of run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return Summary{}, fmt.Errorf("read summary: %w", err)
	}
	return sum, nil
}

// ReadOperatorStats returns a run's operator statistics ordered by name.
func (s *Store) ReadOperatorStats(ctx context.Context, runID string) ([]OperatorStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT operator, accepted, rejected, sum_deviation, evaluation_ns, coercable_parameter
		FROM operator_stats
		WHERE run_id = ?
		ORDER BY operator COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query operator stats: %w", err)
	}
	defer rows.Close()

	stats := []OperatorStats{}
	for rows.Next() {
		var (
			st     OperatorStats
			evalNS int64
			param  sql.NullFloat64
		)
		if err := rows.Scan(&st.Operator, &st.Accepted, &st.Rejected, &st.SumDeviation, &evalNS, &param); err != nil {
			return nil, fmt.Errorf("scan operator stats: %w", err)
		}
		st.EvaluationTime = time.Duration(evalNS)
		if param.Valid {
			v := param.Float64
			st.CoercableParameter = &v
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operator stats: %w", err)
	}

	return stats, nil
}
