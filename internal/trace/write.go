package trace

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateRun inserts a new run and returns it.
// The run ID is a UUIDv7, so runs sort in creation order.
func (s *Store) CreateRun(ctx context.Context, name string, seed uint64) (Run, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}

	run := Run{
		ID:        id.String(),
		Name:      name,
		Seed:      seed,
		StartedAt: time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, name, seed, started_at)
		VALUES (?, ?, ?, ?)
	`,
		run.ID,
		run.Name,
		int64(run.Seed),
		run.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}

	return run, nil
}

// WriteSample inserts a sample. Writing the same state twice is a no-op.
func (s *Store) WriteSample(ctx context.Context, runID string, sample Sample) error {
	if err := s.writeState(ctx, "samples", runID, sample); err != nil {
		return fmt.Errorf("write sample: %w", err)
	}
	return nil
}

// WriteBestState inserts a best state. A later best state reported for the
// same chain state replaces the earlier one.
func (s *Store) WriteBestState(ctx context.Context, runID string, sample Sample) error {
	if err := s.writeState(ctx, "best_states", runID, sample); err != nil {
		return fmt.Errorf("write best state: %w", err)
	}
	return nil
}

func (s *Store) writeState(ctx context.Context, table, runID string, sample Sample) error {
	params, err := marshalParameters(sample.Parameters)
	if err != nil {
		return err
	}

	conflict := "DO NOTHING"
	if table == "best_states" {
		conflict = "DO UPDATE SET score = excluded.score, parameters = excluded.parameters"
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO `+table+` (run_id, state, score, parameters)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, state) `+conflict,
		runID,
		sample.State,
		sample.Score,
		params,
	)
	return err
}

// WriteOperatorStats replaces the operator statistics of a run.
func (s *Store) WriteOperatorStats(ctx context.Context, runID string, stats []OperatorStats) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write operator stats: %w", err)
	}
	defer tx.Rollback()

	for _, st := range stats {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO operator_stats
			(run_id, operator, accepted, rejected, sum_deviation, evaluation_ns, coercable_parameter)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, operator) DO UPDATE SET
				accepted = excluded.accepted,
				rejected = excluded.rejected,
				sum_deviation = excluded.sum_deviation,
				evaluation_ns = excluded.evaluation_ns,
				coercable_parameter = excluded.coercable_parameter
		`,
			runID,
			st.Operator,
			st.Accepted,
			st.Rejected,
			st.SumDeviation,
			st.EvaluationTime.Nanoseconds(),
			st.CoercableParameter,
		)
		if err != nil {
			return fmt.Errorf("write operator stats for %s: %w", st.Operator, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write operator stats: %w", err)
	}
	return nil
}

// WriteSummary inserts or replaces the summary of a run.
func (s *Store) WriteSummary(ctx context.Context, runID string, sum Summary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_summaries
		(run_id, length, initial_score, best_score, final_score, stopped, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			length = excluded.length,
			initial_score = excluded.initial_score,
			best_score = excluded.best_score,
			final_score = excluded.final_score,
			stopped = excluded.stopped,
			error = excluded.error
	`,
		runID,
		sum.Length,
		sum.InitialScore,
		sum.BestScore,
		sum.FinalScore,
		sum.Stopped,
		sum.Error,
	)
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// marshalParameters encodes parameter values as JSON. Map keys are sorted
// by encoding/json, so equal states encode identically.
func marshalParameters(params map[string][]float64) (string, error) {
	if params == nil {
		params = map[string][]float64{}
	}
	b, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("marshal parameters: %w", err)
	}
	return string(b), nil
}
