package trace

import (
	"context"
	"log/slog"

	"github.com/Yetoo1/beast-mcmc/internal/model"
	"github.com/Yetoo1/beast-mcmc/internal/operator"
	"github.com/Yetoo1/beast-mcmc/internal/schedule"
)

// Source is the read-only view of a chain the logger summarises on Finished.
type Source interface {
	InitialScore() float64
	CurrentScore() float64
	BestScore() float64
	IsStopped() bool
	Schedule() schedule.Schedule
}

// Logger is a chain listener that writes a run into a Store.
//
// Listener callbacks cannot return errors, so write failures are logged and
// the first one is kept for Err. Writes use a context detached from
// cancellation so the summary of an interrupted run is still recorded.
type Logger struct {
	ctx    context.Context
	store  *Store
	runID  string
	source Source
	params []*model.Parameter
	every  int64
	logger *slog.Logger

	runErr string
	err    error
}

// LoggerOption configures a Logger.
type LoggerOption func(*Logger)

// WithEvery sets the sampling interval in states. Values below 1 are
// ignored.
//
// Default: 1 (every state)
func WithEvery(n int64) LoggerOption {
	return func(l *Logger) {
		if n >= 1 {
			l.every = n
		}
	}
}

// WithSlogger sets the logger used to report write failures.
//
// Default: slog.Default()
func WithSlogger(s *slog.Logger) LoggerOption {
	return func(l *Logger) {
		l.logger = s
	}
}

// NewLogger creates a listener writing to run runID. params are the
// parameters recorded with every sample.
func NewLogger(ctx context.Context, st *Store, runID string, src Source, params []*model.Parameter, opts ...LoggerOption) *Logger {
	l := &Logger{
		ctx:    context.WithoutCancel(ctx),
		store:  st,
		runID:  runID,
		source: src,
		params: params,
		every:  1,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RunID returns the run being written.
func (l *Logger) RunID() string { return l.runID }

// Err returns the first write error, if any.
func (l *Logger) Err() error { return l.err }

// RecordError stores a fatal run error for the summary written on Finished.
func (l *Logger) RecordError(err error) {
	if err != nil {
		l.runErr = err.Error()
	}
}

// BestState records a new best state.
func (l *Logger) BestState(state int64, d model.Density) {
	l.check(l.store.WriteBestState(l.ctx, l.runID, l.sample(state, d)))
}

// CurrentState records a sample every Every states.
func (l *Logger) CurrentState(state int64, d model.Density) {
	if state%l.every != 0 {
		return
	}
	l.check(l.store.WriteSample(l.ctx, l.runID, l.sample(state, d)))
}

// Finished writes the operator statistics and the run summary.
func (l *Logger) Finished(length int64) {
	l.check(l.store.WriteOperatorStats(l.ctx, l.runID, CollectOperatorStats(l.source.Schedule())))
	l.check(l.store.WriteSummary(l.ctx, l.runID, Summary{
		Length:       length,
		InitialScore: l.source.InitialScore(),
		BestScore:    l.source.BestScore(),
		FinalScore:   l.source.CurrentScore(),
		Stopped:      l.source.IsStopped(),
		Error:        l.runErr,
	}))
}

func (l *Logger) sample(state int64, d model.Density) Sample {
	values := make(map[string][]float64, len(l.params))
	for _, p := range l.params {
		values[p.ID()] = p.Values()
	}
	return Sample{
		State:      state,
		Score:      d.LogDensity(),
		Parameters: values,
	}
}

func (l *Logger) check(err error) {
	if err == nil {
		return
	}
	l.logger.Error("trace write failed", "run", l.runID, "error", err)
	if l.err == nil {
		l.err = err
	}
}

// CollectOperatorStats snapshots the tally of every operator in s, in
// schedule order.
func CollectOperatorStats(s schedule.Schedule) []OperatorStats {
	stats := make([]OperatorStats, 0, s.OperatorCount())
	for i := 0; i < s.OperatorCount(); i++ {
		op := s.Operator(i)
		c := op.Counts()
		st := OperatorStats{
			Operator:       op.Name(),
			Accepted:       c.Accepted,
			Rejected:       c.Rejected,
			SumDeviation:   c.SumDeviation,
			EvaluationTime: c.EvaluationTime,
		}
		if co, ok := op.(operator.Coercible); ok {
			v := co.CoercableParameter()
			st.CoercableParameter = &v
		}
		stats = append(stats, st)
	}
	return stats
}
