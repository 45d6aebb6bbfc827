package chain

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/Yetoo1/beast-mcmc/internal/acceptor"
	"github.com/Yetoo1/beast-mcmc/internal/model"
	"github.com/Yetoo1/beast-mcmc/internal/operator"
	"github.com/Yetoo1/beast-mcmc/internal/schedule"
)

// Chain is a single Markov chain.
//
// CRITICAL: Run must be called from one goroutine at a time. Storables and
// operators belong to the chain for the duration of Run; nothing else may
// mutate them concurrently.
//
// Thread-safety model:
//   - Run, Reset, Terminate, Add/Remove*: sampling goroutine only
//   - RequestStop, IsStopped, Length: safe from any goroutine
//
// INVARIANTS:
//   - bestScore is non-decreasing and equals the highest committed score
//   - after a rejected iteration every storable is bit-identical to its
//     value before that iteration's checkpoint
//   - the full-evaluation window closes at most once per Run
type Chain struct {
	density  model.Density
	schedule schedule.Schedule
	acceptor acceptor.Acceptor
	registry *model.Registry

	settings        Settings
	logger          *slog.Logger
	allowImpossible map[string]bool

	// storables is refreshed from the registry at the start of every Run.
	storables model.StorableSet

	initialScore float64
	currentScore float64
	bestScore    float64
	length       atomic.Int64

	stopRequested atomic.Bool
	stopped       atomic.Bool

	// fullEval is non-nil only while Run executes.
	fullEval *fullEvaluation

	listeners []Listener
	delegates []Delegate
	notifying bool
}

// New creates a chain over the joint density d.
//
// The density and its transitive components are connected in the registry;
// registered densities that remain unconnected are reported as warnings.
// The initial score is evaluated once. No iteration runs yet.
//
// A nil registry is replaced by an empty one, in which case the chain has no
// storables to checkpoint.
func New(
	d model.Density,
	s schedule.Schedule,
	a acceptor.Acceptor,
	reg *model.Registry,
	opts ...Option,
) (*Chain, error) {
	if d == nil {
		return nil, errors.New("chain: nil density")
	}
	if s == nil || s.OperatorCount() == 0 {
		return nil, errors.New("chain: schedule has no operators")
	}
	if a == nil {
		return nil, errors.New("chain: nil acceptor")
	}
	if reg == nil {
		reg = model.NewRegistry()
	}

	c := &Chain{
		density:         d,
		schedule:        s,
		acceptor:        a,
		registry:        reg,
		settings:        DefaultSettings(),
		logger:          slog.Default(),
		allowImpossible: make(map[string]bool),
	}

	for _, opt := range opts {
		opt(c)
	}

	reg.Connect(d)
	for _, id := range reg.Orphans() {
		c.logger.Warn("density component created but not used in the chain",
			"component", id,
		)
	}

	c.currentScore = c.density.LogDensity()
	return c, nil
}

// Run advances the chain by up to length iterations and returns the chain
// length afterwards.
//
// The run ends early, without error, when a stop is requested or ctx is
// cancelled; IsStopped then reports true. A fatal fault returns a
// *ChainError; the chain length then reflects the iterations that
// completed before the fault.
//
// disableCoercion suspends adaptive tuning for this call only.
func (c *Chain) Run(ctx context.Context, length int64, disableCoercion bool) (int64, error) {
	c.storables = c.registry.Storables()

	c.density.MakeDirty()
	c.currentScore = c.density.LogDensity()

	if err := c.checkInitialScore(); err != nil {
		return c.length.Load(), err
	}

	state := c.length.Load()
	if state == 0 {
		c.initialScore = c.currentScore
		c.bestScore = c.currentScore
		c.fireBestState(state)
	}

	c.stopRequested.Store(false)
	c.stopped.Store(false)

	c.fullEval = newFullEvaluation(c.settings)
	defer func() { c.fullEval = nil }()

	c.logger.Info("chain starting",
		"state", state,
		"length", length,
		"score", c.currentScore,
		"full_evaluation", c.fullEval.active,
	)

	end := state + length
	for state < end {
		c.fireCurrentState(state)

		if c.stopRequested.Load() || ctx.Err() != nil {
			c.stopped.Store(true)
			c.logger.Info("chain stopping: stop requested", "state", state)
			break
		}

		if err := c.step(state, disableCoercion); err != nil {
			return state, err
		}

		c.fireIterationEnd(state)
		state++
		c.length.Store(state)
	}

	c.logger.Info("chain finished run",
		"state", state,
		"score", c.currentScore,
		"best", c.bestScore,
	)
	return state, nil
}

// checkInitialScore rejects an impossible or non-finite starting state.
func (c *Chain) checkInitialScore() error {
	switch score := c.currentScore; {
	case math.IsInf(score, -1):
		return newInitialZeroError(model.Diagnose(c.density))
	case math.IsInf(score, 1) || math.IsNaN(score):
		return newNumericalError(model.Diagnose(c.density))
	}
	return nil
}

// step runs one iteration: propose, evaluate, decide, commit or roll back,
// tune, and close the full-evaluation window when due.
func (c *Chain) step(state int64, disableCoercion bool) error {
	op := c.schedule.Operator(c.schedule.NextOperatorIndex())
	oldScore := c.currentScore

	var diagnosisBefore string
	if c.fullEval.active {
		diagnosisBefore = model.Diagnose(c.density)
	}

	c.storables.Store()

	logHastings, err := c.propose(op)
	proposed := true
	if err != nil {
		if !errors.Is(err, operator.ErrFailed) {
			c.storables.Restore()
			return newOperatorError(state, op.Name(), err)
		}
		proposed = false
	}

	decision := acceptor.Decision{LogR: acceptor.NoLogR}
	score := math.Inf(-1)

	if proposed {
		score = c.evaluate(op)

		var diagnosisProposed string
		if c.fullEval.active {
			diagnosisProposed = model.Diagnose(c.density)
		}

		score = c.sanitize(state, score)

		if c.fullEval.active {
			c.verify(state, op, score, diagnosisProposed, "state was not correctly calculated after an operator move")
		}

		if isGuaranteedAccept(op) {
			if math.IsInf(score, -1) && !c.allowImpossible[op.Name()] {
				c.logger.Warn("guaranteed-accept operator returned a state with zero likelihood",
					"state", state,
					"operator", op.Name(),
				)
			}
			decision.Accept = true
		} else {
			decision = c.acceptor.Accept(oldScore, score, logHastings)
		}
	}

	if decision.Accept {
		op.Accept(score - oldScore)
		c.storables.Accept()
		c.currentScore = score
		if score > c.bestScore {
			c.bestScore = score
			c.fireBestState(state)
		}
	} else {
		op.Reject()
		c.storables.Restore()
		if c.fullEval.active {
			c.verify(state, op, oldScore, diagnosisBefore, "state was not correctly restored after reject step")
		}
	}

	if !disableCoercion {
		if co, ok := op.(operator.Coercible); ok && c.isCoercible(co) {
			c.coerce(op, co, decision.LogR)
		}
	}

	return c.closeFullEvaluation(state)
}

// propose dispatches to ProposeWith for density-aware operators.
func (c *Chain) propose(op operator.Operator) (float64, error) {
	if da, ok := op.(operator.DensityAware); ok {
		return da.ProposeWith(c.density)
	}
	return op.Propose()
}

// evaluate scores the proposed state and charges the time to op.
func (c *Chain) evaluate(op operator.Operator) float64 {
	start := time.Now()
	score := c.density.LogDensity()
	op.AddEvaluationTime(time.Since(start))
	return score
}

// sanitize downgrades a +Inf or NaN score to -Inf so the state is rejected
// and sampling continues.
func (c *Chain) sanitize(state int64, score float64) float64 {
	if !math.IsInf(score, 1) && !math.IsNaN(score) {
		return score
	}
	c.logger.Error("a likelihood returned with a numerical error",
		"state", state,
		"score", score,
		"diagnosis", model.Diagnose(c.density),
	)
	return math.Inf(-1)
}

func isGuaranteedAccept(op operator.Operator) bool {
	ga, ok := op.(operator.GuaranteedAccept)
	return ok && ga.GuaranteedAccept()
}

// Reset zeroes the chain length and every operator's tally. The current
// state and scores are kept.
func (c *Chain) Reset() {
	c.length.Store(0)
	for i := 0; i < c.schedule.OperatorCount(); i++ {
		c.schedule.Operator(i).Reset()
	}
}

// Terminate notifies listeners and delegates that the chain has finished.
// It does not change any state.
func (c *Chain) Terminate() {
	c.fireFinished(c.length.Load())
}

// RequestStop asks a running chain to stop at the next iteration boundary.
// Safe to call from any goroutine. A request made before Run starts is
// cleared by Run.
func (c *Chain) RequestStop() {
	c.stopRequested.Store(true)
}

// IsStopped reports whether the last Run ended because of a stop request.
func (c *Chain) IsStopped() bool {
	return c.stopped.Load()
}

// Length returns the number of iterations completed over the chain's
// lifetime. Safe to call from any goroutine.
func (c *Chain) Length() int64 {
	return c.length.Load()
}

// SetLength sets the chain length, e.g. to resume numbering after a
// restored checkpoint.
func (c *Chain) SetLength(n int64) {
	c.length.Store(n)
}

// Evaluate returns the joint density of the current state without forcing
// a full recomputation.
func (c *Chain) Evaluate() float64 {
	return c.density.LogDensity()
}

// FullEvaluationActive reports whether the current Run is still in its
// full-evaluation window. It is false outside Run.
func (c *Chain) FullEvaluationActive() bool {
	return c.fullEval != nil && c.fullEval.active
}

// Density returns the joint density.
func (c *Chain) Density() model.Density { return c.density }

// Schedule returns the operator schedule.
func (c *Chain) Schedule() schedule.Schedule { return c.schedule }

// Acceptor returns the acceptor.
func (c *Chain) Acceptor() acceptor.Acceptor { return c.acceptor }

// Registry returns the component registry.
func (c *Chain) Registry() *model.Registry { return c.registry }

// Settings returns the chain settings.
func (c *Chain) Settings() Settings { return c.settings }

// InitialScore returns the score recorded by the first Run.
func (c *Chain) InitialScore() float64 { return c.initialScore }

// CurrentScore returns the score of the current state.
func (c *Chain) CurrentScore() float64 { return c.currentScore }

// BestScore returns the highest score committed so far.
func (c *Chain) BestScore() float64 { return c.bestScore }
