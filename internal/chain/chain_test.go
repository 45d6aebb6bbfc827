package chain

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yetoo1/beast-mcmc/internal/acceptor"
	"github.com/Yetoo1/beast-mcmc/internal/density"
	"github.com/Yetoo1/beast-mcmc/internal/model"
	"github.com/Yetoo1/beast-mcmc/internal/operator"
	"github.com/Yetoo1/beast-mcmc/internal/testutil"
)

func TestNew_RejectsMissingComponents(t *testing.T) {
	d := density.NewConstant("c", 0)
	s := testutil.Sequential(testutil.NewOperator("op", nil))

	_, err := New(nil, s, acceptor.Greedy{}, nil)
	assert.Error(t, err)

	_, err = New(d, nil, acceptor.Greedy{}, nil)
	assert.Error(t, err)

	_, err = New(d, s, nil, nil)
	assert.Error(t, err)
}

func TestNew_EvaluatesInitialScoreWithoutIterating(t *testing.T) {
	d := testutil.NewFuncDensity("f", func() float64 { return -4 })
	op := testutil.NewOperator("op", nil)

	c := newTestChain(t, d, testutil.Sequential(op), acceptor.Greedy{}, nil)

	assert.Equal(t, -4.0, c.CurrentScore())
	assert.Equal(t, int64(0), c.Length())
	assert.Equal(t, 1, d.Evaluations)
	assert.Equal(t, 0, op.Proposals)
}

func TestNew_WarnsAboutOrphanedComponents(t *testing.T) {
	logger, buf := captureLogger()
	reg := model.NewRegistry()
	reg.AddDensity(density.NewConstant("forgotten", 0))

	_, err := New(density.NewConstant("joint", 0),
		testutil.Sequential(testutil.NewOperator("op", nil)),
		acceptor.Greedy{}, reg, WithLogger(logger))
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "density component created but not used in the chain")
	assert.Contains(t, buf.String(), "component=forgotten")
	assert.NotContains(t, buf.String(), "component=joint")
}

// A guaranteed-accept operator on a constant density commits every
// iteration and leaves the score at the constant.
func TestRun_GuaranteedAcceptCommitsEveryIteration(t *testing.T) {
	x := testutil.NewScalar(0)
	op := testutil.NewOperator("gibbs", func() (float64, error) {
		x.Set(x.Value() + 1)
		return 0, nil
	})
	op.Guaranteed = true

	c := newTestChain(t, density.NewConstant("c", -3.5), testutil.Sequential(op),
		acceptor.Greedy{}, testutil.Registry(x))

	n, err := c.Run(context.Background(), 100, false)
	require.NoError(t, err)

	assert.Equal(t, int64(100), n)
	assert.Equal(t, -3.5, c.CurrentScore())
	assert.Equal(t, int64(100), op.Counts().Accepted)
	assert.Equal(t, int64(0), op.Counts().Rejected)
	assert.Equal(t, 100.0, x.Value())
	assert.Equal(t, 100, x.Accepts)
	assert.Equal(t, 0, x.Restores)
}

// Guaranteed-accept operators bypass the acceptor even when the score drops.
func TestRun_GuaranteedAcceptIgnoresAcceptor(t *testing.T) {
	x := testutil.NewScalar(0)
	d := testutil.NewFuncDensity("f", func() float64 { return -x.Value() })
	op := testutil.NewOperator("gibbs", func() (float64, error) {
		x.Set(x.Value() + 1)
		return 0, nil
	})
	op.Guaranteed = true

	c := newTestChain(t, d, testutil.Sequential(op), acceptor.Greedy{}, testutil.Registry(x))

	_, err := c.Run(context.Background(), 10, false)
	require.NoError(t, err)

	assert.Equal(t, -10.0, c.CurrentScore())
	assert.Equal(t, 0.0, c.BestScore())
	assert.Equal(t, 0, x.Restores)
}

// An operator that always fails rejects every iteration and leaves every
// storable exactly where it started.
func TestRun_AlwaysFailingOperatorRejectsEverything(t *testing.T) {
	x := testutil.NewScalar(1)
	d := testutil.NewFuncDensity("f", func() float64 { return -x.Value() * x.Value() })
	op := testutil.NewOperator("broken", func() (float64, error) {
		x.Set(99)
		return testutil.Fail()
	})

	c := newTestChain(t, d, testutil.Sequential(op),
		acceptor.NewMetropolisHastings(1, testutil.NewRand(1)), testutil.Registry(x))

	n, err := c.Run(context.Background(), 50, false)
	require.NoError(t, err)

	assert.Equal(t, int64(50), n)
	assert.Equal(t, c.InitialScore(), c.CurrentScore())
	assert.Equal(t, 1.0, x.Value())
	assert.Equal(t, int64(50), op.Counts().Rejected)
	assert.Equal(t, int64(0), op.Counts().Accepted)
	assert.Equal(t, 50, x.Restores)
}

// Rollback restores parameters bit for bit.
func TestRun_RejectRestoresParametersExactly(t *testing.T) {
	p := model.NewParameter("mu", 0.1, 0.2, 0.3)
	reg := model.NewRegistry()
	reg.AddStorable(p)

	rng := testutil.NewRand(7)
	op := operator.NewRandomWalk("walk", p, -1, 1, operator.NewCoercion(operator.CoercionOff, 0.234), rng)

	// Every move lowers this density, so greedy acceptance rejects unless
	// the walk lands exactly on the old point.
	d := testutil.NewFuncDensity("d", func() float64 {
		return -math.Abs(p.Value(0)-0.1) - math.Abs(p.Value(1)-0.2) - math.Abs(p.Value(2)-0.3)
	})

	var before []float64
	snapshot := testutil.NewOperator("snapshot", func() (float64, error) {
		before = p.Values()
		return testutil.Fail()
	})

	c := newTestChain(t, d, testutil.Sequential(snapshot, op), acceptor.Greedy{}, reg)

	for i := 0; i < 20; i++ {
		_, err := c.Run(context.Background(), 2, false)
		require.NoError(t, err)
		assert.Equal(t, before, p.Values())
	}
	assert.Equal(t, int64(0), op.Counts().Accepted)
}

func newWalkChain(t *testing.T, seed uint64) (*Chain, *model.Parameter) {
	t.Helper()
	p := model.NewParameter("x", 0.5)
	reg := model.NewRegistry()
	reg.AddStorable(p)

	rng := testutil.NewRand(seed)
	op := operator.NewRandomWalk("walk", p, 0, 0.75, operator.NewCoercion(operator.CoercionDefault, 0.234), rng)
	joint := model.NewCompound("joint", density.Normal("prior", p, 0, 1))

	return newTestChain(t, joint, testutil.Sequential(op),
		acceptor.NewMetropolisHastings(1, rng), reg), p
}

func TestRun_ConsecutiveRunsMatchOneLongRun(t *testing.T) {
	split, splitParam := newWalkChain(t, 2024)
	whole, wholeParam := newWalkChain(t, 2024)

	n, err := split.Run(context.Background(), 50, false)
	require.NoError(t, err)
	assert.Equal(t, int64(50), n)

	n, err = split.Run(context.Background(), 50, false)
	require.NoError(t, err)
	assert.Equal(t, int64(100), n)

	n, err = whole.Run(context.Background(), 100, false)
	require.NoError(t, err)
	assert.Equal(t, int64(100), n)

	assert.Equal(t, whole.CurrentScore(), split.CurrentScore())
	assert.Equal(t, whole.BestScore(), split.BestScore())
	assert.Equal(t, wholeParam.Values(), splitParam.Values())
	assert.Equal(t, whole.InitialScore(), split.InitialScore())
}

// stopper blocks the sampling goroutine at one iteration end until another
// goroutine has requested a stop.
type stopper struct {
	at      int64
	reached chan struct{}
	resume  chan struct{}
}

func (s *stopper) IterationStart(int64) {}
func (s *stopper) Finished(int64)       {}
func (s *stopper) IterationEnd(state int64) {
	if state == s.at {
		close(s.reached)
		<-s.resume
	}
}

func TestRun_StopFromAnotherGoroutine(t *testing.T) {
	op := testutil.NewOperator("op", nil)
	c := newTestChain(t, density.NewConstant("c", 0), testutil.Sequential(op), acceptor.Greedy{}, nil)

	st := &stopper{at: 9, reached: make(chan struct{}), resume: make(chan struct{})}
	c.AddDelegate(st)

	go func() {
		<-st.reached
		c.RequestStop()
		close(st.resume)
	}()

	n, err := c.Run(context.Background(), 1000, false)
	require.NoError(t, err)

	assert.True(t, c.IsStopped())
	assert.Equal(t, int64(10), n)
	assert.Less(t, n, int64(1000))
	assert.Equal(t, n, c.Length())
	assert.Equal(t, 10, op.Proposals, "the in-flight iteration completes")
}

func TestRun_ContextCancellationStops(t *testing.T) {
	op := testutil.NewOperator("op", nil)
	c := newTestChain(t, density.NewConstant("c", 0), testutil.Sequential(op), acceptor.Greedy{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.AddDelegate(delegateFunc(func(state int64) {
		if state == 4 {
			cancel()
		}
	}))

	n, err := c.Run(ctx, 100, false)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.True(t, c.IsStopped())
}

func TestRun_ClearsStaleStopRequest(t *testing.T) {
	op := testutil.NewOperator("op", nil)
	c := newTestChain(t, density.NewConstant("c", 0), testutil.Sequential(op), acceptor.Greedy{}, nil)

	c.RequestStop()
	n, err := c.Run(context.Background(), 5, false)
	require.NoError(t, err)

	assert.Equal(t, int64(5), n)
	assert.False(t, c.IsStopped())
}

func TestRun_InitialZeroIsFatal(t *testing.T) {
	d := testutil.NewFuncDensity("f", func() float64 { return math.Inf(-1) })
	d.Diag = "prior=-Inf (zero)"
	op := testutil.NewOperator("op", nil)
	c := newTestChain(t, d, testutil.Sequential(op), acceptor.Greedy{}, nil)

	rec := &countingListener{}
	c.AddListener(rec)

	n, err := c.Run(context.Background(), 10, false)
	require.Error(t, err)

	assert.True(t, IsInitialZeroError(err))
	assert.Equal(t, int64(0), n)
	assert.Equal(t, 0, op.Proposals)
	assert.Equal(t, 0, rec.best, "no best-state event for an impossible start")

	var ce *ChainError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "prior=-Inf (zero)", ce.Diagnosis)
	assert.Contains(t, err.Error(), "initial likelihood is zero")
}

func TestRun_InitialNonFiniteIsFatal(t *testing.T) {
	for name, score := range map[string]float64{
		"nan":     math.NaN(),
		"pos_inf": math.Inf(1),
	} {
		t.Run(name, func(t *testing.T) {
			d := density.NewConstant("c", score)
			c := newTestChain(t, d, testutil.Sequential(testutil.NewOperator("op", nil)), acceptor.Greedy{}, nil)

			n, err := c.Run(context.Background(), 10, false)
			assert.True(t, IsNumericalError(err))
			assert.Equal(t, int64(0), n)
		})
	}
}

// Non-finite scores mid-run are downgraded to impossible and rejected.
func TestRun_TransientNumericalFaultIsRejected(t *testing.T) {
	logger, buf := captureLogger()
	x := testutil.NewScalar(0)
	d := testutil.NewFuncDensity("f", func() float64 {
		if x.Value() != 0 {
			return math.NaN()
		}
		return -1
	})
	op := testutil.NewOperator("jump", func() (float64, error) {
		x.Set(1)
		return 0, nil
	})

	c := newTestChain(t, d, testutil.Sequential(op),
		acceptor.NewMetropolisHastings(1, testutil.NewRand(3)), testutil.Registry(x),
		WithLogger(logger))

	n, err := c.Run(context.Background(), 5, false)
	require.NoError(t, err)

	assert.Equal(t, int64(5), n)
	assert.Equal(t, int64(5), op.Counts().Rejected)
	assert.Equal(t, -1.0, c.CurrentScore())
	assert.Equal(t, 0.0, x.Value())
	assert.Contains(t, buf.String(), "a likelihood returned with a numerical error")
	assert.NotContains(t, buf.String(), "not correctly")
}

func TestRun_ImpossibleGuaranteedAcceptWarns(t *testing.T) {
	build := func(opts ...Option) (*Chain, *testutil.Operator) {
		x := testutil.NewScalar(0)
		d := testutil.NewFuncDensity("f", func() float64 {
			if x.Value() > 0 {
				return math.Inf(-1)
			}
			return 0
		})
		op := testutil.NewOperator("gibbs", func() (float64, error) {
			x.Set(1)
			return 0, nil
		})
		op.Guaranteed = true
		return newTestChain(t, d, testutil.Sequential(op), acceptor.Greedy{}, testutil.Registry(x), opts...), op
	}

	t.Run("warns", func(t *testing.T) {
		logger, buf := captureLogger()
		c, op := build(WithLogger(logger))

		_, err := c.Run(context.Background(), 1, false)
		require.NoError(t, err)

		assert.Contains(t, buf.String(), "guaranteed-accept operator returned a state with zero likelihood")
		assert.Equal(t, int64(1), op.Counts().Accepted)
		assert.True(t, math.IsInf(c.CurrentScore(), -1))
	})

	t.Run("allow_listed", func(t *testing.T) {
		logger, buf := captureLogger()
		c, op := build(WithLogger(logger), WithImpossibleStateAllowList("gibbs"))

		_, err := c.Run(context.Background(), 1, false)
		require.NoError(t, err)

		assert.NotContains(t, buf.String(), "zero likelihood")
		assert.Equal(t, int64(1), op.Counts().Accepted)
	})
}

func TestRun_UnexpectedOperatorErrorIsFatal(t *testing.T) {
	boom := errors.New("boom")
	x := testutil.NewScalar(2)
	op := testutil.NewOperator("explode", func() (float64, error) {
		x.Set(-1)
		return 0, boom
	})
	c := newTestChain(t, density.NewConstant("c", 0), testutil.Sequential(op), acceptor.Greedy{}, testutil.Registry(x))

	n, err := c.Run(context.Background(), 10, false)
	require.Error(t, err)

	assert.True(t, IsOperatorError(err))
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, int64(0), n)
	assert.Equal(t, 2.0, x.Value(), "state is rolled back before the fault is reported")
}

func TestRun_DensityAwareOperatorSeesJointDensity(t *testing.T) {
	joint := density.NewConstant("joint", -2)
	op := &densityAwareOp{Operator: testutil.NewOperator("aware", nil)}
	c := newTestChain(t, joint, testutil.Sequential(op), acceptor.Greedy{}, nil)

	_, err := c.Run(context.Background(), 3, false)
	require.NoError(t, err)

	assert.Equal(t, 3, op.calls)
	assert.Same(t, joint, op.seen)
	assert.Equal(t, 0, op.Proposals, "Propose is bypassed for density-aware operators")
}

type densityAwareOp struct {
	*testutil.Operator
	calls int
	seen  model.Density
}

func (o *densityAwareOp) ProposeWith(d model.Density) (float64, error) {
	o.calls++
	o.seen = d
	return 0, nil
}

// bestTracker records the scores observed at every iteration end.
type bestTracker struct {
	c       *Chain
	best    []float64
	current []float64
}

func (b *bestTracker) IterationStart(int64) {}
func (b *bestTracker) Finished(int64)       {}
func (b *bestTracker) IterationEnd(int64) {
	b.best = append(b.best, b.c.BestScore())
	b.current = append(b.current, b.c.CurrentScore())
}

func TestRun_BestScoreIsRunningMaximum(t *testing.T) {
	c, _ := newWalkChain(t, 99)
	tr := &bestTracker{c: c}
	c.AddDelegate(tr)

	_, err := c.Run(context.Background(), 500, false)
	require.NoError(t, err)

	runningMax := c.InitialScore()
	prev := math.Inf(-1)
	for i := range tr.best {
		runningMax = math.Max(runningMax, tr.current[i])
		assert.GreaterOrEqual(t, tr.best[i], prev)
		assert.Equal(t, runningMax, tr.best[i])
		prev = tr.best[i]
	}
}

func TestRun_TalliesTrackEvaluationTime(t *testing.T) {
	op := testutil.NewOperator("op", nil)
	fail := testutil.NewOperator("fail", testutil.Fail)
	c := newTestChain(t, density.NewConstant("c", 0), testutil.Sequential(op, fail), acceptor.Greedy{}, nil)

	_, err := c.Run(context.Background(), 10, false)
	require.NoError(t, err)

	assert.Equal(t, int64(5), op.Counts().Accepted)
	assert.Equal(t, int64(5), fail.Counts().Rejected)
	assert.Equal(t, int64(0), fail.Counts().EvaluationTime.Nanoseconds(), "failed proposals are not evaluated")
}

func TestReset_ZeroesLengthAndTallies(t *testing.T) {
	op := testutil.NewOperator("op", nil)
	c := newTestChain(t, density.NewConstant("c", 0), testutil.Sequential(op), acceptor.Greedy{}, nil)

	_, err := c.Run(context.Background(), 7, false)
	require.NoError(t, err)
	require.Equal(t, int64(7), op.Counts().Accepted)

	c.Reset()
	assert.Equal(t, int64(0), c.Length())
	assert.Equal(t, int64(0), op.Counts().Operations())
	assert.Equal(t, 0.0, c.CurrentScore(), "reset keeps the current state")
}

func TestSetLength_ResumesNumbering(t *testing.T) {
	op := testutil.NewOperator("op", nil)
	c := newTestChain(t, density.NewConstant("c", -1), testutil.Sequential(op), acceptor.Greedy{}, nil)
	rec := &countingListener{}
	c.AddListener(rec)

	c.SetLength(10)
	n, err := c.Run(context.Background(), 5, false)
	require.NoError(t, err)

	assert.Equal(t, int64(15), n)
	assert.Equal(t, 0, rec.best, "a resumed chain does not announce an initial best state")
}

func TestEvaluate_UsesCachedTerms(t *testing.T) {
	d := testutil.NewFuncDensity("f", func() float64 { return -1 })
	d.Drift = 0.5
	c := newTestChain(t, d, testutil.Sequential(testutil.NewOperator("op", nil)), acceptor.Greedy{}, nil)

	assert.Equal(t, -0.5, c.Evaluate())
}

func TestAccessors(t *testing.T) {
	d := density.NewConstant("c", 0)
	s := testutil.Sequential(testutil.NewOperator("op", nil))
	reg := model.NewRegistry()
	settings := Settings{FullEvaluationCount: 5, MinOperatorCount: 2, Tolerance: 0.01}

	c := newTestChain(t, d, s, acceptor.Greedy{}, reg, WithSettings(settings))

	assert.Same(t, d, c.Density())
	assert.Same(t, s, c.Schedule())
	assert.Equal(t, acceptor.Greedy{}, c.Acceptor())
	assert.Same(t, reg, c.Registry())
	assert.Equal(t, settings, c.Settings())
	assert.False(t, c.FullEvaluationActive(), "inactive outside Run")
}
