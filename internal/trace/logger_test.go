package trace

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yetoo1/beast-mcmc/internal/acceptor"
	"github.com/Yetoo1/beast-mcmc/internal/chain"
	"github.com/Yetoo1/beast-mcmc/internal/density"
	"github.com/Yetoo1/beast-mcmc/internal/model"
	"github.com/Yetoo1/beast-mcmc/internal/operator"
	"github.com/Yetoo1/beast-mcmc/internal/testutil"
)

func newTracedChain(t *testing.T, s *Store, every int64) (*chain.Chain, *Logger, *model.Parameter) {
	t.Helper()
	ctx := context.Background()

	p := model.NewParameter("mu", 0)
	reg := model.NewRegistry()
	reg.AddStorable(p)
	rng := testutil.NewRand(5)
	walk := operator.NewRandomWalk("walk", p, 0, 1, operator.NewCoercion(operator.CoercionDefault, operator.DefaultTargetAcceptance), rng)
	gibbs := testutil.NewOperator("noop", nil)
	gibbs.Guaranteed = true

	c, err := chain.New(model.NewCompound("joint", density.Normal("prior", p, 0, 1)),
		testutil.Sequential(walk, gibbs), acceptor.NewMetropolisHastings(1, rng), reg)
	require.NoError(t, err)

	run, err := s.CreateRun(ctx, "test", 5)
	require.NoError(t, err)

	l := NewLogger(ctx, s, run.ID, c, []*model.Parameter{p}, WithEvery(every))
	c.AddListener(l)
	return c, l, p
}

func TestLogger_WritesRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	c, l, _ := newTracedChain(t, s, 10)

	n, err := c.Run(ctx, 100, false)
	require.NoError(t, err)
	c.Terminate()
	require.NoError(t, l.Err())

	samples, err := s.ReadSamples(ctx, l.RunID())
	require.NoError(t, err)
	require.Len(t, samples, 10)
	for i, smp := range samples {
		assert.Equal(t, int64(i*10), smp.State)
		assert.Len(t, smp.Parameters["mu"], 1)
	}

	best, err := s.ReadBestStates(ctx, l.RunID())
	require.NoError(t, err)
	require.NotEmpty(t, best)
	assert.Equal(t, c.BestScore(), best[len(best)-1].Score)

	sum, err := s.ReadSummary(ctx, l.RunID())
	require.NoError(t, err)
	assert.Equal(t, n, sum.Length)
	assert.Equal(t, c.InitialScore(), sum.InitialScore)
	assert.Equal(t, c.BestScore(), sum.BestScore)
	assert.Equal(t, c.CurrentScore(), sum.FinalScore)
	assert.False(t, sum.Stopped)
	assert.Empty(t, sum.Error)

	stats, err := s.ReadOperatorStats(ctx, l.RunID())
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "noop", stats[0].Operator)
	assert.Equal(t, int64(50), stats[0].Accepted)
	assert.Nil(t, stats[0].CoercableParameter)
	assert.Equal(t, "walk", stats[1].Operator)
	assert.Equal(t, int64(50), stats[1].Accepted+stats[1].Rejected)
	assert.NotNil(t, stats[1].CoercableParameter)
}

func TestLogger_RecordsRunError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	c, l, _ := newTracedChain(t, s, 1)

	_, err := c.Run(ctx, 3, false)
	require.NoError(t, err)
	l.RecordError(errors.New("EVALUATION_MISMATCH: bad"))
	l.RecordError(nil)
	c.Terminate()

	sum, err := s.ReadSummary(ctx, l.RunID())
	require.NoError(t, err)
	assert.Equal(t, "EVALUATION_MISMATCH: bad", sum.Error)
}

func TestLogger_KeepsFirstWriteError(t *testing.T) {
	s := createTestStore(t)
	c, l, _ := newTracedChain(t, s, 1)
	l.logger = testSlogger()

	require.NoError(t, s.Close())
	_, err := c.Run(context.Background(), 2, false)
	require.NoError(t, err, "write failures do not stop the chain")

	assert.Error(t, l.Err())
}

func TestWithEvery_IgnoresNonPositive(t *testing.T) {
	l := NewLogger(context.Background(), nil, "r", nil, nil, WithEvery(0))
	assert.Equal(t, int64(1), l.every)
}

func TestCollectOperatorStats_ScheduleOrder(t *testing.T) {
	a := testutil.NewOperator("b-op", nil)
	b := testutil.NewCoercibleOperator("a-op", nil, operator.CoercionOn, 0.3, 1.5)
	a.Accept(1)
	b.Reject()

	stats := CollectOperatorStats(testutil.Sequential(a, b))
	require.Len(t, stats, 2)
	assert.Equal(t, "b-op", stats[0].Operator)
	assert.Equal(t, int64(1), stats[0].Accepted)
	assert.Equal(t, "a-op", stats[1].Operator)
	assert.Equal(t, int64(1), stats[1].Rejected)
	require.NotNil(t, stats[1].CoercableParameter)
	assert.Equal(t, 1.5, *stats[1].CoercableParameter)
}

func testSlogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
