package harness

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Yetoo1/beast-mcmc/internal/density"
)

func TestRecorder_ListenerEvents(t *testing.T) {
	d := density.NewConstant("c", -1.5)
	r := NewRecorder()

	r.BestState(0, d)
	r.CurrentState(0, d)
	r.Finished(1)

	assert.Equal(t, []string{
		"best 0 -1.5",
		"current 0 -1.5",
		"finished 1",
	}, r.Lines())
}

func TestRecorder_DelegateViewSharesLog(t *testing.T) {
	d := density.NewConstant("c", 2)
	r := NewRecorder()
	dv := r.Delegate()

	r.CurrentState(4, d)
	dv.IterationStart(4)
	dv.IterationEnd(4)
	r.Finished(5)
	dv.Finished(5)

	assert.Equal(t, []string{
		"current 4 2",
		"start 4",
		"end 4",
		"finished 5",
		"delegate-finished 5",
	}, r.Lines())
}

func TestRecorder_Count(t *testing.T) {
	r := NewRecorder()
	dv := r.Delegate()
	for i := int64(0); i < 3; i++ {
		dv.IterationStart(i)
		dv.IterationEnd(i)
	}

	assert.Equal(t, 3, r.Count("start"))
	assert.Equal(t, 3, r.Count("end"))
	assert.Equal(t, 0, r.Count("best"))
}

func TestRecorder_FormatsNonFiniteScores(t *testing.T) {
	r := NewRecorder()
	r.BestState(0, density.NewConstant("neg", math.Inf(-1)))

	assert.Equal(t, []string{"best 0 -Inf"}, r.Lines())
}

func TestRecorder_BytesAndReset(t *testing.T) {
	r := NewRecorder()
	assert.Nil(t, r.Bytes())

	r.Finished(2)
	assert.Equal(t, "finished 2\n", string(r.Bytes()))

	r.Reset()
	assert.Empty(t, r.Lines())
}
