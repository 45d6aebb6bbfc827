package chain

import (
	"math"

	"github.com/Yetoo1/beast-mcmc/internal/model"
	"github.com/Yetoo1/beast-mcmc/internal/operator"
)

// fullEvaluation tracks the warm-up window in which every tracked score is
// checked against a from-scratch evaluation of the joint density.
type fullEvaluation struct {
	active     bool
	mismatches int
}

func newFullEvaluation(s Settings) *fullEvaluation {
	return &fullEvaluation{active: s.FullEvaluationCount > 0}
}

// verify forces a full evaluation and compares it to expected. A mismatch
// beyond tolerance is logged and counted; it becomes fatal when the window
// closes.
func (c *Chain) verify(state int64, op operator.Operator, expected float64, before, msg string) {
	c.density.MakeDirty()
	full := c.density.LogDensity()

	// NaN differences (both -Inf) are treated as agreement.
	if math.Abs(full-expected) > c.settings.Tolerance {
		c.fullEval.mismatches++
		c.logger.Error(msg,
			"state", state,
			"operator", op.Name(),
			"expected", expected,
			"full", full,
			"before", before,
			"after", model.Diagnose(c.density),
		)
	}
}

// closeFullEvaluation switches the window off once every operator has been
// exercised enough and the iteration budget is spent. The window never
// reopens within a run.
func (c *Chain) closeFullEvaluation(state int64) error {
	fe := c.fullEval
	if !fe.active {
		return nil
	}
	if c.schedule.MinimumAcceptAndRejectCount() < c.settings.MinOperatorCount ||
		state < c.settings.FullEvaluationCount {
		return nil
	}

	fe.active = false
	if fe.mismatches > 0 {
		return newEvaluationMismatchError(state, fe.mismatches)
	}
	c.logger.Info("full evaluation switched off", "state", state)
	return nil
}
