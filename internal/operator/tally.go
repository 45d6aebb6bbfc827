package operator

import "time"

// Counts is a snapshot of an operator's tally.
type Counts struct {
	Accepted       int64
	Rejected       int64
	SumDeviation   float64
	EvaluationTime time.Duration
}

// Operations returns the number of completed proposals.
func (c Counts) Operations() int64 {
	return c.Accepted + c.Rejected
}

// AcceptanceRatio returns accepted / operations, or 0 before the first one.
func (c Counts) AcceptanceRatio() float64 {
	n := c.Operations()
	if n == 0 {
		return 0
	}
	return float64(c.Accepted) / float64(n)
}

// Tally implements the bookkeeping half of Operator. Embed it by value.
type Tally struct {
	counts Counts
}

// Accept implements part of Operator.
func (t *Tally) Accept(deviation float64) {
	t.counts.Accepted++
	t.counts.SumDeviation += deviation
}

// Reject implements part of Operator.
func (t *Tally) Reject() {
	t.counts.Rejected++
}

// Reset implements part of Operator.
func (t *Tally) Reset() {
	t.counts = Counts{}
}

// AddEvaluationTime implements part of Operator.
func (t *Tally) AddEvaluationTime(d time.Duration) {
	t.counts.EvaluationTime += d
}

// Counts implements part of Operator.
func (t *Tally) Counts() Counts {
	return t.counts
}
