package trace

import "time"

// Run identifies one chain run.
type Run struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Seed      uint64    `json:"seed"`
	StartedAt time.Time `json:"started_at"`
}

// Sample is the model state at one chain state.
type Sample struct {
	State      int64                `json:"state"`
	Score      float64              `json:"score"`
	Parameters map[string][]float64 `json:"parameters"`
}

// OperatorStats is an operator's tally at the end of a run.
type OperatorStats struct {
	Operator       string        `json:"operator"`
	Accepted       int64         `json:"accepted"`
	Rejected       int64         `json:"rejected"`
	SumDeviation   float64       `json:"sum_deviation"`
	EvaluationTime time.Duration `json:"evaluation_time"`

	// CoercableParameter is nil for operators that cannot be tuned.
	CoercableParameter *float64 `json:"coercable_parameter,omitempty"`
}

// AcceptanceRatio returns accepted / operations, or 0 before the first one.
func (o OperatorStats) AcceptanceRatio() float64 {
	n := o.Accepted + o.Rejected
	if n == 0 {
		return 0
	}
	return float64(o.Accepted) / float64(n)
}

// Summary is the outcome of a run.
type Summary struct {
	Length       int64   `json:"length"`
	InitialScore float64 `json:"initial_score"`
	BestScore    float64 `json:"best_score"`
	FinalScore   float64 `json:"final_score"`
	Stopped      bool    `json:"stopped"`

	// Error is the fatal error that ended the run, if any.
	Error string `json:"error,omitempty"`
}
