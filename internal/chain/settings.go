package chain

import (
	"log/slog"
)

// Default settings.
const (
	// DefaultFullEvaluationCount is the number of iterations during which
	// every decision is re-checked by a full evaluation.
	DefaultFullEvaluationCount = 2000

	// DefaultMinOperatorCount is the number of completed proposals every
	// operator needs before full evaluation may be switched off.
	DefaultMinOperatorCount = 1

	// DefaultTolerance is the largest accepted absolute difference between
	// a tracked score and its full re-evaluation.
	DefaultTolerance = 0.1
)

// Settings holds the chain's construction parameters.
type Settings struct {
	// FullEvaluationCount is the minimum number of iterations run in
	// full-evaluation mode. Zero disables full evaluation entirely.
	FullEvaluationCount int64

	// MinOperatorCount is the minimum accept+reject count every operator
	// must reach before full evaluation is switched off.
	MinOperatorCount int64

	// Tolerance is the numerical-agreement threshold for full evaluation.
	Tolerance float64

	// UseCoercion enables adaptive tuning for operators whose mode is
	// CoercionDefault.
	UseCoercion bool
}

// DefaultSettings returns the default chain settings.
func DefaultSettings() Settings {
	return Settings{
		FullEvaluationCount: DefaultFullEvaluationCount,
		MinOperatorCount:    DefaultMinOperatorCount,
		Tolerance:           DefaultTolerance,
		UseCoercion:         true,
	}
}

// Option configures a Chain.
type Option func(*Chain)

// WithSettings replaces the chain settings.
func WithSettings(s Settings) Option {
	return func(c *Chain) {
		c.settings = s
	}
}

// WithLogger sets the logger used for the error channel.
//
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(c *Chain) {
		c.logger = l
	}
}

// WithImpossibleStateAllowList names guaranteed-accept operators that may
// legitimately produce a state with zero density. Impossible states from
// other guaranteed-accept operators are logged as warnings.
func WithImpossibleStateAllowList(names ...string) Option {
	return func(c *Chain) {
		for _, n := range names {
			c.allowImpossible[n] = true
		}
	}
}
