package chain

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Yetoo1/beast-mcmc/internal/acceptor"
	"github.com/Yetoo1/beast-mcmc/internal/model"
	"github.com/Yetoo1/beast-mcmc/internal/schedule"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// captureLogger returns a logger writing text records into the returned
// buffer.
func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func newTestChain(t *testing.T, d model.Density, s schedule.Schedule, a acceptor.Acceptor, reg *model.Registry, opts ...Option) *Chain {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	c, err := New(d, s, a, reg, opts...)
	require.NoError(t, err)
	return c
}

// delegateFunc adapts a function to the Delegate interface; it is called on
// IterationEnd only.
type delegateFunc func(state int64)

func (f delegateFunc) IterationStart(int64)     {}
func (f delegateFunc) IterationEnd(state int64) { f(state) }
func (f delegateFunc) Finished(int64)           {}
