package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Yetoo1/beast-mcmc/internal/chain"
	"github.com/Yetoo1/beast-mcmc/internal/config"
	"github.com/Yetoo1/beast-mcmc/internal/metrics"
	"github.com/Yetoo1/beast-mcmc/internal/trace"
)

// shutdownTimeout bounds how long the metrics server may take to drain.
const shutdownTimeout = 5 * time.Second

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database    string
	Length      int64
	MetricsAddr string
	NoCoercion  bool
}

// RunSummary is the result printed after a run.
type RunSummary struct {
	RunID        string                `json:"run_id"`
	Name         string                `json:"name,omitempty"`
	Seed         uint64                `json:"seed"`
	Length       int64                 `json:"length"`
	InitialScore float64               `json:"initial_score"`
	BestScore    float64               `json:"best_score"`
	FinalScore   float64               `json:"final_score"`
	Stopped      bool                  `json:"stopped"`
	Operators    []trace.OperatorStats `json:"operators"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <config.yaml>",
		Short: "Run a chain and record it in a trace database",
		Long: `Build the model described by a run configuration and advance the chain.

Samples, best states, operator statistics and a summary are written to
the SQLite trace database (created if it doesn't exist). SIGINT or
SIGTERM stops the chain at the next iteration boundary; the partial run
is still summarised.

Example:
  mcmc run --db ./trace.db ./normal.yaml
  mcmc run --db ./trace.db --length 100000 --metrics-addr :9090 ./normal.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChain(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().Int64Var(&opts.Length, "length", 0, "number of iterations (overrides chain.length)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	cmd.Flags().BoolVar(&opts.NoCoercion, "no-coercion", false, "disable operator tuning for this run")

	return cmd
}

func runChain(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	cfg, err := config.Load(path)
	if err != nil {
		return outputConfigError(formatter, err)
	}
	m, err := config.Build(cfg)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to build model", err)
	}

	length := m.Length
	if cmd.Flags().Changed("length") {
		length = opts.Length
	}
	if length < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid length %d", length))
	}

	logger.Info("opening trace database", "path", opts.Database)
	st, err := trace.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeIO, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open trace database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	c, err := chain.New(m.Density, m.Schedule, m.Acceptor, m.Registry,
		append(m.ChainOptions(), chain.WithLogger(logger))...)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to create chain", err)
	}

	// The run is recorded even when ctx is already cancelled.
	run, err := st.CreateRun(context.WithoutCancel(parentCtx), m.Name, m.Seed)
	if err != nil {
		_ = formatter.Error(ErrCodeIO, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to create run", err)
	}
	logger.Info("run created", "run", run.ID, "seed", m.Seed, "length", length)

	recorder := trace.NewLogger(parentCtx, st, run.ID, c, m.Parameters,
		trace.WithEvery(m.LogEvery),
		trace.WithSlogger(logger),
	)
	c.AddListener(recorder)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	c.AddDelegate(metrics.NewCollector(reg, c))

	runErr, err := sample(parentCtx, opts, c, length, reg, logger)

	recorder.RecordError(runErr)
	c.Terminate()

	if err != nil {
		_ = formatter.Error(ErrCodeIO, err.Error(), nil)
		return WrapExitError(ExitCommandError, "metrics server failed", err)
	}
	if recorder.Err() != nil {
		_ = formatter.Error(ErrCodeIO, recorder.Err().Error(), nil)
		return WrapExitError(ExitCommandError, "failed to write trace", recorder.Err())
	}
	if runErr != nil {
		return outputChainError(formatter, run.ID, runErr)
	}

	summary := RunSummary{
		RunID:        run.ID,
		Name:         m.Name,
		Seed:         m.Seed,
		Length:       c.Length(),
		InitialScore: c.InitialScore(),
		BestScore:    c.BestScore(),
		FinalScore:   c.CurrentScore(),
		Stopped:      c.IsStopped(),
		Operators:    trace.CollectOperatorStats(c.Schedule()),
	}
	return formatter.Result(summary, func(w io.Writer) {
		printRunSummary(w, summary)
	})
}

// sample runs the chain and, when configured, the metrics server under one
// errgroup. A signal, or the server failing, requests a stop; the chain then
// ends at the next iteration boundary. The chain's own error is returned
// separately from the group's.
func sample(
	ctx context.Context,
	opts *RunOptions,
	c *chain.Chain,
	length int64,
	reg *prometheus.Registry,
	logger *slog.Logger,
) (runErr error, err error) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	var srv *http.Server
	if opts.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		srv = &http.Server{Addr: opts.MetricsAddr, Handler: mux, ReadHeaderTimeout: shutdownTimeout}

		g.Go(func() error {
			logger.Info("serving metrics", "addr", opts.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping chain", "signal", sig)
			c.RequestStop()
			<-done
		case <-gctx.Done():
			c.RequestStop()
			<-done
		case <-done:
		}
		if srv == nil {
			return nil
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		defer close(done)
		_, runErr = c.Run(gctx, length, opts.NoCoercion)
		return nil
	})

	err = g.Wait()
	return runErr, err
}

// outputChainError reports a chain fault. The run's summary, including the
// error, has already been written to the trace.
func outputChainError(formatter *OutputFormatter, runID string, err error) error {
	code := ErrCodeGeneric
	var ce *chain.ChainError
	if errors.As(err, &ce) {
		code = string(ce.Code)
	}

	if formatter.Format == "json" {
		_ = formatter.encode(CLIResponse{
			Status: "error",
			RunID:  runID,
			Error:  &CLIError{Code: code, Message: err.Error()},
		})
	} else {
		_ = formatter.Error(code, err.Error(), nil)
		fmt.Fprintf(formatter.Writer, "Run: %s\n", runID)
	}
	return WrapExitError(ExitFailure, "chain failed", err)
}

func printRunSummary(w io.Writer, s RunSummary) {
	fmt.Fprintf(w, "Run: %s\n", s.RunID)
	if s.Name != "" {
		fmt.Fprintf(w, "Name: %s\n", s.Name)
	}
	fmt.Fprintf(w, "Seed: %d\n", s.Seed)
	fmt.Fprintf(w, "Status: %s\n", runStatus(s.Stopped, ""))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Chain ===")
	fmt.Fprintf(w, "  Length:        %d\n", s.Length)
	fmt.Fprintf(w, "  Initial score: %.6f\n", s.InitialScore)
	fmt.Fprintf(w, "  Best score:    %.6f\n", s.BestScore)
	fmt.Fprintf(w, "  Final score:   %.6f\n", s.FinalScore)
	fmt.Fprintln(w)

	printOperatorStats(w, s.Operators)
}

func printOperatorStats(w io.Writer, stats []trace.OperatorStats) {
	fmt.Fprintln(w, "=== Operators ===")
	if len(stats) == 0 {
		fmt.Fprintln(w, "  (no operator statistics)")
		return
	}
	for _, st := range stats {
		fmt.Fprintf(w, "  %-24s accepted %-8d rejected %-8d ratio %.4f",
			st.Operator, st.Accepted, st.Rejected, st.AcceptanceRatio())
		if st.CoercableParameter != nil {
			fmt.Fprintf(w, "  tuning %.6g", *st.CoercableParameter)
		}
		fmt.Fprintln(w)
	}
}

// runStatus returns a human-readable run outcome.
func runStatus(stopped bool, runErr string) string {
	switch {
	case runErr != "":
		return "Failed (" + runErr + ")"
	case stopped:
		return "Stopped"
	default:
		return "Complete"
	}
}
