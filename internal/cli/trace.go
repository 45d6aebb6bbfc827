package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Yetoo1/beast-mcmc/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	RunID   string
	Samples bool
}

// RunList is the output of trace without --run.
type RunList struct {
	Runs []trace.Run `json:"runs"`
}

// RunDetail is the output of trace --run.
type RunDetail struct {
	Run        trace.Run             `json:"run"`
	Summary    *trace.Summary        `json:"summary,omitempty"`
	Operators  []trace.OperatorStats `json:"operators"`
	BestStates []trace.Sample        `json:"best_states"`
	Samples    []trace.Sample        `json:"samples,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <trace.db>",
		Short: "Inspect recorded runs",
		Long: `Inspect the runs recorded in a trace database.

Without --run, lists every run in creation order. With --run, shows the
run's summary, operator statistics and the sequence of best states.
A run that has not finished has no summary.

Examples:
  mcmc trace ./trace.db
  mcmc trace ./trace.db --run 01928c3e-...
  mcmc trace ./trace.db --run 01928c3e-... --samples --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to show")
	cmd.Flags().BoolVar(&opts.Samples, "samples", false, "include recorded samples")

	return cmd
}

func runTrace(opts *TraceOptions, dbPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	// Open would create an empty database.
	if _, err := os.Stat(dbPath); err != nil {
		_ = formatter.Error(ErrCodeIO, fmt.Sprintf("database not found: %s", dbPath), nil)
		return WrapExitError(ExitCommandError, "database not found", err)
	}

	st, err := trace.Open(dbPath)
	if err != nil {
		_ = formatter.Error(ErrCodeIO, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if opts.RunID == "" {
		list := RunList{Runs: runs}
		return formatter.Result(list, func(w io.Writer) {
			printRunList(w, runs)
		})
	}

	var run *trace.Run
	for i := range runs {
		if runs[i].ID == opts.RunID {
			run = &runs[i]
			break
		}
	}
	if run == nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("run not found: %s", opts.RunID), nil)
		return WrapExitError(ExitFailure, "run not found", trace.ErrNotFound)
	}

	detail, err := readRunDetail(ctx, st, *run, opts.Samples)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	return formatter.Result(detail, func(w io.Writer) {
		printRunDetail(w, detail, opts.Verbose)
	})
}

func readRunDetail(ctx context.Context, st *trace.Store, run trace.Run, withSamples bool) (RunDetail, error) {
	detail := RunDetail{Run: run}

	sum, err := st.ReadSummary(ctx, run.ID)
	switch {
	case err == nil:
		detail.Summary = &sum
	case !errors.Is(err, trace.ErrNotFound):
		return RunDetail{}, err
	}

	if detail.Operators, err = st.ReadOperatorStats(ctx, run.ID); err != nil {
		return RunDetail{}, err
	}
	if detail.BestStates, err = st.ReadBestStates(ctx, run.ID); err != nil {
		return RunDetail{}, err
	}
	if withSamples {
		if detail.Samples, err = st.ReadSamples(ctx, run.ID); err != nil {
			return RunDetail{}, err
		}
	}
	return detail, nil
}

func printRunList(w io.Writer, runs []trace.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}
	for _, r := range runs {
		name := r.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(w, "%s  %-24s seed %-20d %s\n", r.ID, name, r.Seed, r.StartedAt.Format("2006-01-02 15:04:05"))
	}
}

func printRunDetail(w io.Writer, d RunDetail, verbose bool) {
	fmt.Fprintf(w, "Run: %s\n", d.Run.ID)
	if d.Run.Name != "" {
		fmt.Fprintf(w, "Name: %s\n", d.Run.Name)
	}
	fmt.Fprintf(w, "Seed: %d\n", d.Run.Seed)

	if d.Summary == nil {
		fmt.Fprintln(w, "Status: Incomplete (no summary)")
	} else {
		fmt.Fprintf(w, "Status: %s\n", runStatus(d.Summary.Stopped, d.Summary.Error))
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Chain ===")
		fmt.Fprintf(w, "  Length:        %d\n", d.Summary.Length)
		fmt.Fprintf(w, "  Initial score: %.6f\n", d.Summary.InitialScore)
		fmt.Fprintf(w, "  Best score:    %.6f\n", d.Summary.BestScore)
		fmt.Fprintf(w, "  Final score:   %.6f\n", d.Summary.FinalScore)
	}
	fmt.Fprintln(w)

	printOperatorStats(w, d.Operators)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Best states ===")
	if len(d.BestStates) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, s := range d.BestStates {
		fmt.Fprintf(w, "  [%d] %.6f\n", s.State, s.Score)
		if verbose {
			fmt.Fprintf(w, "       %v\n", s.Parameters)
		}
	}

	if len(d.Samples) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Samples ===")
		for _, s := range d.Samples {
			fmt.Fprintf(w, "  [%d] %.6f %v\n", s.State, s.Score, s.Parameters)
		}
	}
}
