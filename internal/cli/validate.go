package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Yetoo1/beast-mcmc/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool                      `json:"valid"`
	Name       string                    `json:"name,omitempty"`
	Parameters int                       `json:"parameters,omitempty"`
	Densities  int                       `json:"densities,omitempty"`
	Operators  int                       `json:"operators,omitempty"`
	Errors     []*config.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "Validate a run configuration without running it",
		Long: `Validate a run configuration without running the chain.

Performs YAML parsing, schema validation and reference checks
(unknown parameters or operators, duplicate identifiers, bounds).`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	formatter.VerboseLog("Validating %s", path)

	cfg, err := config.Load(path)
	if err != nil {
		return outputConfigError(formatter, err)
	}

	formatter.VerboseLog("Schema and references valid")

	result := ValidationResult{
		Valid:      true,
		Name:       cfg.Name,
		Parameters: len(cfg.Parameters),
		Densities:  len(cfg.Densities),
		Operators:  len(cfg.Operators),
	}
	return formatter.Result(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Configuration valid (%d parameters, %d densities, %d operators)\n",
			result.Parameters, result.Densities, result.Operators)
	})
}

// outputConfigError reports a configuration that could not be loaded.
// Validation failures exit with ExitFailure; unreadable files with
// ExitCommandError.
func outputConfigError(formatter *OutputFormatter, err error) error {
	var ve *config.ValidationError
	if !errors.As(err, &ve) {
		_ = formatter.Error(ErrCodeIO, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	if formatter.Format == "json" {
		_ = formatter.encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: []*config.ValidationError{ve}},
			Error:  &CLIError{Code: ve.Code, Message: ve.Message, Details: ve.Field},
		})
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Validation failed")
		fmt.Fprintln(formatter.Writer)
		if ve.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", ve.Line)
		}
		if ve.Field != "" {
			fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n", ve.Code, ve.Field, ve.Message)
		} else {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n", ve.Code, ve.Message)
		}
	}

	return WrapExitError(ExitFailure, "invalid configuration", err)
}
