package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/irqsim/internal/dispatch"
	"github.com/roach88/irqsim/internal/scenario"
	"github.com/roach88/irqsim/internal/timeline"
	"github.com/roach88/irqsim/internal/trace"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	DBPath     string
	VectorsDir string
}

// RunResult is the data payload for run output.
type RunResult struct {
	Scenario string        `json:"scenario"`
	Stats    RunStats      `json:"stats"`
	Rejected []string      `json:"rejected"`
	Events   []trace.Event `json:"events"`
}

// RunStats mirrors the dispatcher counters for JSON output.
type RunStats struct {
	Triggered      int64 `json:"triggered"`
	Rejected       int64 `json:"rejected"`
	Admitted       int64 `json:"admitted"`
	Finished       int64 `json:"finished"`
	SkippedHandler int64 `json:"skipped_handler"`
	HandlerFaults  int64 `json:"handler_faults"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Execute a scenario and print its timeline",
		Long: `Run a scenario file against a fresh dispatcher, wait for all handlers
to settle, and print the resulting timeline.

Interrupts declared in the scenario get simulated handlers. A CUE vector
table (--vectors) may declare additional interrupts; these have no
handlers, so triggering them records a skip.

Example:
  irqsim run scenario.yaml
  irqsim run scenario.yaml --db trace.db --vectors ./vectors`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "persist the trace to a SQLite database at this path")
	cmd.Flags().StringVar(&opts.VectorsDir, "vectors", "", "directory of CUE vector-table files to register")

	return cmd
}

func runRun(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	sc, err := scenario.Load(path)
	if err != nil {
		_ = formatter.Error("E_SCENARIO", err.Error(), nil)
		return WrapExitError(ExitCommandError, "scenario invalid", err)
	}

	if opts.VectorsDir != "" {
		vectors, err := LoadVectors(opts.VectorsDir)
		if err != nil {
			_ = formatter.Error("E_VECTORS", err.Error(), nil)
			return WrapExitError(ExitCommandError, "vector table invalid", err)
		}
		mergeVectors(sc, vectors)
	}

	var dispatchOpts []dispatch.Option
	if opts.DBPath != "" {
		store, err := trace.Open(opts.DBPath)
		if err != nil {
			_ = formatter.Error("E_DB", err.Error(), nil)
			return WrapExitError(ExitCommandError, "opening trace database", err)
		}
		defer store.Close()
		dispatchOpts = append(dispatchOpts, dispatch.WithNotifier(trace.NewRecorder(store)))
	}

	formatter.VerboseLog("running scenario %q (%d interrupts, %d steps)",
		sc.Name, len(sc.Interrupts), len(sc.Script))

	result, runErr := scenario.Run(cmd.Context(), sc, dispatchOpts...)
	if runErr != nil && result == nil {
		_ = formatter.Error("E_RUN", runErr.Error(), nil)
		return WrapExitError(ExitFailure, "scenario run failed", runErr)
	}

	if err := formatter.Success(formatRunResult(opts.Format, result)); err != nil {
		return err
	}

	// Expectation failures still produce a full report; they only change
	// the exit code.
	if runErr != nil {
		_ = formatter.Error("E_EXPECT", runErr.Error(), nil)
		return WrapExitError(ExitFailure, "scenario expectations not met", runErr)
	}

	return nil
}

// mergeVectors registers vector-table interrupts the scenario does not
// already declare. Vectors never carry handlers.
func mergeVectors(sc *scenario.Scenario, vectors []Vector) {
	declared := make(map[string]bool, len(sc.Interrupts))
	for _, spec := range sc.Interrupts {
		declared[spec.Name] = true
	}
	for _, v := range vectors {
		if declared[v.Name] {
			continue
		}
		sc.Interrupts = append(sc.Interrupts, scenario.InterruptSpec{
			Name:      v.Name,
			Priority:  v.Priority,
			Masked:    v.Masked,
			NoHandler: true,
		})
	}
}

func formatRunResult(format string, result *scenario.Result) any {
	if format == "json" {
		return RunResult{
			Scenario: result.Scenario,
			Stats: RunStats{
				Triggered:      result.Stats.Triggered,
				Rejected:       result.Stats.Rejected,
				Admitted:       result.Stats.Admitted,
				Finished:       result.Stats.Finished,
				SkippedHandler: result.Stats.SkippedHandler,
				HandlerFaults:  result.Stats.HandlerFaults,
			},
			Rejected: result.Rejected,
			Events:   result.Events,
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n\n", result.Scenario)
	b.WriteString(timeline.Render(result.Events))
	b.WriteString("\n")
	if len(result.Rejected) > 0 {
		fmt.Fprintf(&b, "\nrejected triggers: %s\n", strings.Join(result.Rejected, ", "))
	}
	fmt.Fprintf(&b, "\ntriggered %d, admitted %d, finished %d, rejected %d",
		result.Stats.Triggered, result.Stats.Admitted, result.Stats.Finished, result.Stats.Rejected)
	if result.Stats.SkippedHandler > 0 {
		fmt.Fprintf(&b, ", skipped %d", result.Stats.SkippedHandler)
	}
	if result.Stats.HandlerFaults > 0 {
		fmt.Fprintf(&b, ", faults %d", result.Stats.HandlerFaults)
	}
	return b.String()
}
