package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/irqsim/internal/timeline"
	"github.com/roach88/irqsim/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	DBPath string
	Name   string
}

// TraceResult is the data payload for trace output.
type TraceResult struct {
	DB     string        `json:"db"`
	Name   string        `json:"name,omitempty"`
	Count  int           `json:"count"`
	Events []trace.Event `json:"events"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace --db <path>",
		Short: "Dump a persisted trace",
		Long: `Read a trace database written by a previous run and render it, either
as a timeline (text) or as raw events (json). With --name, only the
admission and finish events of one interrupt are shown.

Example:
  irqsim trace --db trace.db
  irqsim trace --db trace.db --name disk --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "path to the trace database (required)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "show only this interrupt's timeline events")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(opts.DBPath); os.IsNotExist(err) {
		_ = formatter.Error("E_DB", "trace database not found: "+opts.DBPath, nil)
		return NewExitError(ExitCommandError, "trace database not found")
	}

	store, err := trace.Open(opts.DBPath)
	if err != nil {
		_ = formatter.Error("E_DB", err.Error(), nil)
		return WrapExitError(ExitCommandError, "opening trace database", err)
	}
	defer store.Close()

	var events []trace.Event
	if opts.Name != "" {
		events, err = store.ReadTimeline(cmd.Context(), opts.Name)
	} else {
		events, err = store.ReadEvents(cmd.Context())
	}
	if err != nil {
		_ = formatter.Error("E_DB", err.Error(), nil)
		return WrapExitError(ExitCommandError, "reading trace", err)
	}

	if opts.Format == "json" {
		return formatter.Success(TraceResult{
			DB:     opts.DBPath,
			Name:   opts.Name,
			Count:  len(events),
			Events: events,
		})
	}

	return formatter.Success(timeline.Render(events))
}
