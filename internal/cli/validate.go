package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// ValidateResult is the data payload for validate output.
type ValidateResult struct {
	Dir     string   `json:"dir"`
	Count   int      `json:"count"`
	Vectors []Vector `json:"vectors"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <vectors-dir>",
		Short: "Validate a CUE vector table",
		Long: `Load a directory of CUE vector-table files and check it for errors:
missing names, duplicate vectors, malformed priorities.

Example:
  irqsim validate ./vectors`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *ValidateOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	vectors, err := LoadVectors(dir)
	if err != nil {
		_ = formatter.Error("E_VECTORS", err.Error(), nil)
		return WrapExitError(ExitCommandError, "vector table invalid", err)
	}

	if opts.Format == "json" {
		return formatter.Success(ValidateResult{Dir: dir, Count: len(vectors), Vectors: vectors})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "vector table ok: %d vectors\n", len(vectors))
	for _, v := range vectors {
		if v.Masked {
			fmt.Fprintf(&b, "  %-20s priority %4d (masked)\n", v.Name, v.Priority)
		} else {
			fmt.Fprintf(&b, "  %-20s priority %4d\n", v.Name, v.Priority)
		}
	}
	return formatter.Success(strings.TrimRight(b.String(), "\n"))
}
