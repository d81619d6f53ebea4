// Package cli wraps cobra so that commands return a value which is printed
// in the format chosen with the global --output-format flag.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// OutputFormatFlag is the global flag name.
const OutputFormatFlag = "output-format"

// RunFunc is a command body whose result is printed by the App.
type RunFunc func(cmd *cobra.Command, args []string) (any, error)

// App is a cobra root command with a global output format.
type App struct {
	Root   *cobra.Command
	format OutputFormat
}

// NewApp creates the root command and registers --output-format.
func NewApp(use, short string) *App {
	a := &App{format: FormatYAML}

	a.Root = &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	a.Root.PersistentFlags().Var(&a.format, OutputFormatFlag,
		fmt.Sprintf("output format (%s)", strings.Join(formatNames(), "|")))
	_ = a.Root.RegisterFlagCompletionFunc(OutputFormatFlag,
		cobra.FixedCompletions(formatNames(), cobra.ShellCompDirectiveNoFileComp))

	return a
}

// OutputFormat returns the format selected on the command line.
func (a *App) OutputFormat() OutputFormat {
	return a.format
}

// AddCommand attaches cmd to the root. When run is set it becomes the
// command body and its non-nil result is printed to the command's output.
func (a *App) AddCommand(cmd *cobra.Command, run RunFunc) *cobra.Command {
	if run != nil {
		cmd.RunE = a.wrap(run)
	}
	a.Root.AddCommand(cmd)
	return cmd
}

func (a *App) wrap(run RunFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ret, err := run(cmd, args)
		if err != nil {
			return err
		}
		if ret == nil {
			return nil
		}
		return PrintRetval(cmd.OutOrStdout(), ret, a.format)
	}
}

// Execute runs the app with ctx.
func (a *App) Execute(ctx context.Context) error {
	return a.Root.ExecuteContext(ctx)
}

// Main runs the app and exits non-zero on error.
func (a *App) Main(ctx context.Context) {
	if err := a.Execute(ctx); err != nil {
		fmt.Fprintln(a.Root.ErrOrStderr(), "Error:", err)
		os.Exit(1)
	}
}
