// Command plughost is the CLI front-end for the plugin host runtime.
// Whichever subcommand runs constructs one Manager for the invocation
// (through openManager, or directly in serve) and holds it as a local
// value — there is no package-level Manager anywhere in this program
// (§9's "global mutable state" re-architecture).
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes per the CLI surface (§6): 0 success, 1 user error,
// 2 configuration error, 3 internal error.
const (
	exitOK          = 0
	exitUserError   = 1
	exitConfigError = 2
	exitInternal    = 3
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "plughost",
		Short:         "Host runtime for dynamically loaded native plugins",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the configuration file")

	root.AddCommand(
		newListCmd(),
		newEnableCmd(),
		newDisableCmd(),
		newExecuteCmd(),
		newServeCmd(),
		newRescanCmd(),
		newHistoryCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// cliError carries the exit code alongside the message so main can
// translate it without re-classifying the error.
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

func userError(format string, args ...interface{}) error {
	return &cliError{code: exitUserError, err: fmt.Errorf(format, args...)}
}

func configError(err error) error {
	return &cliError{code: exitConfigError, err: err}
}

func internalError(err error) error {
	return &cliError{code: exitInternal, err: err}
}

func exitCodeFor(err error) int {
	var ce *cliError
	if e, ok := err.(*cliError); ok {
		ce = e
	}
	if ce != nil {
		fmt.Fprintln(os.Stderr, ce.err)
		return ce.code
	}
	fmt.Fprintln(os.Stderr, err)
	return exitInternal
}
