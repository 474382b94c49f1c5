package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/plughost/plughost/internal/manager"
	"github.com/plughost/plughost/pkg/plugin"
)

func newExecuteCmd() *cobra.Command {
	var maxAttempts int
	var retryBackoffMS int

	cmd := &cobra.Command{
		Use:   "execute <name> [input]",
		Short: "Execute a plugin with the given input (reads stdin if omitted)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			input := ""
			if len(args) == 2 {
				input = args[1]
			} else {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return userError("reading stdin: %v", err)
				}
				input = string(data)
			}

			log := newLogger()
			mgr, _, cleanup, err := openManager(log)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := manager.ExecutionOptions{MaxAttempts: maxAttempts}
			if retryBackoffMS > 0 {
				opts.RetryBackoff = msToDuration(retryBackoffMS)
			}

			result := mgr.Execute(name, input, opts)
			if result.Err != nil {
				switch result.Err.Kind {
				case plugin.KindNotFound, plugin.KindDisabled:
					return userError("%v", result.Err)
				default:
					return internalError(result.Err)
				}
			}

			fmt.Println(result.Output)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 1, "maximum attempts for transient failures")
	cmd.Flags().IntVar(&retryBackoffMS, "retry-backoff-ms", 0, "sleep between retries, in milliseconds")
	return cmd
}
