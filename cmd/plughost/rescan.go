package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRescanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rescan",
		Short: "Re-scan the plugins directory for new libraries",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			mgr, _, cleanup, err := openManager(log)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := mgr.Rescan()
			if err != nil {
				return internalError(err)
			}

			fmt.Printf("loaded: %d, failed: %d\n", len(report.Loaded), len(report.Failed))
			for _, name := range report.Loaded {
				printSuccess("  + %s", name)
			}
			for _, f := range report.Failed {
				printError("  - %s: %s", f.Path, f.Error)
			}
			return nil
		},
	}
}
