package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var pluginName string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent plugin execution history",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			mgr, _, cleanup, err := openManager(log)
			if err != nil {
				return err
			}
			defer cleanup()

			store := mgr.History()
			if store == nil {
				fmt.Println("history is not enabled")
				return nil
			}

			records, err := store.Recent(pluginName, limit)
			if err != nil {
				return internalError(err)
			}
			if len(records) == 0 {
				fmt.Println("no execution history")
				return nil
			}
			for _, r := range records {
				outcome := "ok"
				if !r.Success {
					outcome = "error: " + r.ErrorKind
				}
				fmt.Printf("%s  %-20s  %6dms  attempts=%d  %s\n",
					r.At.Format("2006-01-02 15:04:05"), r.Plugin, r.DurationMS, r.Attempts, outcome)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pluginName, "plugin", "", "filter by plugin name")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum records to show")
	return cmd
}
