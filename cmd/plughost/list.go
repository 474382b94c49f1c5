package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every known plugin (loaded or config-only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			mgr, _, cleanup, err := openManager(log)
			if err != nil {
				return err
			}
			defer cleanup()

			list := mgr.List()
			if len(list) == 0 {
				fmt.Println("no plugins known")
				return nil
			}
			for _, info := range list {
				status := "disabled"
				if info.Enabled {
					status = "enabled"
				}
				loaded := "not loaded"
				if info.Loaded {
					loaded = "loaded " + renderLoadedAgo(info)
				}
				fmt.Printf("%-24s %-10s %-10s %s\n", info.Name, status, loaded, info.Version)
			}
			return nil
		},
	}
}
