package main

import (
	"github.com/spf13/cobra"

	"github.com/plughost/plughost/pkg/plugin"
)

func newEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <name>",
		Short: "Enable a plugin",
		Args:  cobra.ExactArgs(1),
		RunE:  runSetEnabled(true),
	}
}

func newDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <name>",
		Short: "Disable a plugin",
		Args:  cobra.ExactArgs(1),
		RunE:  runSetEnabled(false),
	}
}

func runSetEnabled(enabled bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		name := args[0]
		log := newLogger()
		mgr, _, cleanup, err := openManager(log)
		if err != nil {
			return err
		}
		defer cleanup()

		if enabled {
			err = mgr.Enable(name)
		} else {
			err = mgr.Disable(name)
		}
		if err != nil {
			if plugin.IsKind(err, plugin.KindNotFound) {
				return userError("%v", err)
			}
			return internalError(err)
		}

		verb := "disabled"
		if enabled {
			verb = "enabled"
		}
		printSuccess("%s %s", name, verb)
		return nil
	}
}
