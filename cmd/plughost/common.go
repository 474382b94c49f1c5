package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/xeonx/timeago"

	"github.com/plughost/plughost/internal/history"
	"github.com/plughost/plughost/internal/manager"
	"github.com/plughost/plughost/pkg/plugin"
)

// openManager constructs the shared Manager for a single CLI
// invocation, wiring execution history persistence alongside it.
// Every subcommand calls this rather than reaching for a singleton.
func openManager(log *slog.Logger) (*manager.Manager, plugin.ScanReport, func(), error) {
	histStore, err := history.Open(historyPathFor(configPath))
	if err != nil {
		return nil, plugin.ScanReport{}, func() {}, configError(err)
	}

	mgr, report, err := manager.Init(configPath, log, manager.WithHistory(histStore))
	if err != nil {
		histStore.Close()
		return nil, plugin.ScanReport{}, func() {}, configError(err)
	}

	cleanup := func() {
		mgr.Close()
		histStore.Close()
	}
	return mgr, report, cleanup, nil
}

func printSuccess(format string, args ...interface{}) {
	color.New(color.FgGreen).Printf(format+"\n", args...)
}

func printError(format string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(os.Stderr, format+"\n", args...)
}

func renderLoadedAgo(info plugin.Info) string {
	if !info.Loaded || info.LoadedAt.IsZero() {
		return "-"
	}
	return timeago.English.Format(info.LoadedAt)
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// historyPathFor derives the execution-history database path from the
// configuration file path so both "serve" and one-shot subcommands
// agree on where it lives.
func historyPathFor(cfgPath string) string {
	return filepath.Join(filepath.Dir(cfgPath), "history.db")
}
