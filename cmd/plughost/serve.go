package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/plughost/plughost/internal/events"
	"github.com/plughost/plughost/internal/history"
	"github.com/plughost/plughost/internal/httpapi"
	"github.com/plughost/plughost/internal/manager"
	"github.com/plughost/plughost/internal/metrics"
)

func newServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP front-end",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()

			histStore, err := history.Open(historyPathFor(configPath))
			if err != nil {
				return configError(err)
			}
			defer histStore.Close()

			reg := prometheus.NewRegistry()
			m := metrics.New(reg)
			bus := events.New()

			mgr, report, err := manager.Init(configPath, log,
				manager.WithMetrics(m), manager.WithEvents(bus), manager.WithHistory(histStore))
			if err != nil {
				return configError(err)
			}
			defer mgr.Close()
			log.Info("initial scan complete", "loaded", len(report.Loaded), "failed", len(report.Failed))

			cfg := mgr.Store().Snapshot()
			if cfg.Server.RescanSchedule != "" {
				sched, err := mgr.StartScheduledRescan(cfg.Server.RescanSchedule)
				if err != nil {
					return configError(fmt.Errorf("invalid rescan_schedule: %w", err))
				}
				defer sched.Stop()
			}

			stopWatch, err := mgr.Store().Watch(func() {
				if err := mgr.ReloadConfig(); err != nil {
					log.Warn("config reload failed", "error", err)
				}
			})
			if err != nil {
				log.Warn("config watcher unavailable", "error", err)
			} else {
				defer stopWatch()
			}

			if host == "" {
				host = cfg.Server.Host
			}
			if port == 0 {
				port = cfg.Server.Port
			}
			addr := fmt.Sprintf("%s:%d", host, port)

			promHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
			server := httpapi.New(mgr, log, addr, promHandler)

			errCh := make(chan error, 1)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return internalError(err)
			case <-quit:
				log.Info("shutting down")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return internalError(err)
			}
			log.Info("server exited gracefully")
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "bind host (defaults to server.host in config)")
	cmd.Flags().IntVar(&port, "port", 0, "bind port (defaults to server.port in config)")
	return cmd
}
