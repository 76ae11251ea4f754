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
	"github.com/spf13/cobra"

	"github.com/cuemby/restpose/pkg/collection"
	"github.com/cuemby/restpose/pkg/config"
	"github.com/cuemby/restpose/pkg/log"
	"github.com/cuemby/restpose/pkg/metrics"
	"github.com/cuemby/restpose/pkg/taskmanager"
	"github.com/cuemby/restpose/pkg/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the restpose server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "Path to a YAML config file")
	serveCmd.Flags().String("addr", ":7777", "HTTP listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	addr, _ := cmd.Flags().GetString("addr")

	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.LoadFile(cfgPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if cfg.MetricsOn {
		metrics.MustRegister(prometheus.DefaultRegisterer)
	}

	pool := collection.NewPool(cfg.DataDir)

	tmCfg := taskmanager.Config{
		SearchWorkers:     cfg.SearchWorkers,
		ProcessingWorkers: cfg.ProcessingWorkers,
		IndexingWorkers:   cfg.IndexingWorkers,
		QueueThrottle:     cfg.ProcessingQueue.ThrottleSize,
		QueueMax:          cfg.ProcessingQueue.MaxSize,
		IdleCommitTimeout: cfg.IdleCommitTimeout,
	}
	tm := taskmanager.New(pool, tmCfg)
	tm.Start()

	srv := transport.New(tm, pool)
	httpSrv := &http.Server{
		Addr:    addr,
		Handler: srv.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithComponent("serve").Info().Str("addr", addr).Msg("listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("shutting down")
	case err := <-errCh:
		log.Errorf("server error", err)
	}

	// Shutdown order matters: stop accepting new HTTP requests first, then
	// drain the task manager's queues (processing before indexing, per
	// Manager.Join), then release the collection pool's index handles.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP server shutdown error", err)
	}

	tm.Stop()
	tm.Join()

	if err := pool.Close(); err != nil {
		log.Errorf("collection pool close error", err)
	}

	log.Info("shutdown complete")
	return nil
}
