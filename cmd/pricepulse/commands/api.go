package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hwahn/pricepulse/internal/api"
	"github.com/hwahn/pricepulse/internal/api/handlers"
)

// apiCmd represents the api command.
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server with the ingest worker and scheduler",
	Long: `Starts the full service: the tiered ingestion worker, the scheduled
jobs (reconciliation, close refresh, universe rebuild), and the HTTP API.

Endpoints:
  GET  /health                - Health check
  GET  /api/stocks            - Ranked stock read (keyset paginated, ETag)
  GET  /api/ingest/status     - Ingest worker status
  POST /api/admin/reconcile   - Trigger a reconciliation pass
  POST /api/admin/refresh     - Trigger a close refresh

Example:
  go run ./cmd/pricepulse api
  go run ./cmd/pricepulse api --port 8090 --interval 20s`,
	RunE: runAPIServer,
}

var (
	apiPort        string
	ingestInterval time.Duration
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
	apiCmd.Flags().DurationVar(&ingestInterval, "interval", 20*time.Second, "ingest cycle interval")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== PricePulse API Server ===")

	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.close()

	if apiPort != "" {
		app.cfg.Port = apiPort
	}
	log := app.logger

	// Scheduled jobs
	sched, err := buildScheduler(app)
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	// Ingest worker
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	go app.worker.Run(workerCtx, ingestInterval)

	// HTTP API
	stockHandler := handlers.NewStockHandler(app.ranks, app.cache, app.clock, log)
	adminHandler := handlers.NewAdminHandler(app.engine, app.refresh, log)
	statusHandler := handlers.NewStatusHandler(app.worker)

	router := api.NewRouter(stockHandler, adminHandler, statusHandler, log)
	server := api.New(app.cfg, log, router)

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("\nServer running on http://localhost:%s\n", app.cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")
	stopWorker()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
