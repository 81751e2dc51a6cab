package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"opsdesk/internal/amqp"
	"opsdesk/internal/backend"
	"opsdesk/internal/cli"
	applog "opsdesk/internal/log"
	"opsdesk/internal/metrics"
	"opsdesk/internal/worker"
)

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		applog.New(applog.DefaultConfig()).Warn("Failed to load .env file", applog.FieldError, err)
	}
	cfg := cli.LoadAndValidateConfig(applog.New(applog.DefaultConfig()).Logger)
	logger := cli.SetupLogger(applog.ComponentWorker, cfg.LogLevel)
	logger.Info("Starting opsdesk-worker", "export_backend", cfg.ExportBackend)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the export worker")
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(logger.Logger)
	defer stop()

	_, exportCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid export configuration", applog.FieldError, err)
		os.Exit(1)
	}
	writers, err := backend.NewFactory(logger.Logger).CreateExport(ctx, exportCfg)
	if err != nil {
		logger.Error("Failed to initialize export writers", applog.FieldError, err)
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	reg := metrics.New()
	exporter := worker.NewExportWorker(writers.Expenses, writers.Alerts, func(eventType, outcome string) {
		reg.ExportMessages.WithLabelValues(eventType, outcome).Inc()
	})

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", reg.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	metricsSrv := &http.Server{Addr: ":" + cfg.Port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Consuming export messages", "queue", cfg.AMQPQueue)
		if err := client.Consume(gctx, exporter.Handle); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("Serving worker metrics", "port", cfg.Port)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("Shutting down worker", applog.FieldOperation, applog.OpShutdown)
		return metricsSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
