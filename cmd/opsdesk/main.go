package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"opsdesk/internal/adapters"
	"opsdesk/internal/amqp"
	"opsdesk/internal/backend"
	"opsdesk/internal/cli"
	apphttp "opsdesk/internal/http"
	applog "opsdesk/internal/log"
	"opsdesk/internal/metrics"
	"opsdesk/internal/services"
)

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		applog.New(applog.DefaultConfig()).Warn("Failed to load .env file", applog.FieldError, err)
	}
	cfg := cli.LoadAndValidateConfig(applog.New(applog.DefaultConfig()).Logger)
	logger := cli.SetupLogger(applog.ComponentApp, cfg.LogLevel)

	ctx, stop := cli.SignalContext(logger.Logger)
	defer stop()

	reg := metrics.New()
	sink := services.MultiSink{services.LogSink{}, services.ContextSink{}, metrics.Sink{R: reg}}

	// Publishing is optional; without a broker the stores still work.
	var amqpSink *adapters.AMQPSink
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without export", applog.FieldError, err)
		} else {
			defer client.Close()
			amqpSink = adapters.NewAMQPSink(client, 256)
			sink = append(sink, amqpSink)
			logger.Info("AMQP publishing enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - expenses will not be exported")
	}

	stores, err := cli.OpenStores(ctx, cfg, logger, backend.NewFactory(logger.Logger), sink)
	if err != nil {
		logger.Error("Failed to open stores", applog.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if err := stores.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Inventory: stores.Inventory,
		Materials: stores.Materials,
		Expenses:  stores.Expenses,
		Suppliers: stores.Suppliers,
		Recurring: stores.Recurring,
		Changes:   stores.Changes,
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		ReportLocale:       cfg.ReportLocale,
		Ready:              stores.Ping,
		Metrics:            reg,
		Logger:             logger,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	if amqpSink != nil {
		g.Go(func() error {
			amqpSink.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		srv.Start(gctx)
		logger.Info("Starting opsdesk server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		logger.Info("Shutting down server", applog.FieldOperation, applog.OpShutdown)
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
