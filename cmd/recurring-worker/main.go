package main

import (
	"opsdesk/internal/cli"
	applog "opsdesk/internal/log"
	"opsdesk/internal/worker"
)

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		applog.New(applog.DefaultConfig()).Warn("Failed to load .env file", applog.FieldError, err)
	}
	cfg := cli.LoadAndValidateConfig(applog.New(applog.DefaultConfig()).Logger)
	logger := cli.SetupLogger(applog.ComponentWorker, cfg.LogLevel)

	ctx, stop := cli.SignalContext(logger.Logger)
	defer stop()

	logger.Info("Starting recurring-worker",
		"interval", cfg.RecurringInterval,
		"api_url", cfg.APIURL)

	worker.NewRecurringTrigger(cfg.APIURL, nil).Loop(ctx, cfg.RecurringInterval, logger.Logger)
	logger.Info("Recurring-worker shutdown complete")
}
