package cli

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"opsdesk/internal/backend"
	"opsdesk/internal/config"
	applog "opsdesk/internal/log"
	"opsdesk/internal/services"
)

func TestOpenStores_Memory(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		DataBackend:          config.BackendMemory,
		ExportBackend:        config.ExportMemory,
		BudgetAlertThreshold: 80,
	}
	logger := applog.New(applog.Config{Output: io.Discard})
	factory := backend.NewFactory(slog.New(slog.NewTextHandler(io.Discard, nil)))

	st, err := OpenStores(ctx, cfg, logger, factory, services.LogSink{})
	if err != nil {
		t.Fatalf("OpenStores() error = %v", err)
	}
	defer st.Cleanup()

	if got := len(st.Materials.Packs()); got != 4 {
		t.Errorf("default packs = %d, want 4", got)
	}
	if st.Changes.Version() == 0 {
		t.Error("onboarding should advance the change counter")
	}
	if err := st.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestOpenStores_InvalidBackend(t *testing.T) {
	cfg := &config.Config{DataBackend: "mongo", ExportBackend: config.ExportMemory}
	logger := applog.New(applog.Config{Output: io.Discard})
	_, err := OpenStores(context.Background(), cfg, logger, backend.NewFactory(nil), nil)
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
