package backend

import (
	"context"
	"fmt"
	"log/slog"

	gsheet "opsdesk/internal/sheets/google"
	"opsdesk/internal/sheets/memory"
	"opsdesk/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case PostgresBackend:
		return f.createPostgresBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	kv, err := storage.NewSQLiteKV(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &BackendResult{KV: kv, Ping: kv.Ping, Cleanup: kv.Close}, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*BackendResult, error) {
	kv, err := storage.NewPostgresKV(ctx, config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
	}
	f.logger.Info("Initialized Postgres backend")
	return &BackendResult{KV: kv, Ping: kv.Ping, Cleanup: kv.Close}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	f.logger.Warn("Initialized memory backend; data is lost on restart")
	return &BackendResult{
		KV:      storage.NewMemoryKV(),
		Ping:    func(context.Context) error { return nil },
		Cleanup: func() error { return nil },
	}, nil
}

func (f *DefaultFactory) CreateExport(ctx context.Context, config ExportConfig) (*ExportResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Type == MemoryExport {
		store := memory.New()
		f.logger.Info("Initialized in-memory export")
		return &ExportResult{Expenses: store, Alerts: store}, nil
	}
	cli, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		ExpensesSheet:   config.GoogleExpensesSheet,
		AlertsSheet:     config.GoogleAlertsSheet,
		CredentialsFile: config.GoogleCredentialsFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets export")
	return &ExportResult{Expenses: cli, Alerts: cli}, nil
}
