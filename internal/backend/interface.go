package backend

import (
	"context"

	"opsdesk/internal/sheets"
	"opsdesk/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// PingFunc reports whether the backend can serve requests.
type PingFunc func(ctx context.Context) error

// BackendResult is the KV store the services persist into, plus its
// readiness probe and cleanup.
type BackendResult struct {
	KV      storage.KV
	Ping    PingFunc
	Cleanup CleanupFunc
}

// ExportResult holds the writers the export worker appends rows to.
type ExportResult struct {
	Expenses sheets.ExpenseWriter
	Alerts   sheets.AlertWriter
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	CreateExport(ctx context.Context, config ExportConfig) (*ExportResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type         BackendType
	SQLiteDBPath string
	DatabaseURL  string
}

// ExportConfig selects and configures the export destination.
type ExportConfig struct {
	Type                  ExportType
	GoogleSpreadsheetID   string
	GoogleExpensesSheet   string
	GoogleAlertsSheet     string
	GoogleCredentialsFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}

type ExportType string

const (
	MemoryExport ExportType = "memory"
	SheetsExport ExportType = "sheets"
)

func (et ExportType) IsValid() bool {
	return et == MemoryExport || et == SheetsExport
}
