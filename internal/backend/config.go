package backend

import (
	"fmt"

	"opsdesk/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, ExportConfig, error) {
	if appConfig == nil {
		return Config{}, ExportConfig{}, fmt.Errorf("app config is nil")
	}
	cfg := Config{
		Type:         BackendType(appConfig.DataBackend),
		SQLiteDBPath: appConfig.SQLiteDBPath,
		DatabaseURL:  appConfig.DatabaseURL,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, ExportConfig{}, err
	}
	exp := ExportConfig{
		Type:                  ExportType(appConfig.ExportBackend),
		GoogleSpreadsheetID:   appConfig.GoogleSpreadsheetID,
		GoogleExpensesSheet:   appConfig.GoogleExpensesSheet,
		GoogleAlertsSheet:     appConfig.GoogleAlertsSheet,
		GoogleCredentialsFile: appConfig.GoogleCredentialsFile,
	}
	if err := exp.Validate(); err != nil {
		return Config{}, ExportConfig{}, err
	}
	return cfg, exp, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case PostgresBackend:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for postgres backend")
		}
	}
	return nil
}

func (c ExportConfig) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid export type: %s", c.Type)
	}
	if c.Type == SheetsExport {
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets export")
		}
		if c.GoogleCredentialsFile == "" {
			return fmt.Errorf("Google credentials file is required for sheets export")
		}
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, PostgresBackend}
}
