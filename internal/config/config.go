package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"

	ExportMemory = "memory"
	ExportSheets = "sheets"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Storage
	DataBackend  string
	SQLiteDBPath string
	DatabaseURL  string

	// AMQP; an empty URL disables publishing.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Export
	ExportBackend         string
	GoogleSpreadsheetID   string
	GoogleExpensesSheet   string
	GoogleAlertsSheet     string
	GoogleCredentialsFile string

	// APIURL is where recurring-worker reaches the opsdesk server.
	APIURL string

	// Domain
	RecurringInterval    time.Duration
	BudgetAlertThreshold float64
	ReportLocale         string

	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		DataBackend:  getEnv("DATA_BACKEND", BackendMemory),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/opsdesk.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "opsdesk"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "opsdesk_export"),

		ExportBackend:         getEnv("EXPORT_BACKEND", ExportMemory),
		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleExpensesSheet:   getEnv("GOOGLE_EXPENSES_SHEET", "Expenses"),
		GoogleAlertsSheet:     getEnv("GOOGLE_ALERTS_SHEET", "Alerts"),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),

		APIURL: getEnv("OPSDESK_API_URL", "http://localhost:8081"),

		RecurringInterval:    getEnvDuration("RECURRING_INTERVAL", time.Hour),
		BudgetAlertThreshold: getEnvFloat("BUDGET_ALERT_THRESHOLD", 80),
		ReportLocale:         getEnv("REPORT_LOCALE", "en"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	validBackends := []string{BackendMemory, BackendSQLite, BackendPostgres}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, "invalid DATABASE_URL: scheme must be 'postgres' or 'postgresql'")
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	validExports := []string{ExportMemory, ExportSheets}
	if !slices.Contains(validExports, c.ExportBackend) {
		errors = append(errors, fmt.Sprintf("invalid export backend '%s': must be one of %v", c.ExportBackend, validExports))
	}
	if c.ExportBackend == ExportSheets {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets export")
		}
		if c.GoogleExpensesSheet == "" || c.GoogleAlertsSheet == "" {
			errors = append(errors, "Google expenses and alerts sheet names are required when using sheets export")
		}
		if c.GoogleCredentialsFile == "" {
			errors = append(errors, "GOOGLE_CREDENTIALS_FILE must be provided for sheets export")
		} else if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google credentials file does not exist: %s", c.GoogleCredentialsFile))
		}
	}

	if c.APIURL != "" {
		if u, err := url.Parse(c.APIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid OPSDESK_API_URL '%s': must be an http or https URL", c.APIURL))
		}
	}

	if c.RecurringInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at least 1 second", c.RecurringInterval))
	} else if c.RecurringInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at most 24 hours", c.RecurringInterval))
	}

	if c.BudgetAlertThreshold <= 0 || c.BudgetAlertThreshold > 1000 {
		errors = append(errors, fmt.Sprintf("invalid budget alert threshold %v: must be in (0, 1000]", c.BudgetAlertThreshold))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
