// Package sheets defines the export ports the worker writes rows through.
package sheets

import (
	"context"
	"time"

	"opsdesk/internal/core"
)

type (
	// ExpenseRow is one exported expense record.
	ExpenseRow struct {
		RecordID string
		Date     core.Date
		Item     string
		Category string
		Amount   core.Money
		Notes    string
	}

	// AlertRow is one exported budget threshold alert.
	AlertRow struct {
		RaisedAt   time.Time
		Category   string
		Spent      core.Money
		Limit      core.Money
		Percentage float64
	}

	ExpenseWriter interface {
		AppendExpense(ctx context.Context, r ExpenseRow) (rowRef string, err error)
	}

	AlertWriter interface {
		AppendAlert(ctx context.Context, r AlertRow) (rowRef string, err error)
	}
)
