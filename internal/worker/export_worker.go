package worker

import (
	"context"
	"fmt"
	"log/slog"

	"opsdesk/internal/amqp"
	"opsdesk/internal/core"
	"opsdesk/internal/sheets"
)

// Observer is told the outcome of every handled message.
type Observer func(eventType, outcome string)

// ExportWorker writes expense and alert events to the export sheets.
type ExportWorker struct {
	expenses sheets.ExpenseWriter
	alerts   sheets.AlertWriter
	observe  Observer
}

func NewExportWorker(expenses sheets.ExpenseWriter, alerts sheets.AlertWriter, observe Observer) *ExportWorker {
	if observe == nil {
		observe = func(string, string) {}
	}
	return &ExportWorker{expenses: expenses, alerts: alerts, observe: observe}
}

// Handle dispatches one envelope. Returned errors make the consumer requeue.
func (w *ExportWorker) Handle(ctx context.Context, env *amqp.Envelope) error {
	var err error
	switch env.Type {
	case amqp.TypeExpenseRecorded:
		err = w.handleExpense(ctx, env)
	case amqp.TypeBudgetAlert:
		err = w.handleAlert(ctx, env)
	default:
		err = fmt.Errorf("%w: %q", amqp.ErrUnknownType, env.Type)
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	w.observe(env.Type, outcome)
	return err
}

func (w *ExportWorker) handleExpense(ctx context.Context, env *amqp.Envelope) error {
	p, err := env.Expense()
	if err != nil {
		return fmt.Errorf("decode expense payload: %w", err)
	}
	ref, err := w.expenses.AppendExpense(ctx, sheets.ExpenseRow{
		RecordID: p.RecordID,
		Date:     p.Date,
		Item:     p.ItemName,
		Category: p.Category,
		Amount:   core.Cents(p.AmountCents),
		Notes:    p.Notes,
	})
	if err != nil {
		return fmt.Errorf("append expense %s: %w", p.RecordID, err)
	}
	slog.InfoContext(ctx, "Expense exported",
		"message_id", env.ID,
		"record_id", p.RecordID,
		"row_ref", ref)
	return nil
}

func (w *ExportWorker) handleAlert(ctx context.Context, env *amqp.Envelope) error {
	p, err := env.Alert()
	if err != nil {
		return fmt.Errorf("decode alert payload: %w", err)
	}
	ref, err := w.alerts.AppendAlert(ctx, sheets.AlertRow{
		RaisedAt:   env.Timestamp,
		Category:   p.Category,
		Spent:      core.Cents(p.SpentCents),
		Limit:      core.Cents(p.LimitCents),
		Percentage: p.Percentage,
	})
	if err != nil {
		return fmt.Errorf("append alert %s: %w", p.Category, err)
	}
	slog.InfoContext(ctx, "Budget alert exported",
		"message_id", env.ID,
		"category", p.Category,
		"row_ref", ref)
	return nil
}
