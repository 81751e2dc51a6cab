package services

import (
	"context"
	"log/slog"
	"time"

	"opsdesk/internal/core"
)

// RecurringProcessor materializes due recurring expense items into records.
type RecurringProcessor struct {
	expenses *ExpenseService
}

func NewRecurringProcessor(expenses *ExpenseService) *RecurringProcessor {
	return &RecurringProcessor{expenses: expenses}
}

// ProcessDue creates one record dated today for every due item and returns
// how many were created. Items outside [startDate, endDate] are skipped.
// Failures on one item are logged and do not stop the others.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	today := core.DateOf(now)
	items := p.expenses.Items()

	slog.InfoContext(ctx, "Processing recurring expenses",
		"total_items", len(items),
		"processing_date", today.String())

	processed := 0
	for _, it := range items {
		if !it.IsRecurring {
			continue
		}
		if today.Before(it.StartDate) || (!it.EndDate.IsEmpty() && it.EndDate.Before(today)) {
			continue
		}
		checker, err := GetDuenessChecker(it.RecurrenceInterval)
		if err != nil {
			slog.ErrorContext(ctx, "Skipping recurring item", "expense_item_id", it.ID, "error", err)
			continue
		}
		var last time.Time
		if !it.LastGenerated.IsEmpty() {
			last = it.LastGenerated.Time()
		}
		if !checker.IsDue(last, now, it.StartDate) {
			continue
		}

		rec, err := p.expenses.Generate(ctx, it.ID, today)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to create expense from recurring item",
				"expense_item_id", it.ID,
				"name", it.Name,
				"error", err)
			continue
		}
		processed++
		slog.InfoContext(ctx, "Created expense from recurring item",
			"expense_item_id", it.ID,
			"record_id", rec.ID,
			"amount_cents", rec.Amount.Cents,
			"frequency", it.RecurrenceInterval)
	}

	slog.InfoContext(ctx, "Recurring expense processing complete",
		"processed", processed,
		"total_checked", len(items))
	return processed, nil
}
