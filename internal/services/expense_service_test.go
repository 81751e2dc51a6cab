package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsdesk/internal/core"
	"opsdesk/internal/storage"
)

func newExpenses(t *testing.T) (*ExpenseService, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	s := NewExpenseService(context.Background(), storage.NewMemoryKV(), sink, nil)
	s.SetClock(fixedClock())
	return s, sink
}

func TestBudgetStatuses_Threshold(t *testing.T) {
	items := []core.ExpenseItem{{ID: "I1", Category: "Supplies"}, {ID: "I2", Category: "Rent"}}
	budgets := []core.Budget{{Category: "Supplies", Limit: core.Cents(10000)}, {Category: "Rent", Limit: core.Cents(10000)}}
	threshold := decimal.NewFromInt(80)

	tests := []struct {
		name  string
		spent int64
		alert bool
		pct   float64
	}{
		{"exactly eighty", 8000, true, 80},
		{"just below", 7999, false, 79.99},
		{"over budget", 12500, true, 125},
		{"nothing spent", 0, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := []core.ExpenseRecord{{ExpenseItemID: "I1", Amount: core.Cents(tt.spent)}}
			st := BudgetStatuses(items, records, budgets, threshold)
			require.Len(t, st, 2)
			assert.Equal(t, tt.alert, st[0].Alert)
			assert.InDelta(t, tt.pct, st[0].Percentage, 1e-9)
			assert.False(t, st[1].Alert)
		})
	}
}

func TestExpenses_AlertOncePerQualifyingMutation(t *testing.T) {
	ctx := context.Background()
	s, sink := newExpenses(t)

	item, err := s.AddItem(ctx, core.ExpenseItem{Name: "Cleaning", Category: "Supplies", Amount: core.Cents(4000)})
	require.NoError(t, err)
	_, err = s.UpsertBudget(ctx, core.Budget{Category: "Supplies", Limit: core.Cents(10000)})
	require.NoError(t, err)
	assert.Empty(t, sink.alerts)

	_, err = s.AddRecord(ctx, core.ExpenseRecord{ExpenseItemID: item.ID, Date: "2025-05-01"})
	require.NoError(t, err)
	assert.Empty(t, sink.alerts, "40% does not alert")
	require.Len(t, sink.recorded, 1)
	assert.Equal(t, int64(4000), sink.recorded[0].Amount.Cents, "default amount applied")

	_, err = s.AddRecord(ctx, core.ExpenseRecord{ExpenseItemID: item.ID, Date: "2025-05-02"})
	require.NoError(t, err)
	require.Len(t, sink.alerts, 1)
	assert.Equal(t, "Supplies", sink.alerts[0].Category)
	assert.Equal(t, 80.0, sink.alerts[0].Percentage)

	// Raising the limit clears the condition; no alert for this mutation.
	sink.reset()
	_, err = s.UpsertBudget(ctx, core.Budget{Category: "Supplies", Limit: core.Cents(20000)})
	require.NoError(t, err)
	assert.Empty(t, sink.alerts)
	require.Len(t, s.Budgets(), 1, "upsert replaces")
	assert.Equal(t, int64(20000), s.Budgets()[0].Limit.Cents)
}

func TestExpenses_ConfigurableThreshold(t *testing.T) {
	ctx := context.Background()
	s, sink := newExpenses(t)
	s.SetThreshold(50)
	item, err := s.AddItem(ctx, core.ExpenseItem{Name: "Gas", Category: "Utilities", Amount: core.Cents(500)})
	require.NoError(t, err)
	_, err = s.UpsertBudget(ctx, core.Budget{Category: "Utilities", Limit: core.Cents(1000)})
	require.NoError(t, err)
	_, err = s.AddRecord(ctx, core.ExpenseRecord{ExpenseItemID: item.ID, Date: "2025-05-01"})
	require.NoError(t, err)
	assert.Len(t, sink.alerts, 1)
}

func TestExpenses_DeleteItemCascadesRecords(t *testing.T) {
	ctx := context.Background()
	s, _ := newExpenses(t)
	a, err := s.AddItem(ctx, core.ExpenseItem{Name: "Rent", Category: "Fixed", Amount: core.Cents(100000)})
	require.NoError(t, err)
	b, err := s.AddItem(ctx, core.ExpenseItem{Name: "Power", Category: "Utilities", Amount: core.Cents(9000)})
	require.NoError(t, err)
	for _, id := range []string{a.ID, a.ID, b.ID} {
		_, err = s.AddRecord(ctx, core.ExpenseRecord{ExpenseItemID: id, Date: "2025-05-01"})
		require.NoError(t, err)
	}

	ok, err := s.DeleteItem(ctx, a.ID, no)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, s.Records(), 3)

	ok, err = s.DeleteItem(ctx, a.ID, yes)
	require.NoError(t, err)
	assert.True(t, ok)
	for _, r := range s.Records() {
		assert.NotEqual(t, a.ID, r.ExpenseItemID)
	}
	assert.Len(t, s.Records(), 1)
	assert.Equal(t, []string{"Utilities"}, s.Categories())
}

func TestExpenses_Validation(t *testing.T) {
	ctx := context.Background()
	s, sink := newExpenses(t)

	_, err := s.UpsertBudget(ctx, core.Budget{Category: "X", Limit: core.Cents(0)})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
	_, err = s.AddRecord(ctx, core.ExpenseRecord{ExpenseItemID: "missing", Date: "2025-05-01", Amount: core.Cents(10)})
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.AddItem(ctx, core.ExpenseItem{Name: "Rent", Amount: core.Cents(10)})
	assert.ErrorIs(t, err, core.ErrEmptyCategory)

	assert.Empty(t, s.Items())
	assert.Empty(t, s.Records())
	assert.Empty(t, s.Budgets())
	assert.Empty(t, sink.recorded)
}

func TestRecurringProcessor_ProcessDue(t *testing.T) {
	ctx := context.Background()
	s, sink := newExpenses(t)

	_, err := s.AddItem(ctx, core.ExpenseItem{
		Name: "Rent", Category: "Fixed", Amount: core.Cents(120000),
		IsRecurring: true, RecurrenceInterval: core.Monthly, StartDate: "2025-01-31",
	})
	require.NoError(t, err)
	_, err = s.AddItem(ctx, core.ExpenseItem{
		Name: "Old lease", Category: "Fixed", Amount: core.Cents(5000),
		IsRecurring: true, RecurrenceInterval: core.Daily, StartDate: "2024-01-01", EndDate: "2024-12-31",
	})
	require.NoError(t, err)
	_, err = s.AddItem(ctx, core.ExpenseItem{Name: "One-off", Category: "Misc", Amount: core.Cents(100)})
	require.NoError(t, err)

	p := NewRecurringProcessor(s)

	n, err := p.ProcessDue(ctx, day(2025, 2, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, n, "never generated is due")
	require.Len(t, sink.recorded, 1)
	assert.Equal(t, core.Date("2025-02-10"), sink.recorded[0].Date)

	n, err = p.ProcessDue(ctx, day(2025, 2, 27))
	require.NoError(t, err)
	assert.Zero(t, n, "already generated this month")

	n, err = p.ProcessDue(ctx, day(2025, 3, 31))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	for _, it := range s.Items() {
		if it.Name == "Rent" {
			assert.Equal(t, core.Date("2025-03-31"), it.LastGenerated)
		}
	}
	assert.Len(t, s.Records(), 2)
}

func TestExpenses_UpdateToOneOffClearsSchedule(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	s := NewExpenseService(ctx, kv, &recordingSink{}, nil)
	s.SetClock(fixedClock())

	rent, err := s.AddItem(ctx, core.ExpenseItem{
		Name: "Rent", Category: "Fixed", Amount: core.Cents(120000),
		IsRecurring: true, RecurrenceInterval: core.Monthly, StartDate: "2025-01-01", EndDate: "2025-12-31",
	})
	require.NoError(t, err)
	_, err = NewRecurringProcessor(s).ProcessDue(ctx, day(2025, 5, 10))
	require.NoError(t, err)

	edit := rent
	edit.IsRecurring = false
	updated, err := s.UpdateItem(ctx, rent.ID, edit)
	require.NoError(t, err)
	assert.Empty(t, updated.RecurrenceInterval)
	assert.Empty(t, updated.StartDate)
	assert.Empty(t, updated.EndDate)
	assert.Empty(t, updated.LastGenerated)

	stored := NewExpenseService(ctx, kv, nil, nil).Items()
	require.Len(t, stored, 1)
	assert.Empty(t, stored[0].RecurrenceInterval)
	assert.Empty(t, stored[0].StartDate)
}
