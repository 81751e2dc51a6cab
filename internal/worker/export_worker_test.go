package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsdesk/internal/amqp"
	"opsdesk/internal/core"
	"opsdesk/internal/sheets"
	"opsdesk/internal/sheets/memory"
)

type failingWriter struct{}

func (failingWriter) AppendExpense(context.Context, sheets.ExpenseRow) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestExportWorker_Expense(t *testing.T) {
	store := memory.New()
	var outcomes []string
	w := NewExportWorker(store, store, func(typ, outcome string) { outcomes = append(outcomes, typ+":"+outcome) })

	env, err := amqp.NewExpenseRecorded(
		core.ExpenseRecord{ID: "R1", Date: "2024-03-01", ExpenseItemID: "E1", Amount: core.Cents(4550)},
		core.ExpenseItem{ID: "E1", Name: "Flour", Category: "Supplies"},
		time.Now())
	require.NoError(t, err)

	require.NoError(t, w.Handle(context.Background(), env))
	rows := store.Expenses()
	require.Len(t, rows, 1)
	assert.Equal(t, "Flour", rows[0].Item)
	assert.Equal(t, int64(4550), rows[0].Amount.Cents)
	assert.Equal(t, []string{"expense_recorded:ok"}, outcomes)
}

func TestExportWorker_Alert(t *testing.T) {
	store := memory.New()
	w := NewExportWorker(store, store, nil)
	raised := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)

	env, err := amqp.NewBudgetAlert(core.BudgetStatus{Category: "Supplies", Spent: core.Cents(8500), Limit: core.Cents(10000), Percentage: 85}, raised)
	require.NoError(t, err)

	require.NoError(t, w.Handle(context.Background(), env))
	alerts := store.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, raised, alerts[0].RaisedAt)
	assert.Equal(t, 85.0, alerts[0].Percentage)
}

func TestExportWorker_WriterFailure(t *testing.T) {
	var outcome string
	w := NewExportWorker(failingWriter{}, memory.New(), func(_, o string) { outcome = o })
	env, err := amqp.NewExpenseRecorded(core.ExpenseRecord{ID: "R1", Date: "2024-03-01"}, core.ExpenseItem{ID: "E1"}, time.Now())
	require.NoError(t, err)

	err = w.Handle(context.Background(), env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, "error", outcome)
}

func TestExportWorker_UnknownType(t *testing.T) {
	w := NewExportWorker(memory.New(), memory.New(), nil)
	err := w.Handle(context.Background(), &amqp.Envelope{Type: "mystery"})
	assert.ErrorIs(t, err, amqp.ErrUnknownType)
}
