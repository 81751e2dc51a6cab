package http

import (
	"net/http"
	"strings"

	"opsdesk/internal/core"
	applog "opsdesk/internal/log"
	"opsdesk/internal/reporting"
)

func (s *Server) handleListExpenseItems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.svc.Expenses.Items())
}

func (s *Server) handleAddExpenseItem(w http.ResponseWriter, r *http.Request) {
	var in core.ExpenseItem
	if !decodeJSON(w, r, &in) {
		return
	}
	sanitizeInput(&in.Name, &in.Category)
	item, err := s.svc.Expenses.AddItem(r.Context(), in)
	if err != nil {
		s.fail(w, r, "add expense item", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, item)
}

func (s *Server) handleUpdateExpenseItem(w http.ResponseWriter, r *http.Request) {
	var in core.ExpenseItem
	if !decodeJSON(w, r, &in) {
		return
	}
	sanitizeInput(&in.Name, &in.Category)
	item, err := s.svc.Expenses.UpdateItem(r.Context(), r.PathValue("id"), in)
	if err != nil {
		s.fail(w, r, "update expense item", err)
		return
	}
	writeJSON(w, r, http.StatusOK, item)
}

func (s *Server) handleDeleteExpenseItem(w http.ResponseWriter, r *http.Request) {
	confirm := confirmDelete(w, r)
	if confirm == nil {
		return
	}
	ok, err := s.svc.Expenses.DeleteItem(r.Context(), r.PathValue("id"), confirm)
	s.deleted(w, r, "delete expense item", ok, err)
}

// handleListExpenseRecords joins records to their items, newest first, with
// optional from, to and category filters.
func (s *Server) handleListExpenseRecords(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "from")
	if err != nil {
		s.fail(w, r, "list expenses", err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		s.fail(w, r, "list expenses", err)
		return
	}
	view := reporting.FilterExpenses(s.svc.Expenses.Records(), s.svc.Expenses.Items(), reporting.ExpenseFilter{
		From:     from,
		To:       to,
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
	})
	writeJSON(w, r, http.StatusOK, view)
}

func (s *Server) handleAddExpenseRecord(w http.ResponseWriter, r *http.Request) {
	var in core.ExpenseRecord
	if !decodeJSON(w, r, &in) {
		return
	}
	sanitizeInput(&in.Notes)
	rec, err := s.svc.Expenses.AddRecord(r.Context(), in)
	if err != nil {
		s.fail(w, r, "add expense record", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, rec)
}

func (s *Server) handleDeleteExpenseRecord(w http.ResponseWriter, r *http.Request) {
	confirm := confirmDelete(w, r)
	if confirm == nil {
		return
	}
	ok, err := s.svc.Expenses.DeleteRecord(r.Context(), r.PathValue("id"), confirm)
	s.deleted(w, r, "delete expense record", ok, err)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats := s.svc.Expenses.Categories()
	if cats == nil {
		cats = []string{}
	}
	writeJSON(w, r, http.StatusOK, cats)
}

func (s *Server) handleBudgetStatuses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.svc.Expenses.BudgetStatuses())
}

type budgetRequest struct {
	Limit core.Money `json:"limit"`
}

func (s *Server) handleUpsertBudget(w http.ResponseWriter, r *http.Request) {
	var in budgetRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	category := r.PathValue("category")
	sanitizeInput(&category)
	b, err := s.svc.Expenses.UpsertBudget(r.Context(), core.Budget{Category: category, Limit: in.Limit})
	if err != nil {
		s.fail(w, r, "set budget", err)
		return
	}
	writeJSON(w, r, http.StatusOK, b)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	confirm := confirmDelete(w, r)
	if confirm == nil {
		return
	}
	ok, err := s.svc.Expenses.DeleteBudget(r.Context(), r.PathValue("category"), confirm)
	s.deleted(w, r, "delete budget", ok, err)
}

// handleRunRecurring materializes due recurring items immediately instead of
// waiting for the recurring worker.
func (s *Server) handleRunRecurring(w http.ResponseWriter, r *http.Request) {
	if s.svc.Recurring == nil {
		writeError(w, r, http.StatusNotImplemented, "recurring processing is not configured")
		return
	}
	n, err := s.svc.Recurring.ProcessDue(r.Context(), s.now())
	if err != nil {
		s.fail(w, r, "process recurring", err)
		return
	}
	s.metrics.RecurringGenerated.Add(float64(n))
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Recurring expenses generated",
		applog.FieldOperation, applog.OpGenerate, "generated", n)
	writeJSON(w, r, http.StatusOK, map[string]int{"generated": n})
}
