package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"opsdesk/internal/core"
	"opsdesk/internal/storage"
)

// DefaultAlertThreshold is the utilization percentage that raises an alert.
const DefaultAlertThreshold = 80.0

// ExpenseService owns expense items, expense records and budgets, and emits
// budget alerts after every mutation.
type ExpenseService struct {
	base
	mu        sync.RWMutex
	items     []core.ExpenseItem
	records   []core.ExpenseRecord
	budgets   []core.Budget
	threshold decimal.Decimal
}

func NewExpenseService(ctx context.Context, kv storage.KV, sink EventSink, changes *ChangeCounter) *ExpenseService {
	s := &ExpenseService{base: newBase(kv, sink, changes), threshold: decimal.NewFromFloat(DefaultAlertThreshold)}
	s.items = storage.Load(ctx, kv, storage.KeyExpenseItems, []core.ExpenseItem{})
	s.records = storage.Load(ctx, kv, storage.KeyExpenseRecords, []core.ExpenseRecord{})
	s.budgets = storage.Load(ctx, kv, storage.KeyBudgets, []core.Budget{})
	return s
}

// SetThreshold changes the alert percentage; non-positive values are ignored.
func (s *ExpenseService) SetThreshold(pct float64) {
	if pct > 0 {
		s.threshold = decimal.NewFromFloat(pct)
	}
}

func (s *ExpenseService) Items() []core.ExpenseItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.items)
}

func (s *ExpenseService) Item(id string) (core.ExpenseItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := indexOf(s.items, func(e core.ExpenseItem) bool { return e.ID == id })
	if i < 0 {
		return core.ExpenseItem{}, false
	}
	return s.items[i], true
}

// normalizeItem trims the text fields and drops the schedule of an item
// that is not recurring.
func normalizeItem(in core.ExpenseItem) core.ExpenseItem {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	if !in.IsRecurring {
		in.RecurrenceInterval, in.StartDate, in.EndDate, in.LastGenerated = "", "", "", ""
	}
	return in
}

func (s *ExpenseService) AddItem(ctx context.Context, in core.ExpenseItem) (core.ExpenseItem, error) {
	in = normalizeItem(in)
	if err := in.Validate(); err != nil {
		return core.ExpenseItem{}, fmt.Errorf("add expense item: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	in.ID = core.NewID()
	in.CreatedAt, in.UpdatedAt = now, now
	in.LastGenerated = ""
	s.items = append(clone(s.items), in)
	persist(ctx, &s.base, storage.KeyExpenseItems, s.items)
	s.afterMutation(ctx)
	slog.InfoContext(ctx, "Expense item created", "expense_item_id", in.ID, "category", in.Category, "recurring", in.IsRecurring)
	return in, nil
}

// UpdateItem replaces the editable fields of an item.
func (s *ExpenseService) UpdateItem(ctx context.Context, id string, in core.ExpenseItem) (core.ExpenseItem, error) {
	in = normalizeItem(in)
	if err := in.Validate(); err != nil {
		return core.ExpenseItem{}, fmt.Errorf("update expense item %s: %w", id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.items, func(e core.ExpenseItem) bool { return e.ID == id })
	if i < 0 {
		return core.ExpenseItem{}, fmt.Errorf("update expense item %s: %w", id, core.ErrNotFound)
	}
	prev := s.items[i]
	in.ID, in.CreatedAt, in.UpdatedAt = prev.ID, prev.CreatedAt, s.now()
	if in.IsRecurring {
		in.LastGenerated = prev.LastGenerated
	}
	items := clone(s.items)
	items[i] = in
	s.items = items
	persist(ctx, &s.base, storage.KeyExpenseItems, s.items)
	s.afterMutation(ctx)
	return in, nil
}

// DeleteItem removes the item and all of its records.
func (s *ExpenseService) DeleteItem(ctx context.Context, id string, confirm core.Confirm) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.items, func(e core.ExpenseItem) bool { return e.ID == id })
	if i < 0 {
		return false, fmt.Errorf("delete expense item %s: %w", id, core.ErrNotFound)
	}
	if !core.Confirmed(confirm, fmt.Sprintf("Delete %q and all of its expense records?", s.items[i].Name)) {
		return false, nil
	}
	s.items, _ = without(s.items, func(e core.ExpenseItem) bool { return e.ID == id })
	var removed int
	s.records, removed = without(s.records, func(r core.ExpenseRecord) bool { return r.ExpenseItemID == id })
	persist(ctx, &s.base, storage.KeyExpenseItems, s.items)
	persist(ctx, &s.base, storage.KeyExpenseRecords, s.records)
	s.afterMutation(ctx)
	slog.InfoContext(ctx, "Expense item deleted", "expense_item_id", id, "records_removed", removed)
	return true, nil
}

// Records returns all records, newest first.
func (s *ExpenseService) Records() []core.ExpenseRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := clone(s.records)
	sort.SliceStable(out, func(i, j int) bool { return out[j].Date.Before(out[i].Date) })
	return out
}

// AddRecord stores a dated expense. A zero amount takes the item's default.
func (s *ExpenseService) AddRecord(ctx context.Context, r core.ExpenseRecord) (core.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addRecordLocked(ctx, r)
}

func (s *ExpenseService) addRecordLocked(ctx context.Context, r core.ExpenseRecord) (core.ExpenseRecord, error) {
	i := indexOf(s.items, func(e core.ExpenseItem) bool { return e.ID == r.ExpenseItemID })
	if i >= 0 && r.Amount.Cents == 0 {
		r.Amount = s.items[i].Amount
	}
	if err := r.Validate(); err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("add expense record: %w", err)
	}
	if i < 0 {
		return core.ExpenseRecord{}, fmt.Errorf("add expense record: item %s: %w", r.ExpenseItemID, core.ErrNotFound)
	}
	r.ID = core.NewID()
	r.CreatedAt = s.now()
	s.records = append(clone(s.records), r)
	persist(ctx, &s.base, storage.KeyExpenseRecords, s.records)
	s.sink.ExpenseRecorded(ctx, r, s.items[i])
	s.afterMutation(ctx)
	return r, nil
}

func (s *ExpenseService) DeleteRecord(ctx context.Context, id string, confirm core.Confirm) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if indexOf(s.records, func(r core.ExpenseRecord) bool { return r.ID == id }) < 0 {
		return false, fmt.Errorf("delete expense record %s: %w", id, core.ErrNotFound)
	}
	if !core.Confirmed(confirm, "Delete this expense record?") {
		return false, nil
	}
	s.records, _ = without(s.records, func(r core.ExpenseRecord) bool { return r.ID == id })
	persist(ctx, &s.base, storage.KeyExpenseRecords, s.records)
	s.afterMutation(ctx)
	return true, nil
}

func (s *ExpenseService) Budgets() []core.Budget {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.budgets)
}

// UpsertBudget sets the limit of a category, replacing any existing one.
func (s *ExpenseService) UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	b.Category = strings.TrimSpace(b.Category)
	if err := b.Validate(); err != nil {
		return core.Budget{}, fmt.Errorf("set budget: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b.UpdatedAt = s.now()
	budgets := clone(s.budgets)
	if i := indexOf(budgets, func(x core.Budget) bool { return x.Category == b.Category }); i >= 0 {
		budgets[i] = b
	} else {
		budgets = append(budgets, b)
	}
	s.budgets = budgets
	persist(ctx, &s.base, storage.KeyBudgets, s.budgets)
	s.afterMutation(ctx)
	return b, nil
}

func (s *ExpenseService) DeleteBudget(ctx context.Context, category string, confirm core.Confirm) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if indexOf(s.budgets, func(b core.Budget) bool { return b.Category == category }) < 0 {
		return false, fmt.Errorf("delete budget %s: %w", category, core.ErrNotFound)
	}
	if !core.Confirmed(confirm, fmt.Sprintf("Delete the budget for %q?", category)) {
		return false, nil
	}
	s.budgets, _ = without(s.budgets, func(b core.Budget) bool { return b.Category == category })
	persist(ctx, &s.base, storage.KeyBudgets, s.budgets)
	s.afterMutation(ctx)
	return true, nil
}

// BudgetStatuses computes spend to date for every budget.
func (s *ExpenseService) BudgetStatuses() []core.BudgetStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return BudgetStatuses(s.items, s.records, s.budgets, s.threshold)
}

// BudgetStatuses sums every record whose item belongs to the budget's
// category. Records of unknown items count toward no category.
func BudgetStatuses(items []core.ExpenseItem, records []core.ExpenseRecord, budgets []core.Budget, threshold decimal.Decimal) []core.BudgetStatus {
	category := make(map[string]string, len(items))
	for _, it := range items {
		category[it.ID] = it.Category
	}
	spent := make(map[string]int64)
	for _, r := range records {
		if c, ok := category[r.ExpenseItemID]; ok {
			spent[c] += r.Amount.Cents
		}
	}
	hundred := decimal.NewFromInt(100)
	out := make([]core.BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		st := core.BudgetStatus{Category: b.Category, Limit: b.Limit, Spent: core.Cents(spent[b.Category])}
		if b.Limit.Cents > 0 {
			pct := decimal.NewFromInt(st.Spent.Cents).Mul(hundred).Div(decimal.NewFromInt(b.Limit.Cents))
			st.Percentage = pct.Round(2).InexactFloat64()
			st.Alert = pct.GreaterThanOrEqual(threshold)
		}
		out = append(out, st)
	}
	return out
}

// afterMutation runs with s.mu held.
func (s *ExpenseService) afterMutation(ctx context.Context) {
	s.changes.Bump()
	for _, st := range BudgetStatuses(s.items, s.records, s.budgets, s.threshold) {
		if st.Alert {
			s.sink.BudgetThresholdReached(ctx, st)
		}
	}
}

// Categories lists the distinct item categories, sorted.
func (s *ExpenseService) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, it := range s.items {
		if !seen[it.Category] {
			seen[it.Category] = true
			out = append(out, it.Category)
		}
	}
	sort.Strings(out)
	return out
}

// Generate creates the record of a due recurring item and stamps its
// lastGenerated day in one mutation.
func (s *ExpenseService) Generate(ctx context.Context, itemID string, day core.Date) (core.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.addRecordLocked(ctx, core.ExpenseRecord{Date: day, ExpenseItemID: itemID, Notes: "recurring"})
	if err != nil {
		return core.ExpenseRecord{}, err
	}
	i := indexOf(s.items, func(e core.ExpenseItem) bool { return e.ID == itemID })
	items := clone(s.items)
	items[i].LastGenerated = day
	s.items = items
	persist(ctx, &s.base, storage.KeyExpenseItems, s.items)
	return rec, nil
}
