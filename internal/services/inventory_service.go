package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"opsdesk/internal/core"
	"opsdesk/internal/ledger"
	"opsdesk/internal/storage"
)

// RecipeIndex drops the recipe of a deleted sale item.
type RecipeIndex interface {
	RemoveRecipe(ctx context.Context, itemID string)
}

// Filter narrows a record listing. Empty fields do not filter.
type Filter struct {
	From     core.Date
	To       core.Date
	EntityID string
}

func (f Filter) match(d core.Date, entity string) bool {
	if !f.From.IsEmpty() && d.Before(f.From) {
		return false
	}
	if !f.To.IsEmpty() && f.To.Before(d) {
		return false
	}
	return f.EntityID == "" || f.EntityID == entity
}

// SaleItemPatch carries the fields to change; nil means unchanged.
type SaleItemPatch struct {
	Name  *string  `json:"name,omitempty"`
	Price *float64 `json:"price,omitempty"`
	Cost  *float64 `json:"cost,omitempty"`
}

// Preview is the live reconciliation of an unsaved entry.
type Preview struct {
	ledger.Result
	ledger.Valuation
	EntityName string `json:"entityName"`
}

// InventoryService owns sale items, price templates and daily count records.
type InventoryService struct {
	base
	mu        sync.RWMutex
	items     []core.SaleItem
	records   []core.CountRecord
	templates []core.PriceTemplate
	recipes   RecipeIndex
}

func NewInventoryService(ctx context.Context, kv storage.KV, sink EventSink, changes *ChangeCounter) *InventoryService {
	s := &InventoryService{base: newBase(kv, sink, changes)}
	s.items = storage.Load(ctx, kv, storage.KeySaleItems, []core.SaleItem{})
	s.records = storage.Load(ctx, kv, storage.KeyCountRecords, []core.CountRecord{})
	s.templates = storage.Load(ctx, kv, storage.KeyPriceTemplates, DefaultTemplates(s.now()))
	return s
}

// SetRecipes wires the BOM owner so item deletion can prune recipes.
func (s *InventoryService) SetRecipes(r RecipeIndex) {
	s.recipes = r
}

// DefaultTemplates are offered until the user saves their own list.
func DefaultTemplates(now time.Time) []core.PriceTemplate {
	mk := func(id, name string, price, cost float64, category string) core.PriceTemplate {
		return core.PriceTemplate{ID: id, Name: name, Price: price, Cost: cost, Category: category, CreatedAt: now}
	}
	return []core.PriceTemplate{
		mk("TPL-1", "Arabic shawarma", 15, 8, "Meals"),
		mk("TPL-2", "Meat shawarma", 18, 10, "Meals"),
		mk("TPL-3", "Falafel", 8, 4, "Meals"),
		mk("TPL-4", "Fresh juice", 12, 5, "Drinks"),
		mk("TPL-5", "Mineral water", 3, 1.5, "Drinks"),
	}
}

func (s *InventoryService) Items() []core.SaleItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.items)
}

func (s *InventoryService) Item(id string) (core.SaleItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := indexOf(s.items, func(it core.SaleItem) bool { return it.ID == id })
	if i < 0 {
		return core.SaleItem{}, false
	}
	return s.items[i], true
}

// HasItem reports whether a sale item exists.
func (s *InventoryService) HasItem(id string) bool {
	_, ok := s.Item(id)
	return ok
}

// hasItemLocked is HasItem for callers already holding s.mu, so the check and
// the write that depends on it cannot be split by a cascade delete.
func (s *InventoryService) hasItemLocked(id string) bool {
	return indexOf(s.items, func(it core.SaleItem) bool { return it.ID == id }) >= 0
}

// AddItem stores a new sale item. A template is saved alongside when no
// template has the same name (case-insensitive) and the price is positive.
func (s *InventoryService) AddItem(ctx context.Context, in core.SaleItem) (core.SaleItem, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return core.SaleItem{}, fmt.Errorf("add sale item: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	in.ID = core.NewID()
	in.CreatedAt, in.UpdatedAt = now, now
	s.items = append(clone(s.items), in)
	persist(ctx, &s.base, storage.KeySaleItems, s.items)

	known := indexOf(s.templates, func(t core.PriceTemplate) bool {
		return strings.EqualFold(t.Name, in.Name)
	}) >= 0
	if !known && in.Price > 0 {
		tpl := core.PriceTemplate{ID: core.NewID(), Name: in.Name, Price: in.Price, Cost: in.Cost, Category: "Custom products", CreatedAt: now}
		s.templates = append(clone(s.templates), tpl)
		persist(ctx, &s.base, storage.KeyPriceTemplates, s.templates)
	}

	s.changes.Bump()
	slog.InfoContext(ctx, "Sale item created", "item_id", in.ID, "name", in.Name)
	return in, nil
}

func (s *InventoryService) UpdateItem(ctx context.Context, id string, p SaleItemPatch) (core.SaleItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.items, func(it core.SaleItem) bool { return it.ID == id })
	if i < 0 {
		return core.SaleItem{}, fmt.Errorf("update sale item %s: %w", id, core.ErrNotFound)
	}
	next := s.items[i]
	if p.Name != nil {
		next.Name = strings.TrimSpace(*p.Name)
	}
	if p.Price != nil {
		next.Price = *p.Price
	}
	if p.Cost != nil {
		next.Cost = *p.Cost
	}
	if err := next.Validate(); err != nil {
		return core.SaleItem{}, fmt.Errorf("update sale item %s: %w", id, err)
	}
	next.UpdatedAt = s.now()

	items := clone(s.items)
	items[i] = next
	s.items = items
	persist(ctx, &s.base, storage.KeySaleItems, s.items)
	s.changes.Bump()
	return next, nil
}

// DeleteItem removes the item, all of its count records and its recipe.
func (s *InventoryService) DeleteItem(ctx context.Context, id string, confirm core.Confirm) (bool, error) {
	s.mu.Lock()
	i := indexOf(s.items, func(it core.SaleItem) bool { return it.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return false, fmt.Errorf("delete sale item %s: %w", id, core.ErrNotFound)
	}
	if !core.Confirmed(confirm, fmt.Sprintf("Delete %q and all of its count records?", s.items[i].Name)) {
		s.mu.Unlock()
		return false, nil
	}

	s.items, _ = without(s.items, func(it core.SaleItem) bool { return it.ID == id })
	var removed int
	s.records, removed = without(s.records, func(r core.CountRecord) bool { return r.ItemID == id })
	persist(ctx, &s.base, storage.KeySaleItems, s.items)
	persist(ctx, &s.base, storage.KeyCountRecords, s.records)
	s.changes.Bump()
	s.mu.Unlock()

	if s.recipes != nil {
		s.recipes.RemoveRecipe(ctx, id)
	}
	slog.InfoContext(ctx, "Sale item deleted", "item_id", id, "records_removed", removed)
	return true, nil
}

func (s *InventoryService) Templates() []core.PriceTemplate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.templates)
}

func (s *InventoryService) AddTemplate(ctx context.Context, t core.PriceTemplate) (core.PriceTemplate, error) {
	t.Name = strings.TrimSpace(t.Name)
	if err := t.Validate(); err != nil {
		return core.PriceTemplate{}, fmt.Errorf("add template: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = core.NewID()
	t.CreatedAt = s.now()
	s.templates = append(clone(s.templates), t)
	persist(ctx, &s.base, storage.KeyPriceTemplates, s.templates)
	s.changes.Bump()
	return t, nil
}

func (s *InventoryService) DeleteTemplate(ctx context.Context, id string, confirm core.Confirm) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.templates, func(t core.PriceTemplate) bool { return t.ID == id })
	if i < 0 {
		return false, fmt.Errorf("delete template %s: %w", id, core.ErrNotFound)
	}
	if !core.Confirmed(confirm, fmt.Sprintf("Delete template %q?", s.templates[i].Name)) {
		return false, nil
	}
	s.templates, _ = without(s.templates, func(t core.PriceTemplate) bool { return t.ID == id })
	persist(ctx, &s.base, storage.KeyPriceTemplates, s.templates)
	s.changes.Bump()
	return true, nil
}

// ApplyTemplate returns a sale item draft prefilled from a template.
func (s *InventoryService) ApplyTemplate(id string) (core.SaleItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := indexOf(s.templates, func(t core.PriceTemplate) bool { return t.ID == id })
	if i < 0 {
		return core.SaleItem{}, fmt.Errorf("template %s: %w", id, core.ErrNotFound)
	}
	t := s.templates[i]
	return core.SaleItem{Name: t.Name, Price: t.Price, Cost: t.Cost}, nil
}

// Records lists count records matching f, newest first.
func (s *InventoryService) Records(f Filter) []core.CountRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.CountRecord, 0, len(s.records))
	for _, r := range s.records {
		if f.match(r.Date, r.ItemID) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[j].Date.Before(out[i].Date) })
	return out
}

// AllRecords returns the full, unsorted snapshot.
func (s *InventoryService) AllRecords() []core.CountRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.records)
}

func (s *InventoryService) AddRecord(ctx context.Context, r core.CountRecord) (core.CountRecord, error) {
	if err := r.Validate(); err != nil {
		return core.CountRecord{}, fmt.Errorf("add count record: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasItemLocked(r.ItemID) {
		return core.CountRecord{}, fmt.Errorf("add count record: item %s: %w", r.ItemID, core.ErrNotFound)
	}
	now := s.now()
	r.ID = core.NewID()
	r.CreatedAt, r.UpdatedAt = now, now
	s.records = s.rederive(append(clone(s.records), r), r.ItemID)
	persist(ctx, &s.base, storage.KeyCountRecords, s.records)
	s.changes.Bump()

	saved := s.records[len(s.records)-1]
	slog.InfoContext(ctx, "Count record added", "record_id", saved.ID, "item_id", saved.ItemID, "date", saved.Date.String(), "quantity", saved.Quantity)
	return saved, nil
}

// UpdateRecord replaces the raw inputs of a record and re-derives its chain.
func (s *InventoryService) UpdateRecord(ctx context.Context, id string, in core.CountRecord) (core.CountRecord, error) {
	if err := in.Validate(); err != nil {
		return core.CountRecord{}, fmt.Errorf("update count record: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasItemLocked(in.ItemID) {
		return core.CountRecord{}, fmt.Errorf("update count record: item %s: %w", in.ItemID, core.ErrNotFound)
	}
	i := indexOf(s.records, func(r core.CountRecord) bool { return r.ID == id })
	if i < 0 {
		return core.CountRecord{}, fmt.Errorf("update count record %s: %w", id, core.ErrNotFound)
	}
	prev := s.records[i]
	in.ID, in.CreatedAt, in.UpdatedAt = prev.ID, prev.CreatedAt, s.now()

	records := clone(s.records)
	records[i] = in
	records = s.rederive(records, in.ItemID)
	if prev.ItemID != in.ItemID {
		records = s.rederive(records, prev.ItemID)
	}
	s.records = records
	persist(ctx, &s.base, storage.KeyCountRecords, s.records)
	s.changes.Bump()
	return s.records[i], nil
}

func (s *InventoryService) DeleteRecord(ctx context.Context, id string, confirm core.Confirm) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.records, func(r core.CountRecord) bool { return r.ID == id })
	if i < 0 {
		return false, fmt.Errorf("delete count record %s: %w", id, core.ErrNotFound)
	}
	if !core.Confirmed(confirm, "Delete this count record?") {
		return false, nil
	}
	itemID := s.records[i].ItemID
	records, _ := without(s.records, func(r core.CountRecord) bool { return r.ID == id })
	s.records = s.rederive(records, itemID)
	persist(ctx, &s.base, storage.KeyCountRecords, s.records)
	s.changes.Bump()
	return true, nil
}

// rederive recomputes the persisted quantity of every record of itemID.
// records must already be a private copy.
func (s *InventoryService) rederive(records []core.CountRecord, itemID string) []core.CountRecord {
	flows := ledger.Recompute(ledger.FromCounts(records))
	for i := range records {
		if records[i].ItemID == itemID {
			records[i].Quantity = flows[records[i].ID]
		}
	}
	return records
}

// Preview reconciles an unsaved entry against the stored history. When the
// entry edits an existing record, pass its id so it is left out.
func (s *InventoryService) Preview(in core.CountRecord, editingID string) (Preview, error) {
	if err := in.Validate(); err != nil {
		return Preview{}, err
	}
	item, ok := s.Item(in.ItemID)
	name := item.Name
	if !ok {
		name = core.UnknownName
	}

	s.mu.RLock()
	history, _ := without(s.records, func(r core.CountRecord) bool { return r.ID == editingID })
	s.mu.RUnlock()

	res := ledger.Reconcile(ledger.FromCount(in), ledger.FromCounts(history))
	return Preview{Result: res, Valuation: ledger.Value(res.Flow, item.Price, item.Cost), EntityName: name}, nil
}

// Summary folds the records matching f, each reconciled against the full
// history.
func (s *InventoryService) Summary(f Filter) ledger.Summary {
	s.mu.RLock()
	history := ledger.FromCounts(s.records)
	prices := make(map[string][2]float64, len(s.items))
	for _, it := range s.items {
		prices[it.ID] = [2]float64{it.Price, it.Cost}
	}
	var window []ledger.Movement
	for _, r := range s.records {
		if f.match(r.Date, r.ItemID) {
			window = append(window, ledger.FromCount(r))
		}
	}
	s.mu.RUnlock()

	return ledger.Summarize(history, window, func(id string) (float64, float64) {
		p := prices[id]
		return p[0], p[1]
	})
}

// ItemNames maps item ids to names for display lookups.
func (s *InventoryService) ItemNames() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.items))
	for _, it := range s.items {
		out[it.ID] = it.Name
	}
	return out
}
