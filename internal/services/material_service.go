package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"opsdesk/internal/core"
	"opsdesk/internal/ledger"
	"opsdesk/internal/storage"
	"opsdesk/internal/units"
)

// ItemIndex answers whether a sale item exists, for recipe validation.
type ItemIndex interface {
	HasItem(id string) bool
}

// MaterialPatch carries the fields to change; nil means unchanged.
type MaterialPatch struct {
	Name     *string     `json:"name,omitempty"`
	Unit     *units.Unit `json:"unit,omitempty"`
	LastCost *float64    `json:"lastCost,omitempty"`
}

// MaterialService owns raw materials, their usage records, pack definitions
// and the bill of materials.
type MaterialService struct {
	base
	mu        sync.RWMutex
	materials []core.MaterialItem
	records   []core.UsageRecord
	packs     []units.Pack
	bom       core.BOM
	onboarded bool
	items     ItemIndex
}

func NewMaterialService(ctx context.Context, kv storage.KV, sink EventSink, changes *ChangeCounter) *MaterialService {
	s := &MaterialService{base: newBase(kv, sink, changes)}
	s.materials = storage.Load(ctx, kv, storage.KeyMaterials, []core.MaterialItem{})
	s.records = storage.Load(ctx, kv, storage.KeyUsageRecords, []core.UsageRecord{})
	s.packs = storage.Load(ctx, kv, storage.KeyPacks, []units.Pack{})
	s.bom = storage.Load(ctx, kv, storage.KeyBOM, core.BOM{})
	if s.bom == nil {
		s.bom = core.BOM{}
	}
	s.onboarded = storage.Load(ctx, kv, storage.KeyOnboardDone, false)
	return s
}

// SetItems wires the sale item owner used to validate recipes.
func (s *MaterialService) SetItems(items ItemIndex) {
	s.items = items
}

// Onboard seeds the default packs once. It reports whether seeding ran.
func (s *MaterialService) Onboard(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onboarded {
		return false
	}
	packs := clone(s.packs)
	for _, p := range units.DefaultPacks(s.now()) {
		if _, exists := units.FindPack(packs, p.ID); !exists {
			packs = append(packs, p)
		}
	}
	s.packs = packs
	s.onboarded = true
	persist(ctx, &s.base, storage.KeyPacks, s.packs)
	persist(ctx, &s.base, storage.KeyOnboardDone, true)
	s.changes.Bump()
	slog.InfoContext(ctx, "Default packs seeded", "packs", len(s.packs))
	return true
}

func (s *MaterialService) Packs() []units.Pack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.packs)
}

// AddPack stores a pack definition. Identifiers are upper-cased and unique.
func (s *MaterialService) AddPack(ctx context.Context, p units.Pack) (units.Pack, error) {
	p.ID = strings.ToUpper(strings.TrimSpace(p.ID))
	p.Name = strings.TrimSpace(p.Name)
	if err := p.Validate(); err != nil {
		return units.Pack{}, fmt.Errorf("add pack: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := units.FindPack(s.packs, p.ID); exists {
		return units.Pack{}, fmt.Errorf("add pack %s: %w", p.ID, core.ErrDuplicate)
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	s.packs = append(clone(s.packs), p)
	persist(ctx, &s.base, storage.KeyPacks, s.packs)
	s.changes.Bump()
	return p, nil
}

// DeletePack is refused while a material or recipe line uses the pack.
func (s *MaterialService) DeletePack(ctx context.Context, id string, confirm core.Confirm) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := units.FindPack(s.packs, id)
	if !ok {
		return false, fmt.Errorf("delete pack %s: %w", id, core.ErrNotFound)
	}
	if s.packInUse(id) {
		return false, fmt.Errorf("delete pack %s: %w", id, core.ErrPackInUse)
	}
	if !core.Confirmed(confirm, fmt.Sprintf("Delete pack %q?", p.Name)) {
		return false, nil
	}
	s.packs, _ = without(s.packs, func(x units.Pack) bool { return x.ID == id })
	persist(ctx, &s.base, storage.KeyPacks, s.packs)
	s.changes.Bump()
	return true, nil
}

func (s *MaterialService) packInUse(id string) bool {
	ref := units.PackUnit(id)
	for _, m := range s.materials {
		if m.Unit == ref {
			return true
		}
	}
	for _, lines := range s.bom {
		for _, l := range lines {
			if l.Unit == ref {
				return true
			}
		}
	}
	return false
}

func (s *MaterialService) checkUnit(u units.Unit) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if u.IsPack() {
		if _, ok := units.FindPack(s.packs, u.PackID()); !ok {
			return fmt.Errorf("%w: %s", units.ErrUnknownPack, u.PackID())
		}
	}
	return nil
}

func (s *MaterialService) Materials() []core.MaterialItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.materials)
}

func (s *MaterialService) Material(id string) (core.MaterialItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := indexOf(s.materials, func(m core.MaterialItem) bool { return m.ID == id })
	if i < 0 {
		return core.MaterialItem{}, false
	}
	return s.materials[i], true
}

func (s *MaterialService) AddMaterial(ctx context.Context, m core.MaterialItem) (core.MaterialItem, error) {
	m.Name = strings.TrimSpace(m.Name)
	if err := m.Validate(); err != nil {
		return core.MaterialItem{}, fmt.Errorf("add material: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkUnit(m.Unit); err != nil {
		return core.MaterialItem{}, fmt.Errorf("add material: %w", err)
	}
	now := s.now()
	m.ID = core.NewID()
	m.CreatedAt, m.UpdatedAt = now, now
	s.materials = append(clone(s.materials), m)
	persist(ctx, &s.base, storage.KeyMaterials, s.materials)
	s.changes.Bump()
	slog.InfoContext(ctx, "Material created", "material_id", m.ID, "name", m.Name, "unit", string(m.Unit))
	return m, nil
}

func (s *MaterialService) UpdateMaterial(ctx context.Context, id string, p MaterialPatch) (core.MaterialItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.materials, func(m core.MaterialItem) bool { return m.ID == id })
	if i < 0 {
		return core.MaterialItem{}, fmt.Errorf("update material %s: %w", id, core.ErrNotFound)
	}
	next := s.materials[i]
	if p.Name != nil {
		next.Name = strings.TrimSpace(*p.Name)
	}
	if p.Unit != nil {
		next.Unit = *p.Unit
	}
	if p.LastCost != nil {
		next.LastCost = *p.LastCost
	}
	if err := next.Validate(); err != nil {
		return core.MaterialItem{}, fmt.Errorf("update material %s: %w", id, err)
	}
	if err := s.checkUnit(next.Unit); err != nil {
		return core.MaterialItem{}, fmt.Errorf("update material %s: %w", id, err)
	}
	next.UpdatedAt = s.now()
	materials := clone(s.materials)
	materials[i] = next
	s.materials = materials
	persist(ctx, &s.base, storage.KeyMaterials, s.materials)
	s.changes.Bump()
	return next, nil
}

// DeleteMaterial removes the material, its usage records and every recipe
// line referencing it.
func (s *MaterialService) DeleteMaterial(ctx context.Context, id string, confirm core.Confirm) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.materials, func(m core.MaterialItem) bool { return m.ID == id })
	if i < 0 {
		return false, fmt.Errorf("delete material %s: %w", id, core.ErrNotFound)
	}
	if !core.Confirmed(confirm, fmt.Sprintf("Delete %q and all of its usage records?", s.materials[i].Name)) {
		return false, nil
	}
	s.materials, _ = without(s.materials, func(m core.MaterialItem) bool { return m.ID == id })
	var removed int
	s.records, removed = without(s.records, func(r core.UsageRecord) bool { return r.MaterialID == id })

	bom := s.bom.Clone()
	for itemID, lines := range bom {
		kept, n := without(lines, func(l core.BomLine) bool { return l.MaterialID == id })
		if n == 0 {
			continue
		}
		if len(kept) == 0 {
			delete(bom, itemID)
		} else {
			bom[itemID] = kept
		}
	}
	s.bom = bom

	persist(ctx, &s.base, storage.KeyMaterials, s.materials)
	persist(ctx, &s.base, storage.KeyUsageRecords, s.records)
	persist(ctx, &s.base, storage.KeyBOM, s.bom)
	s.changes.Bump()
	slog.InfoContext(ctx, "Material deleted", "material_id", id, "records_removed", removed)
	return true, nil
}

func (s *MaterialService) Records(f Filter) []core.UsageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.UsageRecord, 0, len(s.records))
	for _, r := range s.records {
		if f.match(r.Date, r.MaterialID) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[j].Date.Before(out[i].Date) })
	return out
}

func (s *MaterialService) AllRecords() []core.UsageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.records)
}

func (s *MaterialService) AddRecord(ctx context.Context, r core.UsageRecord) (core.UsageRecord, error) {
	if err := r.Validate(); err != nil {
		return core.UsageRecord{}, fmt.Errorf("add usage record: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if indexOf(s.materials, func(m core.MaterialItem) bool { return m.ID == r.MaterialID }) < 0 {
		return core.UsageRecord{}, fmt.Errorf("add usage record: material %s: %w", r.MaterialID, core.ErrNotFound)
	}
	now := s.now()
	r.ID = core.NewID()
	r.CreatedAt, r.UpdatedAt = now, now
	s.records = s.rederive(append(clone(s.records), r), r.MaterialID)
	persist(ctx, &s.base, storage.KeyUsageRecords, s.records)
	s.changes.Bump()

	saved := s.records[len(s.records)-1]
	slog.InfoContext(ctx, "Usage record added", "record_id", saved.ID, "material_id", saved.MaterialID, "date", saved.Date.String(), "quantity", saved.Quantity)
	return saved, nil
}

func (s *MaterialService) UpdateRecord(ctx context.Context, id string, in core.UsageRecord) (core.UsageRecord, error) {
	if err := in.Validate(); err != nil {
		return core.UsageRecord{}, fmt.Errorf("update usage record: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if indexOf(s.materials, func(m core.MaterialItem) bool { return m.ID == in.MaterialID }) < 0 {
		return core.UsageRecord{}, fmt.Errorf("update usage record: material %s: %w", in.MaterialID, core.ErrNotFound)
	}
	i := indexOf(s.records, func(r core.UsageRecord) bool { return r.ID == id })
	if i < 0 {
		return core.UsageRecord{}, fmt.Errorf("update usage record %s: %w", id, core.ErrNotFound)
	}
	prev := s.records[i]
	in.ID, in.CreatedAt, in.UpdatedAt = prev.ID, prev.CreatedAt, s.now()

	records := clone(s.records)
	records[i] = in
	records = s.rederive(records, in.MaterialID)
	if prev.MaterialID != in.MaterialID {
		records = s.rederive(records, prev.MaterialID)
	}
	s.records = records
	persist(ctx, &s.base, storage.KeyUsageRecords, s.records)
	s.changes.Bump()
	return s.records[i], nil
}

func (s *MaterialService) DeleteRecord(ctx context.Context, id string, confirm core.Confirm) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.records, func(r core.UsageRecord) bool { return r.ID == id })
	if i < 0 {
		return false, fmt.Errorf("delete usage record %s: %w", id, core.ErrNotFound)
	}
	if !core.Confirmed(confirm, "Delete this usage record?") {
		return false, nil
	}
	materialID := s.records[i].MaterialID
	records, _ := without(s.records, func(r core.UsageRecord) bool { return r.ID == id })
	s.records = s.rederive(records, materialID)
	persist(ctx, &s.base, storage.KeyUsageRecords, s.records)
	s.changes.Bump()
	return true, nil
}

func (s *MaterialService) rederive(records []core.UsageRecord, materialID string) []core.UsageRecord {
	flows := ledger.Recompute(ledger.FromUsages(records))
	for i := range records {
		if records[i].MaterialID == materialID {
			records[i].Quantity = flows[records[i].ID]
		}
	}
	return records
}

func (s *MaterialService) Preview(in core.UsageRecord, editingID string) (Preview, error) {
	if err := in.Validate(); err != nil {
		return Preview{}, err
	}
	m, ok := s.Material(in.MaterialID)
	name := m.Name
	if !ok {
		name = core.UnknownName
	}

	s.mu.RLock()
	history, _ := without(s.records, func(r core.UsageRecord) bool { return r.ID == editingID })
	s.mu.RUnlock()

	res := ledger.Reconcile(ledger.FromUsage(in), ledger.FromUsages(history))
	return Preview{Result: res, Valuation: ledger.CostOnly(res.Flow, m.LastCost), EntityName: name}, nil
}

// Summary values usage at each material's last known cost. Usage has no
// revenue, so profit stays zero.
func (s *MaterialService) Summary(f Filter) ledger.Summary {
	s.mu.RLock()
	history := ledger.FromUsages(s.records)
	costs := make(map[string]float64, len(s.materials))
	for _, m := range s.materials {
		costs[m.ID] = m.LastCost
	}
	var window []ledger.Movement
	for _, r := range s.records {
		if f.match(r.Date, r.MaterialID) {
			window = append(window, ledger.FromUsage(r))
		}
	}
	s.mu.RUnlock()

	return ledger.Summarize(history, window, func(id string) (float64, float64) {
		return 0, costs[id]
	}).WithoutProfit()
}

func (s *MaterialService) MaterialNames() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.materials))
	for _, m := range s.materials {
		out[m.ID] = m.Name
	}
	return out
}

func (s *MaterialService) BOM() core.BOM {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bom.Clone()
}

// putBomLine appends or replaces the line for line.MaterialID in the recipe
// of itemID.
func (s *MaterialService) putBomLine(ctx context.Context, itemID string, line core.BomLine) ([]core.BomLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if indexOf(s.materials, func(m core.MaterialItem) bool { return m.ID == line.MaterialID }) < 0 {
		return nil, fmt.Errorf("add recipe line: material %s: %w", line.MaterialID, core.ErrNotFound)
	}
	if err := s.checkUnit(line.Unit); err != nil {
		return nil, fmt.Errorf("add recipe line: %w", err)
	}

	bom := s.bom.Clone()
	lines := bom[itemID]
	if i := indexOf(lines, func(l core.BomLine) bool { return l.MaterialID == line.MaterialID }); i >= 0 {
		lines[i] = line
	} else {
		lines = append(lines, line)
	}
	bom[itemID] = lines
	s.bom = bom
	persist(ctx, &s.base, storage.KeyBOM, s.bom)
	s.changes.Bump()
	return clone(lines), nil
}

// AddBomLine adds or replaces the recipe line of one material. The item is
// checked again after the write: a sale item deleted meanwhile has already
// pruned its recipe, so the new line is dropped with it.
func (s *MaterialService) AddBomLine(ctx context.Context, itemID string, line core.BomLine) ([]core.BomLine, error) {
	if err := line.Validate(); err != nil {
		return nil, fmt.Errorf("add recipe line: %w", err)
	}
	if s.items != nil && !s.items.HasItem(itemID) {
		return nil, fmt.Errorf("add recipe line: item %s: %w", itemID, core.ErrNotFound)
	}
	lines, err := s.putBomLine(ctx, itemID, line)
	if err != nil {
		return nil, err
	}
	if s.items != nil && !s.items.HasItem(itemID) {
		s.RemoveRecipe(ctx, itemID)
		return nil, fmt.Errorf("add recipe line: item %s: %w", itemID, core.ErrNotFound)
	}
	return lines, nil
}

func (s *MaterialService) RemoveBomLine(ctx context.Context, itemID, materialID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines, ok := s.bom[itemID]
	if !ok {
		return fmt.Errorf("recipe %s: %w", itemID, core.ErrNotFound)
	}
	kept, n := without(lines, func(l core.BomLine) bool { return l.MaterialID == materialID })
	if n == 0 {
		return fmt.Errorf("recipe line %s/%s: %w", itemID, materialID, core.ErrNotFound)
	}
	bom := s.bom.Clone()
	if len(kept) == 0 {
		delete(bom, itemID)
	} else {
		bom[itemID] = kept
	}
	s.bom = bom
	persist(ctx, &s.base, storage.KeyBOM, s.bom)
	s.changes.Bump()
	return nil
}

// RemoveRecipe implements RecipeIndex.
func (s *MaterialService) RemoveRecipe(ctx context.Context, itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bom[itemID]; !ok {
		return
	}
	bom := s.bom.Clone()
	delete(bom, itemID)
	s.bom = bom
	persist(ctx, &s.base, storage.KeyBOM, s.bom)
	s.changes.Bump()
}
