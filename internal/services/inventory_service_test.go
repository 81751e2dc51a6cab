package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsdesk/internal/core"
	"opsdesk/internal/storage"
)

func newInventory(t *testing.T) (*InventoryService, *MaterialService, *storage.MemoryKV) {
	t.Helper()
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	changes := &ChangeCounter{}
	inv := NewInventoryService(ctx, kv, &recordingSink{}, changes)
	mat := NewMaterialService(ctx, kv, &recordingSink{}, changes)
	inv.SetRecipes(mat)
	mat.SetItems(inv)
	return inv, mat, kv
}

func TestInventory_SameDayRecordsIndependent(t *testing.T) {
	ctx := context.Background()
	inv, _, _ := newInventory(t)

	item, err := inv.AddItem(ctx, core.SaleItem{Name: "Shawarma", Price: 15, Cost: 8})
	require.NoError(t, err)

	_, err = inv.AddRecord(ctx, core.CountRecord{ItemID: item.ID, Date: "2025-05-01", Opening: ptr(20), Closing: 10})
	require.NoError(t, err)
	a, err := inv.AddRecord(ctx, core.CountRecord{ItemID: item.ID, Date: "2025-05-02", Closing: 5})
	require.NoError(t, err)
	b, err := inv.AddRecord(ctx, core.CountRecord{ItemID: item.ID, Date: "2025-05-02", Closing: 7})
	require.NoError(t, err)

	assert.Equal(t, 5.0, a.Quantity)
	assert.Equal(t, 3.0, b.Quantity)

	sum := inv.Summary(Filter{From: "2025-05-02", To: "2025-05-02"})
	assert.Equal(t, 8.0, sum.Quantity)
	assert.Equal(t, int64(12000), sum.Revenue.Cents)
	assert.Equal(t, int64(5600), sum.Profit.Cents)
}

func TestInventory_SiblingsRederivedOnMutation(t *testing.T) {
	ctx := context.Background()
	inv, _, _ := newInventory(t)
	item, err := inv.AddItem(ctx, core.SaleItem{Name: "Falafel", Price: 8, Cost: 4})
	require.NoError(t, err)

	first, err := inv.AddRecord(ctx, core.CountRecord{ItemID: item.ID, Date: "2025-05-01", Opening: ptr(30), Closing: 20})
	require.NoError(t, err)
	second, err := inv.AddRecord(ctx, core.CountRecord{ItemID: item.ID, Date: "2025-05-02", Closing: 12})
	require.NoError(t, err)
	assert.Equal(t, 8.0, second.Quantity)

	// Editing the earlier closing changes the later record's inherited opening.
	edited := first
	edited.Closing = 25
	_, err = inv.UpdateRecord(ctx, first.ID, edited)
	require.NoError(t, err)
	recs := inv.Records(Filter{EntityID: item.ID})
	require.Len(t, recs, 2)
	assert.Equal(t, second.ID, recs[0].ID, "newest first")
	assert.Equal(t, 13.0, recs[0].Quantity)

	// Deleting the earlier record leaves nothing to inherit from.
	ok, err := inv.DeleteRecord(ctx, first.ID, yes)
	require.NoError(t, err)
	require.True(t, ok)
	recs = inv.Records(Filter{})
	require.Len(t, recs, 1)
	assert.Equal(t, 0.0, recs[0].Quantity)
}

func TestInventory_DeleteItemCascades(t *testing.T) {
	ctx := context.Background()
	inv, mat, _ := newInventory(t)
	item, err := inv.AddItem(ctx, core.SaleItem{Name: "Juice", Price: 12, Cost: 5})
	require.NoError(t, err)
	other, err := inv.AddItem(ctx, core.SaleItem{Name: "Water", Price: 3, Cost: 1.5})
	require.NoError(t, err)
	m, err := mat.AddMaterial(ctx, core.MaterialItem{Name: "Oranges", Unit: "kg", LastCost: 4})
	require.NoError(t, err)
	_, err = mat.AddBomLine(ctx, item.ID, core.BomLine{MaterialID: m.ID, Qty: 300, Unit: "g"})
	require.NoError(t, err)

	for _, d := range []core.Date{"2025-05-01", "2025-05-02"} {
		_, err = inv.AddRecord(ctx, core.CountRecord{ItemID: item.ID, Date: d, Closing: 1})
		require.NoError(t, err)
	}
	_, err = inv.AddRecord(ctx, core.CountRecord{ItemID: other.ID, Date: "2025-05-01", Closing: 1})
	require.NoError(t, err)

	ok, err := inv.DeleteItem(ctx, item.ID, nil)
	require.NoError(t, err)
	assert.False(t, ok, "nil confirm aborts")
	assert.Len(t, inv.Records(Filter{EntityID: item.ID}), 2)

	ok, err = inv.DeleteItem(ctx, item.ID, no)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = inv.DeleteItem(ctx, item.ID, yes)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, inv.Records(Filter{EntityID: item.ID}))
	assert.Len(t, inv.Records(Filter{}), 1)
	_, hasRecipe := mat.BOM()[item.ID]
	assert.False(t, hasRecipe)

	_, err = inv.DeleteItem(ctx, item.ID, yes)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestInventory_ValidationAbortsWithoutMutation(t *testing.T) {
	ctx := context.Background()
	inv, _, kv := newInventory(t)

	_, err := inv.AddItem(ctx, core.SaleItem{Name: "   ", Price: 1})
	assert.ErrorIs(t, err, core.ErrEmptyName)
	assert.Empty(t, inv.Items())
	_, stored, _ := kv.Get(ctx, storage.KeySaleItems)
	assert.False(t, stored)

	_, err = inv.AddRecord(ctx, core.CountRecord{ItemID: "missing", Date: "2025-05-01"})
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = inv.AddRecord(ctx, core.CountRecord{ItemID: "x", Date: "05/01/2025"})
	assert.ErrorIs(t, err, core.ErrInvalidDate)
	assert.Empty(t, inv.AllRecords())
}

func TestInventory_TemplatesAutoSave(t *testing.T) {
	ctx := context.Background()
	inv, _, _ := newInventory(t)
	defaults := len(inv.Templates())
	require.Equal(t, 5, defaults)

	_, err := inv.AddItem(ctx, core.SaleItem{Name: "arabic SHAWARMA", Price: 16, Cost: 8})
	require.NoError(t, err)
	assert.Len(t, inv.Templates(), defaults, "known name is not duplicated")

	_, err = inv.AddItem(ctx, core.SaleItem{Name: "Free sample", Price: 0})
	require.NoError(t, err)
	assert.Len(t, inv.Templates(), defaults, "zero price is not templated")

	_, err = inv.AddItem(ctx, core.SaleItem{Name: "Hummus", Price: 9, Cost: 3})
	require.NoError(t, err)
	tpls := inv.Templates()
	require.Len(t, tpls, defaults+1)
	added := tpls[len(tpls)-1]
	assert.Equal(t, "Hummus", added.Name)

	draft, err := inv.ApplyTemplate(added.ID)
	require.NoError(t, err)
	assert.Equal(t, 9.0, draft.Price)

	ok, err := inv.DeleteTemplate(ctx, added.ID, yes)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, inv.Templates(), defaults)
}

func TestInventory_PreviewAndUpdateItem(t *testing.T) {
	ctx := context.Background()
	inv, _, _ := newInventory(t)
	item, err := inv.AddItem(ctx, core.SaleItem{Name: "Shawarma", Price: 15, Cost: 8})
	require.NoError(t, err)
	_, err = inv.AddRecord(ctx, core.CountRecord{ItemID: item.ID, Date: "2025-05-01", Opening: ptr(50), Closing: 40})
	require.NoError(t, err)

	p, err := inv.Preview(core.CountRecord{ItemID: item.ID, Date: "2025-05-02", Additions: 5, Closing: 30}, "")
	require.NoError(t, err)
	assert.Equal(t, 40.0, p.Opening)
	assert.True(t, p.Inherited)
	assert.Equal(t, 15.0, p.Flow)
	assert.Equal(t, int64(22500), p.Revenue.Cents)
	assert.Equal(t, "Shawarma", p.EntityName)

	price := 20.0
	updated, err := inv.UpdateItem(ctx, item.ID, SaleItemPatch{Price: &price})
	require.NoError(t, err)
	assert.Equal(t, 20.0, updated.Price)
	assert.Equal(t, 8.0, updated.Cost)

	neg := -1.0
	_, err = inv.UpdateItem(ctx, item.ID, SaleItemPatch{Cost: &neg})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
	got, _ := inv.Item(item.ID)
	assert.Equal(t, 8.0, got.Cost)
}

func TestInventory_PersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	inv, _, kv := newInventory(t)
	item, err := inv.AddItem(ctx, core.SaleItem{Name: "Shawarma", Price: 15, Cost: 8})
	require.NoError(t, err)
	_, err = inv.AddRecord(ctx, core.CountRecord{ItemID: item.ID, Date: "2025-05-01", Opening: ptr(9), Closing: 4})
	require.NoError(t, err)

	reloaded := NewInventoryService(ctx, kv, nil, nil)
	require.Len(t, reloaded.Items(), 1)
	recs := reloaded.AllRecords()
	require.Len(t, recs, 1)
	assert.Equal(t, 5.0, recs[0].Quantity)
}

func TestInventory_WriteFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	inv := NewInventoryService(ctx, brokenKV{storage.NewMemoryKV()}, MultiSink{sink, ContextSink{}}, nil)

	ctx, collector := WithCollector(ctx)
	item, err := inv.AddItem(ctx, core.SaleItem{Name: "Shawarma", Price: 15, Cost: 8})
	require.NoError(t, err)
	assert.True(t, inv.HasItem(item.ID))
	assert.Contains(t, sink.failures, storage.KeySaleItems)
	assert.NotEmpty(t, collector.Warnings())
}

func TestInventory_ConcurrentRecordsAndDeleteLeaveNoOrphans(t *testing.T) {
	ctx := context.Background()
	inv, _, _ := newInventory(t)
	item, err := inv.AddItem(ctx, core.SaleItem{Name: "Falafel", Price: 8, Cost: 4})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := inv.AddRecord(ctx, core.CountRecord{ItemID: item.ID, Date: "2025-05-01", Opening: ptr(10), Closing: 5})
			if err != nil {
				assert.ErrorIs(t, err, core.ErrNotFound)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := inv.DeleteItem(ctx, item.ID, yes)
		assert.NoError(t, err)
	}()
	wg.Wait()

	assert.False(t, inv.HasItem(item.ID))
	assert.Empty(t, inv.AllRecords())

	_, err = inv.AddRecord(ctx, core.CountRecord{ItemID: item.ID, Date: "2025-05-02", Closing: 1})
	assert.ErrorIs(t, err, core.ErrNotFound)
}
