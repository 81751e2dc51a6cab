package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"opsdesk/internal/core"
	"opsdesk/internal/storage"
)

// SupplierService owns products, suppliers and observed prices.
type SupplierService struct {
	base
	mu        sync.RWMutex
	products  []core.Product
	suppliers []core.Supplier
	prices    []core.PriceRecord
}

func NewSupplierService(ctx context.Context, kv storage.KV, sink EventSink, changes *ChangeCounter) *SupplierService {
	s := &SupplierService{base: newBase(kv, sink, changes)}
	s.products = storage.Load(ctx, kv, storage.KeyProducts, []core.Product{})
	s.suppliers = storage.Load(ctx, kv, storage.KeySuppliers, []core.Supplier{})
	s.prices = storage.Load(ctx, kv, storage.KeyPriceRecords, []core.PriceRecord{})
	return s
}

// Snapshot returns copies of the three collections, in insertion order.
func (s *SupplierService) Snapshot() ([]core.Product, []core.Supplier, []core.PriceRecord) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.products), clone(s.suppliers), clone(s.prices)
}

func (s *SupplierService) AddProduct(ctx context.Context, p core.Product) (core.Product, error) {
	p.Name, p.Unit = strings.TrimSpace(p.Name), strings.TrimSpace(p.Unit)
	if err := p.Validate(); err != nil {
		return core.Product{}, fmt.Errorf("add product: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = core.NewID()
	p.CreatedAt = s.now()
	s.products = append(clone(s.products), p)
	persist(ctx, &s.base, storage.KeyProducts, s.products)
	s.changes.Bump()
	return p, nil
}

// DeleteProduct removes the product and its price records.
func (s *SupplierService) DeleteProduct(ctx context.Context, id string, confirm core.Confirm) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.products, func(p core.Product) bool { return p.ID == id })
	if i < 0 {
		return false, fmt.Errorf("delete product %s: %w", id, core.ErrNotFound)
	}
	if !core.Confirmed(confirm, fmt.Sprintf("Delete %q and its price history?", s.products[i].Name)) {
		return false, nil
	}
	s.products, _ = without(s.products, func(p core.Product) bool { return p.ID == id })
	s.prices, _ = without(s.prices, func(r core.PriceRecord) bool { return r.ProductID == id })
	persist(ctx, &s.base, storage.KeyProducts, s.products)
	persist(ctx, &s.base, storage.KeyPriceRecords, s.prices)
	s.changes.Bump()
	return true, nil
}

func (s *SupplierService) AddSupplier(ctx context.Context, sup core.Supplier) (core.Supplier, error) {
	sup.Name = strings.TrimSpace(sup.Name)
	if err := sup.Validate(); err != nil {
		return core.Supplier{}, fmt.Errorf("add supplier: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sup.ID = core.NewID()
	sup.CreatedAt = s.now()
	s.suppliers = append(clone(s.suppliers), sup)
	persist(ctx, &s.base, storage.KeySuppliers, s.suppliers)
	s.changes.Bump()
	return sup, nil
}

// DeleteSupplier removes the supplier and its price records.
func (s *SupplierService) DeleteSupplier(ctx context.Context, id string, confirm core.Confirm) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.suppliers, func(x core.Supplier) bool { return x.ID == id })
	if i < 0 {
		return false, fmt.Errorf("delete supplier %s: %w", id, core.ErrNotFound)
	}
	if !core.Confirmed(confirm, fmt.Sprintf("Delete %q and its price history?", s.suppliers[i].Name)) {
		return false, nil
	}
	s.suppliers, _ = without(s.suppliers, func(x core.Supplier) bool { return x.ID == id })
	s.prices, _ = without(s.prices, func(r core.PriceRecord) bool { return r.SupplierID == id })
	persist(ctx, &s.base, storage.KeySuppliers, s.suppliers)
	persist(ctx, &s.base, storage.KeyPriceRecords, s.prices)
	s.changes.Bump()
	return true, nil
}

func (s *SupplierService) AddPrice(ctx context.Context, r core.PriceRecord) (core.PriceRecord, error) {
	if err := r.Validate(); err != nil {
		return core.PriceRecord{}, fmt.Errorf("add price: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if indexOf(s.products, func(p core.Product) bool { return p.ID == r.ProductID }) < 0 {
		return core.PriceRecord{}, fmt.Errorf("add price: product %s: %w", r.ProductID, core.ErrNotFound)
	}
	if indexOf(s.suppliers, func(x core.Supplier) bool { return x.ID == r.SupplierID }) < 0 {
		return core.PriceRecord{}, fmt.Errorf("add price: supplier %s: %w", r.SupplierID, core.ErrNotFound)
	}
	r.ID = core.NewID()
	r.CreatedAt = s.now()
	s.prices = append(clone(s.prices), r)
	persist(ctx, &s.base, storage.KeyPriceRecords, s.prices)
	s.changes.Bump()
	return r, nil
}

func (s *SupplierService) DeletePrice(ctx context.Context, id string, confirm core.Confirm) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if indexOf(s.prices, func(r core.PriceRecord) bool { return r.ID == id }) < 0 {
		return false, fmt.Errorf("delete price %s: %w", id, core.ErrNotFound)
	}
	if !core.Confirmed(confirm, "Delete this price record?") {
		return false, nil
	}
	s.prices, _ = without(s.prices, func(r core.PriceRecord) bool { return r.ID == id })
	persist(ctx, &s.base, storage.KeyPriceRecords, s.prices)
	s.changes.Bump()
	return true, nil
}
