// Package storage is the persistence boundary: every store snapshot is
// serialized as one JSON document under a fixed key.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// Keys of the persisted collections.
const (
	KeyPacks          = "opsdesk/unit_packs"
	KeySaleItems      = "opsdesk/sale_items"
	KeyCountRecords   = "opsdesk/count_records"
	KeyPriceTemplates = "opsdesk/price_templates"
	KeyMaterials      = "opsdesk/material_items"
	KeyUsageRecords   = "opsdesk/usage_records"
	KeyBOM            = "opsdesk/bom_map"
	KeyOnboardDone    = "opsdesk/onboard_done"
	KeyExpenseItems   = "opsdesk/expense_items"
	KeyExpenseRecords = "opsdesk/expense_records"
	KeyBudgets        = "opsdesk/budgets"
	KeyProducts       = "opsdesk/products"
	KeySuppliers      = "opsdesk/suppliers"
	KeyPriceRecords   = "opsdesk/price_records"
)

var ErrClosed = errors.New("store closed")

// KV is a minimal key-value store. Get reports ok=false for a missing key.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Load decodes the document stored under key. A missing key, a read error
// or malformed data all yield fallback; the latter two are logged.
func Load[T any](ctx context.Context, kv KV, key string, fallback T) T {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "Load failed, using default", "store_key", key, "error", err)
		return fallback
	}
	if !ok || len(raw) == 0 {
		return fallback
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		slog.WarnContext(ctx, "Malformed stored data, using default", "store_key", key, "error", err)
		return fallback
	}
	return v
}

// Save encodes v and writes it under key.
func Save[T any](ctx context.Context, kv KV, key string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := kv.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
