package cli

import (
	"context"
	"fmt"

	"opsdesk/internal/backend"
	"opsdesk/internal/config"
	applog "opsdesk/internal/log"
	"opsdesk/internal/services"
)

// Stores is the wired set of record stores over one persistence backend.
type Stores struct {
	Inventory *services.InventoryService
	Materials *services.MaterialService
	Expenses  *services.ExpenseService
	Suppliers *services.SupplierService
	Recurring *services.RecurringProcessor
	Changes   *services.ChangeCounter

	Ping    backend.PingFunc
	Cleanup backend.CleanupFunc
}

// OpenStores creates the configured backend and loads every store from it.
// Events from all stores go to sink.
func OpenStores(ctx context.Context, cfg *config.Config, logger *applog.Logger, factory backend.Factory, sink services.EventSink) (*Stores, error) {
	backendCfg, _, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := factory.CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", backendCfg.Type, err)
	}

	changes := &services.ChangeCounter{}
	st := &Stores{
		Inventory: services.NewInventoryService(ctx, res.KV, sink, changes),
		Materials: services.NewMaterialService(ctx, res.KV, sink, changes),
		Expenses:  services.NewExpenseService(ctx, res.KV, sink, changes),
		Suppliers: services.NewSupplierService(ctx, res.KV, sink, changes),
		Changes:   changes,
		Ping:      res.Ping,
		Cleanup:   res.Cleanup,
	}
	st.Inventory.SetRecipes(st.Materials)
	st.Materials.SetItems(st.Inventory)
	st.Expenses.SetThreshold(cfg.BudgetAlertThreshold)
	st.Recurring = services.NewRecurringProcessor(st.Expenses)

	if st.Materials.Onboard(ctx) {
		logger.InfoContext(ctx, "First run: default packs seeded", applog.FieldOperation, applog.OpStartup)
	}
	logger.InfoContext(ctx, "Stores loaded",
		"backend", string(backendCfg.Type),
		"sale_items", len(st.Inventory.Items()),
		"materials", len(st.Materials.Materials()),
		"expense_items", len(st.Expenses.Items()))
	return st, nil
}
