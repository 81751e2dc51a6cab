// Package http serves the opsdesk JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"opsdesk/internal/cache"
	applog "opsdesk/internal/log"
	"opsdesk/internal/metrics"
	"opsdesk/internal/reporting"
	"opsdesk/internal/services"
)

// Services are the stores the API exposes.
type Services struct {
	Inventory *services.InventoryService
	Materials *services.MaterialService
	Expenses  *services.ExpenseService
	Suppliers *services.SupplierService
	Recurring *services.RecurringProcessor
	Changes   *services.ChangeCounter
}

type Options struct {
	RateLimitPerMinute int
	ReportLocale       string
	// Ready reports backend health for /readyz; nil means always ready.
	Ready   func(ctx context.Context) error
	Metrics *metrics.Registry
	Logger  *applog.Logger
	Now     func() time.Time
}

type Server struct {
	http.Server
	svc     Services
	locale  string
	ready   func(ctx context.Context) error
	metrics *metrics.Registry
	logger  *applog.Logger
	now     func() time.Time
	limiter *rateLimiter

	// Dashboards keyed by change-counter version; any mutation misses.
	dashboards *cache.LRUCache[reporting.Dashboard]
	caches     *cache.Manager

	stopBackground context.CancelFunc
	shutdownOnce   sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// Background cleanup starts with Start and stops with Shutdown.
func NewServer(addr string, svc Services, opts Options) *Server {
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ReportLocale == "" {
		opts.ReportLocale = "en"
	}
	logger := opts.Logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		svc:        svc,
		locale:     opts.ReportLocale,
		ready:      opts.Ready,
		metrics:    opts.Metrics,
		logger:     logger,
		now:        opts.Now,
		limiter:    newRateLimiter(opts.RateLimitPerMinute, time.Minute),
		dashboards: cache.NewLRUCache[reporting.Dashboard](16, time.Minute),
		caches:     cache.NewManager(logger.Logger),
	}
	s.caches.Register(s.dashboards)

	mux := http.NewServeMux()
	s.routes(mux)
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.instrument(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
	return s
}

// Start launches the cache and rate-limiter cleanup loops.
func (s *Server) Start(ctx context.Context) {
	ctx, s.stopBackground = context.WithCancel(ctx)
	go s.caches.Run(ctx, 5*time.Minute)
	go s.limiter.startCleanup(5 * time.Minute)
}

// Shutdown stops background loops and gracefully shuts down the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.stopBackground != nil {
			s.stopBackground()
		}
		s.limiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.HandleFunc("POST /api/onboarding", s.handleOnboard)
	mux.HandleFunc("GET /api/packs", s.handleListPacks)
	mux.HandleFunc("POST /api/packs", s.handleAddPack)
	mux.HandleFunc("DELETE /api/packs/{id}", s.handleDeletePack)

	mux.HandleFunc("GET /api/sale-items", s.handleListSaleItems)
	mux.HandleFunc("POST /api/sale-items", s.handleAddSaleItem)
	mux.HandleFunc("PATCH /api/sale-items/{id}", s.handleUpdateSaleItem)
	mux.HandleFunc("DELETE /api/sale-items/{id}", s.handleDeleteSaleItem)

	mux.HandleFunc("GET /api/price-templates", s.handleListTemplates)
	mux.HandleFunc("POST /api/price-templates", s.handleAddTemplate)
	mux.HandleFunc("POST /api/price-templates/{id}/apply", s.handleApplyTemplate)
	mux.HandleFunc("DELETE /api/price-templates/{id}", s.handleDeleteTemplate)

	mux.HandleFunc("GET /api/count-records", s.handleListCountRecords)
	mux.HandleFunc("GET /api/count-records/summary", s.handleCountSummary)
	mux.HandleFunc("POST /api/count-records", s.handleAddCountRecord)
	mux.HandleFunc("POST /api/count-records/preview", s.handlePreviewCountRecord)
	mux.HandleFunc("PUT /api/count-records/{id}", s.handleUpdateCountRecord)
	mux.HandleFunc("DELETE /api/count-records/{id}", s.handleDeleteCountRecord)

	mux.HandleFunc("GET /api/materials", s.handleListMaterials)
	mux.HandleFunc("POST /api/materials", s.handleAddMaterial)
	mux.HandleFunc("PATCH /api/materials/{id}", s.handleUpdateMaterial)
	mux.HandleFunc("DELETE /api/materials/{id}", s.handleDeleteMaterial)

	mux.HandleFunc("GET /api/usage-records", s.handleListUsageRecords)
	mux.HandleFunc("GET /api/usage-records/summary", s.handleUsageSummary)
	mux.HandleFunc("POST /api/usage-records", s.handleAddUsageRecord)
	mux.HandleFunc("POST /api/usage-records/preview", s.handlePreviewUsageRecord)
	mux.HandleFunc("PUT /api/usage-records/{id}", s.handleUpdateUsageRecord)
	mux.HandleFunc("DELETE /api/usage-records/{id}", s.handleDeleteUsageRecord)

	mux.HandleFunc("GET /api/bom", s.handleGetBOM)
	mux.HandleFunc("POST /api/bom/{itemID}/lines", s.handleAddBomLine)
	mux.HandleFunc("DELETE /api/bom/{itemID}/lines/{materialID}", s.handleRemoveBomLine)

	mux.HandleFunc("GET /api/expense-items", s.handleListExpenseItems)
	mux.HandleFunc("POST /api/expense-items", s.handleAddExpenseItem)
	mux.HandleFunc("PUT /api/expense-items/{id}", s.handleUpdateExpenseItem)
	mux.HandleFunc("DELETE /api/expense-items/{id}", s.handleDeleteExpenseItem)
	mux.HandleFunc("GET /api/expense-records", s.handleListExpenseRecords)
	mux.HandleFunc("POST /api/expense-records", s.handleAddExpenseRecord)
	mux.HandleFunc("DELETE /api/expense-records/{id}", s.handleDeleteExpenseRecord)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /api/budgets", s.handleBudgetStatuses)
	mux.HandleFunc("PUT /api/budgets/{category}", s.handleUpsertBudget)
	mux.HandleFunc("DELETE /api/budgets/{category}", s.handleDeleteBudget)
	mux.HandleFunc("POST /api/recurring/run", s.handleRunRecurring)

	mux.HandleFunc("GET /api/products", s.handleListProducts)
	mux.HandleFunc("POST /api/products", s.handleAddProduct)
	mux.HandleFunc("DELETE /api/products/{id}", s.handleDeleteProduct)
	mux.HandleFunc("GET /api/suppliers", s.handleListSuppliers)
	mux.HandleFunc("POST /api/suppliers", s.handleAddSupplier)
	mux.HandleFunc("DELETE /api/suppliers/{id}", s.handleDeleteSupplier)
	mux.HandleFunc("GET /api/prices", s.handleListPrices)
	mux.HandleFunc("POST /api/prices", s.handleAddPrice)
	mux.HandleFunc("DELETE /api/prices/{id}", s.handleDeletePrice)
	mux.HandleFunc("GET /api/comparison", s.handleComparison)

	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/dashboard/export.xlsx", s.handleDashboardExport)
	mux.HandleFunc("GET /api/theoretical-usage", s.handleTheoreticalUsage)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
