package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsdesk/internal/core"
	applog "opsdesk/internal/log"
	"opsdesk/internal/metrics"
	"opsdesk/internal/reporting"
	"opsdesk/internal/services"
	"opsdesk/internal/storage"
)

type response[T any] struct {
	Data     T                   `json:"data"`
	Warnings []string            `json:"warnings"`
	Alerts   []core.BudgetStatus `json:"alerts"`
}

// failingKV reads nothing and rejects every write.
type failingKV struct{}

func (failingKV) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (failingKV) Put(context.Context, string, []byte) error         { return errors.New("disk full") }

type testServer struct {
	*Server
	reg *metrics.Registry
}

func newTestServer(t *testing.T, kv storage.KV, mutate func(*Options)) testServer {
	t.Helper()
	ctx := context.Background()
	if kv == nil {
		kv = storage.NewMemoryKV()
	}
	reg := metrics.New()
	sink := services.MultiSink{services.ContextSink{}, metrics.Sink{R: reg}}
	changes := &services.ChangeCounter{}

	inv := services.NewInventoryService(ctx, kv, sink, changes)
	mat := services.NewMaterialService(ctx, kv, sink, changes)
	inv.SetRecipes(mat)
	mat.SetItems(inv)
	exp := services.NewExpenseService(ctx, kv, sink, changes)

	opts := Options{
		RateLimitPerMinute: 100,
		Metrics:            reg,
		Logger:             applog.New(applog.Config{Output: io.Discard}),
		Now:                func() time.Time { return time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC) },
	}
	if mutate != nil {
		mutate(&opts)
	}
	srv := NewServer(":0", Services{
		Inventory: inv,
		Materials: mat,
		Expenses:  exp,
		Suppliers: services.NewSupplierService(ctx, kv, sink, changes),
		Recurring: services.NewRecurringProcessor(exp),
		Changes:   changes,
	}, opts)
	return testServer{Server: srv, reg: reg}
}

func (ts testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) response[T] {
	t.Helper()
	var out response[T]
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	rr := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())

	rr = ts.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	down := newTestServer(t, nil, func(o *Options) {
		o.Ready = func(context.Context) error { return errors.New("db down") }
	})
	rr = down.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/sale-items", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rr, req)

	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))

	rr = ts.do(t, http.MethodGet, "/api/sale-items", nil)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestSaleItemAndCountRecordLifecycle(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rr := ts.do(t, http.MethodPost, "/api/sale-items", map[string]any{"name": "Bread", "price": 2.5, "cost": 1})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	item := decode[core.SaleItem](t, rr).Data
	require.NotEmpty(t, item.ID)

	rr = ts.do(t, http.MethodPost, "/api/count-records", map[string]any{
		"date": "2024-03-01", "itemId": item.ID, "opening": 10, "closing": 4,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, 6.0, decode[core.CountRecord](t, rr).Data.Quantity)

	// The next day inherits yesterday's closing.
	rr = ts.do(t, http.MethodPost, "/api/count-records/preview", map[string]any{
		"date": "2024-03-02", "itemId": item.ID, "additions": 2, "closing": 1,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	preview := decode[services.Preview](t, rr).Data
	assert.Equal(t, 4.0, preview.Opening)
	assert.True(t, preview.Inherited)
	assert.Equal(t, 5.0, preview.Flow)

	rr = ts.do(t, http.MethodGet, "/api/count-records?item="+item.ID+"&from=2024-03-01", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]core.CountRecord](t, rr).Data, 1)

	rr = ts.do(t, http.MethodGet, "/api/count-records/summary", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"revenue":15.00`)

	rr = ts.do(t, http.MethodPatch, "/api/sale-items/"+item.ID, map[string]any{"price": 3})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 3.0, decode[core.SaleItem](t, rr).Data.Price)
}

func TestTheoreticalUsageWindowInheritsOpening(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rr := ts.do(t, http.MethodPost, "/api/sale-items", map[string]any{"name": "Burger", "price": 8})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	burger := decode[core.SaleItem](t, rr).Data

	rr = ts.do(t, http.MethodPost, "/api/materials", map[string]any{"name": "Bun", "unit": "piece", "lastCost": 0.3})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	bun := decode[core.MaterialItem](t, rr).Data

	rr = ts.do(t, http.MethodPost, "/api/bom/"+burger.ID+"/lines", map[string]any{"materialId": bun.ID, "qty": 1, "unit": "piece"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	for _, rec := range []map[string]any{
		{"date": "2024-03-01", "itemId": burger.ID, "opening": 100, "closing": 60},
		{"date": "2024-03-02", "itemId": burger.ID, "closing": 50},
	} {
		rr = ts.do(t, http.MethodPost, "/api/count-records", rec)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}

	rr = ts.do(t, http.MethodGet, "/api/theoretical-usage?from=2024-03-02", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	usage := decode[reporting.Theoretical](t, rr).Data
	require.Len(t, usage.Lines, 1)
	assert.Equal(t, "Bun", usage.Lines[0].Name)
	assert.Equal(t, 10.0, usage.Lines[0].Quantity)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	rr := ts.do(t, http.MethodPost, "/api/sale-items", map[string]any{"name": "Bread", "price": 2})
	require.Equal(t, http.StatusCreated, rr.Code)
	item := decode[core.SaleItem](t, rr).Data

	rr = ts.do(t, http.MethodDelete, "/api/sale-items/"+item.ID, nil)
	assert.Equal(t, http.StatusPreconditionRequired, rr.Code)
	assert.Len(t, ts.svc.Inventory.Items(), 1, "unconfirmed delete must not mutate")

	rr = ts.do(t, http.MethodDelete, "/api/sale-items/"+item.ID+"?confirm=true", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decode[map[string]bool](t, rr).Data["deleted"])
	assert.Empty(t, ts.svc.Inventory.Items())

	rr = ts.do(t, http.MethodDelete, "/api/sale-items/"+item.ID+"?confirm=true", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestErrorStatusCodes(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"empty name", http.MethodPost, "/api/sale-items", map[string]any{"name": " ", "price": 1}, http.StatusUnprocessableEntity},
		{"malformed json", http.MethodPost, "/api/sale-items", "{", http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/sale-items", map[string]any{"name": "A", "colour": "red"}, http.StatusBadRequest},
		{"trailing data", http.MethodPost, "/api/sale-items", `{"name":"A"} {}`, http.StatusBadRequest},
		{"missing item", http.MethodPatch, "/api/sale-items/NOPE", map[string]any{"price": 1}, http.StatusNotFound},
		{"bad date filter", http.MethodGet, "/api/count-records?from=03/01/2024", nil, http.StatusUnprocessableEntity},
		{"record for unknown item", http.MethodPost, "/api/count-records", map[string]any{"date": "2024-03-01", "itemId": "NOPE", "closing": 1}, http.StatusNotFound},
		{"unknown template", http.MethodPost, "/api/price-templates/NOPE/apply", nil, http.StatusNotFound},
		{"wrong method", http.MethodPut, "/api/sale-items", nil, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}
}

func TestBudgetAlertsReturnedWithMutation(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rr := ts.do(t, http.MethodPost, "/api/expense-items", map[string]any{"name": "Flour", "category": "Supplies", "amount": 90})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	item := decode[core.ExpenseItem](t, rr).Data

	rr = ts.do(t, http.MethodPut, "/api/budgets/Supplies", map[string]any{"limit": 100})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Empty(t, decode[core.Budget](t, rr).Alerts)

	rr = ts.do(t, http.MethodPost, "/api/expense-records", map[string]any{"date": "2024-03-02", "expenseItemId": item.ID})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	res := decode[core.ExpenseRecord](t, rr)
	assert.Equal(t, int64(9000), res.Data.Amount.Cents, "zero amount takes the item default")
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, "Supplies", res.Alerts[0].Category)
	assert.Equal(t, 90.0, res.Alerts[0].Percentage)

	assert.Equal(t, 1.0, testutil.ToFloat64(ts.reg.BudgetAlerts.WithLabelValues("Supplies")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.reg.ExpensesRecorded.WithLabelValues("Supplies")))

	rr = ts.do(t, http.MethodGet, "/api/expense-records?category=Supplies&from=2024-03-01", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	view := decode[reporting.ExpenseView](t, rr).Data
	require.Len(t, view.Rows, 1)
	assert.Equal(t, "Flour", view.Rows[0].ItemName)

	rr = ts.do(t, http.MethodGet, "/api/categories", nil)
	assert.Equal(t, []string{"Supplies"}, decode[[]string](t, rr).Data)
}

func TestPersistenceFailureSurfacesAsWarning(t *testing.T) {
	ts := newTestServer(t, failingKV{}, nil)

	rr := ts.do(t, http.MethodPost, "/api/products", map[string]any{"name": "Oil", "unit": "l"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	res := decode[core.Product](t, rr)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "disk full")

	rr = ts.do(t, http.MethodGet, "/api/products", nil)
	assert.Len(t, decode[[]core.Product](t, rr).Data, 1, "memory keeps the mutation")
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.reg.PersistenceFailures.WithLabelValues(storage.KeyProducts)))
}

func TestDashboardCachedByVersion(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	hits := ts.reg.DashboardCache.WithLabelValues("hit")
	misses := ts.reg.DashboardCache.WithLabelValues("miss")

	rr := ts.do(t, http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	ts.do(t, http.MethodGet, "/api/dashboard", nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(misses))
	assert.Equal(t, 1.0, testutil.ToFloat64(hits))

	rr = ts.do(t, http.MethodPost, "/api/sale-items", map[string]any{"name": "Bread", "price": 2})
	require.Equal(t, http.StatusCreated, rr.Code)
	item := decode[core.SaleItem](t, rr).Data
	rr = ts.do(t, http.MethodPost, "/api/count-records", map[string]any{"date": "2024-03-05", "itemId": item.ID, "opening": 5, "closing": 0})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = ts.do(t, http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2.0, testutil.ToFloat64(misses))
	d := decode[reporting.Dashboard](t, rr).Data
	assert.Equal(t, int64(1000), d.Revenue.Cents)
	require.Len(t, d.TopBySold, 1)
	assert.Equal(t, "Bread", d.TopBySold[0].Name)
}

func TestDashboardExport(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	rr := ts.do(t, http.MethodGet, "/api/dashboard/export.xlsx?locale=it", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "opsdesk-dashboard-2024-03-20.xlsx")
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")
}

func TestSupplierComparisonEndpoint(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	create := func(path string, body map[string]any) string {
		rr := ts.do(t, http.MethodPost, path, body)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		var res response[struct {
			ID string `json:"id"`
		}]
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
		return res.Data.ID
	}
	oil := create("/api/products", map[string]any{"name": "Oil", "unit": "l"})
	acme := create("/api/suppliers", map[string]any{"name": "Acme"})
	bolt := create("/api/suppliers", map[string]any{"name": "Bolt"})
	create("/api/prices", map[string]any{"productId": oil, "supplierId": acme, "price": 10, "date": "2024-03-01"})
	create("/api/prices", map[string]any{"productId": oil, "supplierId": bolt, "price": 8, "date": "2024-03-01"})

	rr := ts.do(t, http.MethodGet, "/api/comparison", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	out := decode[[]reporting.Comparison](t, rr).Data
	require.Len(t, out, 1)
	assert.Equal(t, 9.0, out[0].Average)
	require.NotNil(t, out[0].Best)
	assert.Equal(t, "Bolt", out[0].Best.Supplier)

	rr = ts.do(t, http.MethodDelete, "/api/suppliers/"+bolt+"?confirm=true", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = ts.do(t, http.MethodGet, "/api/prices?product="+oil, nil)
	assert.Len(t, decode[[]core.PriceRecord](t, rr).Data, 1, "supplier delete cascades its prices")
}

func TestRateLimitAppliesToMutations(t *testing.T) {
	ts := newTestServer(t, nil, func(o *Options) { o.RateLimitPerMinute = 2 })

	for i := 0; i < 2; i++ {
		rr := ts.do(t, http.MethodPost, "/api/products", map[string]any{"name": "Oil", "unit": "l"})
		require.Equal(t, http.StatusCreated, rr.Code)
	}
	rr := ts.do(t, http.MethodPost, "/api/products", map[string]any{"name": "Oil", "unit": "l"})
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))

	rr = ts.do(t, http.MethodGet, "/api/products", nil)
	assert.Equal(t, http.StatusOK, rr.Code, "reads are not limited")
}

func TestRecurringRunEndpoint(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	rr := ts.do(t, http.MethodPost, "/api/expense-items", map[string]any{
		"name": "Rent", "category": "Fixed", "amount": 500,
		"isRecurring": true, "recurrenceInterval": "monthly", "startDate": "2024-01-20",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = ts.do(t, http.MethodPost, "/api/recurring/run", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 1, decode[map[string]int](t, rr).Data["generated"])
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.reg.RecurringGenerated))

	rr = ts.do(t, http.MethodPost, "/api/recurring/run", nil)
	assert.Equal(t, 0, decode[map[string]int](t, rr).Data["generated"], "already generated today")
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	ts.do(t, http.MethodGet, "/api/packs", nil)

	rr := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `route="GET /api/packs"`)
}
