package services

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"opsdesk/internal/core"
)

// EventSink observes side effects of store mutations. Implementations must
// not block; a slow sink slows every mutation.
type EventSink interface {
	BudgetThresholdReached(ctx context.Context, status core.BudgetStatus)
	ExpenseRecorded(ctx context.Context, record core.ExpenseRecord, item core.ExpenseItem)
	PersistenceFailed(ctx context.Context, key string, err error)
}

// LogSink writes every event to slog.
type LogSink struct{}

func (LogSink) BudgetThresholdReached(ctx context.Context, s core.BudgetStatus) {
	slog.WarnContext(ctx, "Budget threshold reached",
		"category", s.Category,
		"spent", s.Spent.String(),
		"limit", s.Limit.String(),
		"percentage", s.Percentage)
}

func (LogSink) ExpenseRecorded(ctx context.Context, r core.ExpenseRecord, item core.ExpenseItem) {
	slog.InfoContext(ctx, "Expense recorded",
		"record_id", r.ID,
		"expense_item", item.Name,
		"category", item.Category,
		"amount_cents", r.Amount.Cents,
		"date", r.Date.String())
}

func (LogSink) PersistenceFailed(ctx context.Context, key string, err error) {
	slog.ErrorContext(ctx, "Persistence write failed, in-memory state kept",
		"store_key", key,
		"error", err)
}

// MultiSink fans events out to every non-nil sink in order.
type MultiSink []EventSink

func (m MultiSink) BudgetThresholdReached(ctx context.Context, s core.BudgetStatus) {
	for _, sink := range m {
		if sink != nil {
			sink.BudgetThresholdReached(ctx, s)
		}
	}
}

func (m MultiSink) ExpenseRecorded(ctx context.Context, r core.ExpenseRecord, item core.ExpenseItem) {
	for _, sink := range m {
		if sink != nil {
			sink.ExpenseRecorded(ctx, r, item)
		}
	}
}

func (m MultiSink) PersistenceFailed(ctx context.Context, key string, err error) {
	for _, sink := range m {
		if sink != nil {
			sink.PersistenceFailed(ctx, key, err)
		}
	}
}

// Collector gathers the events raised while serving one request so they can
// be returned to the caller.
type Collector struct {
	mu       sync.Mutex
	warnings []string
	alerts   []core.BudgetStatus
}

type collectorKey struct{}

// WithCollector attaches a fresh Collector to ctx.
func WithCollector(ctx context.Context) (context.Context, *Collector) {
	c := &Collector{}
	return context.WithValue(ctx, collectorKey{}, c), c
}

// CollectorFrom returns the request collector, or nil.
func CollectorFrom(ctx context.Context) *Collector {
	c, _ := ctx.Value(collectorKey{}).(*Collector)
	return c
}

func (c *Collector) Warnings() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.warnings...)
}

func (c *Collector) Alerts() []core.BudgetStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.BudgetStatus(nil), c.alerts...)
}

// ContextSink forwards events into the Collector carried by ctx, if any.
type ContextSink struct{}

func (ContextSink) BudgetThresholdReached(ctx context.Context, s core.BudgetStatus) {
	if c := CollectorFrom(ctx); c != nil {
		c.mu.Lock()
		c.alerts = append(c.alerts, s)
		c.mu.Unlock()
	}
}

func (ContextSink) ExpenseRecorded(context.Context, core.ExpenseRecord, core.ExpenseItem) {}

func (ContextSink) PersistenceFailed(ctx context.Context, key string, err error) {
	if c := CollectorFrom(ctx); c != nil {
		c.mu.Lock()
		c.warnings = append(c.warnings, "could not persist "+key+": "+err.Error())
		c.mu.Unlock()
	}
}

// ChangeCounter is bumped by every successful mutation of any store.
type ChangeCounter struct {
	v atomic.Uint64
}

func (c *ChangeCounter) Bump() uint64 {
	if c == nil {
		return 0
	}
	return c.v.Add(1)
}

func (c *ChangeCounter) Version() uint64 {
	if c == nil {
		return 0
	}
	return c.v.Load()
}
