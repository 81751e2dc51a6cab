package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"opsdesk/internal/core"
	"opsdesk/internal/storage"
)

type recordingSink struct {
	mu       sync.Mutex
	alerts   []core.BudgetStatus
	recorded []core.ExpenseRecord
	failures []string
}

func (r *recordingSink) BudgetThresholdReached(_ context.Context, s core.BudgetStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, s)
}

func (r *recordingSink) ExpenseRecorded(_ context.Context, rec core.ExpenseRecord, _ core.ExpenseItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded = append(r.recorded, rec)
}

func (r *recordingSink) PersistenceFailed(_ context.Context, key string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, key)
}

func (r *recordingSink) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts, r.recorded, r.failures = nil, nil, nil
}

// brokenKV reads fine but refuses every write.
type brokenKV struct {
	*storage.MemoryKV
}

func (brokenKV) Put(context.Context, string, []byte) error {
	return errors.New("quota exceeded")
}

func fixedClock() func() time.Time {
	t := time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func yes(string) bool { return true }
func no(string) bool  { return false }

func ptr(f float64) *float64 { return &f }

// ctxKV fails writes whose context is already done, like a database driver.
type ctxKV struct {
	*storage.MemoryKV
}

func (k ctxKV) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return k.MemoryKV.Put(ctx, key, value)
}
