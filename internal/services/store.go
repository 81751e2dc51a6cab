package services

import (
	"context"
	"log/slog"
	"time"

	"opsdesk/internal/storage"
)

// base is shared by every store service.
type base struct {
	kv      storage.KV
	sink    EventSink
	changes *ChangeCounter
	now     func() time.Time
}

func newBase(kv storage.KV, sink EventSink, changes *ChangeCounter) base {
	if sink == nil {
		sink = LogSink{}
	}
	if changes == nil {
		changes = &ChangeCounter{}
	}
	return base{kv: kv, sink: sink, changes: changes, now: func() time.Time { return time.Now().UTC() }}
}

// SetClock overrides the time source, for tests.
func (b *base) SetClock(now func() time.Time) {
	b.now = now
}

// persistTimeout bounds one snapshot write.
const persistTimeout = 10 * time.Second

// persist mirrors a snapshot to the KV store. The write outlives the caller's
// cancellation, since the in-memory change it mirrors is already applied. A
// failed write never rolls back memory; it is reported to the sink.
func persist[T any](ctx context.Context, b *base, key string, v T) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := storage.Save(writeCtx, b.kv, key, v); err != nil {
		b.sink.PersistenceFailed(ctx, key, err)
		return
	}
	slog.DebugContext(ctx, "Snapshot persisted", "store_key", key)
}

// without returns a copy of s with the elements matching drop removed.
func without[T any](s []T, drop func(T) bool) ([]T, int) {
	out := make([]T, 0, len(s))
	removed := 0
	for _, v := range s {
		if drop(v) {
			removed++
			continue
		}
		out = append(out, v)
	}
	return out, removed
}

func indexOf[T any](s []T, match func(T) bool) int {
	for i, v := range s {
		if match(v) {
			return i
		}
	}
	return -1
}

func clone[T any](s []T) []T {
	return append([]T(nil), s...)
}
