package memory

import (
	"context"
	"fmt"
	"sync"

	"opsdesk/internal/sheets"
)

var (
	_ sheets.ExpenseWriter = (*Store)(nil)
	_ sheets.AlertWriter   = (*Store)(nil)
)

// Store keeps exported rows in memory. Re-exporting a record id returns the
// reference of the first export instead of a second row.
type Store struct {
	mu       sync.Mutex
	expenses []sheets.ExpenseRow
	alerts   []sheets.AlertRow
	refs     map[string]string
}

func New() *Store {
	return &Store{refs: make(map[string]string)}
}

func (s *Store) AppendExpense(_ context.Context, r sheets.ExpenseRow) (string, error) {
	if err := r.Date.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref, ok := s.refs[r.RecordID]; ok && r.RecordID != "" {
		return ref, nil
	}
	s.expenses = append(s.expenses, r)
	ref := fmt.Sprintf("mem:expenses:%d", len(s.expenses))
	if r.RecordID != "" {
		s.refs[r.RecordID] = ref
	}
	return ref, nil
}

func (s *Store) AppendAlert(_ context.Context, r sheets.AlertRow) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, r)
	return fmt.Sprintf("mem:alerts:%d", len(s.alerts)), nil
}

func (s *Store) Expenses() []sheets.ExpenseRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.ExpenseRow(nil), s.expenses...)
}

func (s *Store) Alerts() []sheets.AlertRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.AlertRow(nil), s.alerts...)
}
