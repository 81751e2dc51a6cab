package google

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"opsdesk/internal/core"
	ports "opsdesk/internal/sheets"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{})
	if err == nil || err.Error() != "missing spreadsheet id" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Options{SpreadsheetID: "id", CredentialsFile: filepath.Join(t.TempDir(), "nope.json")})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_AppendWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "test", expensesSheet: "Expenses"}

	if _, err := c.AppendExpense(context.Background(), ports.ExpenseRow{Date: "bad"}); err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("expected validation error, got %v", err)
	}
	_, err := c.AppendExpense(context.Background(), ports.ExpenseRow{Date: "2024-03-01"})
	if err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Errorf("expected uninitialized service error, got %v", err)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Expenses", 2024, "2024 Expenses"},
		{"2023 Expenses", 2024, "2023 Expenses"},
		{"  Alerts ", 2025, "2025 Alerts"},
		{"", 2024, ""},
		{"12345 Expenses", 2024, "2024 12345 Expenses"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}

func TestRowLayouts(t *testing.T) {
	exp := expenseValues(ports.ExpenseRow{RecordID: "R1", Date: "2024-03-01", Item: "Rent", Category: "Fixed", Amount: core.Cents(120050), Notes: "march"})
	if len(exp) != 6 || exp[0] != "2024-03-01" || exp[3] != 1200.50 || exp[5] != "R1" {
		t.Errorf("expense row = %v", exp)
	}

	raised := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	alert := alertValues(ports.AlertRow{RaisedAt: raised, Category: "Supplies", Spent: core.Cents(9000), Limit: core.Cents(10000), Percentage: 90})
	if len(alert) != 5 || alert[0] != "2024-03-01T09:30:00Z" || alert[2] != 90.0 || alert[4] != 90.0 {
		t.Errorf("alert row = %v", alert)
	}
}
