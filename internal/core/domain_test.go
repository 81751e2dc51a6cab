package core

import (
	"errors"
	"strings"
	"testing"

	"opsdesk/internal/units"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date(""), false},
		{Date("2025-13-01"), false},
		{Date("2025-1-1"), false},
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("case %d expected ErrInvalidDate, got %v", i, err)
		}
	}
}

func TestDateOrderingIsChronological(t *testing.T) {
	a, b := NewDate(2025, 9, 30), NewDate(2025, 10, 1)
	if !a.Before(b) {
		t.Fatalf("%s should precede %s", a, b)
	}
	if !b.SameMonth(2025, 10) || b.Day() != 1 {
		t.Fatalf("unexpected parts for %s", b)
	}
}

func TestPreviousMonth(t *testing.T) {
	if y, m := PreviousMonth(2025, 1); y != 2024 || m != 12 {
		t.Fatalf("got %d-%d", y, m)
	}
	if y, m := PreviousMonth(2025, 7); y != 2025 || m != 6 {
		t.Fatalf("got %d-%d", y, m)
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestExpenseItemValidate(t *testing.T) {
	good := ExpenseItem{Name: "Rent", Category: "Fixed", Amount: Cents(100000)}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	recurring := good
	recurring.IsRecurring = true
	recurring.RecurrenceInterval = Monthly
	recurring.StartDate = NewDate(2025, 1, 31)
	if err := recurring.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []ExpenseItem{
		{Name: " ", Category: "c", Amount: Cents(1)},
		{Name: "n", Category: "", Amount: Cents(1)},
		{Name: "n", Category: "c", Amount: Cents(0)},
		{Name: "n", Category: "c", Amount: Cents(1), IsRecurring: true, RecurrenceInterval: "hourly", StartDate: NewDate(2025, 1, 1)},
		{Name: "n", Category: "c", Amount: Cents(1), IsRecurring: true, RecurrenceInterval: Daily},
		{Name: "n", Category: "c", Amount: Cents(1), IsRecurring: true, RecurrenceInterval: Daily, StartDate: NewDate(2025, 2, 1), EndDate: NewDate(2025, 1, 1)},
	}
	for i, b := range bads {
		if err := b.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestRecordValidation(t *testing.T) {
	if err := (CountRecord{Date: NewDate(2025, 1, 1)}).Validate(); !errors.Is(err, ErrEmptyReference) {
		t.Fatalf("expected missing reference, got %v", err)
	}
	if err := (UsageRecord{MaterialID: "M"}).Validate(); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected invalid date, got %v", err)
	}
	if err := (MaterialItem{Name: "Flour", Unit: "cup"}).Validate(); !errors.Is(err, units.ErrUnknownUnit) {
		t.Fatalf("expected unknown unit, got %v", err)
	}
	if err := (PriceRecord{ProductID: "P", SupplierID: "S", Price: 0, Date: NewDate(2025, 1, 1)}).Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if err := (Product{Name: "Oil"}).Validate(); err == nil {
		t.Fatalf("product without unit should fail")
	}
}

func TestConfirmedAndNames(t *testing.T) {
	if Confirmed(nil, "delete?") {
		t.Fatalf("nil confirm must refuse")
	}
	if !Confirmed(AlwaysConfirm, "delete?") {
		t.Fatalf("AlwaysConfirm must accept")
	}
	if got := NameOf(map[string]string{"A": "Apple"}, "B"); got != UnknownName {
		t.Fatalf("got %q", got)
	}
	if id := NewID(); len(id) != 36 || id != strings.ToUpper(id) {
		t.Fatalf("unexpected id %q", id)
	}
}

