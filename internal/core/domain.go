package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"opsdesk/internal/units"
)

const (
	Monthly RepetitionTypes = "monthly"
	Yearly  RepetitionTypes = "yearly"
	Weekly  RepetitionTypes = "weekly"
	Daily   RepetitionTypes = "daily"

	// UnknownName is displayed for references whose target no longer exists.
	UnknownName = "(unknown)"

	maxNameLen = 200
)

type (
	RepetitionTypes string

	// Confirm is asked before any destructive mutation. A nil Confirm, or
	// one returning false, aborts the operation without touching state.
	Confirm func(prompt string) bool

	SaleItem struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Price     float64   `json:"price"`
		Cost      float64   `json:"cost"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// CountRecord is one daily sale count for a SaleItem. Quantity is the
	// derived sold amount, persisted next to the raw inputs.
	CountRecord struct {
		ID        string    `json:"id"`
		Date      Date      `json:"date"`
		ItemID    string    `json:"itemId"`
		Opening   *float64  `json:"opening,omitempty"`
		Additions float64   `json:"additions"`
		Closing   float64   `json:"closing"`
		Notes     string    `json:"notes,omitempty"`
		Quantity  float64   `json:"quantity"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	PriceTemplate struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Price     float64   `json:"price"`
		Cost      float64   `json:"cost"`
		Category  string    `json:"category,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
	}

	MaterialItem struct {
		ID        string     `json:"id"`
		Name      string     `json:"name"`
		Unit      units.Unit `json:"unit"`
		LastCost  float64    `json:"lastCost"`
		CreatedAt time.Time  `json:"createdAt"`
		UpdatedAt time.Time  `json:"updatedAt"`
	}

	// UsageRecord is one daily raw-material movement. Unlike sale counts it
	// carries waste.
	UsageRecord struct {
		ID         string    `json:"id"`
		Date       Date      `json:"date"`
		MaterialID string    `json:"materialId"`
		Opening    *float64  `json:"opening,omitempty"`
		Received   float64   `json:"received"`
		Closing    float64   `json:"closing"`
		Waste      float64   `json:"waste"`
		Notes      string    `json:"notes,omitempty"`
		Quantity   float64   `json:"quantity"`
		CreatedAt  time.Time `json:"createdAt"`
		UpdatedAt  time.Time `json:"updatedAt"`
	}

	// BomLine is one ingredient of a sale item's recipe.
	BomLine struct {
		MaterialID string     `json:"materialId"`
		Qty        float64    `json:"qty"`
		Unit       units.Unit `json:"unit"`
	}

	// BOM maps a sale item id to its recipe.
	BOM map[string][]BomLine

	ExpenseItem struct {
		ID                 string          `json:"id"`
		Name               string          `json:"name"`
		Category           string          `json:"category"`
		Amount             Money           `json:"amount"`
		IsRecurring        bool            `json:"isRecurring"`
		RecurrenceInterval RepetitionTypes `json:"recurrenceInterval,omitempty"`
		StartDate          Date            `json:"startDate,omitempty"`
		EndDate            Date            `json:"endDate,omitempty"`
		LastGenerated      Date            `json:"lastGenerated,omitempty"`
		CreatedAt          time.Time       `json:"createdAt"`
		UpdatedAt          time.Time       `json:"updatedAt"`
	}

	ExpenseRecord struct {
		ID            string    `json:"id"`
		Date          Date      `json:"date"`
		ExpenseItemID string    `json:"expenseItemId"`
		Amount        Money     `json:"amount"`
		Notes         string    `json:"notes,omitempty"`
		CreatedAt     time.Time `json:"createdAt"`
	}

	Budget struct {
		Category  string    `json:"category"`
		Limit     Money     `json:"limit"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// BudgetStatus is the derived utilization of one budget.
	BudgetStatus struct {
		Category   string  `json:"category"`
		Limit      Money   `json:"limit"`
		Spent      Money   `json:"spent"`
		Percentage float64 `json:"percentage"`
		Alert      bool    `json:"alert"`
	}

	Product struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Unit      string    `json:"unit"`
		CreatedAt time.Time `json:"createdAt"`
	}

	Supplier struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Contact   string    `json:"contact,omitempty"`
		Notes     string    `json:"notes,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
	}

	PriceRecord struct {
		ID         string    `json:"id"`
		ProductID  string    `json:"productId"`
		SupplierID string    `json:"supplierId"`
		Price      float64   `json:"price"`
		Date       Date      `json:"date"`
		CreatedAt  time.Time `json:"createdAt"`
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyReference   = errors.New("missing reference")
	ErrInvalidRecurring = errors.New("invalid recurrence")
	ErrNotFound         = errors.New("not found")
	ErrDuplicate        = errors.New("already exists")
	ErrPackInUse        = errors.New("pack in use")
)

// NewID returns an opaque, upper-case identifier that is never reused.
func NewID() string {
	return strings.ToUpper(uuid.NewString())
}

// Confirmed asks c and treats a missing callback as a refusal.
func Confirmed(c Confirm, prompt string) bool {
	return c != nil && c(prompt)
}

// AlwaysConfirm accepts every prompt.
func AlwaysConfirm(string) bool { return true }

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if len(name) > maxNameLen {
		return fmt.Errorf("%w: name too long (max %d characters)", ErrEmptyName, maxNameLen)
	}
	return nil
}

func (r RepetitionTypes) Valid() bool {
	switch r {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (s SaleItem) Validate() error {
	if err := validateName(s.Name); err != nil {
		return err
	}
	if s.Price < 0 || s.Cost < 0 {
		return fmt.Errorf("%w: price and cost must not be negative", ErrInvalidAmount)
	}
	return nil
}

func (c CountRecord) Validate() error {
	if err := c.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.ItemID) == "" {
		return fmt.Errorf("%w: item", ErrEmptyReference)
	}
	return nil
}

func (p PriceTemplate) Validate() error {
	if err := validateName(p.Name); err != nil {
		return err
	}
	if p.Price <= 0 {
		return fmt.Errorf("%w: template price must be positive", ErrInvalidAmount)
	}
	if p.Cost < 0 {
		return fmt.Errorf("%w: cost must not be negative", ErrInvalidAmount)
	}
	return nil
}

func (m MaterialItem) Validate() error {
	if err := validateName(m.Name); err != nil {
		return err
	}
	if err := m.Unit.Validate(); err != nil {
		return err
	}
	if m.LastCost < 0 {
		return fmt.Errorf("%w: cost must not be negative", ErrInvalidAmount)
	}
	return nil
}

func (u UsageRecord) Validate() error {
	if err := u.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(u.MaterialID) == "" {
		return fmt.Errorf("%w: material", ErrEmptyReference)
	}
	return nil
}

func (b BomLine) Validate() error {
	if strings.TrimSpace(b.MaterialID) == "" {
		return fmt.Errorf("%w: material", ErrEmptyReference)
	}
	if b.Qty <= 0 {
		return fmt.Errorf("%w: recipe quantity must be positive", ErrInvalidQuantity)
	}
	return b.Unit.Validate()
}

// Clone returns a deep copy so snapshots never share line slices.
func (b BOM) Clone() BOM {
	out := make(BOM, len(b))
	for k, lines := range b {
		out[k] = append([]BomLine(nil), lines...)
	}
	return out
}

func (e ExpenseItem) Validate() error {
	if err := validateName(e.Name); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !e.IsRecurring {
		return nil
	}
	if !e.RecurrenceInterval.Valid() {
		return fmt.Errorf("%w: interval %q", ErrInvalidRecurring, string(e.RecurrenceInterval))
	}
	if err := e.StartDate.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if !e.EndDate.IsEmpty() {
		if err := e.EndDate.Validate(); err != nil {
			return fmt.Errorf("invalid end date: %w", err)
		}
		if e.EndDate.Before(e.StartDate) {
			return fmt.Errorf("%w: end date must not precede start date", ErrInvalidRecurring)
		}
	}
	return nil
}

func (e ExpenseRecord) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.ExpenseItemID) == "" {
		return fmt.Errorf("%w: expense item", ErrEmptyReference)
	}
	return e.Amount.Validate()
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	return b.Limit.Validate()
}

func (p Product) Validate() error {
	if err := validateName(p.Name); err != nil {
		return err
	}
	if strings.TrimSpace(p.Unit) == "" {
		return fmt.Errorf("%w: product unit is required", ErrInvalidQuantity)
	}
	return nil
}

func (s Supplier) Validate() error {
	return validateName(s.Name)
}

func (p PriceRecord) Validate() error {
	if strings.TrimSpace(p.ProductID) == "" {
		return fmt.Errorf("%w: product", ErrEmptyReference)
	}
	if strings.TrimSpace(p.SupplierID) == "" {
		return fmt.Errorf("%w: supplier", ErrEmptyReference)
	}
	if p.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrInvalidAmount)
	}
	return p.Date.Validate()
}

// NameOf returns the display name for id, or UnknownName.
func NameOf(names map[string]string, id string) string {
	if n, ok := names[id]; ok {
		return n
	}
	return UnknownName
}
