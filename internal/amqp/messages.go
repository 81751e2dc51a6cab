package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"opsdesk/internal/core"
)

// Message types carried in Envelope.Type.
const (
	TypeExpenseRecorded = "expense_recorded"
	TypeBudgetAlert     = "budget_alert"
)

var ErrUnknownType = errors.New("unknown message type")

// Envelope wraps every event published on the exchange.
type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// ExpensePayload is denormalized so consumers need no store access.
type ExpensePayload struct {
	RecordID    string    `json:"recordId"`
	Date        core.Date `json:"date"`
	ItemID      string    `json:"itemId"`
	ItemName    string    `json:"itemName"`
	Category    string    `json:"category"`
	AmountCents int64     `json:"amountCents"`
	Notes       string    `json:"notes,omitempty"`
}

type AlertPayload struct {
	Category   string  `json:"category"`
	SpentCents int64   `json:"spentCents"`
	LimitCents int64   `json:"limitCents"`
	Percentage float64 `json:"percentage"`
}

func newEnvelope(typ string, payload any, now time.Time) (*Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return &Envelope{ID: core.NewID(), Type: typ, Timestamp: now, Payload: body}, nil
}

func NewExpenseRecorded(r core.ExpenseRecord, item core.ExpenseItem, now time.Time) (*Envelope, error) {
	name, category := item.Name, item.Category
	if item.ID == "" {
		name, category = core.UnknownName, core.UnknownName
	}
	return newEnvelope(TypeExpenseRecorded, ExpensePayload{
		RecordID:    r.ID,
		Date:        r.Date,
		ItemID:      r.ExpenseItemID,
		ItemName:    name,
		Category:    category,
		AmountCents: r.Amount.Cents,
		Notes:       r.Notes,
	}, now)
}

func NewBudgetAlert(s core.BudgetStatus, now time.Time) (*Envelope, error) {
	return newEnvelope(TypeBudgetAlert, AlertPayload{
		Category:   s.Category,
		SpentCents: s.Spent.Cents,
		LimitCents: s.Limit.Cents,
		Percentage: s.Percentage,
	}, now)
}

func (e *Envelope) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EnvelopeFromJSON decodes and checks the message type.
func EnvelopeFromJSON(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	switch e.Type {
	case TypeExpenseRecorded, TypeBudgetAlert:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}
	return &e, nil
}

func (e *Envelope) Expense() (ExpensePayload, error) {
	var p ExpensePayload
	if e.Type != TypeExpenseRecorded {
		return p, fmt.Errorf("%w: want %s, got %s", ErrUnknownType, TypeExpenseRecorded, e.Type)
	}
	err := json.Unmarshal(e.Payload, &p)
	return p, err
}

func (e *Envelope) Alert() (AlertPayload, error) {
	var p AlertPayload
	if e.Type != TypeBudgetAlert {
		return p, fmt.Errorf("%w: want %s, got %s", ErrUnknownType, TypeBudgetAlert, e.Type)
	}
	err := json.Unmarshal(e.Payload, &p)
	return p, err
}
