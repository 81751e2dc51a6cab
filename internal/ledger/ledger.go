// Package ledger reconciles dated stock movements into consumed or sold
// quantities and their monetary value.
//
// Nothing is cached: every derivation looks up the entity's prior record in
// the full history, so inserts, edits and deletes are reflected immediately.
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"opsdesk/internal/core"
)

// Movement is the common shape of sale counts and material usage records.
// Opening is the entered value; the reconciled one lives in Result.
type Movement struct {
	ID        string    `json:"id"`
	EntityID  string    `json:"entityId"`
	Date      core.Date `json:"date"`
	Opening   *float64  `json:"enteredOpening,omitempty"`
	Additions float64   `json:"additions"`
	Closing   float64   `json:"closing"`
	Waste     float64   `json:"waste"`
}

// Result is the reconciliation of a single movement.
type Result struct {
	Opening   float64 `json:"opening"`
	Inherited bool    `json:"inherited"`
	Flow      float64 `json:"flow"`
}

// Valuation is the monetary side of a flow.
type Valuation struct {
	Revenue core.Money `json:"revenue"`
	Cost    core.Money `json:"cost"`
	Profit  core.Money `json:"profit"`
}

// Pricing returns unit price and cost for an entity. Unknown entities price
// at zero.
type Pricing func(entityID string) (price, cost float64)

// InheritedOpening returns the closing quantity of the latest record for
// entityID dated strictly before date, or zero when there is none. Records
// sharing the target date are never consulted.
func InheritedOpening(history []Movement, entityID string, date core.Date) float64 {
	var (
		found  bool
		latest core.Date
		value  float64
	)
	for _, m := range history {
		if m.EntityID != entityID || !m.Date.Before(date) {
			continue
		}
		if !found || latest.Before(m.Date) {
			found, latest, value = true, m.Date, m.Closing
		}
	}
	return value
}

// EffectiveOpening prefers the explicit opening of m.
func EffectiveOpening(m Movement, history []Movement) (float64, bool) {
	if m.Opening != nil {
		return *m.Opening, false
	}
	return InheritedOpening(history, m.EntityID, m.Date), true
}

// Flow is opening + additions - closing - waste, floored at zero.
func Flow(opening, additions, closing, waste float64) float64 {
	f := opening + additions - closing - waste
	if f < 0 {
		return 0
	}
	return f
}

// Reconcile derives the opening and flow of m against history.
func Reconcile(m Movement, history []Movement) Result {
	opening, inherited := EffectiveOpening(m, history)
	return Result{
		Opening:   opening,
		Inherited: inherited,
		Flow:      Flow(opening, m.Additions, m.Closing, m.Waste),
	}
}

// Value multiplies flow by the unit price and cost, rounding to cents.
func Value(flow, price, cost float64) Valuation {
	q := decimal.NewFromFloat(flow)
	revenue := core.MoneyFromDecimal(q.Mul(decimal.NewFromFloat(price)))
	spent := core.MoneyFromDecimal(q.Mul(decimal.NewFromFloat(cost)))
	return Valuation{Revenue: revenue, Cost: spent, Profit: revenue.Sub(spent)}
}

// CostOnly is the valuation of consumed stock: a cost with no revenue and
// therefore no profit.
func CostOnly(flow, cost float64) Valuation {
	return Valuation{Cost: Value(flow, 0, cost).Cost}
}

// WithoutProfit clears the profit of every line and of the totals, for
// summaries of consumption rather than sales.
func (s Summary) WithoutProfit() Summary {
	lines := make([]Line, len(s.Lines))
	for i, l := range s.Lines {
		l.Profit = core.Money{}
		lines[i] = l
	}
	s.Lines = lines
	s.Profit = core.Money{}
	return s
}

// Recompute returns the derived flow of every movement in history, keyed by
// movement id.
func Recompute(history []Movement) map[string]float64 {
	out := make(map[string]float64, len(history))
	for _, m := range history {
		out[m.ID] = Reconcile(m, history).Flow
	}
	return out
}

// Line is one reconciled movement inside a summary.
type Line struct {
	Movement
	Result
	Valuation
}

// Summary folds a window of movements.
type Summary struct {
	Lines    []Line     `json:"lines"`
	Quantity float64    `json:"quantity"`
	Revenue  core.Money `json:"revenue"`
	Cost     core.Money `json:"cost"`
	Profit   core.Money `json:"profit"`
}

// Summarize reconciles each movement of window against the full history and
// totals the results. Lines are ordered by date, newest first.
func Summarize(history, window []Movement, pricing Pricing) Summary {
	var s Summary
	for _, m := range window {
		r := Reconcile(m, history)
		var price, cost float64
		if pricing != nil {
			price, cost = pricing(m.EntityID)
		}
		v := Value(r.Flow, price, cost)
		s.Lines = append(s.Lines, Line{Movement: m, Result: r, Valuation: v})
		s.Quantity += r.Flow
		s.Revenue = s.Revenue.Add(v.Revenue)
		s.Cost = s.Cost.Add(v.Cost)
		s.Profit = s.Profit.Add(v.Profit)
	}
	sort.SliceStable(s.Lines, func(i, j int) bool {
		return s.Lines[j].Date.Before(s.Lines[i].Date)
	})
	return s
}

// FromCounts adapts sale count records. Sale counts have no waste.
func FromCounts(records []core.CountRecord) []Movement {
	out := make([]Movement, 0, len(records))
	for _, r := range records {
		out = append(out, FromCount(r))
	}
	return out
}

func FromCount(r core.CountRecord) Movement {
	return Movement{
		ID:        r.ID,
		EntityID:  r.ItemID,
		Date:      r.Date,
		Opening:   r.Opening,
		Additions: r.Additions,
		Closing:   r.Closing,
	}
}

// FromUsages adapts material usage records.
func FromUsages(records []core.UsageRecord) []Movement {
	out := make([]Movement, 0, len(records))
	for _, r := range records {
		out = append(out, FromUsage(r))
	}
	return out
}

func FromUsage(r core.UsageRecord) Movement {
	return Movement{
		ID:        r.ID,
		EntityID:  r.MaterialID,
		Date:      r.Date,
		Opening:   r.Opening,
		Additions: r.Received,
		Closing:   r.Closing,
		Waste:     r.Waste,
	}
}
