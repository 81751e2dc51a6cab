// Package reporting derives dashboard views from store snapshots. Every
// function is a pure fold; nothing here mutates its inputs.
package reporting

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"opsdesk/internal/core"
	"opsdesk/internal/ledger"
)

// ItemTotal aggregates the reconciled sales of one item.
type ItemTotal struct {
	ItemID   string     `json:"itemId"`
	Name     string     `json:"name"`
	Quantity float64    `json:"quantity"`
	Revenue  core.Money `json:"revenue"`
	Cost     core.Money `json:"cost"`
	Profit   core.Money `json:"profit"`
}

// MonthComparison compares revenue of the current and previous calendar month.
type MonthComparison struct {
	Year     int        `json:"year"`
	Month    int        `json:"month"`
	Current  core.Money `json:"current"`
	Previous core.Money `json:"previous"`
	Growth   float64    `json:"growth"`
}

// salesLines reconciles the window records against the full history, so a
// record without an explicit opening still inherits from days outside the
// window.
func salesLines(history, window []core.CountRecord, items []core.SaleItem) []ledger.Line {
	prices := make(map[string]core.SaleItem, len(items))
	for _, it := range items {
		prices[it.ID] = it
	}
	return ledger.Summarize(ledger.FromCounts(history), ledger.FromCounts(window), func(id string) (float64, float64) {
		it := prices[id]
		return it.Price, it.Cost
	}).Lines
}

// SalesByItem totals the reconciled window records per item. Records of items
// that no longer exist are skipped.
func SalesByItem(history, window []core.CountRecord, items []core.SaleItem) []ItemTotal {
	names := make(map[string]string, len(items))
	for _, it := range items {
		names[it.ID] = it.Name
	}
	byItem := make(map[string]*ItemTotal)
	var order []string
	for _, l := range salesLines(history, window, items) {
		name, known := names[l.EntityID]
		if !known {
			continue
		}
		t, ok := byItem[l.EntityID]
		if !ok {
			t = &ItemTotal{ItemID: l.EntityID, Name: name}
			byItem[l.EntityID] = t
			order = append(order, l.EntityID)
		}
		t.Quantity += l.Flow
		t.Revenue = t.Revenue.Add(l.Revenue)
		t.Cost = t.Cost.Add(l.Valuation.Cost)
		t.Profit = t.Profit.Add(l.Profit)
	}
	sort.Strings(order)
	out := make([]ItemTotal, 0, len(order))
	for _, id := range order {
		out = append(out, *byItem[id])
	}
	return out
}

// TopByProfit returns the n items with the highest summed profit.
func TopByProfit(totals []ItemTotal, n int) []ItemTotal {
	return top(totals, n, func(a, b ItemTotal) bool { return a.Profit.Cents > b.Profit.Cents })
}

// TopBySold returns the n items with the highest summed quantity.
func TopBySold(totals []ItemTotal, n int) []ItemTotal {
	return top(totals, n, func(a, b ItemTotal) bool { return a.Quantity > b.Quantity })
}

func top(totals []ItemTotal, n int, less func(a, b ItemTotal) bool) []ItemTotal {
	out := append([]ItemTotal(nil), totals...)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// COGSPercent is total cost over total revenue, in percent. Zero revenue
// yields zero.
func COGSPercent(totals []ItemTotal) float64 {
	var revenue, cost int64
	for _, t := range totals {
		revenue += t.Revenue.Cents
		cost += t.Cost.Cents
	}
	return percent(cost, revenue)
}

func percent(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return decimal.NewFromInt(part).Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(whole)).Round(2).InexactFloat64()
}

// MonthOverMonth compares revenue in now's calendar month with the month
// before. Growth is zero when the previous month had no revenue.
func MonthOverMonth(records []core.CountRecord, items []core.SaleItem, now time.Time) MonthComparison {
	year, month := now.Year(), int(now.Month())
	py, pm := core.PreviousMonth(year, month)
	mc := MonthComparison{Year: year, Month: month}
	for _, l := range salesLines(records, records, items) {
		switch {
		case l.Date.SameMonth(year, month):
			mc.Current = mc.Current.Add(l.Revenue)
		case l.Date.SameMonth(py, pm):
			mc.Previous = mc.Previous.Add(l.Revenue)
		}
	}
	if mc.Previous.Cents != 0 {
		mc.Growth = percent(mc.Current.Cents-mc.Previous.Cents, mc.Previous.Cents)
	}
	return mc
}
