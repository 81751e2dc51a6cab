package reporting

import (
	"sort"

	"opsdesk/internal/core"
)

// ExpenseFilter narrows the expense listing. Empty fields do not filter.
type ExpenseFilter struct {
	From     core.Date
	To       core.Date
	Category string
}

type ExpenseRow struct {
	core.ExpenseRecord
	ItemName string `json:"itemName"`
	Category string `json:"category"`
}

type ExpenseView struct {
	Rows  []ExpenseRow `json:"rows"`
	Total core.Money   `json:"total"`
}

// FilterExpenses joins records to their items and applies f. Records whose
// item is gone show the unknown placeholder and match no category filter.
func FilterExpenses(records []core.ExpenseRecord, items []core.ExpenseItem, f ExpenseFilter) ExpenseView {
	byID := make(map[string]core.ExpenseItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	view := ExpenseView{Rows: []ExpenseRow{}}
	for _, r := range records {
		if !f.From.IsEmpty() && r.Date.Before(f.From) {
			continue
		}
		if !f.To.IsEmpty() && f.To.Before(r.Date) {
			continue
		}
		row := ExpenseRow{ExpenseRecord: r, ItemName: core.UnknownName, Category: core.UnknownName}
		if it, ok := byID[r.ExpenseItemID]; ok {
			row.ItemName, row.Category = it.Name, it.Category
		}
		if f.Category != "" && row.Category != f.Category {
			continue
		}
		view.Rows = append(view.Rows, row)
		view.Total = view.Total.Add(r.Amount)
	}
	sort.SliceStable(view.Rows, func(i, j int) bool { return view.Rows[j].Date.Before(view.Rows[i].Date) })
	return view
}

// MonthExpenses summarizes one calendar month by category, largest first.
func MonthExpenses(records []core.ExpenseRecord, items []core.ExpenseItem, year, month int) core.MonthOverview {
	view := FilterExpenses(records, items, ExpenseFilter{})
	ov := core.MonthOverview{Year: year, Month: month, ByCategory: []core.CategoryAmount{}}
	sums := make(map[string]int64)
	for _, row := range view.Rows {
		if !row.Date.SameMonth(year, month) {
			continue
		}
		sums[row.Category] += row.Amount.Cents
		ov.Total = ov.Total.Add(row.Amount)
	}
	for name, c := range sums {
		ov.ByCategory = append(ov.ByCategory, core.CategoryAmount{Name: name, Amount: core.Cents(c)})
	}
	sort.Slice(ov.ByCategory, func(i, j int) bool {
		a, b := ov.ByCategory[i], ov.ByCategory[j]
		if a.Amount.Cents != b.Amount.Cents {
			return a.Amount.Cents > b.Amount.Cents
		}
		return a.Name < b.Name
	})
	return ov
}
