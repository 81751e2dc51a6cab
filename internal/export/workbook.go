// Package export renders the dashboard as an XLSX workbook.
package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"opsdesk/internal/core"
	"opsdesk/internal/reporting"
)

const summarySheet = "Summary"

// DashboardWorkbook writes one sheet per dashboard view. Numeric cells stay
// numeric; the summary sheet adds a column formatted for locale.
func DashboardWorkbook(d reporting.Dashboard, locale string) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	w := &writer{f: f, p: printer(locale)}
	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), summarySheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	w.header(summarySheet, "KPI", "Value", "Display")
	w.kpi("Revenue", d.Revenue.Euros(), w.money(d.Revenue))
	w.kpi("Cost", d.Cost.Euros(), w.money(d.Cost))
	w.kpi("Profit", d.Profit.Euros(), w.money(d.Profit))
	w.kpi("COGS %", d.COGSPercent, w.p.Sprintf("%.2f%%", d.COGSPercent))
	w.kpi("Revenue this month", d.MonthOverMonth.Current.Euros(), w.money(d.MonthOverMonth.Current))
	w.kpi("Revenue last month", d.MonthOverMonth.Previous.Euros(), w.money(d.MonthOverMonth.Previous))
	w.kpi("Month-over-month growth %", d.MonthOverMonth.Growth, w.p.Sprintf("%.2f%%", d.MonthOverMonth.Growth))
	w.kpi("Expenses this month", d.Expenses.Total.Euros(), w.money(d.Expenses.Total))

	w.items("Top by profit", d.TopByProfit)
	w.items("Top by sold", d.TopBySold)

	w.sheet("Waste", "Material", "Waste", "Used", "Rate %")
	for _, r := range d.WasteRates {
		w.row(r.Name, r.Waste, r.Used, r.Rate)
	}

	w.sheet("Theoretical usage", "Material", "Quantity", "Unit")
	for _, l := range d.Theoretical.Lines {
		w.row(l.Name, l.Quantity, string(l.Unit))
	}
	for _, u := range d.Theoretical.Unresolved {
		w.row(u, "", "unresolved")
	}

	w.sheet("Budgets", "Category", "Limit", "Spent", "Percentage", "Alert")
	for _, b := range d.Budgets {
		w.row(b.Category, b.Limit.Euros(), b.Spent.Euros(), b.Percentage, b.Alert)
	}

	w.sheet("Expenses by category", "Category", "Amount")
	for _, c := range d.Expenses.ByCategory {
		w.row(c.Name, c.Amount.Euros())
	}

	if w.err != nil {
		return nil, w.err
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func printer(locale string) *message.Printer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return message.NewPrinter(tag)
}

// writer appends rows to the current sheet and keeps the first error.
type writer struct {
	f       *excelize.File
	p       *message.Printer
	current string
	next    int
	err     error
}

func (w *writer) money(m core.Money) string {
	return w.p.Sprintf("%.2f", m.Euros())
}

func (w *writer) sheet(name string, columns ...any) {
	if w.err != nil {
		return
	}
	if _, err := w.f.NewSheet(name); err != nil {
		w.err = fmt.Errorf("create sheet %s: %w", name, err)
		return
	}
	w.header(name, columns...)
}

func (w *writer) header(name string, columns ...any) {
	w.current, w.next = name, 1
	w.row(columns...)
	if w.err != nil {
		return
	}
	style, err := w.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		w.err = err
		return
	}
	last, _ := excelize.CoordinatesToCellName(len(columns), 1)
	w.err = w.f.SetCellStyle(name, "A1", last, style)
	if w.err == nil {
		w.err = w.f.SetColWidth(name, "A", "A", 32)
	}
}

func (w *writer) row(values ...any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, w.next)
	if err != nil {
		w.err = err
		return
	}
	if err := w.f.SetSheetRow(w.current, cell, &values); err != nil {
		w.err = fmt.Errorf("write %s!%s: %w", w.current, cell, err)
		return
	}
	w.next++
}

func (w *writer) kpi(label string, value float64, display string) {
	w.row(label, value, display)
}

func (w *writer) items(name string, items []reporting.ItemTotal) {
	w.sheet(name, "Item", "Quantity", "Revenue", "Cost", "Profit")
	for _, it := range items {
		w.row(it.Name, it.Quantity, it.Revenue.Euros(), it.Cost.Euros(), it.Profit.Euros())
	}
}
