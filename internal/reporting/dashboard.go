package reporting

import (
	"time"

	"opsdesk/internal/core"
	"opsdesk/internal/units"
)

// TopN is the length of the dashboard rankings.
const TopN = 5

// Snapshot is a consistent read of every store the dashboard needs.
type Snapshot struct {
	Items          []core.SaleItem
	CountRecords   []core.CountRecord
	Materials      []core.MaterialItem
	UsageRecords   []core.UsageRecord
	Packs          []units.Pack
	BOM            core.BOM
	ExpenseItems   []core.ExpenseItem
	ExpenseRecords []core.ExpenseRecord
	Budgets        []core.BudgetStatus
}

type Dashboard struct {
	GeneratedAt    time.Time           `json:"generatedAt"`
	Revenue        core.Money          `json:"revenue"`
	Cost           core.Money          `json:"cost"`
	Profit         core.Money          `json:"profit"`
	COGSPercent    float64             `json:"cogsPercent"`
	TopByProfit    []ItemTotal         `json:"topByProfit"`
	TopBySold      []ItemTotal         `json:"topBySold"`
	WasteTotals    []WasteTotal        `json:"wasteTotals"`
	WasteRates     []WasteRate         `json:"wasteRates"`
	MonthOverMonth MonthComparison     `json:"monthOverMonth"`
	Theoretical    Theoretical         `json:"theoreticalUsage"`
	Expenses       core.MonthOverview  `json:"expenses"`
	Budgets        []core.BudgetStatus `json:"budgets"`
}

// Build assembles every KPI from one snapshot.
func Build(s Snapshot, now time.Time) Dashboard {
	totals := SalesByItem(s.CountRecords, s.CountRecords, s.Items)
	d := Dashboard{
		GeneratedAt:    now,
		COGSPercent:    COGSPercent(totals),
		TopByProfit:    TopByProfit(totals, TopN),
		TopBySold:      TopBySold(totals, TopN),
		WasteTotals:    WasteTotals(s.UsageRecords, s.Materials),
		WasteRates:     WasteRates(s.UsageRecords, s.Materials),
		MonthOverMonth: MonthOverMonth(s.CountRecords, s.Items, now),
		Theoretical:    TheoreticalUsage(totals, s.BOM, s.Packs, s.Materials),
		Expenses:       MonthExpenses(s.ExpenseRecords, s.ExpenseItems, now.Year(), int(now.Month())),
		Budgets:        s.Budgets,
	}
	for _, t := range totals {
		d.Revenue = d.Revenue.Add(t.Revenue)
		d.Cost = d.Cost.Add(t.Cost)
		d.Profit = d.Profit.Add(t.Profit)
	}
	if d.Budgets == nil {
		d.Budgets = []core.BudgetStatus{}
	}
	return d
}
