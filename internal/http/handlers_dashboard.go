package http

import (
	"net/http"
	"strconv"

	"opsdesk/internal/export"
	applog "opsdesk/internal/log"
	"opsdesk/internal/reporting"
)

func (s *Server) snapshot() reporting.Snapshot {
	return reporting.Snapshot{
		Items:          s.svc.Inventory.Items(),
		CountRecords:   s.svc.Inventory.AllRecords(),
		Materials:      s.svc.Materials.Materials(),
		UsageRecords:   s.svc.Materials.AllRecords(),
		Packs:          s.svc.Materials.Packs(),
		BOM:            s.svc.Materials.BOM(),
		ExpenseItems:   s.svc.Expenses.Items(),
		ExpenseRecords: s.svc.Expenses.Records(),
		Budgets:        s.svc.Expenses.BudgetStatuses(),
	}
}

// dashboard returns the KPIs for the current store version, building them
// on the first request after a mutation.
func (s *Server) dashboard() reporting.Dashboard {
	key := "v" + strconv.FormatUint(s.svc.Changes.Version(), 10)
	d, hit := s.dashboards.GetOrCompute(key, func() reporting.Dashboard {
		return reporting.Build(s.snapshot(), s.now())
	})
	s.metrics.CacheLookup(hit)
	return d
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.dashboard())
}

func (s *Server) handleDashboardExport(w http.ResponseWriter, r *http.Request) {
	locale := r.URL.Query().Get("locale")
	if locale == "" {
		locale = s.locale
	}
	data, err := export.DashboardWorkbook(s.dashboard(), locale)
	if err != nil {
		s.fail(w, r, applog.OpExport, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="opsdesk-dashboard-`+s.now().Format("2006-01-02")+`.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleTheoreticalUsage converts the sales of an optional date window into
// raw material quantities through the bill of materials.
func (s *Server) handleTheoreticalUsage(w http.ResponseWriter, r *http.Request) {
	f, err := queryFilter(r, "item")
	if err != nil {
		s.fail(w, r, "theoretical usage", err)
		return
	}
	sales := reporting.SalesByItem(s.svc.Inventory.AllRecords(), s.svc.Inventory.Records(f), s.svc.Inventory.Items())
	writeJSON(w, r, http.StatusOK, reporting.TheoreticalUsage(
		sales, s.svc.Materials.BOM(), s.svc.Materials.Packs(), s.svc.Materials.Materials()))
}
