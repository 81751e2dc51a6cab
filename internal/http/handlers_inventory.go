package http

import (
	"net/http"

	"opsdesk/internal/core"
	"opsdesk/internal/services"
	"opsdesk/internal/units"
)

func (s *Server) handleOnboard(w http.ResponseWriter, r *http.Request) {
	seeded := s.svc.Materials.Onboard(r.Context())
	writeJSON(w, r, http.StatusOK, map[string]any{"seeded": seeded, "packs": s.svc.Materials.Packs()})
}

func (s *Server) handleListPacks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.svc.Materials.Packs())
}

func (s *Server) handleAddPack(w http.ResponseWriter, r *http.Request) {
	var in units.Pack
	if !decodeJSON(w, r, &in) {
		return
	}
	sanitizeInput(&in.ID, &in.Name)
	p, err := s.svc.Materials.AddPack(r.Context(), in)
	if err != nil {
		s.fail(w, r, "add pack", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, p)
}

func (s *Server) handleDeletePack(w http.ResponseWriter, r *http.Request) {
	confirm := confirmDelete(w, r)
	if confirm == nil {
		return
	}
	ok, err := s.svc.Materials.DeletePack(r.Context(), r.PathValue("id"), confirm)
	s.deleted(w, r, "delete pack", ok, err)
}

func (s *Server) handleListSaleItems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.svc.Inventory.Items())
}

func (s *Server) handleAddSaleItem(w http.ResponseWriter, r *http.Request) {
	var in core.SaleItem
	if !decodeJSON(w, r, &in) {
		return
	}
	sanitizeInput(&in.Name)
	item, err := s.svc.Inventory.AddItem(r.Context(), in)
	if err != nil {
		s.fail(w, r, "add sale item", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, item)
}

func (s *Server) handleUpdateSaleItem(w http.ResponseWriter, r *http.Request) {
	var patch services.SaleItemPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	if patch.Name != nil {
		sanitizeInput(patch.Name)
	}
	item, err := s.svc.Inventory.UpdateItem(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		s.fail(w, r, "update sale item", err)
		return
	}
	writeJSON(w, r, http.StatusOK, item)
}

func (s *Server) handleDeleteSaleItem(w http.ResponseWriter, r *http.Request) {
	confirm := confirmDelete(w, r)
	if confirm == nil {
		return
	}
	ok, err := s.svc.Inventory.DeleteItem(r.Context(), r.PathValue("id"), confirm)
	s.deleted(w, r, "delete sale item", ok, err)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.svc.Inventory.Templates())
}

func (s *Server) handleAddTemplate(w http.ResponseWriter, r *http.Request) {
	var in core.PriceTemplate
	if !decodeJSON(w, r, &in) {
		return
	}
	sanitizeInput(&in.Name, &in.Category)
	t, err := s.svc.Inventory.AddTemplate(r.Context(), in)
	if err != nil {
		s.fail(w, r, "add template", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, t)
}

// handleApplyTemplate returns an unsaved sale item prefilled from the template.
func (s *Server) handleApplyTemplate(w http.ResponseWriter, r *http.Request) {
	draft, err := s.svc.Inventory.ApplyTemplate(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, "apply template", err)
		return
	}
	writeJSON(w, r, http.StatusOK, draft)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	confirm := confirmDelete(w, r)
	if confirm == nil {
		return
	}
	ok, err := s.svc.Inventory.DeleteTemplate(r.Context(), r.PathValue("id"), confirm)
	s.deleted(w, r, "delete template", ok, err)
}

func (s *Server) handleListCountRecords(w http.ResponseWriter, r *http.Request) {
	f, err := queryFilter(r, "item")
	if err != nil {
		s.fail(w, r, "list count records", err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.svc.Inventory.Records(f))
}

func (s *Server) handleCountSummary(w http.ResponseWriter, r *http.Request) {
	f, err := queryFilter(r, "item")
	if err != nil {
		s.fail(w, r, "count summary", err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.svc.Inventory.Summary(f))
}

func (s *Server) handleAddCountRecord(w http.ResponseWriter, r *http.Request) {
	var in core.CountRecord
	if !decodeJSON(w, r, &in) {
		return
	}
	sanitizeInput(&in.Notes)
	rec, err := s.svc.Inventory.AddRecord(r.Context(), in)
	if err != nil {
		s.fail(w, r, "add count record", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, rec)
}

// handlePreviewCountRecord reconciles an unsaved entry. ?editing=<id> excludes
// the record being edited from the inherited opening lookup.
func (s *Server) handlePreviewCountRecord(w http.ResponseWriter, r *http.Request) {
	var in core.CountRecord
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := s.svc.Inventory.Preview(in, r.URL.Query().Get("editing"))
	if err != nil {
		s.fail(w, r, "preview count record", err)
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}

func (s *Server) handleUpdateCountRecord(w http.ResponseWriter, r *http.Request) {
	var in core.CountRecord
	if !decodeJSON(w, r, &in) {
		return
	}
	sanitizeInput(&in.Notes)
	rec, err := s.svc.Inventory.UpdateRecord(r.Context(), r.PathValue("id"), in)
	if err != nil {
		s.fail(w, r, "update count record", err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

func (s *Server) handleDeleteCountRecord(w http.ResponseWriter, r *http.Request) {
	confirm := confirmDelete(w, r)
	if confirm == nil {
		return
	}
	ok, err := s.svc.Inventory.DeleteRecord(r.Context(), r.PathValue("id"), confirm)
	s.deleted(w, r, "delete count record", ok, err)
}
