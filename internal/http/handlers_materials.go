package http

import (
	"net/http"

	"opsdesk/internal/core"
	"opsdesk/internal/services"
)

func (s *Server) handleListMaterials(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.svc.Materials.Materials())
}

func (s *Server) handleAddMaterial(w http.ResponseWriter, r *http.Request) {
	var in core.MaterialItem
	if !decodeJSON(w, r, &in) {
		return
	}
	sanitizeInput(&in.Name)
	m, err := s.svc.Materials.AddMaterial(r.Context(), in)
	if err != nil {
		s.fail(w, r, "add material", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, m)
}

func (s *Server) handleUpdateMaterial(w http.ResponseWriter, r *http.Request) {
	var patch services.MaterialPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	if patch.Name != nil {
		sanitizeInput(patch.Name)
	}
	m, err := s.svc.Materials.UpdateMaterial(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		s.fail(w, r, "update material", err)
		return
	}
	writeJSON(w, r, http.StatusOK, m)
}

func (s *Server) handleDeleteMaterial(w http.ResponseWriter, r *http.Request) {
	confirm := confirmDelete(w, r)
	if confirm == nil {
		return
	}
	ok, err := s.svc.Materials.DeleteMaterial(r.Context(), r.PathValue("id"), confirm)
	s.deleted(w, r, "delete material", ok, err)
}

func (s *Server) handleListUsageRecords(w http.ResponseWriter, r *http.Request) {
	f, err := queryFilter(r, "material")
	if err != nil {
		s.fail(w, r, "list usage records", err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.svc.Materials.Records(f))
}

func (s *Server) handleUsageSummary(w http.ResponseWriter, r *http.Request) {
	f, err := queryFilter(r, "material")
	if err != nil {
		s.fail(w, r, "usage summary", err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.svc.Materials.Summary(f))
}

func (s *Server) handleAddUsageRecord(w http.ResponseWriter, r *http.Request) {
	var in core.UsageRecord
	if !decodeJSON(w, r, &in) {
		return
	}
	sanitizeInput(&in.Notes)
	rec, err := s.svc.Materials.AddRecord(r.Context(), in)
	if err != nil {
		s.fail(w, r, "add usage record", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, rec)
}

func (s *Server) handlePreviewUsageRecord(w http.ResponseWriter, r *http.Request) {
	var in core.UsageRecord
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := s.svc.Materials.Preview(in, r.URL.Query().Get("editing"))
	if err != nil {
		s.fail(w, r, "preview usage record", err)
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}

func (s *Server) handleUpdateUsageRecord(w http.ResponseWriter, r *http.Request) {
	var in core.UsageRecord
	if !decodeJSON(w, r, &in) {
		return
	}
	sanitizeInput(&in.Notes)
	rec, err := s.svc.Materials.UpdateRecord(r.Context(), r.PathValue("id"), in)
	if err != nil {
		s.fail(w, r, "update usage record", err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

func (s *Server) handleDeleteUsageRecord(w http.ResponseWriter, r *http.Request) {
	confirm := confirmDelete(w, r)
	if confirm == nil {
		return
	}
	ok, err := s.svc.Materials.DeleteRecord(r.Context(), r.PathValue("id"), confirm)
	s.deleted(w, r, "delete usage record", ok, err)
}

func (s *Server) handleGetBOM(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.svc.Materials.BOM())
}

func (s *Server) handleAddBomLine(w http.ResponseWriter, r *http.Request) {
	var line core.BomLine
	if !decodeJSON(w, r, &line) {
		return
	}
	lines, err := s.svc.Materials.AddBomLine(r.Context(), r.PathValue("itemID"), line)
	if err != nil {
		s.fail(w, r, "add recipe line", err)
		return
	}
	writeJSON(w, r, http.StatusOK, lines)
}

func (s *Server) handleRemoveBomLine(w http.ResponseWriter, r *http.Request) {
	if confirmDelete(w, r) == nil {
		return
	}
	if err := s.svc.Materials.RemoveBomLine(r.Context(), r.PathValue("itemID"), r.PathValue("materialID")); err != nil {
		s.fail(w, r, "remove recipe line", err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"deleted": true})
}
