package http

import (
	"net/http"

	"opsdesk/internal/core"
	"opsdesk/internal/reporting"
)

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, _, _ := s.svc.Suppliers.Snapshot()
	writeJSON(w, r, http.StatusOK, products)
}

func (s *Server) handleAddProduct(w http.ResponseWriter, r *http.Request) {
	var in core.Product
	if !decodeJSON(w, r, &in) {
		return
	}
	sanitizeInput(&in.Name, &in.Unit)
	p, err := s.svc.Suppliers.AddProduct(r.Context(), in)
	if err != nil {
		s.fail(w, r, "add product", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, p)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	confirm := confirmDelete(w, r)
	if confirm == nil {
		return
	}
	ok, err := s.svc.Suppliers.DeleteProduct(r.Context(), r.PathValue("id"), confirm)
	s.deleted(w, r, "delete product", ok, err)
}

func (s *Server) handleListSuppliers(w http.ResponseWriter, r *http.Request) {
	_, suppliers, _ := s.svc.Suppliers.Snapshot()
	writeJSON(w, r, http.StatusOK, suppliers)
}

func (s *Server) handleAddSupplier(w http.ResponseWriter, r *http.Request) {
	var in core.Supplier
	if !decodeJSON(w, r, &in) {
		return
	}
	sanitizeInput(&in.Name, &in.Contact, &in.Notes)
	sup, err := s.svc.Suppliers.AddSupplier(r.Context(), in)
	if err != nil {
		s.fail(w, r, "add supplier", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, sup)
}

func (s *Server) handleDeleteSupplier(w http.ResponseWriter, r *http.Request) {
	confirm := confirmDelete(w, r)
	if confirm == nil {
		return
	}
	ok, err := s.svc.Suppliers.DeleteSupplier(r.Context(), r.PathValue("id"), confirm)
	s.deleted(w, r, "delete supplier", ok, err)
}

func (s *Server) handleListPrices(w http.ResponseWriter, r *http.Request) {
	_, _, prices := s.svc.Suppliers.Snapshot()
	product := r.URL.Query().Get("product")
	out := make([]core.PriceRecord, 0, len(prices))
	for _, p := range prices {
		if product == "" || p.ProductID == product {
			out = append(out, p)
		}
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleAddPrice(w http.ResponseWriter, r *http.Request) {
	var in core.PriceRecord
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := s.svc.Suppliers.AddPrice(r.Context(), in)
	if err != nil {
		s.fail(w, r, "add price", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, p)
}

func (s *Server) handleDeletePrice(w http.ResponseWriter, r *http.Request) {
	confirm := confirmDelete(w, r)
	if confirm == nil {
		return
	}
	ok, err := s.svc.Suppliers.DeletePrice(r.Context(), r.PathValue("id"), confirm)
	s.deleted(w, r, "delete price", ok, err)
}

func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	products, suppliers, prices := s.svc.Suppliers.Snapshot()
	writeJSON(w, r, http.StatusOK, reporting.CompareSuppliers(products, suppliers, prices))
}
