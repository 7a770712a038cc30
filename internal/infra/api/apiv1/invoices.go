package apiv1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"trailroom-billing/internal/domain/model"
	"trailroom-billing/internal/infra/api"
)

type createInvoiceRequest struct {
	PaymentID string `json:"payment_id" validate:"required,uuid"`
}

func (s *Server) ListInvoices(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r, 50)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	invs, err := s.invoices.List(r.Context(), accountID(r), limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, list[*model.Invoice](invs))
}

// CreateInvoice issues (or returns) the invoice of one of the caller's paid payments.
func (s *Server) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.payments.Get(r.Context(), accountID(r), req.PaymentID); err != nil {
		s.fail(w, r, err)
		return
	}
	inv, err := s.invoices.Issue(r.Context(), req.PaymentID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, inv)
}

func (s *Server) GetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.invoices.Get(r.Context(), accountID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, inv)
}

func (s *Server) GetInvoiceText(w http.ResponseWriter, r *http.Request) {
	txt, err := s.invoices.RenderText(r.Context(), accountID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(txt))
}
