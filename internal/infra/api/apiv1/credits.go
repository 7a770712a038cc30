package apiv1

import (
	"net/http"

	"trailroom-billing/internal/domain/model"
	"trailroom-billing/internal/infra/api"
	"trailroom-billing/internal/usecase"
)

type balanceResponse struct {
	AccountID string `json:"account_id"`
	Credits   int64  `json:"credits"`
}

func (s *Server) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := accountID(r)
	bal, err := s.credits.Balance(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, balanceResponse{AccountID: id, Credits: bal})
}

func (s *Server) ListTransactions(w http.ResponseWriter, r *http.Request) {
	limit, _, err := page(r, usecase.DefaultHistoryLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	entries, err := s.credits.TransactionHistory(r.Context(), accountID(r), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, list[*model.LedgerEntry](entries))
}
