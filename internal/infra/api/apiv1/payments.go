package apiv1

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"trailroom-billing/internal/domain"
	"trailroom-billing/internal/domain/model"
	"trailroom-billing/internal/infra/api"
)

const gatewaySignatureHeader = "X-Razorpay-Signature"

type createOrderRequest struct {
	Credits int64 `json:"credits" validate:"required,gt=0"`
}

type verifyRequest struct {
	OrderID   string `json:"razorpay_order_id" validate:"required"`
	PaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature string `json:"razorpay_signature" validate:"required"`
}

type refundRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (s *Server) CreatePaymentOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	intent, err := s.payments.CreateIntent(r.Context(), accountID(r), req.Credits)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, intent)
}

// VerifyPayment settles from a checkout callback. The gateway signature is
// the proof of payment.
func (s *Server) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.payments.Verify(r.Context(), req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, res)
}

// PostGatewayWebhook is called server-to-server by the gateway. A bad
// signature is a 400 so the gateway does not treat it as an auth problem.
func (s *Server) PostGatewayWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.payments.HandleWebhook(r.Context(), body, r.Header.Get(gatewaySignatureHeader))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSignature) {
			api.WriteJSON(w, http.StatusBadRequest, api.ErrorBody{Error: "invalid signature"})
			return
		}
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) ListPayments(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r, 50)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	pays, err := s.payments.History(r.Context(), accountID(r), limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, list[*model.Payment](pays))
}

func (s *Server) GetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := s.payments.Get(r.Context(), accountID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) RefundPayment(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.payments.Refund(r.Context(), chi.URLParam(r, "id"), accountID(r), req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, res)
}
