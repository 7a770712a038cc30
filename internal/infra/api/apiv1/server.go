package apiv1

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/oapi-codegen/runtime"
	"github.com/rs/zerolog"

	"trailroom-billing/internal/domain"
	"trailroom-billing/internal/infra/api"
	"trailroom-billing/internal/usecase"
)

const maxBodyBytes = 16 << 20 // try-on uploads carry up to three base64 images

// Server implements the /api/v1 handlers on top of the use cases.
type Server struct {
	pricing  usecase.PricingUseCase
	credits  usecase.CreditUseCase
	payments usecase.PaymentUseCase
	invoices usecase.InvoiceUseCase
	webhooks usecase.WebhookUseCase
	tryon    usecase.TryOnUseCase
	validate *validator.Validate
	log      *zerolog.Logger
}

func NewServer(
	pricing usecase.PricingUseCase,
	credits usecase.CreditUseCase,
	payments usecase.PaymentUseCase,
	invoices usecase.InvoiceUseCase,
	webhooks usecase.WebhookUseCase,
	tryon usecase.TryOnUseCase,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "apiv1").Logger()
	return &Server{
		pricing:  pricing,
		credits:  credits,
		payments: payments,
		invoices: invoices,
		webhooks: webhooks,
		tryon:    tryon,
		validate: validator.New(),
		log:      &l,
	}
}

// Guards are the route-level middlewares. Nil entries are skipped.
type Guards struct {
	Auth       api.Middleware
	Admin      api.Middleware
	OrderLimit api.Middleware
	TryOnLimit api.Middleware
}

func use(mws ...api.Middleware) []func(http.Handler) http.Handler {
	out := make([]func(http.Handler) http.Handler, 0, len(mws))
	for _, m := range mws {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// RegisterAPIV1 mounts every route under /api/v1.
func RegisterAPIV1(r chi.Router, s *Server, g Guards) {
	r.Route("/api/v1", func(r chi.Router) {
		// public
		r.Get("/pricing/quote", s.GetPricingQuote)
		r.Get("/pricing/tiers", s.GetPricingTiers)
		r.Get("/pricing/fixed-plan", s.GetFixedPlan)
		r.Get("/webhooks/events", s.ListWebhookEvents)
		r.Post("/payments/webhook", s.PostGatewayWebhook)

		r.Group(func(r chi.Router) {
			r.Use(use(g.Auth)...)

			r.Get("/credits/balance", s.GetBalance)
			r.Get("/credits/transactions", s.ListTransactions)

			r.With(use(g.OrderLimit)...).Post("/payments/orders", s.CreatePaymentOrder)
			r.Post("/payments/verify", s.VerifyPayment)
			r.Get("/payments", s.ListPayments)
			r.Get("/payments/{id}", s.GetPayment)

			r.Get("/invoices", s.ListInvoices)
			r.Post("/invoices", s.CreateInvoice)
			r.Get("/invoices/{id}", s.GetInvoice)
			r.Get("/invoices/{id}/text", s.GetInvoiceText)

			r.Post("/webhooks", s.CreateWebhook)
			r.Get("/webhooks", s.ListWebhooks)
			r.Get("/webhooks/{id}", s.GetWebhook)
			r.Patch("/webhooks/{id}", s.UpdateWebhook)
			r.Delete("/webhooks/{id}", s.DeleteWebhook)
			r.Get("/webhooks/{id}/deliveries", s.ListWebhookDeliveries)
			r.Post("/webhooks/{id}/test", s.TestWebhook)

			r.With(use(g.TryOnLimit)...).Post("/tryon", s.SubmitTryOn)
			r.Get("/tryon", s.ListTryOnJobs)
			r.Get("/tryon/{id}", s.GetTryOnJob)

			r.With(use(g.Admin)...).Post("/admin/payments/{id}/refund", s.RefundPayment)
		})
	})
}

// --- helpers ---

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	api.WriteError(w, r, s.log, err)
}

func accountID(r *http.Request) string {
	p, _ := api.PrincipalFrom(r.Context())
	return p.AccountID
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid json: %v", domain.ErrInvalidArgument, err)
	}
	if err := s.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

// page binds optional limit/offset query parameters.
func page(r *http.Request, defLimit int) (limit, offset int, err error) {
	var l, o *int
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "limit", q, &l); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "offset", q, &o); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	limit, offset = defLimit, 0
	if l != nil {
		limit = *l
	}
	if o != nil {
		offset = *o
	}
	return limit, offset, nil
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func list[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Count: len(items)}
}
