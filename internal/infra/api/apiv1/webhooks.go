package apiv1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"trailroom-billing/internal/domain/model"
	"trailroom-billing/internal/infra/api"
	"trailroom-billing/internal/usecase"
)

type createWebhookRequest struct {
	URL    string            `json:"url" validate:"required,http_url"`
	Name   string            `json:"name" validate:"required,max=100"`
	Events []model.EventType `json:"events" validate:"required,min=1,dive,required"`
}

type updateWebhookRequest struct {
	URL      *string           `json:"url,omitempty" validate:"omitempty,http_url"`
	Name     *string           `json:"name,omitempty" validate:"omitempty,max=100"`
	Events   []model.EventType `json:"events,omitempty" validate:"omitempty,min=1,dive,required"`
	IsActive *bool             `json:"is_active,omitempty"`
}

type eventInfo struct {
	Event       model.EventType `json:"event"`
	Description string          `json:"description"`
}

func (s *Server) ListWebhookEvents(w http.ResponseWriter, r *http.Request) {
	out := make([]eventInfo, 0, len(model.SupportedEvents))
	for _, e := range model.SupportedEvents {
		out = append(out, eventInfo{Event: e, Description: model.EventDescriptions[e]})
	}
	api.WriteJSON(w, http.StatusOK, list[eventInfo](out))
}

// CreateWebhook returns the signing secret; it is shown again only by GET /webhooks/{id}.
func (s *Server) CreateWebhook(w http.ResponseWriter, r *http.Request) {
	var req createWebhookRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	hook, err := s.webhooks.Register(r.Context(), accountID(r), req.URL, req.Name, req.Events)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, hook)
}

func (s *Server) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	hooks, err := s.webhooks.List(r.Context(), accountID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, list[*model.Webhook](hooks))
}

func (s *Server) GetWebhook(w http.ResponseWriter, r *http.Request) {
	hook, err := s.webhooks.Get(r.Context(), accountID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, hook)
}

func (s *Server) UpdateWebhook(w http.ResponseWriter, r *http.Request) {
	var req updateWebhookRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	hook, err := s.webhooks.Update(r.Context(), accountID(r), chi.URLParam(r, "id"), usecase.WebhookUpdate{
		URL:      req.URL,
		Name:     req.Name,
		Events:   req.Events,
		IsActive: req.IsActive,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, hook)
}

func (s *Server) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	if err := s.webhooks.Delete(r.Context(), accountID(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) ListWebhookDeliveries(w http.ResponseWriter, r *http.Request) {
	limit, _, err := page(r, usecase.DefaultDeliveryLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ds, err := s.webhooks.Deliveries(r.Context(), accountID(r), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, list[*model.WebhookDelivery](ds))
}

func (s *Server) TestWebhook(w http.ResponseWriter, r *http.Request) {
	d, err := s.webhooks.TestDelivery(r.Context(), accountID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, d)
}
