package apiv1

import (
	"fmt"
	"net/http"

	"github.com/oapi-codegen/runtime"

	"trailroom-billing/internal/domain"
	"trailroom-billing/internal/domain/model"
	"trailroom-billing/internal/infra/api"
)

// GetPricingQuote prices ?credits=N. Out-of-range quantities are clamped.
func (s *Server) GetPricingQuote(w http.ResponseWriter, r *http.Request) {
	var credits int
	if err := runtime.BindQueryParameter("form", true, true, "credits", r.URL.Query(), &credits); err != nil {
		s.fail(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err))
		return
	}
	api.WriteJSON(w, http.StatusOK, s.pricing.Quote(credits))
}

func (s *Server) GetPricingTiers(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, list[model.PriceQuote](s.pricing.Tiers()))
}

func (s *Server) GetFixedPlan(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, s.pricing.FixedPlan())
}
