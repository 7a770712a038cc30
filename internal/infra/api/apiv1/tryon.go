package apiv1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"trailroom-billing/internal/domain/model"
	"trailroom-billing/internal/infra/api"
	"trailroom-billing/internal/usecase"
)

type tryOnRequest struct {
	Mode          model.TryOnMode `json:"mode" validate:"required,oneof=top full"`
	PersonImage   string          `json:"person_image" validate:"required"`
	ClothingImage string          `json:"clothing_image" validate:"required"`
	BottomImage   string          `json:"bottom_image,omitempty"`
}

type tryOnAccepted struct {
	JobID  string          `json:"job_id"`
	Status model.JobStatus `json:"status"`
}

// SubmitTryOn queues a generation and answers 202; poll GET /tryon/{id}.
func (s *Server) SubmitTryOn(w http.ResponseWriter, r *http.Request) {
	var req tryOnRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	job, err := s.tryon.Submit(r.Context(), accountID(r), usecase.TryOnSubmission{
		Mode:          req.Mode,
		PersonImage:   req.PersonImage,
		ClothingImage: req.ClothingImage,
		BottomImage:   req.BottomImage,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusAccepted, tryOnAccepted{JobID: job.ID, Status: job.Status})
}

func (s *Server) ListTryOnJobs(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r, 20)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	jobs, err := s.tryon.List(r.Context(), accountID(r), limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, list[*model.TryOnJob](jobs))
}

func (s *Server) GetTryOnJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.tryon.Get(r.Context(), accountID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, job)
}
