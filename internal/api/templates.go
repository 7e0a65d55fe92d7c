package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mckhtech/wedding-plannera-ai/internal/models"
	"github.com/mckhtech/wedding-plannera-ai/internal/service"
)

type templateResponse struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	PreviewImage string `json:"preview_image,omitempty"`
	IsFree       bool   `json:"is_free"`
	Amount       int    `json:"amount"`
	Currency     string `json:"currency"`
	DisplayOrder int    `json:"display_order"`
}

func toTemplateResponse(t *models.Template) templateResponse {
	return templateResponse{
		ID:           t.ID,
		Name:         t.Name,
		Description:  t.Description,
		PreviewImage: t.PreviewImage,
		IsFree:       t.IsFree,
		Amount:       t.PriceMinorUnits,
		Currency:     t.Currency,
		DisplayOrder: t.DisplayOrder,
	}
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.templates.ListActive(r.Context())
	if err != nil {
		s.serviceError(w, err)
		return
	}
	out := make([]templateResponse, 0, len(templates))
	for _, t := range templates {
		out = append(out, toTemplateResponse(t))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	template, err := s.templates.Get(r.Context(), id)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	if !template.IsActive || template.IsArchived {
		s.serviceError(w, service.ErrTemplateUnavailable)
		return
	}
	s.writeJSON(w, http.StatusOK, toTemplateResponse(template))
}

type accessResponse struct {
	CanGenerate          bool   `json:"can_generate"`
	Resource             string `json:"resource,omitempty"`
	Reason               string `json:"reason"`
	FreeCreditsRemaining *int   `json:"free_credits_remaining,omitempty"`
	Amount               int    `json:"amount,omitempty"`
	Currency             string `json:"currency,omitempty"`
}

// handleCheckAccess is the read-only probe. It never consumes anything, so a
// positive answer can still lose the race at generation time.
func (s *Server) handleCheckAccess(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	template, err := s.templates.Get(r.Context(), id)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	decision, err := s.access.Check(r.Context(), userFrom(r), template)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	resp := accessResponse{
		CanGenerate: decision.CanGenerate,
		Resource:    string(decision.Resource),
		Reason:      decision.Reason,
		Amount:      decision.Amount,
		Currency:    decision.Currency,
	}
	if template.IsFree {
		remaining := decision.FreeCreditsRemaining
		resp.FreeCreditsRemaining = &remaining
	}
	s.writeJSON(w, http.StatusOK, resp)
}
