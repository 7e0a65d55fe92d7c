package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mckhtech/wedding-plannera-ai/internal/service"
)

func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		s.serviceError(w, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	s.writeJSON(w, http.StatusOK, out)
}

type grantCreditsRequest struct {
	Delta int `json:"delta"`
}

func (s *Server) handleAdminGrantCredits(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req grantCreditsRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Delta == 0 {
		s.writeError(w, http.StatusBadRequest, "delta must be non-zero")
		return
	}
	user, err := s.users.GrantFreeCredits(r.Context(), id, req.Delta)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toUserResponse(user))
}

type setSubscriptionRequest struct {
	Subscribed bool `json:"subscribed"`
}

func (s *Server) handleAdminSetSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req setSubscriptionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	user, err := s.users.SetSubscribed(r.Context(), id, req.Subscribed)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toUserResponse(user))
}

type adminTemplateResponse struct {
	templateResponse
	Prompt     string `json:"prompt"`
	IsActive   bool   `json:"is_active"`
	IsArchived bool   `json:"is_archived"`
	UsageCount int    `json:"usage_count"`
}

func (s *Server) handleAdminListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.templates.ListAll(r.Context())
	if err != nil {
		s.serviceError(w, err)
		return
	}
	out := make([]adminTemplateResponse, 0, len(templates))
	for _, t := range templates {
		out = append(out, adminTemplateResponse{
			templateResponse: toTemplateResponse(t),
			Prompt:           t.Prompt,
			IsActive:         t.IsActive,
			IsArchived:       t.IsArchived,
			UsageCount:       t.UsageCount,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

type templateRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	Prompt          string `json:"prompt"`
	PreviewImage    string `json:"preview_image"`
	IsFree          bool   `json:"is_free"`
	PriceMinorUnits int    `json:"price_minor_units"`
	Currency        string `json:"currency"`
	DisplayOrder    int    `json:"display_order"`
}

func (s *Server) handleAdminCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	template, err := s.templates.Create(r.Context(), service.CreateTemplateInput{
		Name:            req.Name,
		Description:     req.Description,
		Prompt:          req.Prompt,
		PreviewImage:    req.PreviewImage,
		IsFree:          req.IsFree,
		PriceMinorUnits: req.PriceMinorUnits,
		Currency:        req.Currency,
		DisplayOrder:    req.DisplayOrder,
	})
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, toTemplateResponse(template))
}

type templateUpdateRequest struct {
	Name            *string `json:"name"`
	Description     *string `json:"description"`
	Prompt          *string `json:"prompt"`
	PreviewImage    *string `json:"preview_image"`
	IsFree          *bool   `json:"is_free"`
	PriceMinorUnits *int    `json:"price_minor_units"`
	Currency        *string `json:"currency"`
	IsActive        *bool   `json:"is_active"`
	DisplayOrder    *int    `json:"display_order"`
}

func (s *Server) handleAdminUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req templateUpdateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	template, err := s.templates.Update(r.Context(), id, service.UpdateTemplateInput{
		Name:            req.Name,
		Description:     req.Description,
		Prompt:          req.Prompt,
		PreviewImage:    req.PreviewImage,
		IsFree:          req.IsFree,
		PriceMinorUnits: req.PriceMinorUnits,
		Currency:        req.Currency,
		IsActive:        req.IsActive,
		DisplayOrder:    req.DisplayOrder,
	})
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toTemplateResponse(template))
}

func (s *Server) handleAdminArchiveTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.templates.Archive(r.Context(), id); err != nil {
		s.serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type refundTokenRequest struct {
	Reason string `json:"reason"`
}

// handleAdminRefundToken is the manual override for support cases; it goes
// through the same lifecycle transitions as the automatic failure refund.
func (s *Server) handleAdminRefundToken(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req refundTokenRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = "Manual refund"
	}
	token, err := s.payments.Refund(r.Context(), id, reason)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toTokenResponse(token))
}
