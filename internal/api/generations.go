package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mckhtech/wedding-plannera-ai/internal/models"
)

type generationResponse struct {
	ID             int64      `json:"id"`
	TemplateID     int64      `json:"template_id"`
	Mode           string     `json:"mode"`
	Status         string     `json:"status"`
	OutputURL      string     `json:"output_url,omitempty"`
	HasWatermark   bool       `json:"has_watermark"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	UsedFreeCredit bool       `json:"used_free_credit"`
	UsedPaidToken  bool       `json:"used_paid_token"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// outputURL prefers the watermarked variant so non-subscribed paid previews
// never leak the clean image.
func (s *Server) outputURL(gen *models.Generation) string {
	if gen.Status != models.GenerationCompleted {
		return ""
	}
	if gen.WatermarkedPath != "" {
		return s.files.URLFor(gen.WatermarkedPath)
	}
	if gen.GeneratedPath != "" {
		return s.files.URLFor(gen.GeneratedPath)
	}
	return ""
}

func (s *Server) toGenerationResponse(gen *models.Generation) generationResponse {
	return generationResponse{
		ID:             gen.ID,
		TemplateID:     gen.TemplateID,
		Mode:           string(gen.Mode),
		Status:         string(gen.Status),
		OutputURL:      s.outputURL(gen),
		HasWatermark:   gen.HasWatermark,
		ErrorMessage:   gen.ErrorMessage,
		UsedFreeCredit: gen.UsedFreeCredit,
		UsedPaidToken:  gen.UsedPaidToken,
		CreatedAt:      gen.CreatedAt,
		CompletedAt:    gen.CompletedAt,
	}
}

// handleStartGeneration takes the multipart upload, stores the photos and
// answers 202 with the pending generation; the actual rendering happens on
// the worker pool and is polled via the status endpoint.
func (s *Server) handleStartGeneration(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form or upload too large")
		return
	}

	templateID, err := parseID(r.FormValue("template_id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid template_id")
		return
	}
	mode := models.GenerationMode(r.FormValue("mode"))
	if mode == "" {
		mode = models.ModeFlexible
	}

	bundle := models.InputBundle{Mode: mode}
	if bundle.UserImages, err = s.saveUploads(r, "user_images"); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if bundle.PartnerImages, err = s.saveUploads(r, "partner_images"); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	couple, err := s.saveUploads(r, "couple_image")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(couple) > 0 {
		bundle.CoupleImage = couple[0]
	}

	gen, err := s.generations.Start(r.Context(), userFrom(r), templateID, bundle)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, s.toGenerationResponse(gen))
}

// saveUploads stores every file under the field and returns their refs.
func (s *Server) saveUploads(r *http.Request, field string) ([]string, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	headers := r.MultipartForm.File[field]
	refs := make([]string, 0, len(headers))
	for _, header := range headers {
		ref, err := s.saveUpload(r, header)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (s *Server) saveUpload(r *http.Request, header *multipart.FileHeader) (string, error) {
	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	contentType := http.DetectContentType(data)
	switch contentType {
	case "image/jpeg", "image/png", "image/webp":
	default:
		return "", fmt.Errorf("unsupported image type %s", contentType)
	}
	return s.files.Save(r.Context(), "inputs", data, contentType)
}

func (s *Server) handleListGenerations(w http.ResponseWriter, r *http.Request) {
	generations, err := s.generations.List(r.Context(), userFrom(r).ID)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	out := make([]generationResponse, 0, len(generations))
	for _, gen := range generations {
		out = append(out, s.toGenerationResponse(gen))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetGeneration(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	gen, err := s.generations.Get(r.Context(), userFrom(r).ID, id)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.toGenerationResponse(gen))
}

type generationStatusResponse struct {
	ID           int64  `json:"id"`
	Status       string `json:"status"`
	OutputURL    string `json:"output_url,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func (s *Server) handleGenerationStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	gen, err := s.generations.Get(r.Context(), userFrom(r).ID, id)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, generationStatusResponse{
		ID:           gen.ID,
		Status:       string(gen.Status),
		OutputURL:    s.outputURL(gen),
		ErrorMessage: gen.ErrorMessage,
	})
}

func (s *Server) handleDeleteGeneration(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.generations.Delete(r.Context(), userFrom(r).ID, id); err != nil {
		s.serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
