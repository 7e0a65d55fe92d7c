package service

import (
	"context"
	"fmt"

	"github.com/mckhtech/wedding-plannera-ai/internal/config"
	"github.com/mckhtech/wedding-plannera-ai/internal/models"
)

type TemplateService struct {
	cfg       config.Config
	templates TemplateStore
}

type CreateTemplateInput struct {
	Name            string
	Description     string
	Prompt          string
	PreviewImage    string
	IsFree          bool
	PriceMinorUnits int
	Currency        string
	DisplayOrder    int
}

type UpdateTemplateInput struct {
	Name            *string
	Description     *string
	Prompt          *string
	PreviewImage    *string
	IsFree          *bool
	PriceMinorUnits *int
	Currency        *string
	IsActive        *bool
	DisplayOrder    *int
}

func NewTemplateService(cfg config.Config, templates TemplateStore) *TemplateService {
	return &TemplateService{cfg: cfg, templates: templates}
}

// EnsureDefaults seeds the catalog on an empty database so a fresh install
// has one free and one paid template to work with.
func (s *TemplateService) EnsureDefaults(ctx context.Context) error {
	existing, err := s.templates.ListAll(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	defaults := []*models.Template{
		{
			Name:        "Garden Romance",
			Description: "A soft sunlit garden scene with flowing outfits",
			Prompt: "A romantic pre-wedding photograph of the couple in a lush garden at " +
				"golden hour, soft bokeh, flowing pastel outfits, candid laughter, " +
				"professional photography, high detail",
			IsFree:       true,
			Currency:     s.cfg.DefaultCurrency,
			IsActive:     true,
			DisplayOrder: 1,
		},
		{
			Name:        "Royal Palace",
			Description: "A regal palace backdrop in traditional attire",
			Prompt: "A majestic pre-wedding photograph of the couple in traditional royal " +
				"attire on the steps of an ornate Indian palace, dramatic evening light, " +
				"rich embroidery, cinematic composition, professional photography",
			IsFree:          false,
			PriceMinorUnits: 19900,
			Currency:        s.cfg.DefaultCurrency,
			IsActive:        true,
			DisplayOrder:    2,
		},
	}
	for _, tpl := range defaults {
		if _, err := s.templates.Create(ctx, tpl); err != nil {
			return fmt.Errorf("seed template %q: %w", tpl.Name, err)
		}
	}
	return nil
}

// Get returns any template by id, archived ones included. Callers that need
// a usable template go through the access engine instead.
func (s *TemplateService) Get(ctx context.Context, id int64) (*models.Template, error) {
	tpl, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find template: %w", err)
	}
	if tpl == nil {
		return nil, ErrTemplateNotFound
	}
	return tpl, nil
}

// ListActive is the public catalog, ordered for display.
func (s *TemplateService) ListActive(ctx context.Context) ([]*models.Template, error) {
	return s.templates.ListActive(ctx)
}

// ListAll includes inactive and archived templates for the admin surface.
func (s *TemplateService) ListAll(ctx context.Context) ([]*models.Template, error) {
	return s.templates.ListAll(ctx)
}

func (s *TemplateService) Create(ctx context.Context, input CreateTemplateInput) (*models.Template, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if input.Prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}
	if input.Currency == "" {
		input.Currency = s.cfg.DefaultCurrency
	}
	if input.IsFree {
		input.PriceMinorUnits = 0
	} else if input.PriceMinorUnits <= 0 {
		return nil, fmt.Errorf("paid templates need a positive price")
	}
	tpl := &models.Template{
		Name:            input.Name,
		Description:     input.Description,
		Prompt:          input.Prompt,
		PreviewImage:    input.PreviewImage,
		IsFree:          input.IsFree,
		PriceMinorUnits: input.PriceMinorUnits,
		Currency:        input.Currency,
		IsActive:        true,
		DisplayOrder:    input.DisplayOrder,
	}
	return s.templates.Create(ctx, tpl)
}

func (s *TemplateService) Update(ctx context.Context, id int64, input UpdateTemplateInput) (*models.Template, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil && *input.Name != "" {
		existing.Name = *input.Name
	}
	if input.Description != nil {
		existing.Description = *input.Description
	}
	if input.Prompt != nil && *input.Prompt != "" {
		existing.Prompt = *input.Prompt
	}
	if input.PreviewImage != nil {
		existing.PreviewImage = *input.PreviewImage
	}
	if input.IsFree != nil {
		existing.IsFree = *input.IsFree
	}
	if input.PriceMinorUnits != nil && *input.PriceMinorUnits >= 0 {
		existing.PriceMinorUnits = *input.PriceMinorUnits
	}
	if input.Currency != nil && *input.Currency != "" {
		existing.Currency = *input.Currency
	}
	if input.IsActive != nil {
		existing.IsActive = *input.IsActive
	}
	if input.DisplayOrder != nil {
		existing.DisplayOrder = *input.DisplayOrder
	}
	if existing.IsFree {
		existing.PriceMinorUnits = 0
	} else if existing.PriceMinorUnits <= 0 {
		return nil, fmt.Errorf("paid templates need a positive price")
	}
	if err := s.templates.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	return existing, nil
}

// Archive retires a template instead of deleting it, so old generations and
// tokens keep a valid reference. Archiving twice reports ErrInvalidState.
func (s *TemplateService) Archive(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	ok, err := s.templates.Archive(ctx, id)
	if err != nil {
		return fmt.Errorf("archive template: %w", err)
	}
	if !ok {
		return ErrInvalidState
	}
	return nil
}
