package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mckhtech/wedding-plannera-ai/internal/config"
	"github.com/mckhtech/wedding-plannera-ai/internal/gemini"
	"github.com/mckhtech/wedding-plannera-ai/internal/models"
	"github.com/mckhtech/wedding-plannera-ai/internal/storage"
)

// Generator renders one image from the template prompt and the user's photos.
// The real implementation is gemini.Client; tests substitute a fake.
type Generator interface {
	Generate(ctx context.Context, prompt string, bundle models.InputBundle, watermark bool) (*gemini.Result, error)
}

type generationJob struct {
	generationID int64
	tokenID      *int64
	prompt       string
	bundle       models.InputBundle
	watermark    bool
}

// GenerationService accepts generation requests, reserves the access resource
// up front and hands the slow rendering work to background workers. The
// request returns as soon as the pending row is committed; clients poll for
// the result.
type GenerationService struct {
	cfg         config.Config
	log         *slog.Logger
	access      *AccessService
	payments    *PaymentService
	templates   TemplateStore
	generations GenerationStore
	tokens      TokenStore
	generator   Generator
	artifacts   storage.Storage
	jobs        chan generationJob
}

func NewGenerationService(
	cfg config.Config,
	log *slog.Logger,
	access *AccessService,
	payments *PaymentService,
	templates TemplateStore,
	generations GenerationStore,
	tokens TokenStore,
	generator Generator,
	artifacts storage.Storage,
) *GenerationService {
	return &GenerationService{
		cfg:         cfg,
		log:         log,
		access:      access,
		payments:    payments,
		templates:   templates,
		generations: generations,
		tokens:      tokens,
		generator:   generator,
		artifacts:   artifacts,
		jobs:        make(chan generationJob, cfg.QueueSize),
	}
}

func validateBundle(bundle models.InputBundle) error {
	switch bundle.Mode {
	case models.ModeFlexible:
		if len(bundle.UserImages) == 0 || len(bundle.PartnerImages) == 0 {
			return fmt.Errorf("%w: flexible mode needs at least one photo of each partner", ErrInvalidBundle)
		}
		if len(bundle.UserImages) > 3 || len(bundle.PartnerImages) > 3 {
			return fmt.Errorf("%w: at most three photos per partner", ErrInvalidBundle)
		}
		if bundle.CoupleImage != "" {
			return fmt.Errorf("%w: couple photo does not belong in flexible mode", ErrInvalidBundle)
		}
	case models.ModeCouple:
		if bundle.CoupleImage == "" {
			return fmt.Errorf("%w: couple mode needs a couple photo", ErrInvalidBundle)
		}
		if len(bundle.UserImages) > 0 || len(bundle.PartnerImages) > 0 {
			return fmt.Errorf("%w: individual photos do not belong in couple mode", ErrInvalidBundle)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidBundle, bundle.Mode)
	}
	return nil
}

// Start validates the request, reserves a free credit or paid token and
// enqueues the rendering job. The returned generation is still pending; no
// row exists at all when the reservation failed.
//
// Outputs for non-subscribed users of paid templates carry a watermark.
func (s *GenerationService) Start(ctx context.Context, user *models.User, templateID int64, bundle models.InputBundle) (*models.Generation, error) {
	template, err := s.templates.GetByID(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("find template: %w", err)
	}
	if err := templateUsable(template); err != nil {
		return nil, err
	}
	if err := validateBundle(bundle); err != nil {
		return nil, err
	}

	watermark := !user.IsSubscribed && !template.IsFree

	gen := &models.Generation{
		UserID:       user.ID,
		TemplateID:   template.ID,
		Mode:         bundle.Mode,
		Inputs:       bundle,
		HasWatermark: watermark,
		Status:       models.GenerationPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.access.Reserve(ctx, user, template, gen); err != nil {
		return nil, err
	}

	if err := s.templates.IncrementUsage(ctx, template.ID); err != nil {
		s.log.Warn("increment template usage", "template_id", template.ID, "err", err)
	}

	job := generationJob{
		generationID: gen.ID,
		tokenID:      gen.PaymentTokenID,
		prompt:       template.Prompt,
		bundle:       bundle,
		watermark:    watermark,
	}
	select {
	case s.jobs <- job:
	case <-ctx.Done():
		// The reservation is already committed, so the row stays pending
		// and keeps its resource. Nothing can be unwound safely here.
		s.log.Warn("generation enqueue aborted", "generation_id", gen.ID, "err", ctx.Err())
	}
	return gen, nil
}

// Run drives the worker pool until ctx is cancelled. Jobs still in flight
// finish their bookkeeping on a background context so a shutdown cannot
// leave a processing row behind.
func (s *GenerationService) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.worker(ctx, id)
		}(i + 1)
	}
	wg.Wait()
}

func (s *GenerationService) worker(ctx context.Context, id int) {
	log := s.log.With("worker", id)
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.jobs:
			s.process(ctx, log, job)
		}
	}
}

func (s *GenerationService) process(ctx context.Context, log *slog.Logger, job generationJob) {
	ok, err := s.generations.MarkProcessing(ctx, job.generationID)
	if err != nil {
		log.Error("mark generation processing", "generation_id", job.generationID, "err", err)
		return
	}
	if !ok {
		// Already claimed or finished elsewhere.
		return
	}

	image, err := s.generator.Generate(ctx, job.prompt, job.bundle, job.watermark)
	if err != nil {
		s.fail(log, job, err)
		return
	}
	s.complete(log, job, image)
}

func (s *GenerationService) complete(log *slog.Logger, job generationJob, image *gemini.Result) {
	ctx := context.Background()
	ok, err := s.generations.MarkCompleted(ctx, job.generationID, image.Path, image.WatermarkedPath)
	if err != nil {
		log.Error("mark generation completed", "generation_id", job.generationID, "err", err)
		return
	}
	if !ok {
		log.Error("generation left processing before completion", "generation_id", job.generationID)
		return
	}
	if job.tokenID != nil {
		used, err := s.tokens.MarkUsed(ctx, *job.tokenID)
		if err != nil {
			log.Error("mark token used", "token_id", *job.tokenID, "err", err)
		} else if !used {
			log.Error("paid token moved outside the generation flow", "token_id", *job.tokenID, "generation_id", job.generationID)
		}
	}
	log.Info("generation completed", "generation_id", job.generationID, "watermarked", image.WatermarkedPath != "")
}

// fail records the error and, for paid runs, hands the money back. Free
// credits are not restored on failure. A refund error is logged and swallowed
// so the generation still lands in its terminal failed state.
func (s *GenerationService) fail(log *slog.Logger, job generationJob, cause error) {
	ctx := context.Background()
	msg := cause.Error()
	ok, err := s.generations.MarkFailed(ctx, job.generationID, msg)
	if err != nil {
		log.Error("mark generation failed", "generation_id", job.generationID, "err", err)
	} else if !ok {
		log.Error("generation left processing before failure", "generation_id", job.generationID)
	}
	if job.tokenID != nil {
		reason := truncate("Generation failed: "+msg, 500)
		if _, err := s.payments.Refund(ctx, *job.tokenID, reason); err != nil {
			log.Error("refund after failed generation", "token_id", *job.tokenID, "err", err)
		}
	}
	log.Warn("generation failed", "generation_id", job.generationID, "err", cause)
}

// Get scopes lookups to the owner.
func (s *GenerationService) Get(ctx context.Context, userID, id int64) (*models.Generation, error) {
	gen, err := s.generations.FindByIDForUser(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("find generation: %w", err)
	}
	if gen == nil {
		return nil, ErrGenerationNotFound
	}
	return gen, nil
}

func (s *GenerationService) List(ctx context.Context, userID int64) ([]*models.Generation, error) {
	return s.generations.ListByUser(ctx, userID)
}

// Delete removes a finished generation along with its stored files.
// In-flight rows are protected so the worker never finishes into a deleted
// record. File removal is best effort; the row goes away regardless.
func (s *GenerationService) Delete(ctx context.Context, userID, id int64) error {
	gen, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if gen.Status == models.GenerationPending || gen.Status == models.GenerationProcessing {
		return ErrInvalidState
	}

	refs := gen.Inputs.Refs()
	if gen.GeneratedPath != "" {
		refs = append(refs, gen.GeneratedPath)
	}
	if gen.WatermarkedPath != "" {
		refs = append(refs, gen.WatermarkedPath)
	}
	for _, ref := range refs {
		if err := s.artifacts.Delete(ctx, ref); err != nil {
			s.log.Warn("delete generation artifact", "generation_id", gen.ID, "ref", ref, "err", err)
		}
	}
	return s.generations.Delete(ctx, gen.ID)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
