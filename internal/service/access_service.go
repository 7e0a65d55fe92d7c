package service

import (
	"context"
	"fmt"

	"github.com/mckhtech/wedding-plannera-ai/internal/models"
)

// ResourceKind names which resource backs a granted generation.
type ResourceKind string

const (
	ResourceFreeCredit ResourceKind = "free_credit"
	ResourcePaidToken  ResourceKind = "paid_token"
)

// AccessDecision is the read-only answer to "can this user run this template".
type AccessDecision struct {
	CanGenerate          bool
	Resource             ResourceKind
	Reason               string
	FreeCreditsRemaining int
	Amount               int
	Currency             string
}

// AccessService decides whether a user may generate with a template and, on
// the reserve path, commits the backing resource together with the new
// generation record so the two can never drift apart.
type AccessService struct {
	tokens      TokenStore
	generations GenerationStore
}

func NewAccessService(tokens TokenStore, generations GenerationStore) *AccessService {
	return &AccessService{tokens: tokens, generations: generations}
}

func templateUsable(template *models.Template) error {
	if template == nil {
		return ErrTemplateNotFound
	}
	if !template.IsActive || template.IsArchived {
		return ErrTemplateUnavailable
	}
	return nil
}

// Check answers the access question without reserving anything. The answer
// can go stale immediately under concurrency; Reserve is the authoritative
// path.
func (s *AccessService) Check(ctx context.Context, user *models.User, template *models.Template) (*AccessDecision, error) {
	if err := templateUsable(template); err != nil {
		return nil, err
	}

	if template.IsFree {
		if user.FreeCreditsRemaining > 0 {
			return &AccessDecision{
				CanGenerate:          true,
				Resource:             ResourceFreeCredit,
				Reason:               "free_credit",
				FreeCreditsRemaining: user.FreeCreditsRemaining,
			}, nil
		}
		return &AccessDecision{
			CanGenerate:          false,
			Reason:               "no_free_credits",
			FreeCreditsRemaining: 0,
		}, nil
	}

	count, err := s.tokens.CountConsumable(ctx, user.ID, template.ID)
	if err != nil {
		return nil, fmt.Errorf("count consumable tokens: %w", err)
	}
	if count > 0 {
		return &AccessDecision{
			CanGenerate: true,
			Resource:    ResourcePaidToken,
			Reason:      "paid_token",
		}, nil
	}
	return &AccessDecision{
		CanGenerate: false,
		Reason:      "payment_required",
		Amount:      template.PriceMinorUnits,
		Currency:    template.Currency,
	}, nil
}

// Reserve makes the access decision and, when granted, atomically binds the
// resource to a new PENDING generation row. On denial no row is created and
// nothing is consumed.
//
// Free templates deduct one credit; the deduction and the insert share one
// transaction. Paid templates pick the oldest consumable token; the token is
// not mutated here, the in-flight generation referencing it is what blocks a
// concurrent request from picking it again.
func (s *AccessService) Reserve(ctx context.Context, user *models.User, template *models.Template, gen *models.Generation) error {
	if err := templateUsable(template); err != nil {
		return err
	}

	if template.IsFree {
		gen.UsedFreeCredit = true
		gen.UsedPaidToken = false
		ok, err := s.generations.CreateWithFreeCredit(ctx, gen)
		if err != nil {
			return fmt.Errorf("reserve free credit: %w", err)
		}
		if !ok {
			return ErrInsufficientCredits
		}
		return nil
	}

	gen.UsedFreeCredit = false
	gen.UsedPaidToken = true
	token, err := s.generations.CreateWithPaidToken(ctx, gen)
	if err != nil {
		return fmt.Errorf("reserve paid token: %w", err)
	}
	if token == nil {
		return &PaymentRequiredError{
			TemplateID: template.ID,
			Amount:     template.PriceMinorUnits,
			Currency:   template.Currency,
		}
	}
	return nil
}
