package service

import (
	"context"

	"github.com/mckhtech/wedding-plannera-ai/internal/models"
)

// Store interfaces consumed by the services. The MySQL repositories and the
// in-memory store both satisfy them; services never see the backing engine.

type UserStore interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID int64, fullName, picture string) error
	LinkGoogle(ctx context.Context, userID int64, googleID, picture string) error
	GrantFreeCredits(ctx context.Context, userID int64, delta int) error
	SetSubscribed(ctx context.Context, userID int64, subscribed bool) error
	List(ctx context.Context) ([]*models.User, error)
}

type TemplateStore interface {
	GetByID(ctx context.Context, id int64) (*models.Template, error)
	ListActive(ctx context.Context) ([]*models.Template, error)
	ListAll(ctx context.Context) ([]*models.Template, error)
	Create(ctx context.Context, t *models.Template) (*models.Template, error)
	Update(ctx context.Context, t *models.Template) error
	Archive(ctx context.Context, id int64) (bool, error)
	IncrementUsage(ctx context.Context, id int64) error
}

type TokenStore interface {
	Create(ctx context.Context, token *models.PaymentToken) (*models.PaymentToken, error)
	FindByID(ctx context.Context, id int64) (*models.PaymentToken, error)
	FindByIDForUser(ctx context.Context, id, userID int64) (*models.PaymentToken, error)
	SetOrder(ctx context.Context, tokenID int64, orderID string) error
	MarkCompleted(ctx context.Context, tokenID int64, paymentID string) (bool, error)
	MarkPaymentFailed(ctx context.Context, tokenID int64) error
	MarkUsed(ctx context.Context, tokenID int64) (bool, error)
	MarkRefunded(ctx context.Context, tokenID int64, refundID, reason string) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.PaymentToken, error)
	CountConsumable(ctx context.Context, userID, templateID int64) (int, error)
}

type GenerationStore interface {
	CreateWithFreeCredit(ctx context.Context, gen *models.Generation) (bool, error)
	CreateWithPaidToken(ctx context.Context, gen *models.Generation) (*models.PaymentToken, error)
	FindByID(ctx context.Context, id int64) (*models.Generation, error)
	FindByIDForUser(ctx context.Context, id, userID int64) (*models.Generation, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.Generation, error)
	MarkProcessing(ctx context.Context, id int64) (bool, error)
	MarkCompleted(ctx context.Context, id int64, generatedPath, watermarkedPath string) (bool, error)
	MarkFailed(ctx context.Context, id int64, message string) (bool, error)
	Delete(ctx context.Context, id int64) error
}
