package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/mckhtech/wedding-plannera-ai/internal/config"
	"github.com/mckhtech/wedding-plannera-ai/internal/models"
	"github.com/mckhtech/wedding-plannera-ai/internal/razorpay"
)

// PaymentGateway is the slice of the gateway the lifecycle needs. The real
// implementation is razorpay.Client; tests substitute a fake.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount int, currency, receipt string, notes map[string]string) (*razorpay.Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*razorpay.Payment, error)
	VerifySignature(orderID, paymentID, signature string) bool
	Refund(ctx context.Context, paymentID string, amount int, notes map[string]string) (*razorpay.Refund, error)
	KeyID() string
}

// PaymentService owns the token lifecycle: order creation, verification and
// refunds. All transitions go through the conditional store updates, so a
// token can never be completed, spent or refunded twice.
type PaymentService struct {
	cfg      config.Config
	log      *slog.Logger
	tokens   TokenStore
	gateway  PaymentGateway
	testMode bool
}

func NewPaymentService(cfg config.Config, log *slog.Logger, tokens TokenStore, gateway PaymentGateway) *PaymentService {
	return &PaymentService{
		cfg:      cfg,
		log:      log,
		tokens:   tokens,
		gateway:  gateway,
		testMode: cfg.PaymentTestMode,
	}
}

// OrderDetails is what the checkout client needs to collect the payment.
type OrderDetails struct {
	TokenID  int64
	OrderID  string
	Amount   int
	Currency string
	KeyID    string
	TestMode bool
}

// CreateOrder mints a pending token for the template and registers a gateway
// order carrying enough metadata to trace the purchase back. Free templates
// have nothing to sell and are rejected.
//
// Under PAYMENT_TEST_MODE the gateway is skipped and the token completes
// immediately with a synthetic payment id.
func (s *PaymentService) CreateOrder(ctx context.Context, user *models.User, template *models.Template) (*OrderDetails, error) {
	if err := templateUsable(template); err != nil {
		return nil, err
	}
	if template.IsFree || template.PriceMinorUnits <= 0 {
		return nil, ErrInvalidTemplate
	}

	currency := template.Currency
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}

	token := &models.PaymentToken{
		UserID:        user.ID,
		TemplateID:    template.ID,
		PaymentStatus: models.PaymentPending,
		Status:        models.TokenUnused,
		AmountPaid:    template.PriceMinorUnits,
		Currency:      currency,
		CreatedAt:     time.Now().UTC(),
	}
	if _, err := s.tokens.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("create payment token: %w", err)
	}

	if s.testMode {
		paymentID := "TEST_PAY_" + randomHex(8)
		if _, err := s.tokens.MarkCompleted(ctx, token.ID, paymentID); err != nil {
			return nil, fmt.Errorf("complete test payment: %w", err)
		}
		s.log.Info("test mode payment auto-completed", "token_id", token.ID, "payment_id", paymentID)
		return &OrderDetails{
			TokenID:  token.ID,
			Amount:   token.AmountPaid,
			Currency: currency,
			TestMode: true,
		}, nil
	}

	notes := map[string]string{
		"user_id":     strconv.FormatInt(user.ID, 10),
		"template_id": strconv.FormatInt(template.ID, 10),
		"token_id":    strconv.FormatInt(token.ID, 10),
		"user_email":  user.Email,
	}
	receipt := fmt.Sprintf("token_%d", token.ID)

	order, err := s.gateway.CreateOrder(ctx, token.AmountPaid, currency, receipt, notes)
	if err != nil {
		if ferr := s.tokens.MarkPaymentFailed(ctx, token.ID); ferr != nil {
			s.log.Error("mark token failed after order error", "token_id", token.ID, "err", ferr)
		}
		return nil, fmt.Errorf("gateway order: %w", err)
	}
	if err := s.tokens.SetOrder(ctx, token.ID, order.ID); err != nil {
		return nil, fmt.Errorf("store order id: %w", err)
	}

	return &OrderDetails{
		TokenID:  token.ID,
		OrderID:  order.ID,
		Amount:   token.AmountPaid,
		Currency: currency,
		KeyID:    s.gateway.KeyID(),
	}, nil
}

// VerifyPayment confirms that the gateway really holds the money before the
// token's payment axis moves to completed. Re-verifying a completed token is
// a no-op success. The signature over (order_id, payment_id) must check out
// first; a mismatch marks the token failed. Even with a good signature the
// token only completes if the gateway reports the funds captured or
// authorized.
func (s *PaymentService) VerifyPayment(ctx context.Context, userID, tokenID int64, paymentID, orderID, signature string) (*models.PaymentToken, error) {
	token, err := s.tokens.FindByIDForUser(ctx, tokenID, userID)
	if err != nil {
		return nil, fmt.Errorf("find token: %w", err)
	}
	if token == nil {
		return nil, ErrTokenNotFound
	}
	if token.PaymentStatus == models.PaymentCompleted {
		return token, nil
	}

	if s.testMode {
		pid := paymentID
		if pid == "" {
			pid = "TEST_PAY_" + randomHex(8)
		}
		if _, err := s.tokens.MarkCompleted(ctx, token.ID, pid); err != nil {
			return nil, fmt.Errorf("complete test payment: %w", err)
		}
		return s.tokens.FindByID(ctx, token.ID)
	}

	ord := orderID
	if ord == "" {
		ord = token.OrderID
	}
	if !s.gateway.VerifySignature(ord, paymentID, signature) {
		if ferr := s.tokens.MarkPaymentFailed(ctx, token.ID); ferr != nil {
			s.log.Error("mark token failed after bad signature", "token_id", token.ID, "err", ferr)
		}
		s.log.Warn("payment signature mismatch", "token_id", token.ID, "order_id", ord)
		return nil, fmt.Errorf("%w: signature mismatch", ErrVerificationFailed)
	}

	payment, err := s.gateway.FetchPayment(ctx, paymentID)
	if err != nil {
		if ferr := s.tokens.MarkPaymentFailed(ctx, token.ID); ferr != nil {
			s.log.Error("mark token failed after fetch error", "token_id", token.ID, "err", ferr)
		}
		return nil, fmt.Errorf("fetch payment: %w", err)
	}
	if payment.Status != "captured" && payment.Status != "authorized" {
		// Not failed: the payment may still capture, so leave it pending.
		return nil, fmt.Errorf("%w: payment status %q", ErrVerificationFailed, payment.Status)
	}

	if _, err := s.tokens.MarkCompleted(ctx, token.ID, paymentID); err != nil {
		return nil, fmt.Errorf("mark token completed: %w", err)
	}
	return s.tokens.FindByID(ctx, token.ID)
}

// Refund returns the full amount behind a completed token and closes both of
// its axes. Unconfirmed money cannot be refunded and refunds never repeat.
// A gateway failure surfaces as an error for the caller to log; nothing is
// rolled back because nothing was changed yet.
func (s *PaymentService) Refund(ctx context.Context, tokenID int64, reason string) (*models.PaymentToken, error) {
	token, err := s.tokens.FindByID(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("find token: %w", err)
	}
	if token == nil {
		return nil, ErrTokenNotFound
	}
	if token.PaymentStatus != models.PaymentCompleted {
		return nil, ErrInvalidState
	}

	var refundID string
	if s.testMode || isTestPayment(token.PaymentID) {
		refundID = "TEST_REFUND_" + randomHex(8)
	} else {
		notes := map[string]string{
			"token_id": strconv.FormatInt(token.ID, 10),
			"reason":   reason,
		}
		refund, err := s.gateway.Refund(ctx, token.PaymentID, token.AmountPaid, notes)
		if err != nil {
			return nil, fmt.Errorf("gateway refund: %w", err)
		}
		refundID = refund.ID
	}

	ok, err := s.tokens.MarkRefunded(ctx, token.ID, refundID, reason)
	if err != nil {
		return nil, fmt.Errorf("mark token refunded: %w", err)
	}
	if !ok {
		return nil, ErrInvalidState
	}
	s.log.Info("payment refunded", "token_id", token.ID, "refund_id", refundID)
	return s.tokens.FindByID(ctx, token.ID)
}

// ListTokens returns the user's purchase history, newest first.
func (s *PaymentService) ListTokens(ctx context.Context, userID int64) ([]*models.PaymentToken, error) {
	return s.tokens.ListByUser(ctx, userID)
}

func isTestPayment(paymentID string) bool {
	return len(paymentID) > 9 && paymentID[:9] == "TEST_PAY_"
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().UTC().Format("150405.000")))
	}
	return hex.EncodeToString(b)
}
