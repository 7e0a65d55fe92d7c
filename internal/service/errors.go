package service

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientCredits = errors.New("no free credits remaining")
	ErrPaymentRequired     = errors.New("payment required")
	ErrInvalidTemplate     = errors.New("template does not require payment")
	ErrTemplateNotFound    = errors.New("template not found")
	ErrTemplateUnavailable = errors.New("template is not available")
	ErrTokenNotFound       = errors.New("payment token not found")
	ErrInvalidState        = errors.New("operation not allowed in the current state")
	ErrVerificationFailed  = errors.New("payment verification failed")
	ErrGenerationNotFound  = errors.New("generation not found")
	ErrInvalidBundle       = errors.New("invalid input bundle")

	ErrEmailTaken         = errors.New("email is already registered")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is deactivated")
	ErrFederatedAccount   = errors.New("account uses google sign-in")
	ErrUserNotFound       = errors.New("user not found")
)

// PaymentRequiredError tells the caller a purchase is needed and what it
// costs. It unwraps to ErrPaymentRequired so errors.Is keeps working.
type PaymentRequiredError struct {
	TemplateID int64
	Amount     int
	Currency   string
}

func (e *PaymentRequiredError) Error() string {
	return fmt.Sprintf("payment required: %d %s for template %d", e.Amount, e.Currency, e.TemplateID)
}

func (e *PaymentRequiredError) Unwrap() error { return ErrPaymentRequired }
