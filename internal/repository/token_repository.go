package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mckhtech/wedding-plannera-ai/internal/models"
)

const tokenColumns = `id, user_id, template_id, COALESCE(order_id, ''), COALESCE(payment_id, ''), payment_status, status, amount_paid, currency, used_at, COALESCE(refund_id, ''), COALESCE(refund_reason, ''), refunded_at, expires_at, created_at`

// consumableWhere selects tokens that can back a new generation: payment
// confirmed, use unspent, and not already held by an in-flight generation.
const consumableWhere = `t.user_id = ? AND t.template_id = ? AND t.status = 'unused' AND t.payment_status = 'completed'
  AND NOT EXISTS (SELECT 1 FROM generations g WHERE g.payment_token_id = t.id AND g.status IN ('pending', 'processing'))`

type TokenRepository struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func scanToken(scan func(dest ...any) error) (*models.PaymentToken, error) {
	var t models.PaymentToken
	var usedAt, refundedAt, expiresAt sql.NullTime
	err := scan(&t.ID, &t.UserID, &t.TemplateID, &t.OrderID, &t.PaymentID, &t.PaymentStatus, &t.Status,
		&t.AmountPaid, &t.Currency, &usedAt, &t.RefundID, &t.RefundReason, &refundedAt, &expiresAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if usedAt.Valid {
		t.UsedAt = &usedAt.Time
	}
	if refundedAt.Valid {
		t.RefundedAt = &refundedAt.Time
	}
	if expiresAt.Valid {
		t.ExpiresAt = &expiresAt.Time
	}
	return &t, nil
}

func (r *TokenRepository) find(ctx context.Context, query string, args ...any) (*models.PaymentToken, error) {
	t, err := scanToken(r.db.QueryRowContext(ctx, query, args...).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payment token: %w", err)
	}
	return t, nil
}

func (r *TokenRepository) FindByID(ctx context.Context, id int64) (*models.PaymentToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM payment_tokens WHERE id = ?`
	return r.find(ctx, query, id)
}

func (r *TokenRepository) FindByIDForUser(ctx context.Context, id, userID int64) (*models.PaymentToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM payment_tokens WHERE id = ? AND user_id = ?`
	return r.find(ctx, query, id, userID)
}

func (r *TokenRepository) Create(ctx context.Context, token *models.PaymentToken) (*models.PaymentToken, error) {
	const query = `
INSERT INTO payment_tokens (user_id, template_id, order_id, payment_id, payment_status, status, amount_paid, currency, expires_at, created_at)
VALUES (?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, token.UserID, token.TemplateID, token.OrderID, token.PaymentID,
		token.PaymentStatus, token.Status, token.AmountPaid, token.Currency, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert payment token: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	token.ID = id
	return token, nil
}

func (r *TokenRepository) SetOrder(ctx context.Context, tokenID int64, orderID string) error {
	const query = `UPDATE payment_tokens SET order_id = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, orderID, tokenID); err != nil {
		return fmt.Errorf("set order id: %w", err)
	}
	return nil
}

// MarkCompleted confirms the purchase. A token that failed verification may
// still complete on a later retry, so 'failed' is allowed as a source state.
func (r *TokenRepository) MarkCompleted(ctx context.Context, tokenID int64, paymentID string) (bool, error) {
	const query = `
UPDATE payment_tokens SET payment_status = 'completed', payment_id = ?
WHERE id = ? AND payment_status IN ('pending', 'failed')`
	res, err := r.db.ExecContext(ctx, query, paymentID, tokenID)
	if err != nil {
		return false, fmt.Errorf("mark token completed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("completed rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *TokenRepository) MarkPaymentFailed(ctx context.Context, tokenID int64) error {
	const query = `UPDATE payment_tokens SET payment_status = 'failed' WHERE id = ? AND payment_status = 'pending'`
	if _, err := r.db.ExecContext(ctx, query, tokenID); err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}
	return nil
}

// MarkUsed spends the token's single use. The guard keeps a token from ever
// being spent twice or spent before its payment completed.
func (r *TokenRepository) MarkUsed(ctx context.Context, tokenID int64) (bool, error) {
	const query = `
UPDATE payment_tokens SET status = 'used', used_at = NOW()
WHERE id = ? AND status = 'unused' AND payment_status = 'completed'`
	res, err := r.db.ExecContext(ctx, query, tokenID)
	if err != nil {
		return false, fmt.Errorf("mark token used: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("used rows affected: %w", err)
	}
	return affected > 0, nil
}

// MarkRefunded closes both axes. Only confirmed money can be refunded.
func (r *TokenRepository) MarkRefunded(ctx context.Context, tokenID int64, refundID, reason string) (bool, error) {
	const query = `
UPDATE payment_tokens SET status = 'refunded', payment_status = 'refunded', refund_id = ?, refund_reason = NULLIF(?, ''), refunded_at = NOW()
WHERE id = ? AND payment_status = 'completed'`
	res, err := r.db.ExecContext(ctx, query, refundID, reason, tokenID)
	if err != nil {
		return false, fmt.Errorf("mark token refunded: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("refunded rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *TokenRepository) ListByUser(ctx context.Context, userID int64) ([]*models.PaymentToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM payment_tokens WHERE user_id = ? ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list payment tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*models.PaymentToken
	for rows.Next() {
		t, err := scanToken(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan payment token row: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (r *TokenRepository) CountConsumable(ctx context.Context, userID, templateID int64) (int, error) {
	query := `SELECT COUNT(*) FROM payment_tokens t WHERE ` + consumableWhere
	row := r.db.QueryRowContext(ctx, query, userID, templateID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count consumable tokens: %w", err)
	}
	return count, nil
}
