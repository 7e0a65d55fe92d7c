package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mckhtech/wedding-plannera-ai/internal/models"
)

const generationColumns = `id, user_id, template_id, payment_token_id, mode, COALESCE(input_refs, ''), COALESCE(generated_path, ''), COALESCE(watermarked_path, ''), has_watermark, status, COALESCE(error_message, ''), used_free_credit, used_paid_token, created_at, completed_at`

type GenerationRepository struct {
	db *sql.DB
}

func NewGenerationRepository(db *sql.DB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertGeneration(ctx context.Context, ex executor, gen *models.Generation) error {
	refs, err := json.Marshal(gen.Inputs)
	if err != nil {
		return fmt.Errorf("marshal input refs: %w", err)
	}
	const query = `
INSERT INTO generations (user_id, template_id, payment_token_id, mode, input_refs, has_watermark, status, used_free_credit, used_paid_token, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := ex.ExecContext(ctx, query, gen.UserID, gen.TemplateID, gen.PaymentTokenID, gen.Mode, string(refs),
		gen.HasWatermark, gen.Status, gen.UsedFreeCredit, gen.UsedPaidToken, gen.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	gen.ID = id
	return nil
}

// CreateWithFreeCredit deducts one free credit and records the generation in a
// single transaction. Returns false without a row when the user has no credits
// left; the affected-row check on the guarded decrement is what serializes
// concurrent requests racing for the last credit.
func (r *GenerationRepository) CreateWithFreeCredit(ctx context.Context, gen *models.Generation) (bool, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
UPDATE users SET free_credits_remaining = free_credits_remaining - 1, updated_at = NOW()
WHERE id = ? AND free_credits_remaining > 0`, gen.UserID)
	if err != nil {
		return false, fmt.Errorf("deduct free credit: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deduct rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if err := insertGeneration(ctx, tx, gen); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit free reservation: %w", err)
	}
	return true, nil
}

// CreateWithPaidToken locks the oldest consumable token for the template and
// records a generation referencing it, in one transaction. The token row is
// not mutated here; the in-flight generation row is what keeps a second
// request from grabbing the same token. Returns (nil, nil) when no token
// qualifies.
func (r *GenerationRepository) CreateWithPaidToken(ctx context.Context, gen *models.Generation) (*models.PaymentToken, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `
SELECT t.id, t.user_id, t.template_id, COALESCE(t.order_id, ''), COALESCE(t.payment_id, ''), t.payment_status, t.status, t.amount_paid, t.currency, t.used_at, COALESCE(t.refund_id, ''), COALESCE(t.refund_reason, ''), t.refunded_at, t.expires_at, t.created_at
FROM payment_tokens t
WHERE ` + consumableWhere + `
ORDER BY t.created_at ASC, t.id ASC
LIMIT 1
FOR UPDATE`
	token, err := scanToken(tx.QueryRowContext(ctx, query, gen.UserID, gen.TemplateID).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock consumable token: %w", err)
	}

	tokenID := token.ID
	gen.PaymentTokenID = &tokenID
	if err := insertGeneration(ctx, tx, gen); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit paid reservation: %w", err)
	}
	return token, nil
}

func scanGeneration(scan func(dest ...any) error) (*models.Generation, error) {
	var g models.Generation
	var tokenID sql.NullInt64
	var refs string
	var completedAt sql.NullTime
	err := scan(&g.ID, &g.UserID, &g.TemplateID, &tokenID, &g.Mode, &refs, &g.GeneratedPath, &g.WatermarkedPath,
		&g.HasWatermark, &g.Status, &g.ErrorMessage, &g.UsedFreeCredit, &g.UsedPaidToken, &g.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if tokenID.Valid {
		g.PaymentTokenID = &tokenID.Int64
	}
	if completedAt.Valid {
		g.CompletedAt = &completedAt.Time
	}
	if refs != "" {
		if err := json.Unmarshal([]byte(refs), &g.Inputs); err != nil {
			return nil, fmt.Errorf("unmarshal input refs: %w", err)
		}
	}
	return &g, nil
}

func (r *GenerationRepository) find(ctx context.Context, query string, args ...any) (*models.Generation, error) {
	g, err := scanGeneration(r.db.QueryRowContext(ctx, query, args...).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan generation: %w", err)
	}
	return g, nil
}

func (r *GenerationRepository) FindByID(ctx context.Context, id int64) (*models.Generation, error) {
	query := `SELECT ` + generationColumns + ` FROM generations WHERE id = ?`
	return r.find(ctx, query, id)
}

func (r *GenerationRepository) FindByIDForUser(ctx context.Context, id, userID int64) (*models.Generation, error) {
	query := `SELECT ` + generationColumns + ` FROM generations WHERE id = ? AND user_id = ?`
	return r.find(ctx, query, id, userID)
}

func (r *GenerationRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Generation, error) {
	query := `SELECT ` + generationColumns + ` FROM generations WHERE user_id = ? ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	var generations []*models.Generation
	for rows.Next() {
		g, err := scanGeneration(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan generation row: %w", err)
		}
		generations = append(generations, g)
	}
	return generations, rows.Err()
}

// MarkProcessing claims the job. The pending guard means at most one worker
// ever processes a generation.
func (r *GenerationRepository) MarkProcessing(ctx context.Context, id int64) (bool, error) {
	const query = `UPDATE generations SET status = 'processing' WHERE id = ? AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("mark generation processing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("processing rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *GenerationRepository) MarkCompleted(ctx context.Context, id int64, generatedPath, watermarkedPath string) (bool, error) {
	const query = `
UPDATE generations SET status = 'completed', generated_path = ?, watermarked_path = NULLIF(?, ''), completed_at = NOW()
WHERE id = ? AND status = 'processing'`
	res, err := r.db.ExecContext(ctx, query, generatedPath, watermarkedPath, id)
	if err != nil {
		return false, fmt.Errorf("mark generation completed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("completed rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *GenerationRepository) MarkFailed(ctx context.Context, id int64, message string) (bool, error) {
	const query = `
UPDATE generations SET status = 'failed', error_message = ?
WHERE id = ? AND status = 'processing'`
	res, err := r.db.ExecContext(ctx, query, message, id)
	if err != nil {
		return false, fmt.Errorf("mark generation failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *GenerationRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM generations WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete generation: %w", err)
	}
	return nil
}
