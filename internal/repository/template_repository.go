package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mckhtech/wedding-plannera-ai/internal/models"
)

const templateColumns = `id, name, COALESCE(description, ''), prompt, COALESCE(preview_image, ''), is_free, price_minor_units, currency, is_active, is_archived, archived_at, display_order, usage_count, created_at, updated_at`

type TemplateRepository struct {
	db *sql.DB
}

func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func scanTemplate(scan func(dest ...any) error) (*models.Template, error) {
	var t models.Template
	var archivedAt sql.NullTime
	err := scan(&t.ID, &t.Name, &t.Description, &t.Prompt, &t.PreviewImage, &t.IsFree, &t.PriceMinorUnits,
		&t.Currency, &t.IsActive, &t.IsArchived, &archivedAt, &t.DisplayOrder, &t.UsageCount, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if archivedAt.Valid {
		t.ArchivedAt = &archivedAt.Time
	}
	return &t, nil
}

func (r *TemplateRepository) GetByID(ctx context.Context, id int64) (*models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE id = ?`
	t, err := scanTemplate(r.db.QueryRowContext(ctx, query, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan template: %w", err)
	}
	return t, nil
}

func (r *TemplateRepository) ListActive(ctx context.Context) ([]*models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE is_active = 1 AND is_archived = 0 ORDER BY display_order, id`
	return r.list(ctx, query)
}

func (r *TemplateRepository) ListAll(ctx context.Context) ([]*models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates ORDER BY display_order, id`
	return r.list(ctx, query)
}

func (r *TemplateRepository) list(ctx context.Context, query string) ([]*models.Template, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []*models.Template
	for rows.Next() {
		t, err := scanTemplate(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan template row: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (r *TemplateRepository) Create(ctx context.Context, t *models.Template) (*models.Template, error) {
	const query = `
INSERT INTO templates (name, description, prompt, preview_image, is_free, price_minor_units, currency, is_active, display_order)
VALUES (?, NULLIF(?, ''), ?, NULLIF(?, ''), ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, t.Name, t.Description, t.Prompt, t.PreviewImage, t.IsFree,
		t.PriceMinorUnits, t.Currency, t.IsActive, t.DisplayOrder)
	if err != nil {
		return nil, fmt.Errorf("insert template: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	t.ID = id
	return t, nil
}

func (r *TemplateRepository) Update(ctx context.Context, t *models.Template) error {
	const query = `
UPDATE templates SET name = ?, description = NULLIF(?, ''), prompt = ?, preview_image = NULLIF(?, ''),
    is_free = ?, price_minor_units = ?, currency = ?, is_active = ?, display_order = ?, updated_at = NOW()
WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, t.Name, t.Description, t.Prompt, t.PreviewImage, t.IsFree,
		t.PriceMinorUnits, t.Currency, t.IsActive, t.DisplayOrder, t.ID); err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	return nil
}

func (r *TemplateRepository) Archive(ctx context.Context, id int64) (bool, error) {
	const query = `UPDATE templates SET is_archived = 1, is_active = 0, archived_at = NOW(), updated_at = NOW() WHERE id = ? AND is_archived = 0`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("archive template: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("archive rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *TemplateRepository) IncrementUsage(ctx context.Context, id int64) error {
	const query = `UPDATE templates SET usage_count = usage_count + 1 WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("increment template usage: %w", err)
	}
	return nil
}
