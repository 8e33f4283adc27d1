package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/points-rewards-api/internal/models"
)

const categoryColumns = `id, COALESCE(code, '') AS code, name, department, status, type, is_utilization,
       points_per_unit, grade_policy, created_at`

// Legacy categories predate status/type/grade policy columns.
const legacyCategoryColumns = `id, COALESCE(code, '') AS code, name, department, COALESCE(status, 'active') AS status,
       'direct_award' AS type, COALESCE(is_utilization, FALSE) AS is_utilization, points_per_unit,
       NULL AS grade_policy, created_at`

// CategoryRepository reads reward categories from hr_categories, falling back to the legacy
// categories table so archived records stay resolvable.
type CategoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository constructs the repository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// FindByID resolves a category regardless of its status.
func (r *CategoryRepository) FindByID(ctx context.Context, id string) (*models.Category, error) {
	var category models.Category
	err := r.db.GetContext(ctx, &category, `SELECT `+categoryColumns+` FROM hr_categories WHERE id = $1`, id)
	if err == nil {
		return &category, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find category: %w", err)
	}
	err = r.db.GetContext(ctx, &category, `SELECT `+legacyCategoryColumns+` FROM categories WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find legacy category: %w", err)
	}
	category.Legacy = true
	return &category, nil
}

// FindByCode resolves an active or inactive category by its upload code within a department.
func (r *CategoryRepository) FindByCode(ctx context.Context, code string, dept models.Department) (*models.Category, error) {
	var candidates []models.Category
	query := `SELECT ` + categoryColumns + ` FROM hr_categories WHERE LOWER(code) = LOWER($1)`
	if err := r.db.SelectContext(ctx, &candidates, query, strings.TrimSpace(code)); err != nil {
		return nil, fmt.Errorf("find category by code: %w", err)
	}
	for i := range candidates {
		if dept == "" || candidates[i].Department == dept {
			return &candidates[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

// FindByIDs resolves many categories from both tables keyed by id.
func (r *CategoryRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*models.Category, error) {
	result := make(map[string]*models.Category, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var current []models.Category
	if err := r.db.SelectContext(ctx, &current, `SELECT `+categoryColumns+` FROM hr_categories WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find categories by ids: %w", err)
	}
	for i := range current {
		result[current[i].ID] = &current[i]
	}
	missing := make([]string, 0)
	for _, id := range ids {
		if _, ok := result[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return result, nil
	}
	var legacy []models.Category
	if err := r.db.SelectContext(ctx, &legacy, `SELECT `+legacyCategoryColumns+` FROM categories WHERE id = ANY($1)`, pq.Array(missing)); err != nil {
		return nil, fmt.Errorf("find legacy categories by ids: %w", err)
	}
	for i := range legacy {
		legacy[i].Legacy = true
		result[legacy[i].ID] = &legacy[i]
	}
	return result, nil
}

// List returns categories from hr_categories matching the filter, ordered by name.
// Department matching happens after load because stored labels vary ("HR", "hr ops").
func (r *CategoryRepository) List(ctx context.Context, filter models.CategoryFilter) ([]models.Category, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 2)
	builder.WriteString(`SELECT ` + categoryColumns + ` FROM hr_categories`)
	conditions := make([]string, 0, 2)
	if filter.ActiveOnly {
		args = append(args, models.CategoryStatusActive)
		conditions = append(conditions, fmt.Sprintf("LOWER(status) = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY name")

	var categories []models.Category
	if err := r.db.SelectContext(ctx, &categories, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if filter.Department == "" {
		return categories, nil
	}
	filtered := categories[:0]
	for _, category := range categories {
		if category.Department == filter.Department {
			filtered = append(filtered, category)
		}
	}
	return filtered, nil
}
