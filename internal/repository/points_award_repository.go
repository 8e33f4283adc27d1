package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/points-rewards-api/internal/models"
)

const pointsAwardColumns = `id, user_id, category_id, COALESCE(points, 0) AS points, award_date, COALESCE(awarded_by, '') AS awarded_by,
       COALESCE(notes, '') AS notes, request_id, department, utilization_value, created_at`

// PointsAwardRepository reads and corrects the permanent points ledger.
type PointsAwardRepository struct {
	db *sqlx.DB
}

// NewPointsAwardRepository constructs the repository.
func NewPointsAwardRepository(db *sqlx.DB) *PointsAwardRepository {
	return &PointsAwardRepository{db: db}
}

// GetByID fetches an award.
func (r *PointsAwardRepository) GetByID(ctx context.Context, id string) (*models.PointsAward, error) {
	query := `SELECT ` + pointsAwardColumns + ` FROM points WHERE id = $1`
	var award models.PointsAward
	if err := r.db.GetContext(ctx, &award, query, id); err != nil {
		return nil, err
	}
	return &award, nil
}

// FindByRequestID returns the award created from a request.
func (r *PointsAwardRepository) FindByRequestID(ctx context.Context, requestID string) (*models.PointsAward, error) {
	query := `SELECT ` + pointsAwardColumns + ` FROM points WHERE request_id = $1 LIMIT 1`
	var award models.PointsAward
	if err := r.db.GetContext(ctx, &award, query, requestID); err != nil {
		return nil, err
	}
	return &award, nil
}

// ListByUser returns the awards of an employee, newest first.
func (r *PointsAwardRepository) ListByUser(ctx context.Context, userID string) ([]models.PointsAward, error) {
	query := `SELECT ` + pointsAwardColumns + ` FROM points WHERE user_id = $1 ORDER BY award_date DESC, id DESC`
	var awards []models.PointsAward
	if err := r.db.SelectContext(ctx, &awards, query, userID); err != nil {
		return nil, fmt.Errorf("list awards by user: %w", err)
	}
	return awards, nil
}

// ListForHistory returns awards granted by a user and tagged with the department or untagged.
func (r *PointsAwardRepository) ListForHistory(ctx context.Context, filter models.HistoryAwardFilter) ([]models.PointsAward, error) {
	query := `SELECT ` + pointsAwardColumns + ` FROM points WHERE awarded_by = $1 AND (department = $2 OR department IS NULL)`
	var awards []models.PointsAward
	if err := r.db.SelectContext(ctx, &awards, query, filter.AwardedBy, filter.Department); err != nil {
		return nil, fmt.Errorf("list awards for history: %w", err)
	}
	return awards, nil
}

// CountUnlinkedInRange counts awards without a source request for an employee and category in
// [from, to). Linked awards are already represented by their request.
func (r *PointsAwardRepository) CountUnlinkedInRange(ctx context.Context, userID, categoryID string, from, to time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM points
	WHERE user_id = $1 AND category_id = $2 AND request_id IS NULL AND award_date >= $3 AND award_date < $4`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID, categoryID, from, to); err != nil {
		return 0, fmt.Errorf("count awards: %w", err)
	}
	return count, nil
}

// UpdateUtilization backfills utilization on an award.
func (r *PointsAwardRepository) UpdateUtilization(ctx context.Context, id string, value decimal.Decimal, notes *string) error {
	const query = `UPDATE points SET utilization_value = $1, notes = COALESCE($2, notes) WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, value, notes, id)
	if err != nil {
		return fmt.Errorf("update award utilization: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update award utilization rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
