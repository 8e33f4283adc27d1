package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/points-rewards-api/internal/models"
	"github.com/noah-isme/points-rewards-api/pkg/database"
)

const pointsRequestColumns = `id, employee_id, category_id, COALESCE(points, 0) AS points, utilization_value,
       COALESCE(quantity, 1) AS quantity, status, COALESCE(submission_notes, '') AS submission_notes, response_notes,
       request_date, COALESCE(event_date, request_date) AS event_date, COALESCE(assigned_validator_id, '') AS assigned_validator_id,
       created_by_hr_id, created_by_ld_id, created_by_pmo_id, created_by_ta_id, created_by_pm_id, created_by, submitted_by,
       category_department, processed_by, processed_department, response_date`

const insertAwardQuery = `INSERT INTO points
	(id, user_id, category_id, points, award_date, awarded_by, notes, request_id, department, utilization_value, created_at)
	VALUES (:id, :user_id, :category_id, :points, :award_date, :awarded_by, :notes, :request_id, :department, :utilization_value, :created_at)`

// PointsRequestRepository persists the points request workflow.
type PointsRequestRepository struct {
	db *sqlx.DB
}

// NewPointsRequestRepository constructs the repository.
func NewPointsRequestRepository(db *sqlx.DB) *PointsRequestRepository {
	return &PointsRequestRepository{db: db}
}

// Create inserts a new pending request.
func (r *PointsRequestRepository) Create(ctx context.Context, req *models.PointsRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.RequestStatusPending
	}
	if req.RequestDate.IsZero() {
		req.RequestDate = time.Now().UTC()
	}
	if req.EventDate.IsZero() {
		req.EventDate = req.RequestDate
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}
	const query = `INSERT INTO points_request
	(id, employee_id, category_id, points, utilization_value, quantity, status, submission_notes, request_date, event_date,
	 assigned_validator_id, created_by_hr_id, created_by_ld_id, created_by_pmo_id, created_by_ta_id, created_by_pm_id,
	 submitted_by, category_department)
	VALUES (:id, :employee_id, :category_id, :points, :utilization_value, :quantity, :status, :submission_notes, :request_date, :event_date,
	 :assigned_validator_id, :created_by_hr_id, :created_by_ld_id, :created_by_pmo_id, :created_by_ta_id, :created_by_pm_id,
	 :submitted_by, :category_department)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create points request: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *PointsRequestRepository) GetByID(ctx context.Context, id string) (*models.PointsRequest, error) {
	query := `SELECT ` + pointsRequestColumns + ` FROM points_request WHERE id = $1`
	var req models.PointsRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns requests matching the filter, newest event first.
func (r *PointsRequestRepository) List(ctx context.Context, filter models.PointsRequestFilter) ([]models.PointsRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(`SELECT ` + pointsRequestColumns + ` FROM points_request`)

	conditions := make([]string, 0, 5)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.AssignedValidatorID != "" {
		args = append(args, filter.AssignedValidatorID)
		conditions = append(conditions, fmt.Sprintf("assigned_validator_id = $%d", len(args)))
	}
	if filter.CategoryDepartment != "" {
		args = append(args, filter.CategoryDepartment)
		conditions = append(conditions, fmt.Sprintf("category_department = $%d", len(args)))
	}
	if filter.CreatedByID != "" {
		if !knownSubmitterField(filter.CreatedByField) {
			return nil, fmt.Errorf("list points requests: unknown submitter field %q", filter.CreatedByField)
		}
		args = append(args, filter.CreatedByID)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", filter.CreatedByField, len(args)))
	}
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		conditions = append(conditions, fmt.Sprintf("employee_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY COALESCE(event_date, request_date) DESC, id DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var requests []models.PointsRequest
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list points requests: %w", err)
	}
	return requests, nil
}

// ListProcessedByDepartment returns resolved requests tagged with dept and scoped to the user.
// Validators match on assignment or processing; updaters on the department's created_by column.
func (r *PointsRequestRepository) ListProcessedByDepartment(ctx context.Context, dept models.Department, kind models.RoleKind, userID string) ([]models.PointsRequest, error) {
	var scope string
	if kind == models.RoleKindUpdater {
		field := dept.CreatedByField()
		if !knownSubmitterField(field) {
			return nil, fmt.Errorf("list processed requests: unknown department %q", dept)
		}
		scope = fmt.Sprintf("%s = $2", field)
	} else {
		scope = "(assigned_validator_id = $2 OR processed_by = $2)"
	}
	query := fmt.Sprintf(`SELECT %s FROM points_request
	WHERE processed_department = $1 AND %s AND status IN ('%s', '%s')`,
		pointsRequestColumns, scope, models.RequestStatusApproved, models.RequestStatusRejected)

	var requests []models.PointsRequest
	if err := r.db.SelectContext(ctx, &requests, query, dept, userID); err != nil {
		return nil, fmt.Errorf("list processed requests: %w", err)
	}
	return requests, nil
}

// ListLegacyProcessed returns resolved requests without a processed department, matched on every
// historical submitter or validator column. Callers filter by category department.
func (r *PointsRequestRepository) ListLegacyProcessed(ctx context.Context, kind models.RoleKind, userID string) ([]models.PointsRequest, error) {
	var scope string
	if kind == models.RoleKindUpdater {
		fields := append(append([]models.SubmitterField{}, models.DepartmentSubmitterFields...), models.FieldCreatedBy, models.FieldSubmittedBy)
		parts := make([]string, len(fields))
		for i, field := range fields {
			parts[i] = fmt.Sprintf("%s = $1", field)
		}
		scope = "(" + strings.Join(parts, " OR ") + ")"
	} else {
		scope = "(assigned_validator_id = $1 OR processed_by = $1)"
	}
	query := fmt.Sprintf(`SELECT %s FROM points_request
	WHERE processed_department IS NULL AND %s AND status IN ('%s', '%s')`,
		pointsRequestColumns, scope, models.RequestStatusApproved, models.RequestStatusRejected)

	var requests []models.PointsRequest
	if err := r.db.SelectContext(ctx, &requests, query, userID); err != nil {
		return nil, fmt.Errorf("list legacy processed requests: %w", err)
	}
	return requests, nil
}

// CountActiveInRange counts pending or approved requests of an employee for a category whose
// event date falls in [from, to).
func (r *PointsRequestRepository) CountActiveInRange(ctx context.Context, employeeID, categoryID string, from, to time.Time) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM points_request
	WHERE employee_id = $1 AND category_id = $2 AND status IN ('%s', '%s')
	  AND COALESCE(event_date, request_date) >= $3 AND COALESCE(event_date, request_date) < $4`,
		models.RequestStatusPending, models.RequestStatusApproved)
	var count int
	if err := r.db.GetContext(ctx, &count, query, employeeID, categoryID, from, to); err != nil {
		return 0, fmt.Errorf("count active requests: %w", err)
	}
	return count, nil
}

// ResolveParams carries the outcome of a validator decision.
type ResolveParams struct {
	ID                  string
	Status              models.RequestStatus
	ProcessedBy         string
	ProcessedDepartment models.Department
	ResponseNotes       string
	ResponseDate        time.Time
}

// Resolve moves a pending request to its terminal status. The update only matches pending rows,
// so a concurrent decision surfaces as sql.ErrNoRows. When award is non-nil it is inserted in the
// same transaction.
func (r *PointsRequestRepository) Resolve(ctx context.Context, params ResolveParams, award *models.PointsAward) error {
	query := fmt.Sprintf(`UPDATE points_request SET status = :status, processed_by = :processed_by,
	processed_department = :processed_department, response_notes = :response_notes, response_date = :response_date
	WHERE id = :id AND status = '%s'`, models.RequestStatusPending)

	return database.RunInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.NamedExecContext(ctx, query, map[string]interface{}{
			"id":                   params.ID,
			"status":               params.Status,
			"processed_by":         params.ProcessedBy,
			"processed_department": params.ProcessedDepartment,
			"response_notes":       params.ResponseNotes,
			"response_date":        params.ResponseDate,
		})
		if err != nil {
			return fmt.Errorf("resolve points request: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("resolve points request rows: %w", err)
		}
		if rows == 0 {
			return sql.ErrNoRows
		}
		if award == nil {
			return nil
		}
		if award.ID == "" {
			award.ID = uuid.NewString()
		}
		if award.CreatedAt.IsZero() {
			award.CreatedAt = params.ResponseDate
		}
		if _, err := tx.NamedExecContext(ctx, insertAwardQuery, award); err != nil {
			return fmt.Errorf("insert points award: %w", err)
		}
		return nil
	})
}

// UpdateUtilization writes a utilization value (and optional notes) through to the request and
// its linked award. Only pending or approved requests are updatable.
func (r *PointsRequestRepository) UpdateUtilization(ctx context.Context, id string, value decimal.Decimal, notes *string) error {
	query := fmt.Sprintf(`UPDATE points_request SET utilization_value = $1, response_notes = COALESCE($2, response_notes)
	WHERE id = $3 AND status IN ('%s', '%s')`, models.RequestStatusPending, models.RequestStatusApproved)

	return database.RunInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, query, value, notes, id)
		if err != nil {
			return fmt.Errorf("update request utilization: %w", err)
		}
		if rows, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("update request utilization rows: %w", err)
		} else if rows == 0 {
			return sql.ErrNoRows
		}
		const awardQuery = `UPDATE points SET utilization_value = $1, notes = COALESCE($2, notes) WHERE request_id = $3`
		if _, err := tx.ExecContext(ctx, awardQuery, value, notes, id); err != nil {
			return fmt.Errorf("update award utilization: %w", err)
		}
		return nil
	})
}

// UpdateRecord corrects points or response notes. With mirror set, the linked award receives the
// same correction in the same transaction.
func (r *PointsRequestRepository) UpdateRecord(ctx context.Context, id string, points *int, notes *string, mirror bool) error {
	const query = `UPDATE points_request SET points = COALESCE($1, points), response_notes = COALESCE($2, response_notes) WHERE id = $3`
	return database.RunInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, query, points, notes, id)
		if err != nil {
			return fmt.Errorf("update points request: %w", err)
		}
		if rows, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("update points request rows: %w", err)
		} else if rows == 0 {
			return sql.ErrNoRows
		}
		if !mirror {
			return nil
		}
		const awardQuery = `UPDATE points SET points = COALESCE($1, points), notes = COALESCE($2, notes) WHERE request_id = $3`
		if _, err := tx.ExecContext(ctx, awardQuery, points, notes, id); err != nil {
			return fmt.Errorf("mirror award update: %w", err)
		}
		return nil
	})
}

// Delete removes a request together with any award created from it.
func (r *PointsRequestRepository) Delete(ctx context.Context, id string) error {
	return database.RunInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM points WHERE request_id = $1`, id); err != nil {
			return fmt.Errorf("delete linked award: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM points_request WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete points request: %w", err)
		}
		if rows, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("delete points request rows: %w", err)
		} else if rows == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}

func knownSubmitterField(field models.SubmitterField) bool {
	switch field {
	case models.FieldCreatedByHR, models.FieldCreatedByLD, models.FieldCreatedByPMO, models.FieldCreatedByTA,
		models.FieldCreatedByPM, models.FieldCreatedBy, models.FieldSubmittedBy:
		return true
	}
	return false
}
