package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/points-rewards-api/internal/models"
)

const userColumns = `id, COALESCE(name, '') AS name, COALESCE(employee_id, '') AS employee_id, COALESCE(grade, '') AS grade,
       COALESCE(department, '') AS department, COALESCE(email, '') AS email, COALESCE(dashboard_access, '{}') AS dashboard_access,
       dp_id, COALESCE(password_hash, '') AS password_hash, created_at`

// UserRepository provides database access for employees and department staff.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1`
	return r.getOne(ctx, "find user by email", query, email)
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	return r.getOne(ctx, "find user by id", query, id)
}

// FindByEmployeeID returns a user by the HR employee identifier used in bulk uploads.
func (r *UserRepository) FindByEmployeeID(ctx context.Context, employeeID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE employee_id = $1 LIMIT 1`
	return r.getOne(ctx, "find user by employee id", query, employeeID)
}

// FindByIDs resolves many users at once keyed by id. Unknown ids are absent from the map.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	result := make(map[string]*models.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1)`
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find users by ids: %w", err)
	}
	for i := range users {
		result[users[i].ID] = &users[i]
	}
	return result, nil
}

// ListByAccess returns users holding a dashboard access tag, e.g. every pmo_validator.
func (r *UserRepository) ListByAccess(ctx context.Context, tag string) ([]models.UserSummary, error) {
	const query = `SELECT id, COALESCE(name, '') AS name, COALESCE(employee_id, '') AS employee_id, COALESCE(email, '') AS email
	FROM users WHERE $1 = ANY(dashboard_access) ORDER BY name`
	var users []models.UserSummary
	if err := r.db.SelectContext(ctx, &users, query, tag); err != nil {
		return nil, fmt.Errorf("list users by access: %w", err)
	}
	return users, nil
}

func (r *UserRepository) getOne(ctx context.Context, op, query string, arg interface{}) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, arg); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &user, nil
}
