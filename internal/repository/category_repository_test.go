package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/points-rewards-api/internal/models"
)

var categoryRowColumns = []string{"id", "code", "name", "department", "status", "type", "is_utilization", "points_per_unit", "grade_policy", "created_at"}

func TestCategoryRepositoryFindByIDFallsBackToLegacy(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCategoryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM hr_categories WHERE id = $1")).
		WithArgs("cat-old").
		WillReturnRows(sqlmock.NewRows(categoryRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("FROM categories WHERE id = $1")).
		WithArgs("cat-old").
		WillReturnRows(sqlmock.NewRows(categoryRowColumns).
			AddRow("cat-old", "", "Spot Award", "hr ops", "inactive", "direct_award", false, "25", nil, time.Now()))

	category, err := repo.FindByID(context.Background(), "cat-old")
	require.NoError(t, err)
	require.True(t, category.Legacy)
	require.Equal(t, models.DepartmentHR, category.Department)
	require.False(t, category.Active())
	require.Equal(t, 25, *category.PointsPerUnit.Flat)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepositoryFindByIDMissingEverywhere(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCategoryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM hr_categories WHERE id = $1")).WillReturnRows(sqlmock.NewRows(categoryRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("FROM categories WHERE id = $1")).WillReturnRows(sqlmock.NewRows(categoryRowColumns))

	_, err := repo.FindByID(context.Background(), "nope")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCategoryRepositoryListFiltersDepartment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCategoryRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(categoryRowColumns).
		AddRow("c-1", "PMO-DEL", "Delivery Excellence", "PMO", "active", "direct_award", false, `{"L1":10,"L2":15}`, nil, now).
		AddRow("c-2", "PM-UTIL", "Billable Utilization", "PM", "active", "direct_award", true, "0", "base_fallback", now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM hr_categories WHERE LOWER(status) = $1 ORDER BY name")).
		WithArgs(models.CategoryStatusActive).
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.CategoryFilter{Department: models.DepartmentPM, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "c-2", list[0].ID)
	require.True(t, list[0].Utilization)
	require.NotNil(t, list[0].GradePolicy)
	require.Equal(t, models.GradePolicyBaseFallback, *list[0].GradePolicy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepositoryFindByIDsMixesTables(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCategoryRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM hr_categories WHERE id = ANY($1)")).
		WillReturnRows(sqlmock.NewRows(categoryRowColumns).
			AddRow("c-1", "", "Delivery", "PMO", "active", "direct_award", false, "10", nil, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM categories WHERE id = ANY($1)")).
		WillReturnRows(sqlmock.NewRows(categoryRowColumns).
			AddRow("c-9", "", "Old Award", "L&D", "active", "direct_award", false, "5", nil, now))

	found, err := repo.FindByIDs(context.Background(), []string{"c-1", "c-9", "c-404"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	require.True(t, found["c-9"].Legacy)
	require.Equal(t, models.DepartmentLD, found["c-9"].Department)
	require.NoError(t, mock.ExpectationsWereMet())
}
