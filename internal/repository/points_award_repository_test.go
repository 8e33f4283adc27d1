package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/points-rewards-api/internal/models"
)

var awardRowColumns = []string{"id", "user_id", "category_id", "points", "award_date", "awarded_by", "notes", "request_id", "department", "utilization_value", "created_at"}

func TestPointsAwardRepositoryListForHistory(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPointsAwardRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(awardRowColumns).
		AddRow("aw-1", "emp-1", "cat-1", 10, now, "val-1", "legacy grant", nil, nil, nil, now).
		AddRow("aw-2", "emp-2", "cat-2", 0, now, "val-1", "", "req-7", "pmo", "0.75", now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE awarded_by = $1 AND (department = $2 OR department IS NULL)")).
		WithArgs("val-1", models.DepartmentPMO).
		WillReturnRows(rows)

	awards, err := repo.ListForHistory(context.Background(), models.HistoryAwardFilter{AwardedBy: "val-1", Department: models.DepartmentPMO})
	require.NoError(t, err)
	require.Len(t, awards, 2)
	require.Empty(t, awards[0].LinkedRequestID())
	require.Nil(t, awards[0].Department)
	require.Equal(t, "req-7", awards[1].LinkedRequestID())
	require.Equal(t, models.DepartmentPMO, *awards[1].Department)
	require.True(t, awards[1].UtilizationValue.Decimal.Equal(decimal.RequireFromString("0.75")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPointsAwardRepositoryCountUnlinkedInRange(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPointsAwardRepository(db)

	from := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	mock.ExpectQuery(regexp.QuoteMeta("request_id IS NULL AND award_date >= $3 AND award_date < $4")).
		WithArgs("emp-1", "cat-1", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	count, err := repo.CountUnlinkedInRange(context.Background(), "emp-1", "cat-1", from, to)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPointsAwardRepositoryUpdateUtilizationMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPointsAwardRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE points SET utilization_value = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateUtilization(context.Background(), "aw-x", decimal.RequireFromString("0.5"), nil)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
