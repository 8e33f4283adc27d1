package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/points-rewards-api/internal/models"
)

var requestRowColumns = []string{
	"id", "employee_id", "category_id", "points", "utilization_value", "quantity", "status", "submission_notes",
	"response_notes", "request_date", "event_date", "assigned_validator_id", "created_by_hr_id", "created_by_ld_id",
	"created_by_pmo_id", "created_by_ta_id", "created_by_pm_id", "created_by", "submitted_by", "category_department",
	"processed_by", "processed_department", "response_date",
}

func TestPointsRequestRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPointsRequestRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO points_request")).WillReturnResult(sqlmock.NewResult(1, 1))

	req := &models.PointsRequest{
		EmployeeID:          "emp-1",
		CategoryID:          "cat-1",
		Points:              15,
		SubmissionNotes:     "shipped release",
		AssignedValidatorID: "val-1",
		CategoryDepartment:  models.DepartmentPMO,
	}
	req.SetCreatedBy(models.DepartmentPMO, "upd-1")
	require.NoError(t, repo.Create(context.Background(), req))
	require.NotEmpty(t, req.ID)
	require.Equal(t, models.RequestStatusPending, req.Status)
	require.Equal(t, 1, req.Quantity)
	require.Equal(t, req.RequestDate, req.EventDate)

	now := time.Now()
	rows := sqlmock.NewRows(requestRowColumns).AddRow(
		req.ID, "emp-1", "cat-1", 15, nil, 1, "Pending", "shipped release",
		nil, now, now, "val-1", nil, nil,
		"upd-1", nil, nil, nil, nil, "PMO",
		nil, nil, nil,
	)
	mock.ExpectQuery(regexp.QuoteMeta("FROM points_request WHERE id = $1")).WithArgs(req.ID).WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), req.ID)
	require.NoError(t, err)
	require.Equal(t, models.DepartmentPMO, found.CategoryDepartment)
	dept, updater, ok := found.Updater()
	require.True(t, ok)
	require.Equal(t, models.DepartmentPMO, dept)
	require.Equal(t, "upd-1", updater)
	require.False(t, found.IsUtilization())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPointsRequestRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPointsRequestRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status IN ($1) AND assigned_validator_id = $2 AND category_department = $3")).
		WithArgs(models.RequestStatusPending, "val-1", models.DepartmentPMO).
		WillReturnRows(sqlmock.NewRows(requestRowColumns))

	list, err := repo.List(context.Background(), models.PointsRequestFilter{
		Status:              []models.RequestStatus{models.RequestStatusPending},
		AssignedValidatorID: "val-1",
		CategoryDepartment:  models.DepartmentPMO,
	})
	require.NoError(t, err)
	require.Empty(t, list)
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = repo.List(context.Background(), models.PointsRequestFilter{CreatedByField: "password_hash", CreatedByID: "x"})
	require.Error(t, err)
}

func TestPointsRequestRepositoryResolveApproveInsertsAward(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPointsRequestRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE points_request SET status = $1")).
		WithArgs("Approved", "val-1", "PMO", "great", now, "req-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO points\n")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	requestID := "req-1"
	dept := models.DepartmentPMO
	award := &models.PointsAward{
		UserID: "emp-1", CategoryID: "cat-1", Points: 15, AwardDate: now, AwardedBy: "val-1",
		Notes: "great", RequestID: &requestID, Department: &dept,
	}
	err := repo.Resolve(context.Background(), ResolveParams{
		ID:                  requestID,
		Status:              models.RequestStatusApproved,
		ProcessedBy:         "val-1",
		ProcessedDepartment: models.DepartmentPMO,
		ResponseNotes:       "great",
		ResponseDate:        now,
	}, award)
	require.NoError(t, err)
	require.NotEmpty(t, award.ID)
	require.Equal(t, now, award.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPointsRequestRepositoryResolveAlreadyProcessedRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPointsRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $6 AND status = 'Pending'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Resolve(context.Background(), ResolveParams{
		ID:           "req-1",
		Status:       models.RequestStatusApproved,
		ProcessedBy:  "val-1",
		ResponseDate: time.Now(),
	}, &models.PointsAward{UserID: "emp-1"})
	require.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPointsRequestRepositoryUpdateUtilizationWritesThrough(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPointsRequestRepository(db)

	value := decimal.RequireFromString("0.88")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE points_request SET utilization_value = $1")).
		WithArgs(value, nil, "req-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE points SET utilization_value = $1")).
		WithArgs(value, nil, "req-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.UpdateUtilization(context.Background(), "req-1", value, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPointsRequestRepositoryUpdateRecordWithoutMirror(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPointsRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE points_request SET points = COALESCE($1, points)")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	points := 20
	require.NoError(t, repo.UpdateRecord(context.Background(), "req-1", &points, nil, false))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPointsRequestRepositoryDeleteRemovesAward(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPointsRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM points WHERE request_id = $1")).WithArgs("req-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM points_request WHERE id = $1")).WithArgs("req-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "req-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPointsRequestRepositoryHistoryScopes(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPointsRequestRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE processed_department = $1 AND created_by_ta_id = $2")).
		WithArgs(models.DepartmentTA, "upd-1").
		WillReturnRows(sqlmock.NewRows(requestRowColumns))
	_, err := repo.ListProcessedByDepartment(context.Background(), models.DepartmentTA, models.RoleKindUpdater, "upd-1")
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE processed_department IS NULL AND (created_by_hr_id = $1")).
		WithArgs("upd-1").
		WillReturnRows(sqlmock.NewRows(requestRowColumns))
	_, err = repo.ListLegacyProcessed(context.Background(), models.RoleKindUpdater, "upd-1")
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("(assigned_validator_id = $1 OR processed_by = $1)")).
		WithArgs("val-1").
		WillReturnRows(sqlmock.NewRows(requestRowColumns))
	_, err = repo.ListLegacyProcessed(context.Background(), models.RoleKindValidator, "val-1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
