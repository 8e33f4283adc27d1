package service

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/points-rewards-api/internal/dto"
	"github.com/noah-isme/points-rewards-api/internal/models"
	appErrors "github.com/noah-isme/points-rewards-api/pkg/errors"
)

const (
	importDateLayout = "02-01-2006"
	maxImportRows    = 1000
)

var requiredImportColumns = []string{
	"employee_id", "validator_employee_id", "event_date", "category_code", "department", "notes",
}

type importUserLookup interface {
	FindByEmployeeID(ctx context.Context, employeeID string) (*models.User, error)
}

type importCategoryLookup interface {
	FindByCode(ctx context.Context, code string, dept models.Department) (*models.Category, error)
}

type pointsSubmitter interface {
	Submit(ctx context.Context, req dto.SubmitPointsRequest, actor models.Actor) (*models.PointsRequest, error)
}

// BulkImportService raises points requests from an uploaded sheet. Every row is validated before
// the first request is submitted.
type BulkImportService struct {
	users      importUserLookup
	categories importCategoryLookup
	submitter  pointsSubmitter
	logger     *zap.Logger
}

// NewBulkImportService constructs the importer.
func NewBulkImportService(users importUserLookup, categories importCategoryLookup, submitter pointsSubmitter, logger *zap.Logger) *BulkImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BulkImportService{users: users, categories: categories, submitter: submitter, logger: logger}
}

// ParseCSV reads the upload into rows. Header names are matched case-insensitively and the
// optional quantity and utilization columns may be omitted.
func ParseCSV(r io.Reader) ([]dto.BulkImportRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, appErrors.Field("file", "file is empty")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable csv file")
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		index[name] = i
	}
	for _, column := range requiredImportColumns {
		if _, ok := index[column]; !ok {
			return nil, appErrors.Field("file", "missing column "+column)
		}
	}

	cell := func(record []string, column string) string {
		i, ok := index[column]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	rows := make([]dto.BulkImportRow, 0)
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, appErrors.Field("file", fmt.Sprintf("line %d: %v", line, err))
		}
		if blankRecord(record) {
			continue
		}
		rows = append(rows, dto.BulkImportRow{
			Line:                line,
			EmployeeID:          cell(record, "employee_id"),
			ValidatorEmployeeID: cell(record, "validator_employee_id"),
			EventDate:           cell(record, "event_date"),
			CategoryCode:        cell(record, "category_code"),
			Department:          cell(record, "department"),
			Notes:               cell(record, "notes"),
			Quantity:            cell(record, "quantity"),
			Utilization:         cell(record, "utilization"),
		})
		if len(rows) > maxImportRows {
			return nil, appErrors.Field("file", fmt.Sprintf("at most %d rows can be imported at once", maxImportRows))
		}
	}
	if len(rows) == 0 {
		return nil, appErrors.Field("file", "file has no data rows")
	}
	return rows, nil
}

func blankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Import validates every row and, only when all rows pass, submits them in order. Failures during
// submission are reported per row and do not undo rows already submitted.
func (s *BulkImportService) Import(ctx context.Context, rows []dto.BulkImportRow, actor models.Actor) (*dto.BulkImportResult, error) {
	if actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if len(rows) == 0 {
		return nil, appErrors.Field("rows", "no rows to import")
	}

	result := &dto.BulkImportResult{}
	prepared := make([]dto.SubmitPointsRequest, 0, len(rows))
	for i := range rows {
		req, rowErr := s.prepare(ctx, &rows[i], actor)
		if rowErr != nil {
			result.Errors = append(result.Errors, *rowErr)
			continue
		}
		prepared = append(prepared, req)
	}
	if len(result.Errors) > 0 {
		result.FailedCount = len(result.Errors)
		s.logger.Info("bulk import rejected", zap.String("actor_id", actor.UserID), zap.Int("rows", len(rows)), zap.Int("errors", result.FailedCount))
		return result, nil
	}

	for i, req := range prepared {
		created, err := s.submitter.Submit(ctx, req, actor)
		if err != nil {
			appErr := appErrors.FromError(err)
			result.Errors = append(result.Errors, dto.BulkImportRowError{Line: rows[i].Line, Field: appErr.Field, Message: appErr.Message})
			result.FailedCount++
			continue
		}
		result.SubmittedCount++
		result.RequestIDs = append(result.RequestIDs, created.ID)
	}
	s.logger.Info("bulk import completed",
		zap.String("actor_id", actor.UserID),
		zap.Int("submitted", result.SubmittedCount),
		zap.Int("failed", result.FailedCount),
	)
	return result, nil
}

func (s *BulkImportService) prepare(ctx context.Context, row *dto.BulkImportRow, actor models.Actor) (dto.SubmitPointsRequest, *dto.BulkImportRowError) {
	fail := func(field, message string) (dto.SubmitPointsRequest, *dto.BulkImportRowError) {
		return dto.SubmitPointsRequest{}, &dto.BulkImportRowError{Line: row.Line, Field: field, Message: message}
	}

	dept, ok := models.ParseDepartment(row.Department)
	if !ok {
		return fail("department", fmt.Sprintf("unknown department %q", row.Department))
	}
	if strings.TrimSpace(row.Notes) == "" {
		return fail("notes", "notes are required")
	}
	eventDate, err := time.Parse(importDateLayout, strings.TrimSpace(row.EventDate))
	if err != nil {
		return fail("event_date", "event_date must use DD-MM-YYYY")
	}
	quantity := 1
	if row.Quantity != "" {
		quantity, err = strconv.Atoi(row.Quantity)
		if err != nil || quantity < 1 {
			return fail("quantity", "quantity must be a positive whole number")
		}
	}

	employee, err := s.users.FindByEmployeeID(ctx, row.EmployeeID)
	if err != nil {
		return fail("employee_id", lookupMessage(err, "employee "+row.EmployeeID+" not found"))
	}
	validatorUser, err := s.users.FindByEmployeeID(ctx, row.ValidatorEmployeeID)
	if err != nil {
		return fail("validator_employee_id", lookupMessage(err, "validator "+row.ValidatorEmployeeID+" not found"))
	}
	category, err := s.categories.FindByCode(ctx, row.CategoryCode, dept)
	if err != nil {
		return fail("category_code", lookupMessage(err, fmt.Sprintf("category %s not found in %s", row.CategoryCode, dept)))
	}
	if !category.Active() {
		return fail("category_code", fmt.Sprintf("category %s is not accepting requests", category.Name))
	}
	if validatorUser.ID == actor.UserID {
		return fail("validator_employee_id", "you cannot assign yourself as validator")
	}
	if _, err := Route(category, actor, employee, validatorUser); err != nil {
		appErr := appErrors.FromError(err)
		return fail(appErr.Field, appErr.Message)
	}
	if category.Utilization {
		if _, err := NormalizeUtilization(row.Utilization); err != nil {
			return fail("utilization", appErrors.FromError(err).Message)
		}
	}

	return dto.SubmitPointsRequest{
		EmployeeID:  employee.ID,
		CategoryID:  category.ID,
		ValidatorID: validatorUser.ID,
		Notes:       strings.TrimSpace(row.Notes),
		EventDate:   eventDate.Format(eventDateLayout),
		Quantity:    quantity,
		Utilization: row.Utilization,
	}, nil
}

func lookupMessage(err error, notFound string) string {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return "lookup failed"
}
