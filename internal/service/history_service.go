package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/points-rewards-api/internal/models"
	appErrors "github.com/noah-isme/points-rewards-api/pkg/errors"
	"github.com/noah-isme/points-rewards-api/pkg/export"
)

const (
	HistoryFormatJSON = "json"
	HistoryFormatCSV  = "csv"
	HistoryFormatPDF  = "pdf"
)

type historyRequestSource interface {
	ListProcessedByDepartment(ctx context.Context, dept models.Department, kind models.RoleKind, userID string) ([]models.PointsRequest, error)
	ListLegacyProcessed(ctx context.Context, kind models.RoleKind, userID string) ([]models.PointsRequest, error)
}

type historyAwardSource interface {
	ListForHistory(ctx context.Context, filter models.HistoryAwardFilter) ([]models.PointsAward, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title, subtitle string) ([]byte, error)
}

// HistoryExport is a rendered history file.
type HistoryExport struct {
	Filename    string
	ContentType string
	Body        []byte
}

// HistoryService aggregates the processed history of a validator or updater across the
// department tagged requests, legacy requests and legacy awards.
type HistoryService struct {
	requests        historyRequestSource
	awards          historyAwardSource
	categories      categoryLookup
	users           userLookup
	cache           *CacheService
	csv             csvRenderer
	pdf             pdfRenderer
	requireEmployee bool
	logger          *zap.Logger
}

// NewHistoryService constructs the aggregator. requireEmployee drops rows whose employee no
// longer resolves instead of showing them as "Unknown".
func NewHistoryService(requests historyRequestSource, awards historyAwardSource, categories categoryLookup, users userLookup, cache *CacheService, requireEmployee bool, logger *zap.Logger) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryService{
		requests:        requests,
		awards:          awards,
		categories:      categories,
		users:           users,
		cache:           cache,
		csv:             export.NewCSVExporter(true),
		pdf:             export.NewPDFExporter(),
		requireEmployee: requireEmployee,
		logger:          logger,
	}
}

// HistoryFor returns the actor's processed history for a department role, optionally narrowed to
// a fiscal year and quarter.
func (s *HistoryService) HistoryFor(ctx context.Context, query models.HistoryQuery, actor models.Actor) ([]models.HistoryRow, error) {
	if actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if !query.Role.Department.Valid() {
		return nil, appErrors.Field("department", "unknown department")
	}
	if query.UserID == "" {
		query.UserID = actor.UserID
	}
	if query.UserID != actor.UserID || !actor.HasAccess(query.Role.Tag()) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, query.Role.Tag()+" access required")
	}
	quarter, err := ParseQuarter(query.Quarter)
	if err != nil {
		return nil, appErrors.Field("quarter", err.Error())
	}

	rows, err := s.load(ctx, query.UserID, query.Role)
	if err != nil {
		return nil, err
	}
	if quarter == "" && query.FiscalYear == 0 {
		return rows, nil
	}
	filtered := make([]models.HistoryRow, 0, len(rows))
	for _, row := range rows {
		if InPeriod(row.EventDate, query.FiscalYear, quarter) {
			filtered = append(filtered, row)
		}
	}
	return filtered, nil
}

// Export renders the history in the requested file format.
func (s *HistoryService) Export(ctx context.Context, query models.HistoryQuery, actor models.Actor, format string) (*HistoryExport, error) {
	rows, err := s.HistoryFor(ctx, query, actor)
	if err != nil {
		return nil, err
	}
	dataset := historyDataset(rows)
	base := fmt.Sprintf("%s-history", query.Role.Tag())
	if query.FiscalYear != 0 {
		base += "-fy" + strconv.Itoa(query.FiscalYear)
	}
	if query.Quarter != "" {
		base += "-" + strings.ToLower(strings.TrimSpace(query.Quarter))
	}

	switch strings.ToLower(format) {
	case HistoryFormatCSV:
		body, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to render csv")
		}
		return &HistoryExport{Filename: base + ".csv", ContentType: "text/csv", Body: body}, nil
	case HistoryFormatPDF:
		subtitle := fmt.Sprintf("%d record(s)", len(rows))
		body, err := s.pdf.Render(dataset, fmt.Sprintf("%s %s history", query.Role.Department, query.Role.Kind), subtitle)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to render pdf")
		}
		return &HistoryExport{Filename: base + ".pdf", ContentType: "application/pdf", Body: body}, nil
	default:
		return nil, appErrors.Field("format", "format must be json, csv or pdf")
	}
}

func (s *HistoryService) load(ctx context.Context, userID string, role models.Role) ([]models.HistoryRow, error) {
	key := HistoryKey(userID, role)
	var cached []models.HistoryRow
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	var src historySources
	var err error
	if src.tagged, err = s.requests.ListProcessedByDepartment(ctx, role.Department, role.Kind, userID); err != nil {
		return nil, appErrors.Internal(err, "failed to load history")
	}
	if src.legacy, err = s.requests.ListLegacyProcessed(ctx, role.Kind, userID); err != nil {
		return nil, appErrors.Internal(err, "failed to load legacy history")
	}
	if src.awards, err = s.awards.ListForHistory(ctx, models.HistoryAwardFilter{AwardedBy: userID, Department: role.Department}); err != nil {
		return nil, appErrors.Internal(err, "failed to load award history")
	}

	categories, err := s.categories.FindByIDs(ctx, src.categoryIDs())
	if err != nil {
		return nil, appErrors.Internal(err, "failed to resolve categories")
	}
	users, err := s.users.FindByIDs(ctx, src.userIDs())
	if err != nil {
		return nil, appErrors.Internal(err, "failed to resolve users")
	}

	rows := historyMerger{
		dept:            role.Department,
		categories:      categories,
		users:           users,
		requireEmployee: s.requireEmployee,
		logger:          s.logger,
	}.merge(src)
	s.cache.Set(ctx, key, rows, 0)
	return rows, nil
}

func historyDataset(rows []models.HistoryRow) export.Dataset {
	dataset := export.Dataset{
		Columns: []export.Column{
			{Key: "event_date", Label: "Event Date", Width: 1.1},
			{Key: "employee", Label: "Employee", Width: 1.6},
			{Key: "employee_code", Label: "Employee ID", Width: 1},
			{Key: "category", Label: "Category", Width: 1.6},
			{Key: "points", Label: "Points / Utilization", Width: 1.1},
			{Key: "status", Label: "Status", Width: 0.9},
			{Key: "updater", Label: "Raised By", Width: 1.3},
			{Key: "notes", Label: "Notes", Width: 2.2},
			{Key: "period", Label: "Period", Width: 1},
		},
		Rows: make([]map[string]string, 0, len(rows)),
	}
	for _, row := range rows {
		value := strconv.Itoa(row.Points)
		if row.UtilizationPercent != nil {
			value = *row.UtilizationPercent
		}
		notes := row.SubmissionNotes
		if row.ResponseNotes != "" {
			notes = strings.TrimSpace(notes + " | " + row.ResponseNotes)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"event_date":    row.EventDate.Format("02-01-2006"),
			"employee":      row.EmployeeName,
			"employee_code": row.EmployeeCode,
			"category":      row.CategoryName,
			"points":        value,
			"status":        string(row.Status),
			"updater":       row.UpdaterName,
			"notes":         notes,
			"period":        fmt.Sprintf("FY%d %s", row.FiscalYear, row.Quarter),
		})
	}
	return dataset
}
