package service

import (
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/points-rewards-api/internal/models"
)

// historySources is the raw material of one history view, in precedence order.
type historySources struct {
	tagged []models.PointsRequest
	legacy []models.PointsRequest
	awards []models.PointsAward
}

func (src historySources) categoryIDs() []string {
	ids := make([]string, 0, len(src.tagged)+len(src.legacy)+len(src.awards))
	for _, req := range src.tagged {
		ids = append(ids, req.CategoryID)
	}
	for _, req := range src.legacy {
		ids = append(ids, req.CategoryID)
	}
	for _, award := range src.awards {
		ids = append(ids, award.CategoryID)
	}
	return uniqueStrings(ids)
}

func (src historySources) userIDs() []string {
	ids := make([]string, 0, 2*(len(src.tagged)+len(src.legacy))+2*len(src.awards))
	for _, reqs := range [][]models.PointsRequest{src.tagged, src.legacy} {
		for _, req := range reqs {
			ids = append(ids, req.EmployeeID)
		}
		ids = append(ids, submitterIDs(reqs)...)
	}
	for _, award := range src.awards {
		ids = append(ids, award.UserID, award.AwardedBy)
	}
	return uniqueStrings(ids)
}

// historyMerger turns sources into display rows. Each request id is emitted once: department
// tagged requests win over legacy matches, and awards are dropped when their request was emitted.
type historyMerger struct {
	dept            models.Department
	categories      map[string]*models.Category
	users           map[string]*models.User
	requireEmployee bool
	logger          *zap.Logger
}

func (m historyMerger) merge(src historySources) []models.HistoryRow {
	rows := make([]models.HistoryRow, 0, len(src.tagged)+len(src.legacy)+len(src.awards))
	emitted := make(map[string]struct{}, cap(rows))

	emitRequest := func(req *models.PointsRequest) {
		if _, done := emitted[req.ID]; done {
			return
		}
		row, ok := m.requestRow(req)
		if !ok {
			return
		}
		emitted[req.ID] = struct{}{}
		rows = append(rows, row)
	}

	for i := range src.tagged {
		emitRequest(&src.tagged[i])
	}
	for i := range src.legacy {
		req := &src.legacy[i]
		if m.requestDepartment(req) != m.dept {
			continue
		}
		emitRequest(req)
	}
	for i := range src.awards {
		award := &src.awards[i]
		if linked := award.LinkedRequestID(); linked != "" {
			if _, done := emitted[linked]; done {
				continue
			}
		}
		if !m.awardInDepartment(award) {
			continue
		}
		row, ok := m.awardRow(award)
		if !ok {
			continue
		}
		if linked := award.LinkedRequestID(); linked != "" {
			emitted[linked] = struct{}{}
		}
		rows = append(rows, row)
	}

	sortHistory(rows)
	return rows
}

// sortHistory orders rows by event date, newest first, breaking ties by id descending.
func sortHistory(rows []models.HistoryRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].EventDate.Equal(rows[j].EventDate) {
			return rows[i].EventDate.After(rows[j].EventDate)
		}
		return rows[i].ID > rows[j].ID
	})
}

func (m historyMerger) requestDepartment(req *models.PointsRequest) models.Department {
	if req.CategoryDepartment.Valid() {
		return req.CategoryDepartment
	}
	if category := m.categories[req.CategoryID]; category != nil {
		return category.Department
	}
	return ""
}

func (m historyMerger) awardInDepartment(award *models.PointsAward) bool {
	if award.Department != nil && award.Department.Valid() {
		return *award.Department == m.dept
	}
	category := m.categories[award.CategoryID]
	return category != nil && category.Department == m.dept
}

func (m historyMerger) employee(id, recordID string) (*models.User, bool) {
	if user := m.users[id]; user != nil {
		return user, true
	}
	m.logger.Warn("history record references missing employee",
		zap.String("record_id", recordID),
		zap.String("employee_id", id),
		zap.Bool("skipped", m.requireEmployee),
	)
	return nil, !m.requireEmployee
}

func (m historyMerger) categoryName(id string) string {
	if category := m.categories[id]; category != nil {
		return category.Name
	}
	return models.UnknownName
}

func (m historyMerger) requestRow(req *models.PointsRequest) (models.HistoryRow, bool) {
	employee, ok := m.employee(req.EmployeeID, req.ID)
	if !ok {
		return models.HistoryRow{}, false
	}
	requestDate := req.RequestDate
	row := models.HistoryRow{
		ID:              req.ID,
		Source:          models.HistorySourceRequest,
		RequestID:       req.ID,
		EmployeeID:      req.EmployeeID,
		EmployeeName:    employee.DisplayName(),
		CategoryID:      req.CategoryID,
		CategoryName:    m.categoryName(req.CategoryID),
		Points:          req.Points,
		SubmissionNotes: req.SubmissionNotes,
		Status:          req.Status,
		UpdaterName:     UpdaterName(req, m.users),
		EventDate:       req.EventDate,
		RequestDate:     &requestDate,
		ResponseDate:    req.ResponseDate,
	}
	if employee != nil {
		row.EmployeeCode = employee.EmployeeID
	}
	if req.ResponseNotes != nil {
		row.ResponseNotes = *req.ResponseNotes
	}
	if req.IsUtilization() {
		label := FormatUtilizationPercent(req.UtilizationValue.Decimal)
		row.UtilizationPercent = &label
	}
	row.FiscalYear, row.Quarter = FiscalPeriod(row.EventDate)
	return row, true
}

func (m historyMerger) awardRow(award *models.PointsAward) (models.HistoryRow, bool) {
	employee, ok := m.employee(award.UserID, award.ID)
	if !ok {
		return models.HistoryRow{}, false
	}
	row := models.HistoryRow{
		ID:              award.ID,
		Source:          models.HistorySourceAward,
		RequestID:       award.LinkedRequestID(),
		EmployeeID:      award.UserID,
		EmployeeName:    employee.DisplayName(),
		CategoryID:      award.CategoryID,
		CategoryName:    m.categoryName(award.CategoryID),
		Points:          award.Points,
		SubmissionNotes: award.Notes,
		Status:          models.RequestStatusApproved,
		UpdaterName:     m.users[award.AwardedBy].DisplayName(),
		EventDate:       award.AwardDate,
	}
	if employee != nil {
		row.EmployeeCode = employee.EmployeeID
	}
	if award.UtilizationValue.Valid {
		label := FormatUtilizationPercent(award.UtilizationValue.Decimal)
		row.UtilizationPercent = &label
	}
	row.FiscalYear, row.Quarter = FiscalPeriod(row.EventDate)
	return row, true
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
