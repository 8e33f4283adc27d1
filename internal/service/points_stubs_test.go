package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/points-rewards-api/internal/models"
	"github.com/noah-isme/points-rewards-api/internal/repository"
)

type requestStoreStub struct {
	items  map[string]*models.PointsRequest
	order  []string
	awards *awardStoreStub
	seq    int
	// beforeResolve runs inside Resolve before the pending check, to simulate a competing writer.
	beforeResolve func(id string)
}

func newRequestStoreStub(awards *awardStoreStub) *requestStoreStub {
	return &requestStoreStub{items: make(map[string]*models.PointsRequest), awards: awards}
}

func (s *requestStoreStub) put(req models.PointsRequest) {
	if _, ok := s.items[req.ID]; !ok {
		s.order = append(s.order, req.ID)
	}
	copy := req
	s.items[req.ID] = &copy
}

func (s *requestStoreStub) Create(ctx context.Context, req *models.PointsRequest) error {
	if req.ID == "" {
		s.seq++
		req.ID = fmt.Sprintf("req-%d", s.seq)
	}
	s.put(*req)
	return nil
}

func (s *requestStoreStub) GetByID(ctx context.Context, id string) (*models.PointsRequest, error) {
	req, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *req
	return &copy, nil
}

func (s *requestStoreStub) List(ctx context.Context, filter models.PointsRequestFilter) ([]models.PointsRequest, error) {
	out := make([]models.PointsRequest, 0)
	for _, id := range s.order {
		req, ok := s.items[id]
		if !ok {
			continue
		}
		if len(filter.Status) > 0 && !containsStatus(filter.Status, req.Status) {
			continue
		}
		if filter.AssignedValidatorID != "" && req.AssignedValidatorID != filter.AssignedValidatorID {
			continue
		}
		if filter.CategoryDepartment != "" && req.CategoryDepartment != filter.CategoryDepartment {
			continue
		}
		if filter.CreatedByField != "" && req.SubmitterValue(filter.CreatedByField) != filter.CreatedByID {
			continue
		}
		out = append(out, *req)
	}
	return out, nil
}

func containsStatus(list []models.RequestStatus, status models.RequestStatus) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

func (s *requestStoreStub) CountActiveInRange(ctx context.Context, employeeID, categoryID string, from, to time.Time) (int, error) {
	count := 0
	for _, req := range s.items {
		if req.EmployeeID != employeeID || req.CategoryID != categoryID || req.Status == models.RequestStatusRejected {
			continue
		}
		if !req.EventDate.Before(from) && req.EventDate.Before(to) {
			count++
		}
	}
	return count, nil
}

func (s *requestStoreStub) Resolve(ctx context.Context, params repository.ResolveParams, award *models.PointsAward) error {
	if s.beforeResolve != nil {
		s.beforeResolve(params.ID)
	}
	req, ok := s.items[params.ID]
	if !ok || req.Status != models.RequestStatusPending {
		return sql.ErrNoRows
	}
	req.Status = params.Status
	processedBy := params.ProcessedBy
	req.ProcessedBy = &processedBy
	dept := params.ProcessedDepartment
	req.ProcessedDepartment = &dept
	notes := params.ResponseNotes
	req.ResponseNotes = &notes
	date := params.ResponseDate
	req.ResponseDate = &date
	if award != nil {
		s.awards.add(*award)
	}
	return nil
}

func (s *requestStoreStub) UpdateUtilization(ctx context.Context, id string, value decimal.Decimal, notes *string) error {
	req, ok := s.items[id]
	if !ok || req.Status == models.RequestStatusRejected {
		return sql.ErrNoRows
	}
	req.UtilizationValue = decimal.NullDecimal{Decimal: value, Valid: true}
	if notes != nil {
		req.ResponseNotes = notes
	}
	for i := range s.awards.items {
		if s.awards.items[i].LinkedRequestID() == id {
			s.awards.items[i].UtilizationValue = req.UtilizationValue
		}
	}
	return nil
}

func (s *requestStoreStub) UpdateRecord(ctx context.Context, id string, points *int, notes *string, mirror bool) error {
	req, ok := s.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	if points != nil {
		req.Points = *points
	}
	if notes != nil {
		req.ResponseNotes = notes
	}
	if mirror {
		for i := range s.awards.items {
			if s.awards.items[i].LinkedRequestID() != id {
				continue
			}
			if points != nil {
				s.awards.items[i].Points = *points
			}
			if notes != nil {
				s.awards.items[i].Notes = *notes
			}
		}
	}
	return nil
}

func (s *requestStoreStub) Delete(ctx context.Context, id string) error {
	if _, ok := s.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.items, id)
	kept := s.awards.items[:0]
	for _, award := range s.awards.items {
		if award.LinkedRequestID() != id {
			kept = append(kept, award)
		}
	}
	s.awards.items = kept
	return nil
}

type awardStoreStub struct {
	items []models.PointsAward
	seq   int
}

func (s *awardStoreStub) add(award models.PointsAward) {
	if award.ID == "" {
		s.seq++
		award.ID = fmt.Sprintf("award-%d", s.seq)
	}
	s.items = append(s.items, award)
}

func (s *awardStoreStub) GetByID(ctx context.Context, id string) (*models.PointsAward, error) {
	for i := range s.items {
		if s.items[i].ID == id {
			copy := s.items[i]
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *awardStoreStub) FindByRequestID(ctx context.Context, requestID string) (*models.PointsAward, error) {
	for i := range s.items {
		if s.items[i].LinkedRequestID() == requestID {
			copy := s.items[i]
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *awardStoreStub) ListByUser(ctx context.Context, userID string) ([]models.PointsAward, error) {
	out := make([]models.PointsAward, 0)
	for _, award := range s.items {
		if award.UserID == userID {
			out = append(out, award)
		}
	}
	return out, nil
}

func (s *awardStoreStub) CountUnlinkedInRange(ctx context.Context, userID, categoryID string, from, to time.Time) (int, error) {
	count := 0
	for _, award := range s.items {
		if award.RequestID != nil || award.UserID != userID || award.CategoryID != categoryID {
			continue
		}
		if !award.AwardDate.Before(from) && award.AwardDate.Before(to) {
			count++
		}
	}
	return count, nil
}

func (s *awardStoreStub) UpdateUtilization(ctx context.Context, id string, value decimal.Decimal, notes *string) error {
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].UtilizationValue = decimal.NullDecimal{Decimal: value, Valid: true}
			if notes != nil {
				s.items[i].Notes = *notes
			}
			return nil
		}
	}
	return sql.ErrNoRows
}

type categoryStub struct {
	items map[string]*models.Category
}

func newCategoryStub(categories ...*models.Category) *categoryStub {
	stub := &categoryStub{items: make(map[string]*models.Category)}
	for _, c := range categories {
		stub.items[c.ID] = c
	}
	return stub
}

func (s *categoryStub) FindByID(ctx context.Context, id string) (*models.Category, error) {
	if c, ok := s.items[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (s *categoryStub) FindByIDs(ctx context.Context, ids []string) (map[string]*models.Category, error) {
	out := make(map[string]*models.Category, len(ids))
	for _, id := range ids {
		if c, ok := s.items[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (s *categoryStub) FindByCode(ctx context.Context, code string, dept models.Department) (*models.Category, error) {
	for _, c := range s.items {
		if c.Code == code && c.Department == dept {
			return c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *categoryStub) List(ctx context.Context, filter models.CategoryFilter) ([]models.Category, error) {
	out := make([]models.Category, 0)
	for _, c := range s.items {
		if filter.Department != "" && c.Department != filter.Department {
			continue
		}
		if filter.ActiveOnly && !c.Active() {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

type userStub struct {
	items map[string]*models.User
}

func newUserStub(users ...*models.User) *userStub {
	stub := &userStub{items: make(map[string]*models.User)}
	for _, u := range users {
		stub.items[u.ID] = u
	}
	return stub
}

func (s *userStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := s.items[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (s *userStub) FindByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	out := make(map[string]*models.User, len(ids))
	for _, id := range ids {
		if u, ok := s.items[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (s *userStub) FindByEmployeeID(ctx context.Context, employeeID string) (*models.User, error) {
	for _, u := range s.items {
		if u.EmployeeID == employeeID {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *userStub) ListByAccess(ctx context.Context, tag string) ([]models.UserSummary, error) {
	out := make([]models.UserSummary, 0)
	for _, u := range s.items {
		if u.HasAccess(tag) {
			out = append(out, models.UserSummary{ID: u.ID, Name: u.Name, EmployeeID: u.EmployeeID, Email: u.Email})
		}
	}
	return out, nil
}

// recordingNotifier delivers synchronously into memory.
type recordingNotifier struct {
	mu     sync.Mutex
	emails []models.Email
	events []models.Event
}

func (n *recordingNotifier) SendEmail(ctx context.Context, email models.Email) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emails = append(n.emails, email)
	return nil
}

func (n *recordingNotifier) Publish(ctx context.Context, event models.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) eventsFor(userID, role string) []models.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.Event, 0)
	for _, e := range n.events {
		if e.TargetUserID == userID && e.TargetRole == role {
			out = append(out, e)
		}
	}
	return out
}

func (n *recordingNotifier) emailsTo(address string) []models.Email {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.Email, 0)
	for _, e := range n.emails {
		for _, to := range e.To {
			if to == address {
				out = append(out, e)
			}
		}
	}
	return out
}

type workflowFixture struct {
	requests   *requestStoreStub
	awards     *awardStoreStub
	categories *categoryStub
	users      *userStub
	notifier   *recordingNotifier
	svc        *PointsRequestService

	employee  *models.User
	manager   *models.User
	updater   *models.User
	validator *models.User
	outsider  *models.User

	delivery    *models.Category
	utilization *models.Category
}

var fixtureNow = time.Date(2024, time.May, 20, 9, 0, 0, 0, time.UTC)

func newWorkflowFixture() *workflowFixture {
	managerID := "mgr-1"
	f := &workflowFixture{
		awards:   &awardStoreStub{},
		notifier: &recordingNotifier{},
		employee: &models.User{ID: "emp-1", Name: "Asha", EmployeeID: "E001", Grade: "L2", Email: "asha@example.com",
			DashboardAccess: []string{models.RoleEmployee}, DPID: &managerID},
		manager:   &models.User{ID: managerID, Name: "Meera", EmployeeID: "E900", Email: "meera@example.com"},
		updater:   &models.User{ID: "upd-1", Name: "Uma", EmployeeID: "E100", Email: "uma@example.com", DashboardAccess: []string{"pmo_updater"}},
		validator: &models.User{ID: "val-1", Name: "Vik", EmployeeID: "E200", Email: "vik@example.com", DashboardAccess: []string{"pmo_validator"}},
		outsider:  &models.User{ID: "out-1", Name: "Omar", EmployeeID: "E300", Email: "omar@example.com", DashboardAccess: []string{models.RoleEmployee}},
		delivery: &models.Category{ID: "cat-delivery", Code: "DLV", Name: "Delivery Excellence", Department: models.DepartmentPMO,
			Status: models.CategoryStatusActive, Type: models.CategoryTypeDirectAward,
			PointsPerUnit: models.GradePoints(map[string]int{"L1": 10, "L2": 15, "L3": 20})},
		utilization: &models.Category{ID: "cat-util", Code: "UTIL", Name: "Billable Utilization", Department: models.DepartmentPMO,
			Status: models.CategoryStatusActive, Type: models.CategoryTypeDirectAward, Utilization: true},
	}
	f.requests = newRequestStoreStub(f.awards)
	f.categories = newCategoryStub(f.delivery, f.utilization)
	f.users = newUserStub(f.employee, f.manager, f.updater, f.validator, f.outsider)
	f.svc = NewPointsRequestService(f.requests, f.awards, f.categories, f.users,
		NewPointsCalculator(models.GradePolicyStrict, models.GradePolicyStrict),
		f.notifier, nil, nil,
		WithPointsClock(func() time.Time { return fixtureNow }),
	)
	return f
}

func (f *workflowFixture) actor(user *models.User) models.Actor {
	return models.Actor{UserID: user.ID, DashboardAccess: user.DashboardAccess}
}

// seedPending stores a pending updater-raised delivery request.
func (f *workflowFixture) seedPending(id string, eventDate time.Time) {
	req := models.PointsRequest{
		ID:                  id,
		EmployeeID:          f.employee.ID,
		CategoryID:          f.delivery.ID,
		Points:              15,
		Quantity:            1,
		Status:              models.RequestStatusPending,
		SubmissionNotes:     "sprint delivery",
		RequestDate:         fixtureNow,
		EventDate:           eventDate,
		AssignedValidatorID: f.validator.ID,
		CategoryDepartment:  models.DepartmentPMO,
	}
	req.SetCreatedBy(models.DepartmentPMO, f.updater.ID)
	f.requests.put(req)
}
