package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/points-rewards-api/internal/dto"
	"github.com/noah-isme/points-rewards-api/internal/models"
	"github.com/noah-isme/points-rewards-api/internal/repository"
	appErrors "github.com/noah-isme/points-rewards-api/pkg/errors"
)

const eventDateLayout = "2006-01-02"

type pointsRequestStore interface {
	Create(ctx context.Context, req *models.PointsRequest) error
	GetByID(ctx context.Context, id string) (*models.PointsRequest, error)
	List(ctx context.Context, filter models.PointsRequestFilter) ([]models.PointsRequest, error)
	CountActiveInRange(ctx context.Context, employeeID, categoryID string, from, to time.Time) (int, error)
	Resolve(ctx context.Context, params repository.ResolveParams, award *models.PointsAward) error
	UpdateUtilization(ctx context.Context, id string, value decimal.Decimal, notes *string) error
	UpdateRecord(ctx context.Context, id string, points *int, notes *string, mirror bool) error
	Delete(ctx context.Context, id string) error
}

type pointsAwardStore interface {
	GetByID(ctx context.Context, id string) (*models.PointsAward, error)
	FindByRequestID(ctx context.Context, requestID string) (*models.PointsAward, error)
	ListByUser(ctx context.Context, userID string) ([]models.PointsAward, error)
	CountUnlinkedInRange(ctx context.Context, userID, categoryID string, from, to time.Time) (int, error)
	UpdateUtilization(ctx context.Context, id string, value decimal.Decimal, notes *string) error
}

type categoryLookup interface {
	FindByID(ctx context.Context, id string) (*models.Category, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*models.Category, error)
}

type userLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
}

// PointsRequestService runs the points request lifecycle from submission to resolution.
type PointsRequestService struct {
	requests   pointsRequestStore
	awards     pointsAwardStore
	categories categoryLookup
	users      userLookup
	calculator *PointsCalculator
	notifier   Notifier
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// PointsRequestServiceOption configures optional collaborators.
type PointsRequestServiceOption func(*PointsRequestService)

// WithPointsCache invalidates cached history after transitions.
func WithPointsCache(cache *CacheService) PointsRequestServiceOption {
	return func(s *PointsRequestService) {
		s.cache = cache
	}
}

// WithPointsMetrics records transitions.
func WithPointsMetrics(metrics *MetricsService) PointsRequestServiceOption {
	return func(s *PointsRequestService) {
		s.metrics = metrics
	}
}

// WithPointsClock overrides the time source.
func WithPointsClock(now func() time.Time) PointsRequestServiceOption {
	return func(s *PointsRequestService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewPointsRequestService constructs the lifecycle service.
func NewPointsRequestService(
	requests pointsRequestStore,
	awards pointsAwardStore,
	categories categoryLookup,
	users userLookup,
	calculator *PointsCalculator,
	notifier Notifier,
	validate *validator.Validate,
	logger *zap.Logger,
	opts ...PointsRequestServiceOption,
) *PointsRequestService {
	if calculator == nil {
		calculator = NewPointsCalculator(models.GradePolicyStrict, models.GradePolicyStrict)
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &PointsRequestService{
		requests:   requests,
		awards:     awards,
		categories: categories,
		users:      users,
		calculator: calculator,
		notifier:   notifier,
		validator:  validate,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Submit validates, prices and routes a new request, then notifies the assigned validator.
func (s *PointsRequestService) Submit(ctx context.Context, req dto.SubmitPointsRequest, actor models.Actor) (*models.PointsRequest, error) {
	if actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	req.EmployeeID = strings.TrimSpace(req.EmployeeID)
	req.CategoryID = strings.TrimSpace(req.CategoryID)
	req.ValidatorID = strings.TrimSpace(req.ValidatorID)
	req.Notes = strings.TrimSpace(req.Notes)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid points request payload")
	}
	if req.ValidatorID == actor.UserID {
		return nil, appErrors.Field("validator_id", "you cannot assign yourself as validator")
	}

	category, err := s.categories.FindByID(ctx, req.CategoryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Field("category_id", "category not found")
		}
		return nil, appErrors.Internal(err, "failed to load category")
	}
	if !category.Active() {
		return nil, appErrors.Field("category_id", fmt.Sprintf("category %s is not accepting requests", category.Name))
	}
	employee, err := s.requireUser(ctx, req.EmployeeID, "employee_id", "employee not found")
	if err != nil {
		return nil, err
	}
	validatorUser, err := s.requireUser(ctx, req.ValidatorID, "validator_id", "validator not found")
	if err != nil {
		return nil, err
	}
	decision, err := Route(category, actor, employee, validatorUser)
	if err != nil {
		return nil, err
	}

	now := s.now()
	eventDate, err := parseEventDate(req.EventDate, now)
	if err != nil {
		return nil, err
	}
	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	points, err := s.calculator.ComputePoints(category, employee.Grade, quantity)
	if err != nil {
		return nil, err
	}

	record := &models.PointsRequest{
		EmployeeID:      employee.ID,
		CategoryID:      category.ID,
		Points:          points,
		Quantity:        quantity,
		Status:          models.RequestStatusPending,
		SubmissionNotes: req.Notes,
		RequestDate:     now,
		EventDate:       eventDate,
	}
	if category.Utilization {
		value, err := NormalizeUtilization(req.Utilization)
		if err != nil {
			return nil, err
		}
		if err := s.ensureMonthlyUnique(ctx, employee.ID, category.ID, eventDate); err != nil {
			return nil, err
		}
		record.UtilizationValue = decimal.NullDecimal{Decimal: value, Valid: true}
	}
	decision.Apply(record)

	if err := s.requests.Create(ctx, record); err != nil {
		return nil, appErrors.Internal(err, "failed to create points request")
	}
	s.metrics.RecordTransition(models.RequestStatusPending, decision.Department, "submit")
	s.logger.Info("points request submitted",
		zap.String("request_id", record.ID),
		zap.String("department", string(decision.Department)),
		zap.String("submitted_by", actor.UserID),
		zap.Bool("self_raised", decision.SelfRaised),
	)

	submitter := employee
	if !decision.SelfRaised {
		submitter = s.optionalUser(ctx, actor.UserID)
	}
	s.notifyRaised(ctx, requestContext{req: record, category: category, employee: employee, validator: validatorUser}, submitter)
	return record, nil
}

// Approve resolves a pending request as approved and creates its award in the same transaction.
func (s *PointsRequestService) Approve(ctx context.Context, id string, actor models.Actor, notes string) (*models.PointsRequest, error) {
	req, err := s.loadPending(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if err := s.resolve(ctx, req, models.RequestStatusApproved, actor, notes); err != nil {
		return nil, err
	}
	s.metrics.RecordTransition(models.RequestStatusApproved, req.CategoryDepartment, "single")
	rc := s.loadContext(ctx, req)
	s.notifyApproved(ctx, rc, notes, true)
	s.refreshDashboard(ctx, actor.UserID, req.CategoryDepartment)
	s.cache.InvalidateHistory(ctx, req.CategoryDepartment)
	return req, nil
}

// Reject resolves a pending request as rejected. No award is created.
func (s *PointsRequestService) Reject(ctx context.Context, id string, actor models.Actor, notes string) (*models.PointsRequest, error) {
	req, err := s.loadPending(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if err := s.resolve(ctx, req, models.RequestStatusRejected, actor, notes); err != nil {
		return nil, err
	}
	s.metrics.RecordTransition(models.RequestStatusRejected, req.CategoryDepartment, "single")
	rc := s.loadContext(ctx, req)
	s.notifyRejected(ctx, rc, notes, true)
	s.refreshDashboard(ctx, actor.UserID, req.CategoryDepartment)
	s.cache.InvalidateHistory(ctx, req.CategoryDepartment)
	return req, nil
}

// loadPending applies the transition guards in order: existence, pending status, assignment.
func (s *PointsRequestService) loadPending(ctx context.Context, id string, actor models.Actor) (*models.PointsRequest, error) {
	if actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	req, err := s.requests.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "points request not found")
		}
		return nil, appErrors.Internal(err, "failed to load points request")
	}
	if req.Status != models.RequestStatusPending {
		return nil, appErrors.Clone(appErrors.ErrAlreadyProcessed, fmt.Sprintf("points request already %s", strings.ToLower(string(req.Status))))
	}
	if req.AssignedValidatorID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned validator can process this request")
	}
	if !req.CategoryDepartment.Valid() {
		category, err := s.categories.FindByID(ctx, req.CategoryID)
		if err == nil {
			req.CategoryDepartment = category.Department
		}
	}
	return req, nil
}

// resolve persists the decision. A concurrent decision on the same request surfaces as
// AlreadyProcessed because the update only matches pending rows.
func (s *PointsRequestService) resolve(ctx context.Context, req *models.PointsRequest, status models.RequestStatus, actor models.Actor, notes string) error {
	now := s.now()
	notes = strings.TrimSpace(notes)
	params := repository.ResolveParams{
		ID:                  req.ID,
		Status:              status,
		ProcessedBy:         actor.UserID,
		ProcessedDepartment: req.CategoryDepartment,
		ResponseNotes:       notes,
		ResponseDate:        now,
	}
	var award *models.PointsAward
	if status == models.RequestStatusApproved {
		award = buildAward(req, actor.UserID, notes, now)
	}
	if err := s.requests.Resolve(ctx, params, award); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrAlreadyProcessed, "points request was processed concurrently")
		}
		return appErrors.Internal(err, "failed to update points request")
	}
	req.Status = status
	req.ProcessedBy = &actor.UserID
	if req.CategoryDepartment.Valid() {
		dept := req.CategoryDepartment
		req.ProcessedDepartment = &dept
	}
	req.ResponseNotes = &notes
	req.ResponseDate = &now
	return nil
}

func buildAward(req *models.PointsRequest, awardedBy, notes string, now time.Time) *models.PointsAward {
	awardDate := req.EventDate
	if awardDate.IsZero() {
		awardDate = now
	}
	if notes == "" {
		notes = req.SubmissionNotes
	}
	requestID := req.ID
	award := &models.PointsAward{
		UserID:           req.EmployeeID,
		CategoryID:       req.CategoryID,
		Points:           req.Points,
		AwardDate:        awardDate,
		AwardedBy:        awardedBy,
		Notes:            notes,
		RequestID:        &requestID,
		UtilizationValue: req.UtilizationValue,
		CreatedAt:        now,
	}
	if req.CategoryDepartment.Valid() {
		dept := req.CategoryDepartment
		award.Department = &dept
	}
	return award
}

func (s *PointsRequestService) ensureMonthlyUnique(ctx context.Context, employeeID, categoryID string, eventDate time.Time) error {
	from, to := monthRange(eventDate)
	requests, err := s.requests.CountActiveInRange(ctx, employeeID, categoryID, from, to)
	if err != nil {
		return appErrors.Internal(err, "failed to check existing utilization")
	}
	awards, err := s.awards.CountUnlinkedInRange(ctx, employeeID, categoryID, from, to)
	if err != nil {
		return appErrors.Internal(err, "failed to check existing utilization")
	}
	if requests+awards > 0 {
		return appErrors.Field("event_date", fmt.Sprintf("utilization is already recorded for %s", from.Format("January 2006")))
	}
	return nil
}

func (s *PointsRequestService) requireUser(ctx context.Context, id, field, message string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Field(field, message)
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	return user, nil
}

// optionalUser resolves a user for display purposes only. Lookup failures yield nil.
func (s *PointsRequestService) optionalUser(ctx context.Context, id string) *models.User {
	if strings.TrimSpace(id) == "" {
		return nil
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("user lookup failed", zap.String("user_id", id), zap.Error(err))
		}
		return nil
	}
	return user
}

func (s *PointsRequestService) loadContext(ctx context.Context, req *models.PointsRequest) requestContext {
	rc := requestContext{req: req}
	if category, err := s.categories.FindByID(ctx, req.CategoryID); err == nil {
		rc.category = category
	} else if !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("category lookup failed", zap.String("category_id", req.CategoryID), zap.Error(err))
	}
	rc.employee = s.optionalUser(ctx, req.EmployeeID)
	rc.validator = s.optionalUser(ctx, req.AssignedValidatorID)
	if _, updaterID, ok := req.Updater(); ok {
		rc.updater = s.optionalUser(ctx, updaterID)
	}
	return rc
}

func parseEventDate(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	if parsed, err := time.Parse(eventDateLayout, raw); err == nil {
		return parsed, nil
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed.UTC(), nil
	}
	return time.Time{}, appErrors.Field("event_date", "event_date must use YYYY-MM-DD")
}

type nopNotifier struct{}

func (nopNotifier) SendEmail(context.Context, models.Email) error { return nil }
func (nopNotifier) Publish(context.Context, models.Event) error   { return nil }
