package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/points-rewards-api/internal/dto"
	"github.com/noah-isme/points-rewards-api/internal/middleware"
	"github.com/noah-isme/points-rewards-api/internal/models"
	appErrors "github.com/noah-isme/points-rewards-api/pkg/errors"
)

type responseEnvelope struct {
	Data  json.RawMessage        `json:"data"`
	Error map[string]interface{} `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func newTestContext(method, target string, body []byte, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, rec
}

func validatorClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "val-1", DashboardAccess: []string{"employee", "pmo_validator"}}
}

type fakePointsSrv struct {
	submitted   dto.SubmitPointsRequest
	reviewedID  string
	notes       string
	actor       models.Actor
	role        models.Role
	bulk        dto.BulkReviewRequest
	deletedID   string
	err         error
	pending     []models.PointsRequest
	summary     *models.PointsSummary
	utilization dto.UtilizationUpdateRequest
}

func (f *fakePointsSrv) Submit(_ context.Context, req dto.SubmitPointsRequest, actor models.Actor) (*models.PointsRequest, error) {
	f.submitted, f.actor = req, actor
	if f.err != nil {
		return nil, f.err
	}
	return &models.PointsRequest{ID: "req-1", Status: models.RequestStatusPending}, nil
}

func (f *fakePointsSrv) review(id string, actor models.Actor, notes string, status models.RequestStatus) (*models.PointsRequest, error) {
	f.reviewedID, f.actor, f.notes = id, actor, notes
	if f.err != nil {
		return nil, f.err
	}
	return &models.PointsRequest{ID: id, Status: status}, nil
}

func (f *fakePointsSrv) Approve(_ context.Context, id string, actor models.Actor, notes string) (*models.PointsRequest, error) {
	return f.review(id, actor, notes, models.RequestStatusApproved)
}

func (f *fakePointsSrv) Reject(_ context.Context, id string, actor models.Actor, notes string) (*models.PointsRequest, error) {
	return f.review(id, actor, notes, models.RequestStatusRejected)
}

func (f *fakePointsSrv) BulkApprove(_ context.Context, req dto.BulkReviewRequest, _ models.Actor) (*dto.BulkReviewResult, error) {
	f.bulk = req
	return &dto.BulkReviewResult{Status: models.RequestStatusApproved, ProcessedCount: len(req.IDs), ProcessedIDs: req.IDs}, f.err
}

func (f *fakePointsSrv) BulkReject(_ context.Context, req dto.BulkReviewRequest, _ models.Actor) (*dto.BulkReviewResult, error) {
	f.bulk = req
	return &dto.BulkReviewResult{Status: models.RequestStatusRejected, ProcessedCount: len(req.IDs), ProcessedIDs: req.IDs}, f.err
}

func (f *fakePointsSrv) UpdateUtilization(_ context.Context, id string, req dto.UtilizationUpdateRequest, _ models.Actor) (*models.PointsRequest, error) {
	f.reviewedID, f.utilization = id, req
	return &models.PointsRequest{ID: id}, f.err
}

func (f *fakePointsSrv) UpdateAwardUtilization(_ context.Context, id string, req dto.UtilizationUpdateRequest, _ models.Actor) (*models.PointsAward, error) {
	f.reviewedID, f.utilization = id, req
	return &models.PointsAward{ID: id}, f.err
}

func (f *fakePointsSrv) UpdateRecord(_ context.Context, id string, _ dto.RecordUpdateRequest, _ models.Actor) (*models.PointsRequest, error) {
	f.reviewedID = id
	return &models.PointsRequest{ID: id}, f.err
}

func (f *fakePointsSrv) DeleteRecord(_ context.Context, id string, _ models.Actor) error {
	f.deletedID = id
	return f.err
}

func (f *fakePointsSrv) ListPending(_ context.Context, role models.Role, _ models.Actor) ([]models.PointsRequest, error) {
	f.role = role
	return f.pending, f.err
}

func (f *fakePointsSrv) Summary(_ context.Context, actor models.Actor) (*models.PointsSummary, error) {
	f.actor = actor
	return f.summary, f.err
}

type fakeImporter struct {
	rows   []dto.BulkImportRow
	result *dto.BulkImportResult
}

func (f *fakeImporter) Import(_ context.Context, rows []dto.BulkImportRow, _ models.Actor) (*dto.BulkImportResult, error) {
	f.rows = rows
	return f.result, nil
}

func TestPointsRequestHandlerSubmit(t *testing.T) {
	srv := &fakePointsSrv{}
	handler := NewPointsRequestHandler(srv, &fakeImporter{})

	body := []byte(`{"employee_id":"emp-1","category_id":"cat-1","validator_id":"val-1","notes":"release","event_date":"2024-05-03"}`)
	c, rec := newTestContext(http.MethodPost, "/points-requests", body, &models.JWTClaims{UserID: "upd-1", DashboardAccess: []string{"pmo_updater"}})
	handler.Submit(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "upd-1", srv.actor.UserID)
	assert.Equal(t, "release", srv.submitted.Notes)
}

func TestPointsRequestHandlerRequiresClaims(t *testing.T) {
	handler := NewPointsRequestHandler(&fakePointsSrv{}, &fakeImporter{})
	c, rec := newTestContext(http.MethodPost, "/points-requests/req-1/approve", nil, nil)
	handler.Approve(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPointsRequestHandlerApprovePassesNotes(t *testing.T) {
	srv := &fakePointsSrv{}
	handler := NewPointsRequestHandler(srv, &fakeImporter{})

	c, rec := newTestContext(http.MethodPost, "/points-requests/req-1/approve", []byte(`{"notes":"well done"}`), validatorClaims())
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	handler.Approve(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-1", srv.reviewedID)
	assert.Equal(t, "well done", srv.notes)
	assert.Equal(t, "val-1", srv.actor.UserID)
}

func TestPointsRequestHandlerRejectWithoutBody(t *testing.T) {
	srv := &fakePointsSrv{}
	handler := NewPointsRequestHandler(srv, &fakeImporter{})

	c, rec := newTestContext(http.MethodPost, "/points-requests/req-2/reject", nil, validatorClaims())
	c.Params = gin.Params{{Key: "id", Value: "req-2"}}
	handler.Reject(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", srv.notes)
}

func TestPointsRequestHandlerAlreadyProcessedIsWarning(t *testing.T) {
	srv := &fakePointsSrv{err: appErrors.ErrAlreadyProcessed}
	handler := NewPointsRequestHandler(srv, &fakeImporter{})

	c, rec := newTestContext(http.MethodPost, "/points-requests/req-1/approve", nil, validatorClaims())
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	handler.Approve(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "warning", envelope.Meta["severity"])
	assert.Equal(t, "ALREADY_PROCESSED", envelope.Error["code"])
}

func TestPointsRequestHandlerBulkApprove(t *testing.T) {
	srv := &fakePointsSrv{}
	handler := NewPointsRequestHandler(srv, &fakeImporter{})

	c, rec := newTestContext(http.MethodPost, "/points-requests/bulk-approve", []byte(`{"ids":["a","b"],"notes":"ok"}`), validatorClaims())
	handler.BulkApprove(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"a", "b"}, srv.bulk.IDs)

	var result dto.BulkReviewResult
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &result))
	assert.Equal(t, 2, result.ProcessedCount)

	c, rec = newTestContext(http.MethodPost, "/points-requests/bulk-reject", []byte(`{"ids":`), validatorClaims())
	handler.BulkReject(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPointsRequestHandlerBulkImportMultipart(t *testing.T) {
	importer := &fakeImporter{result: &dto.BulkImportResult{SubmittedCount: 1, RequestIDs: []string{"req-9"}}}
	handler := NewPointsRequestHandler(&fakePointsSrv{}, importer)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "points.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("employee_id,validator_employee_id,event_date,category_code,department,notes\nE001,E200,03-05-2024,DLV,PMO,release\n"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	c, rec := newTestContext(http.MethodPost, "/points-requests/bulk-import", nil, &models.JWTClaims{UserID: "upd-1"})
	c.Request = httptest.NewRequest(http.MethodPost, "/points-requests/bulk-import", &buf)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())
	handler.BulkImport(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, importer.rows, 1)
	assert.Equal(t, "E001", importer.rows[0].EmployeeID)
	assert.Equal(t, 2, importer.rows[0].Line)
}

func TestPointsRequestHandlerBulkImportReportsRowErrors(t *testing.T) {
	importer := &fakeImporter{result: &dto.BulkImportResult{
		FailedCount: 1,
		Errors:      []dto.BulkImportRowError{{Line: 1, Field: "employee_id", Message: "employee E404 not found"}},
	}}
	handler := NewPointsRequestHandler(&fakePointsSrv{}, importer)

	c, rec := newTestContext(http.MethodPost, "/points-requests/bulk-import", []byte(`[{"employee_id":"E404"}]`), &models.JWTClaims{UserID: "upd-1"})
	handler.BulkImport(c)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Len(t, importer.rows, 1)
	assert.Equal(t, 1, importer.rows[0].Line)
	assert.True(t, strings.Contains(rec.Body.String(), "employee E404 not found"))
}

func TestPointsRequestHandlerBulkImportMissingFile(t *testing.T) {
	handler := NewPointsRequestHandler(&fakePointsSrv{}, &fakeImporter{})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("note", "no file"))
	require.NoError(t, writer.Close())

	c, rec := newTestContext(http.MethodPost, "/points-requests/bulk-import", nil, &models.JWTClaims{UserID: "upd-1"})
	c.Request = httptest.NewRequest(http.MethodPost, "/points-requests/bulk-import", &buf)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())
	handler.BulkImport(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "file", decodeEnvelope(t, rec).Error["field"])
}

func TestPointsRequestHandlerPendingUsesRoleQuery(t *testing.T) {
	srv := &fakePointsSrv{pending: []models.PointsRequest{{ID: "req-1"}}}
	handler := NewPointsRequestHandler(srv, &fakeImporter{})

	c, rec := newTestContext(http.MethodGet, "/departments/pmo/pending?as=updater", nil, &models.JWTClaims{UserID: "upd-1"})
	c.Params = gin.Params{{Key: "department", Value: "pmo"}}
	handler.Pending(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.Role{Department: models.DepartmentPMO, Kind: models.RoleKindUpdater}, srv.role)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, float64(1), envelope.Meta["count"])
	assert.Equal(t, "pmo_updater", envelope.Meta["role"])

	c, rec = newTestContext(http.MethodGet, "/departments/finance/pending", nil, &models.JWTClaims{UserID: "upd-1"})
	c.Params = gin.Params{{Key: "department", Value: "finance"}}
	handler.Pending(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newTestContext(http.MethodGet, "/departments/pmo/pending?as=employee", nil, &models.JWTClaims{UserID: "upd-1"})
	c.Params = gin.Params{{Key: "department", Value: "pmo"}}
	handler.Pending(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPointsRequestHandlerRecordChanges(t *testing.T) {
	srv := &fakePointsSrv{}
	handler := NewPointsRequestHandler(srv, &fakeImporter{})

	c, rec := newTestContext(http.MethodPatch, "/points-requests/req-3/utilization", []byte(`{"utilization":"88%"}`), validatorClaims())
	c.Params = gin.Params{{Key: "id", Value: "req-3"}}
	handler.UpdateUtilization(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "88%", srv.utilization.Utilization)

	c, rec = newTestContext(http.MethodPatch, "/points-awards/aw-1/utilization", []byte(`{"utilization":"92"}`), validatorClaims())
	c.Params = gin.Params{{Key: "id", Value: "aw-1"}}
	handler.UpdateAwardUtilization(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "aw-1", srv.reviewedID)

	c, rec = newTestContext(http.MethodDelete, "/points-requests/req-3", nil, validatorClaims())
	c.Params = gin.Params{{Key: "id", Value: "req-3"}}
	handler.DeleteRecord(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "req-3", srv.deletedID)
}

func TestPointsRequestHandlerMyPoints(t *testing.T) {
	srv := &fakePointsSrv{summary: &models.PointsSummary{UserID: "emp-1", TotalPoints: 15}}
	handler := NewPointsRequestHandler(srv, &fakeImporter{})

	c, rec := newTestContext(http.MethodGet, "/me/points", nil, &models.JWTClaims{UserID: "emp-1", DashboardAccess: []string{"employee"}})
	handler.MyPoints(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var summary models.PointsSummary
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &summary))
	assert.Equal(t, 15, summary.TotalPoints)
	assert.Equal(t, "emp-1", srv.actor.UserID)
}
