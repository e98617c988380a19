package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grievance-api/internal/dto"
	"github.com/noah-isme/grievance-api/internal/middleware"
	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
)

type grievanceServiceMock struct {
	submitReq    dto.SubmitGrievanceRequest
	submitViewer models.Viewer
	submitResp   *dto.SubmitGrievanceResponse
	updateID     string
	updateStatus string
	getResp      *models.Grievance
	comment      *models.Comment
	err          error
}

func (m *grievanceServiceMock) Submit(_ context.Context, req dto.SubmitGrievanceRequest, viewer models.Viewer) (*dto.SubmitGrievanceResponse, error) {
	m.submitReq = req
	m.submitViewer = viewer
	return m.submitResp, m.err
}

func (m *grievanceServiceMock) UpdateStatus(_ context.Context, id, status string, _ models.Viewer) (*models.Grievance, error) {
	m.updateID = id
	m.updateStatus = status
	return m.getResp, m.err
}

func (m *grievanceServiceMock) AddComment(_ context.Context, _ string, _ string, _ models.Viewer) (*models.Comment, error) {
	return m.comment, m.err
}

func (m *grievanceServiceMock) Get(_ context.Context, _ string, _ models.Viewer) (*models.Grievance, error) {
	return m.getResp, m.err
}

type grievanceQueryMock struct {
	filter models.GrievanceFilter
	items  []models.Grievance
}

func (m *grievanceQueryMock) List(_ context.Context, filter models.GrievanceFilter, _ models.Viewer) ([]models.Grievance, error) {
	m.filter = filter
	return m.items, nil
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

var staffViewer = models.Viewer{UserID: "u-admin", Name: "Admin", Role: models.RoleAdmin, Authenticated: true}

func TestGrievanceHandlerSubmit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &grievanceServiceMock{submitResp: &dto.SubmitGrievanceResponse{
		Grievance:      models.Grievance{ID: "g1", Department: "IT Section"},
		Classification: models.Classification{Department: "IT Section", Source: models.SourceFallback},
	}}
	h := NewGrievanceHandler(svc, &grievanceQueryMock{})

	payload, _ := json.Marshal(dto.SubmitGrievanceRequest{Title: "WiFi", Description: "down", IsAnonymous: true})
	c, w := newGinContext(http.MethodPost, "/grievances", payload)
	c.Set(middleware.ContextViewerKey, staffViewer)

	h.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "WiFi", svc.submitReq.Title)
	assert.True(t, svc.submitReq.IsAnonymous)
	assert.Equal(t, "u-admin", svc.submitViewer.UserID)
	assert.Contains(t, w.Body.String(), `"source":"fallback"`)
	assert.Contains(t, w.Body.String(), `"meta":{"classification_source":"fallback"}`)
}

func TestGrievanceHandlerSubmitWithoutViewerIsAnonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &grievanceServiceMock{submitResp: &dto.SubmitGrievanceResponse{}}
	h := NewGrievanceHandler(svc, &grievanceQueryMock{})

	c, w := newGinContext(http.MethodPost, "/grievances", []byte(`{"title":"t","description":"d"}`))
	h.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.False(t, svc.submitViewer.Authenticated)
}

func TestGrievanceHandlerRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewGrievanceHandler(&grievanceServiceMock{}, &grievanceQueryMock{})

	c, w := newGinContext(http.MethodPost, "/grievances", []byte(`{"title":`))
	h.Submit(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestGrievanceHandlerListBindsFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	query := &grievanceQueryMock{items: []models.Grievance{{ID: "g1"}, {ID: "g2"}}}
	h := NewGrievanceHandler(&grievanceServiceMock{}, query)

	c, w := newGinContext(http.MethodGet, "/grievances?userOnly=true&priority=High&status=Pending&department=Accounts", nil)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.GrievanceFilter{UserOnly: true, Priority: "High", Status: "Pending", Department: "Accounts"}, query.filter)
	assert.Contains(t, w.Body.String(), `"id":"g2"`)
}

func TestGrievanceHandlerListTreatsNonTrueUserOnlyAsFalse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, raw := range []string{"yes", "1", "TRUE"} {
		query := &grievanceQueryMock{}
		h := NewGrievanceHandler(&grievanceServiceMock{}, query)

		c, w := newGinContext(http.MethodGet, "/grievances?userOnly="+raw, nil)
		h.List(c)
		require.Equal(t, http.StatusOK, w.Code, raw)
		assert.False(t, query.filter.UserOnly, raw)
	}
}

func TestGrievanceHandlerUpdateStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &grievanceServiceMock{getResp: &models.Grievance{ID: "g1", Status: models.StatusResolved}}
	h := NewGrievanceHandler(svc, &grievanceQueryMock{})

	c, w := newGinContext(http.MethodPut, "/grievances/g1/status", []byte(`{"status":"Resolved"}`))
	c.Params = gin.Params{{Key: "id", Value: "g1"}}
	c.Set(middleware.ContextViewerKey, staffViewer)

	h.UpdateStatus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "g1", svc.updateID)
	assert.Equal(t, "Resolved", svc.updateStatus)
}

func TestGrievanceHandlerMapsServiceErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", appErrors.Clone(appErrors.ErrNotFound, "grievance not found"), http.StatusNotFound},
		{"unauthorized", appErrors.Clone(appErrors.ErrUnauthorized, "nope"), http.StatusUnauthorized},
		{"busy", appErrors.ErrRecordBusy, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewGrievanceHandler(&grievanceServiceMock{err: tt.err}, &grievanceQueryMock{})
			c, w := newGinContext(http.MethodPost, "/grievances/g1/comment", []byte(`{"comment":"hi"}`))
			c.Params = gin.Params{{Key: "id", Value: "g1"}}
			h.AddComment(c)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestGrievanceHandlerAddComment(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &grievanceServiceMock{comment: &models.Comment{ID: "c1", Text: "on it", IsPrivileged: true}}
	h := NewGrievanceHandler(svc, &grievanceQueryMock{})

	c, w := newGinContext(http.MethodPost, "/grievances/g1/comment", []byte(`{"comment":"on it"}`))
	c.Params = gin.Params{{Key: "id", Value: "g1"}}
	c.Set(middleware.ContextViewerKey, staffViewer)

	h.AddComment(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"isPrivileged":true`)
}
