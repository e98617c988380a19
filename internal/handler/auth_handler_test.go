package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grievance-api/internal/middleware"
	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
)

type authServiceMock struct {
	signupReq models.SignupRequest
	loginErr  error
}

func (m *authServiceMock) Signup(_ context.Context, req models.SignupRequest) (*models.UserInfo, error) {
	m.signupReq = req
	return &models.UserInfo{ID: "u1", Email: req.Email, Name: req.Name}, nil
}

func (m *authServiceMock) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	return &models.LoginResponse{AccessToken: "token", ExpiresIn: 3600, User: models.UserInfo{ID: "u1", Email: req.Email}}, nil
}

func (m *authServiceMock) Me(_ context.Context, viewer models.Viewer) (*models.UserInfo, error) {
	return &models.UserInfo{ID: viewer.UserID, Name: viewer.Name}, nil
}

func TestAuthHandlerSignup(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &authServiceMock{}
	h := NewAuthHandler(svc)

	c, w := newGinContext(http.MethodPost, "/signup", []byte(`{"name":"Asha","email":"asha@college.edu","password":"secret1","role":"hod","department":"Accounts"}`))
	h.Signup(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.RoleHOD, svc.signupReq.Role)
	assert.Equal(t, "Accounts", svc.signupReq.Department)
	assert.Contains(t, w.Body.String(), `"user":{`)
}

func TestAuthHandlerLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, w := newGinContext(http.MethodPost, "/login", []byte(`{"email":"asha@college.edu","password":"secret1"}`))
	NewAuthHandler(&authServiceMock{}).Login(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"accessToken":"token"`)

	c, w = newGinContext(http.MethodPost, "/login", []byte(`{"email":"asha@college.edu","password":"bad"}`))
	NewAuthHandler(&authServiceMock{loginErr: appErrors.Clone(appErrors.ErrInvalidLogin, "")}).Login(c)
	assert.Equal(t, appErrors.ErrInvalidLogin.Status, w.Code)
}

func TestAuthHandlerMe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, w := newGinContext(http.MethodGet, "/me", nil)
	c.Set(middleware.ContextViewerKey, models.Viewer{UserID: "u9", Name: "Ravi", Role: models.RoleTeacher, Authenticated: true})

	NewAuthHandler(&authServiceMock{}).Me(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"u9"`)
}
