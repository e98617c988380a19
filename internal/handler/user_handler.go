package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/grievance-api/internal/models"
	"github.com/noah-isme/grievance-api/pkg/response"
)

type userService interface {
	List(ctx context.Context, viewer models.Viewer) ([]models.UserInfo, error)
	Delete(ctx context.Context, id string, viewer models.Viewer) error
}

// UserHandler handles admin user management endpoints.
type UserHandler struct {
	service userService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc userService) *UserHandler {
	return &UserHandler{service: svc}
}

// List godoc
// @Summary List users
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.service.List(c.Request.Context(), viewerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"users": users})
}

// Delete godoc
// @Summary Delete user
// @Description Admins cannot delete their own account
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), viewerFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{})
}
