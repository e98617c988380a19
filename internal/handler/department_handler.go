package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/grievance-api/internal/models"
	"github.com/noah-isme/grievance-api/pkg/response"
)

type departmentService interface {
	List(ctx context.Context) ([]models.Department, error)
	Create(ctx context.Context, req models.DepartmentRequest, viewer models.Viewer) (*models.Department, error)
	Update(ctx context.Context, id string, req models.DepartmentRequest, viewer models.Viewer) (*models.Department, error)
	Delete(ctx context.Context, id string, viewer models.Viewer) error
}

// DepartmentHandler manages the routing departments.
type DepartmentHandler struct {
	service departmentService
}

// NewDepartmentHandler constructs a DepartmentHandler.
func NewDepartmentHandler(svc departmentService) *DepartmentHandler {
	return &DepartmentHandler{service: svc}
}

// List godoc
// @Summary List departments
// @Tags Departments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /departments [get]
func (h *DepartmentHandler) List(c *gin.Context) {
	departments, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"departments": departments})
}

// Create godoc
// @Summary Create department
// @Tags Departments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.DepartmentRequest true "Department"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /departments [post]
func (h *DepartmentHandler) Create(c *gin.Context) {
	var req models.DepartmentRequest
	if !bindJSON(c, &req) {
		return
	}
	department, err := h.service.Create(c.Request.Context(), req, viewerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"department": department})
}

// Update godoc
// @Summary Update department
// @Tags Departments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Department ID"
// @Param payload body models.DepartmentRequest true "Department"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /departments/{id} [put]
func (h *DepartmentHandler) Update(c *gin.Context) {
	var req models.DepartmentRequest
	if !bindJSON(c, &req) {
		return
	}
	department, err := h.service.Update(c.Request.Context(), c.Param("id"), req, viewerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"department": department})
}

// Delete godoc
// @Summary Delete department
// @Tags Departments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Department ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /departments/{id} [delete]
func (h *DepartmentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), viewerFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{})
}
