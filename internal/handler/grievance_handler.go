package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/grievance-api/internal/dto"
	"github.com/noah-isme/grievance-api/internal/middleware"
	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
	"github.com/noah-isme/grievance-api/pkg/response"
)

type grievanceService interface {
	Submit(ctx context.Context, req dto.SubmitGrievanceRequest, viewer models.Viewer) (*dto.SubmitGrievanceResponse, error)
	UpdateStatus(ctx context.Context, id, status string, viewer models.Viewer) (*models.Grievance, error)
	AddComment(ctx context.Context, id, text string, viewer models.Viewer) (*models.Comment, error)
	Get(ctx context.Context, id string, viewer models.Viewer) (*models.Grievance, error)
}

type grievanceQuery interface {
	List(ctx context.Context, filter models.GrievanceFilter, viewer models.Viewer) ([]models.Grievance, error)
}

// GrievanceHandler exposes grievance submission, listing and triage endpoints.
type GrievanceHandler struct {
	grievances grievanceService
	query      grievanceQuery
}

// NewGrievanceHandler constructs a GrievanceHandler.
func NewGrievanceHandler(grievances grievanceService, query grievanceQuery) *GrievanceHandler {
	return &GrievanceHandler{grievances: grievances, query: query}
}

// Submit godoc
// @Summary Submit grievance
// @Description Classifies the grievance by AI or keyword fallback unless manualDepartment is set
// @Tags Grievances
// @Accept json
// @Produce json
// @Param payload body dto.SubmitGrievanceRequest true "Grievance payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /grievances [post]
func (h *GrievanceHandler) Submit(c *gin.Context) {
	var req dto.SubmitGrievanceRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.grievances.Submit(c.Request.Context(), req, viewerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetClassificationSource(c, res.Classification.Source)
	response.JSON(c, http.StatusCreated, res, middleware.ExtractMeta(c))
}

// List godoc
// @Summary List grievances
// @Description HODs only see their department; anonymous submitters are hidden from non-staff
// @Tags Grievances
// @Produce json
// @Param userOnly query string false "Only the caller's own grievances when \"true\""
// @Param priority query string false "High, Medium, Low or All"
// @Param status query string false "Pending, In Progress, Resolved, Rejected or All"
// @Param department query string false "Department name or All"
// @Success 200 {object} response.Envelope
// @Router /grievances [get]
func (h *GrievanceHandler) List(c *gin.Context) {
	var q dto.GrievanceListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}

	items, err := h.query.List(c.Request.Context(), q.Filter(), viewerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"grievances": items})
}

// Get godoc
// @Summary Get grievance
// @Tags Grievances
// @Produce json
// @Param id path string true "Grievance ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grievances/{id} [get]
func (h *GrievanceHandler) Get(c *gin.Context) {
	g, err := h.grievances.Get(c.Request.Context(), c.Param("id"), viewerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"grievance": g})
}

// UpdateStatus godoc
// @Summary Update grievance status
// @Tags Grievances
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Grievance ID"
// @Param payload body dto.UpdateStatusRequest true "New status"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /grievances/{id}/status [put]
func (h *GrievanceHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	g, err := h.grievances.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, viewerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"grievance": g})
}

// AddComment godoc
// @Summary Comment on grievance
// @Tags Grievances
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Grievance ID"
// @Param payload body dto.AddCommentRequest true "Comment"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grievances/{id}/comment [post]
func (h *GrievanceHandler) AddComment(c *gin.Context) {
	var req dto.AddCommentRequest
	if !bindJSON(c, &req) {
		return
	}

	comment, err := h.grievances.AddComment(c.Request.Context(), c.Param("id"), req.Comment, viewerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"comment": comment})
}
