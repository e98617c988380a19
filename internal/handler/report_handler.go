package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/grievance-api/internal/dto"
	"github.com/noah-isme/grievance-api/internal/middleware"
	"github.com/noah-isme/grievance-api/internal/models"
	"github.com/noah-isme/grievance-api/internal/service"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
	"github.com/noah-isme/grievance-api/pkg/response"
)

type reportQuery interface {
	Stats(ctx context.Context, viewer models.Viewer) (models.GrievanceStats, bool, error)
	UserStats(ctx context.Context, viewer models.Viewer) (models.UserStats, error)
	AILogs(ctx context.Context, viewer models.Viewer) ([]models.AILog, error)
}

type exporter interface {
	Export(ctx context.Context, filter models.GrievanceFilter, format string, viewer models.Viewer) (*service.ExportResult, error)
}

// ReportHandler serves statistics, AI classification logs and exports.
type ReportHandler struct {
	query  reportQuery
	export exporter
}

// NewReportHandler constructs a ReportHandler.
func NewReportHandler(query reportQuery, export exporter) *ReportHandler {
	return &ReportHandler{query: query, export: export}
}

// Stats godoc
// @Summary Grievance statistics
// @Description Totals by priority, status and department. HODs see their department only.
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /stats [get]
func (h *ReportHandler) Stats(c *gin.Context) {
	stats, hit, err := h.query.Stats(c.Request.Context(), viewerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, gin.H{"stats": stats}, middleware.ExtractMeta(c))
}

// UserStats godoc
// @Summary Own grievance statistics
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /user-stats [get]
func (h *ReportHandler) UserStats(c *gin.Context) {
	stats, err := h.query.UserStats(c.Request.Context(), viewerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"stats": stats})
}

// AILogs godoc
// @Summary Recent AI classification logs
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /ai/logs [get]
func (h *ReportHandler) AILogs(c *gin.Context) {
	logs, err := h.query.AILogs(c.Request.Context(), viewerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"logs": logs})
}

// Export godoc
// @Summary Export grievances
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param format query string false "csv, pdf or xlsx"
// @Param priority query string false "Priority filter"
// @Param status query string false "Status filter"
// @Param department query string false "Department filter"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /grievances/export [get]
func (h *ReportHandler) Export(c *gin.Context) {
	var q dto.GrievanceListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}

	res, err := h.export.Export(c.Request.Context(), q.Filter(), q.Format, viewerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, res.Filename, res.ContentType, res.Data)
}
