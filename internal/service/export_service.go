package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
	"github.com/noah-isme/grievance-api/pkg/export"
)

// Export formats.
const (
	ExportFormatCSV  = "csv"
	ExportFormatPDF  = "pdf"
	ExportFormatXLSX = "xlsx"
)

const exportTitle = "Grievance Report"

var exportHeaders = []string{"ID", "Title", "Department", "Priority", "Status", "Submitted By", "Anonymous", "Comments", "Created At", "Updated At"}

type visibleGrievanceLister interface {
	List(ctx context.Context, filter models.GrievanceFilter, viewer models.Viewer) ([]models.Grievance, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset, sheet string) ([]byte, error)
}

// ExportResult is a rendered report ready to stream.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}

// ExportService renders the grievances a viewer can see into downloadable files.
type ExportService struct {
	query  visibleGrievanceLister
	csv    csvRenderer
	pdf    pdfRenderer
	xlsx   xlsxRenderer
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers use the pkg/export defaults.
func NewExportService(query visibleGrievanceLister, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer, xlsx xlsxRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	return &ExportService{query: query, csv: csv, pdf: pdf, xlsx: xlsx, logger: logger, now: utcNow}
}

// Export renders the filtered grievance list in format. Only admins and HODs may export.
func (s *ExportService) Export(ctx context.Context, filter models.GrievanceFilter, format string, viewer models.Viewer) (*ExportResult, error) {
	if !viewer.IsPrivileged() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "only admins and heads of department can export grievances")
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF && format != ExportFormatXLSX {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv, pdf or xlsx")
	}

	items, err := s.query.List(ctx, filter, viewer)
	if err != nil {
		return nil, err
	}
	dataset := grievanceDataset(items)

	var (
		payload     []byte
		contentType string
	)
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = export.ContentTypeCSV
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, exportTitle)
		contentType = export.ContentTypePDF
	case ExportFormatXLSX:
		payload, err = s.xlsx.Render(dataset, "Grievances")
		contentType = export.ContentTypeXLSX
	}
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render export")
	}

	filename := fmt.Sprintf("grievances-%s.%s", s.now().Format("20060102-150405"), format)
	s.logger.Info("grievances exported",
		zap.String("user_id", viewer.UserID),
		zap.String("format", format),
		zap.Int("rows", len(items)),
	)
	return &ExportResult{Filename: filename, ContentType: contentType, Data: payload, Rows: len(items)}, nil
}

func grievanceDataset(items []models.Grievance) export.Dataset {
	rows := make([]map[string]string, 0, len(items))
	for _, g := range items {
		rows = append(rows, map[string]string{
			"ID":           g.ID,
			"Title":        g.Title,
			"Department":   g.Department,
			"Priority":     string(g.Priority),
			"Status":       string(g.Status),
			"Submitted By": g.SubmitterName,
			"Anonymous":    strconv.FormatBool(g.IsAnonymous),
			"Comments":     strconv.Itoa(len(g.Comments)),
			"Created At":   g.CreatedAt.Format(time.RFC3339),
			"Updated At":   g.UpdatedAt.Format(time.RFC3339),
		})
	}
	return export.Dataset{Headers: exportHeaders, Rows: rows}
}
