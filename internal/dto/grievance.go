package dto

import (
	"encoding/json"

	"github.com/noah-isme/grievance-api/internal/models"
)

// SubmitGrievanceRequest is the payload for filing a grievance.
type SubmitGrievanceRequest struct {
	Title            string          `json:"title" validate:"required"`
	Description      string          `json:"description" validate:"required"`
	IsAnonymous      bool            `json:"isAnonymous"`
	ManualDepartment string          `json:"manualDepartment"`
	Attachment       json.RawMessage `json:"attachment,omitempty" swaggertype:"object"`
}

// SubmitGrievanceResponse returns the stored grievance and how it was routed.
type SubmitGrievanceResponse struct {
	Grievance      models.Grievance      `json:"grievance"`
	Classification models.Classification `json:"classification"`
}

// UpdateStatusRequest changes a grievance's status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// AddCommentRequest appends a comment.
type AddCommentRequest struct {
	Comment string `json:"comment"`
}

// GrievanceListQuery captures list and export query parameters.
// UserOnly is enabled only by the literal value "true".
type GrievanceListQuery struct {
	UserOnly   string `form:"userOnly"`
	Priority   string `form:"priority"`
	Status     string `form:"status"`
	Department string `form:"department"`
	Format     string `form:"format"`
}

// Filter converts the query into a model filter.
func (q GrievanceListQuery) Filter() models.GrievanceFilter {
	return models.GrievanceFilter{
		UserOnly:   q.UserOnly == "true",
		Priority:   q.Priority,
		Status:     q.Status,
		Department: q.Department,
	}
}
