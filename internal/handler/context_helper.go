package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/grievance-api/internal/middleware"
	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
	"github.com/noah-isme/grievance-api/pkg/response"
)

func viewerFromContext(c *gin.Context) models.Viewer {
	return middleware.ViewerFrom(c)
}

// bindJSON decodes the request body and answers 400 on malformed input.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}
