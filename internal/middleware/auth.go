package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/grievance-api/internal/models"
)

// ContextViewerKey is the gin context key storing the resolved models.Viewer.
const ContextViewerKey = "viewer"

// ViewerResolver maps a bearer value to a request identity.
type ViewerResolver interface {
	ResolveViewer(ctx context.Context, bearer string) models.Viewer
}

// Authenticate resolves the caller from the Authorization header. It never rejects a
// request: missing, malformed, anonymous-key and invalid tokens become the anonymous viewer.
func Authenticate(resolver ViewerResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		viewer := models.AnonymousViewer()
		if token, ok := bearerToken(c.GetHeader("Authorization")); ok {
			viewer = resolver.ResolveViewer(c.Request.Context(), token)
		}
		c.Set(ContextViewerKey, viewer)
		c.Next()
	}
}

// ViewerFrom returns the viewer stored by Authenticate, or the anonymous viewer.
func ViewerFrom(c *gin.Context) models.Viewer {
	if v, exists := c.Get(ContextViewerKey); exists {
		if viewer, ok := v.(models.Viewer); ok {
			return viewer
		}
	}
	return models.AnonymousViewer()
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
