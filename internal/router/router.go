// Package router assembles the gin engine and the grievance API routes.
package router

import (
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/handler"
	"github.com/noah-isme/grievance-api/internal/middleware"
	"github.com/noah-isme/grievance-api/internal/models"
	"github.com/noah-isme/grievance-api/internal/service"
	"github.com/noah-isme/grievance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/grievance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/grievance-api/pkg/middleware/requestid"
)

// Options controls engine-wide middleware.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	Logger         *zap.Logger
	Metrics        *service.MetricsService
	Resolver       middleware.ViewerResolver
}

// Handlers groups the HTTP handlers served under the API prefix.
type Handlers struct {
	Auth       *handler.AuthHandler
	Grievance  *handler.GrievanceHandler
	Department *handler.DepartmentHandler
	Report     *handler.ReportHandler
	User       *handler.UserHandler
	Metrics    *handler.MetricsHandler
}

// New builds the engine. /metrics and /docs live at the root; everything else under APIPrefix.
func New(opts Options, h Handlers) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics))

	r.GET("/metrics", h.Metrics.Prometheus)
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(normalizePrefix(opts.APIPrefix))
	api.Use(middleware.WithResponseMeta())
	api.Use(middleware.Authenticate(opts.Resolver))

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleHOD)
	admin := middleware.RequireRoles(models.RoleAdmin)
	signedIn := middleware.RequireAuthenticated()

	api.GET("/health", h.Metrics.Health)

	api.POST("/signup", h.Auth.Signup)
	api.POST("/login", h.Auth.Login)
	api.GET("/me", signedIn, h.Auth.Me)

	api.POST("/grievances", h.Grievance.Submit)
	api.GET("/grievances", h.Grievance.List)
	api.GET("/grievances/export", staff, h.Report.Export)
	api.GET("/grievances/:id", h.Grievance.Get)
	api.PUT("/grievances/:id/status", staff, h.Grievance.UpdateStatus)
	api.POST("/grievances/:id/comment", signedIn, h.Grievance.AddComment)

	api.GET("/stats", staff, h.Report.Stats)
	api.GET("/ai/logs", staff, h.Report.AILogs)
	api.GET("/user-stats", signedIn, h.Report.UserStats)

	api.GET("/departments", h.Department.List)
	api.POST("/departments", admin, h.Department.Create)
	api.PUT("/departments/:id", admin, h.Department.Update)
	api.DELETE("/departments/:id", admin, h.Department.Delete)

	api.GET("/users", admin, h.User.List)
	api.DELETE("/users/:id", admin, h.User.Delete)

	return r
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" || prefix == "/" {
		return "/"
	}
	return "/" + strings.Trim(prefix, "/")
}
