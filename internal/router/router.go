package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/cohort-api/internal/handler"
	"github.com/noah-isme/cohort-api/internal/middleware"
	"github.com/noah-isme/cohort-api/internal/models"
	"github.com/noah-isme/cohort-api/internal/service"
	"github.com/noah-isme/cohort-api/pkg/config"
)

// ActionAliasPath keeps the legacy function URL working for existing clients.
const ActionAliasPath = "/functions/approve-application"

// RosterDownloadPath is the path, relative to the API prefix, that serves signed roster links.
const RosterDownloadPath = "/roster-downloads"

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	Auth     *service.AuthService
	Profiles *service.ProfileService
	Audit    middleware.AuditRecorder
	Metrics  *service.MetricsService

	ActionHandler     *handler.ActionHandler
	UserHandler       *handler.UserHandler
	AssessmentHandler *handler.AssessmentHandler
	SubmissionHandler *handler.SubmissionHandler
	RosterHandler     *handler.RosterHandler
	MetricsHandler    *handler.MetricsHandler
}

// Register wires the HTTP routes into the gin engine.
func Register(r *gin.Engine, cfg *config.Config, deps Dependencies) {
	if deps.MetricsHandler != nil {
		r.GET("/health", deps.MetricsHandler.Health)
		r.GET("/ready", deps.MetricsHandler.Ready)
		if cfg.Metrics.Enabled {
			r.GET("/metrics", deps.MetricsHandler.Prometheus)
		}
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authenticated := middleware.JWT(deps.Auth)
	resolved := []gin.HandlerFunc{authenticated, middleware.ResolveCaller(deps.Profiles)}
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleMentor)
	students := middleware.RequireRoles(models.RoleStudent)

	api := r.Group(cfg.APIPrefix)

	// Profiles are reachable before approval.
	if deps.UserHandler != nil {
		profiles := api.Group("/profiles", authenticated)
		profiles.POST("/me", deps.UserHandler.EnsureMe)
		profiles.GET("/me", deps.UserHandler.Me)
	}

	secured := api.Group("", resolved...)

	if deps.ActionHandler != nil {
		secured.GET("/actions", deps.ActionHandler.Query)
		secured.POST("/actions", deps.ActionHandler.Execute)

		alias := r.Group(ActionAliasPath, resolved...)
		alias.GET("", deps.ActionHandler.Query)
		alias.POST("", deps.ActionHandler.Execute)
	}

	if deps.UserHandler != nil {
		users := secured.Group("/users", middleware.RequireRoles(models.RoleAdmin))
		users.GET("", deps.UserHandler.List)
		users.DELETE("/:id", deps.UserHandler.Delete)
	}

	if deps.AssessmentHandler != nil {
		secured.GET("/programs/:id/assessments", deps.AssessmentHandler.List)
		secured.POST("/programs/:id/assessments", staff, deps.AssessmentHandler.Create)
		secured.GET("/assessments/:id", deps.AssessmentHandler.Get)
		secured.PUT("/assessments/:id", staff, deps.AssessmentHandler.Update)
		secured.DELETE("/assessments/:id", staff, deps.AssessmentHandler.Delete)
		secured.GET("/assessments/:id/answers", staff,
			middleware.Audit(deps.Audit, models.AuditAnswerKeyView, "assessment", "id"),
			deps.AssessmentHandler.Answers)
	}

	if deps.SubmissionHandler != nil {
		secured.POST("/assessments/:id/submissions", students, deps.SubmissionHandler.Submit)
		secured.GET("/assessments/:id/submissions", staff, deps.SubmissionHandler.List)
		secured.GET("/assessments/:id/submissions/me", students, deps.SubmissionHandler.Mine)
		secured.PUT("/submissions/:id/grade", staff, deps.SubmissionHandler.Grade)
	}

	if deps.RosterHandler != nil {
		// The signed token is the credential.
		api.GET(RosterDownloadPath+"/:token", deps.RosterHandler.Download)
		secured.GET("/programs/:id/roster", staff,
			middleware.Audit(deps.Audit, models.AuditRosterExport, "program", "id"),
			deps.RosterHandler.Export)
	}
}
