package router

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
	"github.com/kiddohub/kindergarten-admin-api/internal/handler"
	"github.com/kiddohub/kindergarten-admin-api/internal/middleware"
	"github.com/kiddohub/kindergarten-admin-api/internal/models"
	"github.com/kiddohub/kindergarten-admin-api/internal/repository"
	"github.com/kiddohub/kindergarten-admin-api/internal/service"
	"github.com/kiddohub/kindergarten-admin-api/pkg/logger"
	corsmiddleware "github.com/kiddohub/kindergarten-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/kiddohub/kindergarten-admin-api/pkg/middleware/requestid"
)

// Dependencies collects everything the HTTP surface needs.
type Dependencies struct {
	Logger *zap.Logger

	Auth          *service.AuthService
	Captcha       *service.CaptchaService
	Organizations *service.OrganizationService
	Classes       *service.ClassService
	Children      *service.ChildService
	Teachers      *service.TeacherService
	Areas         *service.SelectionAreaService
	Records       *service.SelectionRecordService
	Dashboard     *service.DashboardService
	Exports       *service.ExportService
	Imports       *service.ImportService
	Users         *service.UserService
	Media         *service.MediaService
	Metrics       *service.MetricsService

	UserRepo    *repository.UserRepository
	TeacherRepo *repository.TeacherRepository

	DB    *sqlx.DB
	Redis *redis.Client

	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
}

// New assembles the gin engine with all routes and middleware.
func New(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(deps.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	health := handler.NewHealthHandler(deps.DB, deps.Redis)
	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)

	metricsHandler := handler.NewMetricsHandler(deps.Metrics)
	r.GET("/metrics", metricsHandler.Prometheus)

	if deps.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(deps.Auth, deps.Captcha)
	orgHandler := handler.NewOrganizationHandler(deps.Organizations, deps.Imports)
	classHandler := handler.NewClassHandler(deps.Classes, deps.Imports)
	childHandler := handler.NewChildHandler(deps.Children, deps.Imports, deps.Media)
	teacherHandler := handler.NewTeacherHandler(deps.Teachers, deps.Imports)
	areaHandler := handler.NewSelectionAreaHandler(deps.Areas, deps.Media)
	recordHandler := handler.NewSelectionRecordHandler(deps.Records, deps.Classes, deps.Exports, deps.Metrics)
	dashboardHandler := handler.NewDashboardHandler(deps.Dashboard)
	userHandler := handler.NewUserHandler(deps.Users)

	prefix := deps.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)

	// Public auth surface plus token-guarded export downloads. Download
	// links carry their own signed token, so no JWT is required.
	api.GET("/auth/captcha", authHandler.Captcha)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)
	api.POST("/auth/reset-password", authHandler.ResetPassword)
	api.GET("/selection-records/export/download/:token", recordHandler.Download)

	session := api.Group("")
	session.Use(middleware.JWT(deps.Auth))
	session.POST("/auth/logout", authHandler.Logout)
	session.POST("/auth/change-password", authHandler.ChangePassword)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.Auth))
	secured.Use(middleware.Principal(deps.UserRepo, deps.TeacherRepo, deps.Logger))

	admin := middleware.RequireRoles(authz.RoleOwner, authz.RolePrincipal)
	ownerOnly := middleware.RequireRoles(authz.RoleOwner)

	orgs := secured.Group("/organizations")
	orgs.GET("", admin, orgHandler.List)
	orgs.GET("/:id", admin, orgHandler.Get)
	orgs.POST("", ownerOnly, middleware.Audit(deps.UserRepo, models.AuditActionCreate, "organization"), orgHandler.Create)
	orgs.PUT("/:id", admin, middleware.Audit(deps.UserRepo, models.AuditActionUpdate, "organization"), orgHandler.Update)
	orgs.PATCH("/:id/active", ownerOnly, middleware.Audit(deps.UserRepo, models.AuditActionUpdate, "organization"), orgHandler.SetActive)
	orgs.DELETE("/:id", ownerOnly, middleware.Audit(deps.UserRepo, models.AuditActionDelete, "organization"), orgHandler.Delete)
	orgs.POST("/import", ownerOnly, orgHandler.Import)
	orgs.GET("/import/template", ownerOnly, orgHandler.ImportTemplate)
	orgs.GET("/export", admin, orgHandler.Export)

	classes := secured.Group("/classes")
	classes.GET("", classHandler.List)
	classes.GET("/:id", classHandler.Get)
	classes.POST("", admin, classHandler.Create)
	classes.PUT("/:id", admin, classHandler.Update)
	classes.DELETE("/:id", admin, middleware.Audit(deps.UserRepo, models.AuditActionDelete, "class"), classHandler.Delete)
	classes.POST("/import", admin, classHandler.Import)
	classes.GET("/import/template", admin, classHandler.ImportTemplate)
	classes.GET("/export", classHandler.Export)

	children := secured.Group("/children")
	children.GET("", childHandler.List)
	children.GET("/:id", childHandler.Get)
	children.POST("", admin, childHandler.Create)
	children.PUT("/:id", admin, childHandler.Update)
	children.DELETE("/:id", admin, middleware.Audit(deps.UserRepo, models.AuditActionDelete, "child"), childHandler.Delete)
	children.PATCH("/:id/active", admin, middleware.Audit(deps.UserRepo, models.AuditActionUpdate, "child"), childHandler.SetActive)
	children.GET("/:id/avatar", childHandler.Avatar)
	children.POST("/:id/avatar", admin, childHandler.UploadAvatar)
	children.DELETE("/:id/avatar", admin, childHandler.DeleteAvatar)
	children.POST("/import", admin, childHandler.Import)
	children.GET("/import/template", admin, childHandler.ImportTemplate)
	children.GET("/export", childHandler.Export)

	teachers := secured.Group("/teachers")
	teachers.GET("", teacherHandler.List)
	teachers.GET("/:id", teacherHandler.Get)
	teachers.POST("", admin, teacherHandler.Create)
	teachers.PUT("/:id", admin, teacherHandler.Update)
	teachers.PUT("/:id/classes", admin, teacherHandler.AssignClasses)
	teachers.DELETE("/:id", admin, middleware.Audit(deps.UserRepo, models.AuditActionDelete, "teacher"), teacherHandler.Delete)
	teachers.PATCH("/:id/active", admin, middleware.Audit(deps.UserRepo, models.AuditActionUpdate, "teacher"), teacherHandler.SetActive)
	teachers.POST("/import", admin, teacherHandler.Import)
	teachers.GET("/import/template", admin, teacherHandler.ImportTemplate)
	teachers.GET("/export", teacherHandler.Export)

	areas := secured.Group("/selection-areas")
	areas.GET("", areaHandler.List)
	areas.GET("/:id", areaHandler.Get)
	areas.POST("", admin, areaHandler.Create)
	areas.PUT("/:id", admin, areaHandler.Update)
	areas.DELETE("/:id", admin, middleware.Audit(deps.UserRepo, models.AuditActionDelete, "selection_area"), areaHandler.Delete)
	areas.GET("/:id/image", areaHandler.Image)
	areas.POST("/:id/image", admin, areaHandler.UploadImage)
	areas.DELETE("/:id/image", admin, areaHandler.DeleteImage)

	records := secured.Group("/selection-records")
	records.GET("", recordHandler.List)
	records.GET("/board", recordHandler.Board)
	records.GET("/daily-sheet", recordHandler.DailySheet)
	records.GET("/:id", recordHandler.Get)
	records.POST("", recordHandler.Assign)
	records.POST("/batch", recordHandler.BatchAssign)
	records.POST("/:id/end", recordHandler.End)
	records.POST("/export", recordHandler.StartExport)
	records.GET("/export", recordHandler.ExportCSV)
	records.GET("/export/jobs/:id", recordHandler.ExportJob)

	secured.GET("/dashboard", dashboardHandler.Stats)
	secured.GET("/dashboard/activity", dashboardHandler.Activity)

	users := secured.Group("/users")
	users.GET("/me", userHandler.Me)
	users.GET("", admin, userHandler.List)
	users.GET("/:id", userHandler.Get)
	users.POST("", admin, middleware.Audit(deps.UserRepo, models.AuditActionCreate, "user"), userHandler.Create)
	users.PUT("/:id", admin, middleware.Audit(deps.UserRepo, models.AuditActionUpdate, "user"), userHandler.Update)
	users.DELETE("/:id", admin, middleware.Audit(deps.UserRepo, models.AuditActionDelete, "user"), userHandler.Delete)

	return r
}
