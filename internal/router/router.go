package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/school-admin-api/internal/handler"
	"github.com/noah-isme/school-admin-api/internal/middleware"
	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/internal/service"
	"github.com/noah-isme/school-admin-api/pkg/config"
	"github.com/noah-isme/school-admin-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/school-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/school-admin-api/pkg/middleware/requestid"
)

// Dependencies carries everything the router wires together.
type Dependencies struct {
	Config  *config.Config
	Logger  *zap.Logger
	Auth    *service.AuthService
	Metrics *service.MetricsService

	AuthHandler         *handler.AuthHandler
	UserHandler         *handler.UserHandler
	GradeHandler        *handler.GradeHandler
	SubjectHandler      *handler.SubjectHandler
	ClassHandler        *handler.ClassHandler
	TeacherHandler      *handler.TeacherHandler
	StudentHandler      *handler.StudentHandler
	ExamHandler         *handler.ExamHandler
	ScoreHandler        *handler.ScoreHandler
	AnalyticsHandler    *handler.AnalyticsHandler
	NotificationHandler *handler.NotificationHandler
	SettingHandler      *handler.SettingHandler
	TaskHandler         *handler.TaskHandler
}

// New assembles the gin engine with middleware and every route group.
func New(deps Dependencies) *gin.Engine {
	if deps.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(deps.Config.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	if deps.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(deps.Config.APIPrefix)

	staffOnly := middleware.RequireRoles(models.RoleAdmin, models.RoleHeadteacher, models.RoleTeacher)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	adminOrHead := middleware.RequireRoles(models.RoleAdmin, models.RoleHeadteacher)

	auth := api.Group("/auth")
	{
		auth.POST("/login", deps.AuthHandler.Login)
		auth.POST("/refresh", deps.AuthHandler.Refresh)
		auth.POST("/logout", middleware.JWT(deps.Auth), deps.AuthHandler.Logout)
		auth.PUT("/password", middleware.JWT(deps.Auth), deps.AuthHandler.ChangePassword)
	}

	api.GET("/settings/public", deps.SettingHandler.Public)
	api.GET("/tasks/reports/download", deps.TaskHandler.Download)

	protected := api.Group("")
	protected.Use(middleware.JWT(deps.Auth))

	users := protected.Group("/users")
	{
		users.GET("/me", deps.UserHandler.Me)
		users.GET("", adminOnly, deps.UserHandler.List)
		users.GET("/:id", adminOnly, deps.UserHandler.Get)
		users.POST("", adminOnly, deps.UserHandler.Create)
		users.PUT("/:id", adminOnly, deps.UserHandler.Update)
		users.DELETE("/:id", adminOnly, deps.UserHandler.Deactivate)
	}

	grades := protected.Group("/grades")
	{
		grades.GET("", deps.GradeHandler.List)
		grades.GET("/:id", deps.GradeHandler.Get)
		grades.POST("", adminOnly, deps.GradeHandler.Create)
		grades.PUT("/:id", adminOnly, deps.GradeHandler.Update)
		grades.DELETE("/:id", adminOnly, deps.GradeHandler.Delete)
	}

	subjects := protected.Group("/subjects")
	{
		subjects.GET("", deps.SubjectHandler.List)
		subjects.GET("/:id", deps.SubjectHandler.Get)
		subjects.POST("", adminOnly, deps.SubjectHandler.Create)
		subjects.PUT("/:id", adminOnly, deps.SubjectHandler.Update)
		subjects.DELETE("/:id", adminOnly, deps.SubjectHandler.Delete)
	}

	classes := protected.Group("/classes")
	{
		classes.GET("", deps.ClassHandler.List)
		classes.GET("/:id", deps.ClassHandler.Get)
		classes.GET("/:id/students", deps.ClassHandler.Students)
		classes.GET("/:id/teachers", deps.ClassHandler.Teachers)
		classes.POST("", adminOnly, deps.ClassHandler.Create)
		classes.PUT("/:id", adminOnly, deps.ClassHandler.Update)
		classes.DELETE("/:id", adminOnly, deps.ClassHandler.Delete)
		classes.POST("/:id/teachers", adminOnly, deps.ClassHandler.AssignTeacher)
		classes.DELETE("/:id/teachers/:teacherId", adminOnly, deps.ClassHandler.UnassignTeacher)
		classes.GET("/roster/template", staffOnly, deps.ClassHandler.RosterTemplate)
		classes.GET("/:id/students/export", staffOnly, deps.ClassHandler.ExportRoster)
		classes.POST("/:id/students/import", adminOnly, deps.ClassHandler.ImportRoster)
	}

	teachers := protected.Group("/teachers")
	{
		teachers.GET("", deps.TeacherHandler.List)
		teachers.GET("/:id", deps.TeacherHandler.Get)
		teachers.POST("", adminOnly, deps.TeacherHandler.Create)
		teachers.PUT("/:id", adminOnly, deps.TeacherHandler.Update)
		teachers.DELETE("/:id", adminOnly, deps.TeacherHandler.Delete)
	}

	students := protected.Group("/students")
	{
		students.GET("", staffOnly, deps.StudentHandler.List)
		students.GET("/:id", deps.StudentHandler.Get)
		students.POST("", adminOnly, deps.StudentHandler.Create)
		students.PUT("/:id", adminOnly, deps.StudentHandler.Update)
		students.DELETE("/:id", adminOnly, deps.StudentHandler.Delete)
	}

	exams := protected.Group("/exams")
	{
		exams.GET("", deps.ExamHandler.List)
		exams.GET("/:id", deps.ExamHandler.Get)
		exams.GET("/groups/:groupId", deps.ExamHandler.Group)
		exams.POST("", staffOnly, deps.ExamHandler.Create)
		exams.PUT("/:id", staffOnly, deps.ExamHandler.Update)
		exams.DELETE("/:id", adminOnly, deps.ExamHandler.Delete)
	}

	scores := protected.Group("/scores")
	{
		scores.GET("", deps.ScoreHandler.List)
		scores.GET("/:id", deps.ScoreHandler.Get)
		scores.POST("", staffOnly, deps.ScoreHandler.Create)
		scores.PUT("/:id", staffOnly, deps.ScoreHandler.Update)
		scores.DELETE("/:id", staffOnly, deps.ScoreHandler.Delete)
		scores.GET("/import/template", staffOnly, deps.ScoreHandler.Template)
		scores.POST("/import", staffOnly, deps.ScoreHandler.Import)
		scores.GET("/export", staffOnly, deps.ScoreHandler.Export)
	}

	analytics := protected.Group("/analytics")
	{
		analytics.GET("/class-scores", deps.AnalyticsHandler.ClassScores)
		analytics.GET("/historical", deps.AnalyticsHandler.Historical)
		analytics.GET("/students/:id/trend", deps.AnalyticsHandler.StudentTrend)
		analytics.GET("/students/:id/statistics", deps.AnalyticsHandler.StudentStatistics)
		analytics.GET("/comparative", deps.AnalyticsHandler.Comparative)
		analytics.GET("/level-distribution", adminOrHead, deps.AnalyticsHandler.LevelDistribution)
		analytics.GET("/system-metrics", adminOnly, deps.AnalyticsHandler.SystemMetrics)
	}

	notifications := protected.Group("/notifications")
	{
		notifications.GET("", deps.NotificationHandler.List)
		notifications.GET("/unread-count", deps.NotificationHandler.UnreadCount)
		notifications.POST("", staffOnly, deps.NotificationHandler.Send)
		notifications.PUT("/:id/read", deps.NotificationHandler.MarkRead)
		notifications.PUT("/read-all", deps.NotificationHandler.MarkAllRead)
		notifications.DELETE("/:id", deps.NotificationHandler.Delete)
	}

	settings := protected.Group("/settings")
	{
		settings.GET("", adminOnly, deps.SettingHandler.List)
		settings.GET("/groups/:group", adminOnly, deps.SettingHandler.Group)
		settings.GET("/:key", adminOnly, deps.SettingHandler.Get)
		settings.PUT("", adminOnly, deps.SettingHandler.BatchSet)
		settings.PUT("/:key", adminOnly, deps.SettingHandler.Set)
		settings.DELETE("/:key", adminOnly, deps.SettingHandler.Delete)
	}

	tasks := protected.Group("/tasks")
	{
		tasks.POST("", staffOnly, deps.TaskHandler.Create)
		tasks.GET("", deps.TaskHandler.List)
		tasks.GET("/:id", deps.TaskHandler.Get)
	}

	return r
}
