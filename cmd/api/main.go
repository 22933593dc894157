package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	_ "github.com/noah-isme/school-admin-api/api/swagger"
	"github.com/noah-isme/school-admin-api/internal/handler"
	"github.com/noah-isme/school-admin-api/internal/repository"
	"github.com/noah-isme/school-admin-api/internal/router"
	"github.com/noah-isme/school-admin-api/internal/service"
	"github.com/noah-isme/school-admin-api/pkg/cache"
	"github.com/noah-isme/school-admin-api/pkg/config"
	"github.com/noah-isme/school-admin-api/pkg/database"
	"github.com/noah-isme/school-admin-api/pkg/jobs"
	"github.com/noah-isme/school-admin-api/pkg/logger"
	"github.com/noah-isme/school-admin-api/pkg/storage"
)

// @title School Admin API
// @version 1.0.0
// @description School administration backend with score analytics and background reports
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	classRepo := repository.NewClassRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	examRepo := repository.NewExamRepository(db)
	scoreRepo := repository.NewScoreRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Analytics.CacheTTL, logr, cfg.Analytics.CacheEnabled)
	accessSvc := service.NewAccessService(studentRepo, teacherRepo, classRepo)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	gradeSvc := service.NewGradeService(gradeRepo, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, gradeRepo, teacherRepo, studentRepo, validate, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, userRepo, subjectRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, userRepo, classRepo, accessSvc, validate, logr)
	examSvc := service.NewExamService(examRepo, subjectRepo, validate, logr)
	scoreSvc := service.NewScoreService(scoreRepo, examRepo, studentRepo, teacherRepo, classRepo, accessSvc, validate, logr)
	analyticsSvc := service.NewAnalyticsService(scoreRepo, examRepo, classRepo, studentRepo, gradeRepo, accessSvc, cacheSvc, metricsSvc, logr)
	importSvc := service.NewScoreImportService(scoreRepo, examRepo, classRepo, subjectRepo, analyticsSvc, cfg.Imports.MaxFileSizeBytes, cfg.Imports.MaxRows, logr)
	exportSvc := service.NewScoreExportService(scoreRepo, examRepo, classRepo, accessSvc, logr)
	rosterSvc := service.NewRosterService(classRepo, studentRepo, userRepo, cfg.Imports.MaxFileSizeBytes, cfg.Imports.MaxRows, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, validate, logr)
	settingSvc := service.NewSettingService(settingRepo, validate, logr)

	store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	taskSvc := service.NewAnalysisTaskService(analysisRepo, userRepo, analyticsSvc, store, signer, validate, logr)

	queue := jobs.NewQueue("analysis", taskSvc.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
	})
	taskSvc.AttachQueue(queue)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue.Start(ctx)
	if err := taskSvc.RecoverPending(ctx); err != nil {
		logr.Sugar().Warnw("failed to recover queued tasks", "error", err)
	}
	taskSvc.StartCleanup(ctx, cfg.Reports.CleanupInterval, cfg.Reports.SignedURLTTL)

	engine := router.New(router.Dependencies{
		Config:  cfg,
		Logger:  logr,
		Auth:    authSvc,
		Metrics: metricsSvc,

		AuthHandler:         handler.NewAuthHandler(authSvc),
		UserHandler:         handler.NewUserHandler(userSvc),
		GradeHandler:        handler.NewGradeHandler(gradeSvc),
		SubjectHandler:      handler.NewSubjectHandler(subjectSvc),
		ClassHandler:        handler.NewClassHandler(classSvc, rosterSvc),
		TeacherHandler:      handler.NewTeacherHandler(teacherSvc),
		StudentHandler:      handler.NewStudentHandler(studentSvc),
		ExamHandler:         handler.NewExamHandler(examSvc),
		ScoreHandler:        handler.NewScoreHandler(scoreSvc, importSvc, exportSvc),
		AnalyticsHandler:    handler.NewAnalyticsHandler(analyticsSvc),
		NotificationHandler: handler.NewNotificationHandler(notificationSvc),
		SettingHandler:      handler.NewSettingHandler(settingSvc),
		TaskHandler:         handler.NewTaskHandler(taskSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	queue.Stop()
}
