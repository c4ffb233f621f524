package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/rcplaneboss/gradebook-api/api/swagger"
	"github.com/rcplaneboss/gradebook-api/internal/handler"
	"github.com/rcplaneboss/gradebook-api/internal/middleware"
	"github.com/rcplaneboss/gradebook-api/internal/models"
	"github.com/rcplaneboss/gradebook-api/internal/repository"
	"github.com/rcplaneboss/gradebook-api/internal/service"
	"github.com/rcplaneboss/gradebook-api/pkg/cache"
	"github.com/rcplaneboss/gradebook-api/pkg/config"
	"github.com/rcplaneboss/gradebook-api/pkg/database"
	"github.com/rcplaneboss/gradebook-api/pkg/export"
	"github.com/rcplaneboss/gradebook-api/pkg/logger"
	corsmiddleware "github.com/rcplaneboss/gradebook-api/pkg/middleware/cors"
	reqidmiddleware "github.com/rcplaneboss/gradebook-api/pkg/middleware/requestid"
)

// @title Gradebook API
// @version 0.1.0
// @description Grade aggregation and academic report engine
// @BasePath /api/v1
// @schemes http

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

	policy := models.WeightPolicy{CAMax: cfg.Grading.CAMax, ExamMax: cfg.Grading.ExamMax}
	if err := policy.Validate(); err != nil {
		logr.Sugar().Fatalw("invalid weight policy", "error", err)
	}
	scale, err := models.ParseGradeScale(cfg.Grading.Scale)
	if err != nil {
		logr.Sugar().Fatalw("invalid grade scale", "error", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	validate := validator.New()

	subjectGradeRepo := repository.NewSubjectGradeRepository(db)
	questionGradeRepo := repository.NewQuestionGradeRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	examRepo := repository.NewExamRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	payloadCache := repository.NewPayloadCache(redisClient)

	metricsSvc := service.NewMetricsService()
	subjectGradeSvc := service.NewSubjectGradeService(subjectGradeRepo, enrollmentRepo, policy, scale, cfg.Grading.WriteRetries, metricsSvc, validate, logr)
	gradingSvc := service.NewQuestionGradingService(questionGradeRepo, attemptRepo, examRepo, subjectGradeSvc, policy, metricsSvc, validate, logr)
	rankingSvc := service.NewRankingService(subjectGradeRepo, enrollmentRepo, metricsSvc, logr)
	reportSvc := service.NewReportService(subjectGradeRepo, subjectGradeRepo, rankingSvc, enrollmentRepo, scale, metricsSvc, logr)
	examSvc := service.NewExamService(examRepo, payloadCache, cfg.Exams.PayloadCacheTTL, metricsSvc, validate, logr)
	attemptSvc := service.NewAttemptService(attemptRepo, examRepo, validate, logr)
	tokenSvc := service.NewTokenService(cfg.JWT)

	gradeHandler := handler.NewGradeHandler(subjectGradeSvc, gradingSvc)
	reportHandler := handler.NewReportHandler(reportSvc, rankingSvc, export.NewCSVExporter())
	examHandler := handler.NewExamHandler(examSvc)
	attemptHandler := handler.NewAttemptHandler(attemptSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(tokenSvc))

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)

	exams := api.Group("/exams")
	{
		exams.POST("", staff, examHandler.Create)
		exams.GET("", staff, examHandler.List)
		exams.PUT("/:id/questions", staff, examHandler.ReplaceQuestions)
		exams.POST("/:id/publish", staff, examHandler.Publish)
		exams.GET("/:id/payload", examHandler.Payload)
	}

	attempts := api.Group("/attempts")
	{
		attempts.POST("", attemptHandler.Start)
		attempts.POST("/:id/submit", attemptHandler.Submit)
		attempts.POST("/:id/tab-switch", attemptHandler.TabSwitch)
		attempts.GET("/:id/breakdown", staff, gradeHandler.AttemptBreakdown)
		attempts.POST("/:id/auto-grade", staff, gradeHandler.AutoGrade)
		attempts.POST("/:id/finalize", staff, gradeHandler.FinalizeAttempt)
	}

	grades := api.Group("/grades")
	{
		grades.GET("", staff, gradeHandler.List)
		grades.PUT("/component", staff, gradeHandler.SetComponent)
		grades.PUT("/questions", staff, gradeHandler.GradeQuestion)
	}

	reports := api.Group("/reports")
	{
		reports.GET("/students/:studentId/term", middleware.RBAC("ADMIN", "TEACHER", "SELF"), reportHandler.TermReport)
		reports.GET("/students/:studentId/annual", middleware.RBAC("ADMIN", "TEACHER", "SELF"), reportHandler.AnnualReport)
		reports.GET("/programs/:programId/students", staff, reportHandler.Roster)
		reports.GET("/programs/:programId/ranking", staff, reportHandler.Ranking)
		reports.GET("/programs/:programId/grade-sheet.csv", staff, reportHandler.GradeSheet)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
