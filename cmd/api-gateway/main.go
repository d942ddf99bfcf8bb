package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/unicore-dev/uni-records-api/api/swagger"
	"github.com/unicore-dev/uni-records-api/internal/handler"
	"github.com/unicore-dev/uni-records-api/internal/middleware"
	"github.com/unicore-dev/uni-records-api/internal/models"
	"github.com/unicore-dev/uni-records-api/internal/repository"
	"github.com/unicore-dev/uni-records-api/internal/service"
	"github.com/unicore-dev/uni-records-api/pkg/cache"
	"github.com/unicore-dev/uni-records-api/pkg/config"
	"github.com/unicore-dev/uni-records-api/pkg/database"
	"github.com/unicore-dev/uni-records-api/pkg/jobs"
	"github.com/unicore-dev/uni-records-api/pkg/logger"
	corsmiddleware "github.com/unicore-dev/uni-records-api/pkg/middleware/cors"
	reqidmiddleware "github.com/unicore-dev/uni-records-api/pkg/middleware/requestid"
)

// @title University Records API
// @version 1.0.0
// @description Academic records engine: registrations, grades, standings and capacity-bounded placements
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The standing cache is an optimization; readiness only depends on
		// the database.
		logr.Sugar().Warnw("redis unavailable, standing cache disabled", "error", err)
		redisClient = nil
	}

	// Repositories.
	users := repository.NewUserRepository(db)
	courses := repository.NewCourseRepository(db)
	semesters := repository.NewSemesterRepository(db)
	courseAssignments := repository.NewCourseAssignmentRepository(db)
	registrations := repository.NewRegistrationRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)
	submissions := repository.NewGradeSubmissionRepository(db)
	standings := repository.NewStandingRepository(db)
	sections := repository.NewSectionRepository(db)
	dormitories := repository.NewDormitoryRepository(db)
	standingCache := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsService := service.NewMetricsService()
	authService := service.NewAuthService(users, nil, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	eligibility := service.NewEligibilityValidator(standings, registrations, sections, courseAssignments, logr)
	standingService := service.NewStandingService(standings, enrollments, standingCache, metricsService, db, cfg.Standing.CacheTTL, logr)
	registrationService := service.NewRegistrationService(registrations, courses, users, semesters, enrollments, standingService, eligibility, db, nil, logr)
	gradeService := service.NewGradeSubmissionService(submissions, enrollments, users, semesters, standingService, eligibility, db, nil, logr)
	assignmentService := service.NewAssignmentService(sections, dormitories, standings, users, semesters, standingService, eligibility, db, nil, logr)
	enrollmentService := service.NewEnrollmentService(enrollments, courses, users, semesters, standingService, eligibility, nil, logr)

	// Audit entries are written off the request path by a small worker pool.
	auditQueue := jobs.NewQueue("audit", func(ctx context.Context, job jobs.Job) error {
		entry, ok := job.Payload.(*models.AuditLog)
		if !ok {
			return fmt.Errorf("unexpected audit payload %T", job.Payload)
		}
		return users.CreateAuditLog(ctx, entry)
	}, jobs.QueueConfig{Workers: 2, Logger: logr})
	auditQueue.Start(context.Background())
	defer auditQueue.Stop()
	auditSink := &asyncAuditSink{queue: auditQueue}

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	registrationHandler := handler.NewRegistrationHandler(registrationService)
	gradeHandler := handler.NewGradeHandler(gradeService)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService)
	assignmentHandler := handler.NewAssignmentHandler(assignmentService)
	standingHandler := handler.NewStandingHandler(standingService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
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
	{
		api.POST("/auth/login", authHandler.Login)
		api.GET("/auth/me", middleware.JWT(authService), authHandler.Me)

		secured := api.Group("", middleware.JWT(authService))

		registrationsGroup := secured.Group("/registrations")
		{
			registrationsGroup.POST("",
				middleware.RequireRoles(models.RoleStudent, models.RoleAdmin),
				middleware.Audit(auditSink, models.AuditActionCommand, "registration"),
				registrationHandler.Create)
			registrationsGroup.GET("/:id", registrationHandler.Get)
			registrationsGroup.POST("/:id/approve",
				middleware.RequireRoles(models.RoleAdmin),
				middleware.Audit(auditSink, models.AuditActionCommand, "registration"),
				registrationHandler.Approve)
			registrationsGroup.POST("/:id/reject",
				middleware.RequireRoles(models.RoleAdmin),
				middleware.Audit(auditSink, models.AuditActionCommand, "registration"),
				registrationHandler.Reject)
			registrationsGroup.POST("/:id/cancel",
				middleware.RequireRoles(models.RoleStudent, models.RoleAdmin),
				middleware.Audit(auditSink, models.AuditActionCommand, "registration"),
				registrationHandler.Cancel)
		}

		secured.POST("/grades",
			middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin),
			middleware.Audit(auditSink, models.AuditActionCommand, "grade"),
			gradeHandler.Submit)

		enrollmentsGroup := secured.Group("/enrollments")
		{
			enrollmentsGroup.POST("",
				middleware.RequireRoles(models.RoleAdmin),
				middleware.Audit(auditSink, models.AuditActionCommand, "enrollment"),
				enrollmentHandler.Create)
			enrollmentsGroup.GET("/:id", enrollmentHandler.Get)
			enrollmentsGroup.GET("/:id/grades", gradeHandler.History)
		}

		secured.POST("/sections/:id/assignments",
			middleware.RequireRoles(models.RoleAdmin),
			middleware.Audit(auditSink, models.AuditActionCommand, "section_assignment"),
			assignmentHandler.AssignSection)
		secured.POST("/dormitories/:id/assignments",
			middleware.RequireRoles(models.RoleAdmin),
			middleware.Audit(auditSink, models.AuditActionCommand, "dormitory_assignment"),
			assignmentHandler.AssignDormitory)

		studentsGroup := secured.Group("/students")
		{
			studentsGroup.GET("/:id/standings",
				middleware.RBAC(string(models.RoleAdmin), string(models.RoleTeacher), "SELF"),
				standingHandler.History)
			studentsGroup.GET("/:id/standings/:semesterId",
				middleware.RBAC(string(models.RoleAdmin), string(models.RoleTeacher), "SELF"),
				standingHandler.Get)
			studentsGroup.POST("/:id/standings/:semesterId/recompute",
				middleware.RequireRoles(models.RoleAdmin),
				middleware.Audit(auditSink, models.AuditActionCommand, "standing"),
				standingHandler.Recompute)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
