package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/studira/campus-api/api/swagger"
	"github.com/studira/campus-api/internal/handler"
	"github.com/studira/campus-api/internal/middleware"
	"github.com/studira/campus-api/internal/models"
	"github.com/studira/campus-api/internal/repository"
	"github.com/studira/campus-api/internal/service"
	"github.com/studira/campus-api/pkg/cache"
	"github.com/studira/campus-api/pkg/config"
	"github.com/studira/campus-api/pkg/database"
	"github.com/studira/campus-api/pkg/logger"
	corsmiddleware "github.com/studira/campus-api/pkg/middleware/cors"
	reqidmiddleware "github.com/studira/campus-api/pkg/middleware/requestid"
)

// @title Campus API
// @version 1.0.0
// @description Schedule assignment engine for rooms, courses, and teachers
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	// The statistics cache is an optimisation. A missing Redis keeps the
	// server up and simply disables caching.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, statistics caching disabled", zap.Error(err))
		redisClient = nil
	}

	validate := validator.New()

	assignmentRepo := repository.NewAssignmentRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()
	assignmentSvc := service.NewAssignmentService(assignmentRepo, roomRepo, courseRepo, teacherRepo, auditRepo, cacheRepo, metricsSvc, cfg.Statistics.CacheTTL, validate, logr)
	roomSvc := service.NewRoomService(roomRepo, logr)
	courseSvc := service.NewCourseService(courseRepo, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, logr)
	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	exportSvc := service.NewExportService(assignmentRepo, roomRepo, teacherRepo, logr)

	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc, metricsSvc)
	roomHandler := handler.NewRoomHandler(roomSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	teacherHandler := handler.NewTeacherHandler(teacherSvc)
	authHandler := handler.NewAuthHandler(authSvc)
	exportHandler := handler.NewExportHandler(exportSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	staff := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)

	authed.GET("/assignments", assignmentHandler.List)
	authed.GET("/assignments/statistics", assignmentHandler.Statistics)
	authed.POST("/assignments/check-availability", assignmentHandler.CheckAvailability)
	authed.GET("/assignments/:id", assignmentHandler.Get)
	authed.POST("/assignments", staff, assignmentHandler.Create)
	authed.PATCH("/assignments/:id", staff, assignmentHandler.Update)
	authed.DELETE("/assignments/:id", staff, assignmentHandler.Cancel)

	authed.GET("/rooms", roomHandler.List)
	authed.GET("/rooms/:id", roomHandler.Get)
	authed.GET("/rooms/:id/assignments", assignmentHandler.ListByRoom)

	authed.GET("/courses", courseHandler.List)
	authed.GET("/courses/:id", courseHandler.Get)

	authed.GET("/teachers", teacherHandler.List)
	authed.GET("/teachers/:id", teacherHandler.Get)
	authed.GET("/teachers/:id/assignments", assignmentHandler.ListByTeacher)

	if cfg.Exports.Enabled {
		authed.GET("/exports/rooms/:id/timetable", exportHandler.RoomTimetable)
		authed.GET("/exports/teachers/:id/timetable", exportHandler.TeacherTimetable)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
