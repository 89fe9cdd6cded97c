package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/coursepilot/backend/internal/clients/gcs"
	"github.com/coursepilot/backend/internal/clients/openai"
	"github.com/coursepilot/backend/internal/clients/redis"
	"github.com/coursepilot/backend/internal/clients/youtube"
	"github.com/coursepilot/backend/internal/config"
	"github.com/coursepilot/backend/internal/data/db"
	authrepo "github.com/coursepilot/backend/internal/data/repos/auth"
	jobsrepo "github.com/coursepilot/backend/internal/data/repos/jobs"
	learningrepo "github.com/coursepilot/backend/internal/data/repos/learning"
	userrepo "github.com/coursepilot/backend/internal/data/repos/user"
	httpserver "github.com/coursepilot/backend/internal/http"
	httpH "github.com/coursepilot/backend/internal/http/handlers"
	httpMW "github.com/coursepilot/backend/internal/http/middleware"
	"github.com/coursepilot/backend/internal/observability"
	"github.com/coursepilot/backend/internal/platform/logger"
	"github.com/coursepilot/backend/internal/services"
	"github.com/coursepilot/backend/internal/sse"
)

const serviceName = "coursepilot-backend"

func main() {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Loading configuration...")
	cfg, err := config.Load(log)
	if err != nil {
		log.Fatal("Config load failed", "error", err)
	}
	if err := cfg.Validate(log); err != nil {
		log.Fatal("Config validation failed", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if shutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: serviceName,
		Environment: logMode,
	}); shutdown != nil {
		defer func() {
			shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shCancel()
			_ = shutdown(shCtx)
		}()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos...")
	userRepo := userrepo.NewUserRepo(thePG, log)
	userTokenRepo := authrepo.NewUserTokenRepo(thePG, log)
	courseRepo := learningrepo.NewCourseRepo(thePG, log)
	chapterRepo := learningrepo.NewChapterRepo(thePG, log)
	runRepo := jobsrepo.NewGenerationRunRepo(thePG, log)

	// Realtime
	log.Info("Setting up SSE hub...")
	sseHub := sse.NewHub(log)

	var eventBus redis.EventBus
	if strings.TrimSpace(os.Getenv("REDIS_ADDR")) != "" {
		eventBus, err = redis.NewEventBus(log)
		if err != nil {
			log.Fatal("Redis event bus init failed", "error", err)
		}
		if err := eventBus.StartForwarder(ctx, sseHub.Broadcast); err != nil {
			log.Fatal("Redis forwarder init failed", "error", err)
		}
		defer eventBus.Close()
	}

	// Clients
	log.Info("Setting up clients...")
	textClient, err := openai.NewTextClient(log)
	if err != nil {
		log.Fatal("Could not init OpenAI client", "error", err)
	}
	searchClient, err := youtube.NewSearchClient(log)
	if err != nil {
		log.Warn("YouTube client unavailable; chapter videos will be empty", "error", err)
		searchClient = nil
	}
	bucketService, err := gcs.NewBucketService(log)
	if err != nil {
		log.Warn("Banner bucket unavailable; courses keep the placeholder banner", "error", err)
		bucketService = nil
	}

	// Services
	log.Info("Setting up services...")
	authService, err := services.NewAuthService(thePG, log, userRepo, userTokenRepo, cfg.JWTSecretKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		log.Fatal("Could not init AuthService", "error", err)
	}
	bannerService, err := services.NewBannerService(log, bucketService)
	if err != nil {
		log.Fatal("Could not init BannerService", "error", err)
	}
	layoutService := services.NewLayoutService(thePG, log, textClient, courseRepo)
	contentService := services.NewChapterContentService(log, textClient)
	videoService := services.NewVideoService(log, searchClient)
	courseService := services.NewCourseService(thePG, log, courseRepo, chapterRepo)
	generationService := services.NewGenerationService(
		thePG, log, cfg,
		sseHub, eventBus,
		courseRepo, chapterRepo, runRepo,
		contentService, videoService, bannerService,
	)
	generationService.StartWorker(ctx)

	// Handlers and middleware
	log.Info("Setting up handlers...")
	authHandler := httpH.NewAuthHandler(log, authService)
	courseHandler := httpH.NewCourseHandler(log, layoutService, courseService)
	generationHandler := httpH.NewGenerationHandler(log, generationService)
	realtimeHandler := httpH.NewRealtimeHandler(log, sseHub, courseService)
	healthHandler := httpH.NewHealthHandler()
	authMiddleware := httpMW.NewAuthMiddleware(log, authService)

	server := httpserver.NewServer(httpserver.RouterConfig{
		ServiceName:       serviceName,
		AuthHandler:       authHandler,
		AuthMiddleware:    authMiddleware,
		CourseHandler:     courseHandler,
		GenerationHandler: generationHandler,
		RealtimeHandler:   realtimeHandler,
		HealthHandler:     healthHandler,
	})

	log.Info("Server listening", "port", cfg.Port)
	if err := server.Run(":" + cfg.Port); err != nil {
		log.Fatal("Server failed", "error", err)
	}
}
