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

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/cohort-api/api/swagger"
	"github.com/noah-isme/cohort-api/internal/handler"
	"github.com/noah-isme/cohort-api/internal/middleware"
	"github.com/noah-isme/cohort-api/internal/repository"
	"github.com/noah-isme/cohort-api/internal/router"
	"github.com/noah-isme/cohort-api/internal/service"
	"github.com/noah-isme/cohort-api/pkg/cache"
	"github.com/noah-isme/cohort-api/pkg/config"
	"github.com/noah-isme/cohort-api/pkg/database"
	"github.com/noah-isme/cohort-api/pkg/events"
	"github.com/noah-isme/cohort-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/cohort-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/cohort-api/pkg/middleware/requestid"
	"github.com/noah-isme/cohort-api/pkg/storage"
)

// @title Cohort API
// @version 1.0.0
// @description Program, application, enrollment and assessment management for students, mentors and admins.
// @BasePath /api/v1
// @schemes http https
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	applied, err := database.Migrate(ctx, db, logr)
	if err != nil {
		logr.Fatal("failed to apply migrations", zap.Error(err))
	}
	if len(applied) > 0 {
		logr.Info("migrations applied", zap.Strings("versions", applied))
	}

	var redisClient *redis.Client
	if cfg.Programs.CacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, program cache disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	publisher, closeEvents, err := events.Connect(cfg.Events, logr)
	if err != nil {
		logr.Warn("nats unavailable, domain events disabled", zap.Error(err))
		publisher, closeEvents = events.Nop{}, func() {}
	}
	defer closeEvents()

	validate := validator.New(validator.WithRequiredStructEnabled())
	metricsSvc := service.NewMetricsService()

	profileRepo := repository.NewProfileRepository(db)
	programRepo := repository.NewProgramRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	auditSvc := service.NewAuditService(auditRepo, cfg.Audit, logr)
	auditSvc.Start(ctx)
	defer auditSvc.Stop()

	var catalogCache *service.CatalogCache
	if redisClient != nil {
		catalogCache = service.NewCatalogCache(repository.NewCacheRepository(redisClient, "cohort"), metricsSvc, cfg.Programs.CacheTTL, logr)
	}

	authSvc := service.NewAuthService(service.AuthConfig{
		Secret:   cfg.JWT.Secret,
		Audience: cfg.JWT.Audience,
		Expiry:   cfg.JWT.Expiration,
	}, logr)
	profileSvc := service.NewProfileService(profileRepo, auditSvc, validate, logr)
	programSvc := service.NewProgramService(programRepo, enrollmentRepo, db, service.ProgramServiceConfig{
		Cache: catalogCache,
		Audit: auditSvc,
	}, validate, logr)
	workflowSvc := service.NewWorkflowService(applicationRepo, enrollmentRepo, programRepo, db, service.WorkflowDeps{
		Catalog:   programSvc,
		Audit:     auditSvc,
		Publisher: publisher,
		Metrics:   metricsSvc,
	}, validate, logr)
	assessmentSvc := service.NewAssessmentService(assessmentRepo, programRepo, enrollmentRepo, db, auditSvc, validate, logr)
	submissionSvc := service.NewSubmissionService(submissionRepo, assessmentRepo, programRepo, enrollmentRepo, auditSvc, publisher, validate, logr)

	rosterHandler := handler.NewRosterHandler(workflowSvc, nil, nil, "")
	if cfg.Exports.SigningSecret != "" {
		store, err := storage.NewStore(cfg.Exports.Dir)
		if err != nil {
			logr.Fatal("failed to prepare export store", zap.Error(err))
		}
		rosterHandler = handler.NewRosterHandler(workflowSvc, store,
			storage.NewLinkSigner(cfg.Exports.SigningSecret, cfg.Exports.LinkTTL),
			cfg.APIPrefix+router.RosterDownloadPath)
		go sweepExports(ctx, store, cfg.Exports.LinkTTL, logr)
	}

	dependencies := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		dependencies["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	if cfg.Metrics.Enabled {
		r.Use(middleware.Metrics(metricsSvc))
	}

	router.Register(r, cfg, router.Dependencies{
		Auth:     authSvc,
		Profiles: profileSvc,
		Audit:    auditSvc,
		Metrics:  metricsSvc,
		ActionHandler: handler.NewActionHandler(handler.ActionServices{
			Workflow: workflowSvc,
			Programs: programSvc,
			Users:    profileSvc,
			Grading:  submissionSvc,
			Observer: metricsSvc,
		}),
		UserHandler:       handler.NewUserHandler(profileSvc),
		AssessmentHandler: handler.NewAssessmentHandler(assessmentSvc),
		SubmissionHandler: handler.NewSubmissionHandler(submissionSvc),
		RosterHandler:     rosterHandler,
		MetricsHandler:    handler.NewMetricsHandler(metricsSvc, dependencies),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

// sweepExports removes stored rosters once their links can no longer be used.
func sweepExports(ctx context.Context, store *storage.Store, ttl time.Duration, logr *zap.Logger) {
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.Sweep(ttl)
			if err != nil {
				logr.Warn("export sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				logr.Info("expired exports removed", zap.Int("count", removed))
			}
		}
	}
}
