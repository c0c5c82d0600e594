package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"learnpath/internal/auth"
	"learnpath/internal/config"
	apphttp "learnpath/internal/http"
	"learnpath/internal/metrics"
	"learnpath/internal/repository"
	"learnpath/internal/repository/redisstore"
	"learnpath/internal/repository/sqlite"
	"learnpath/internal/scheduler"
	"learnpath/internal/service"
	"learnpath/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	configureLogger(logger, cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	userRepo := sqlite.NewUserRepository(db)
	roadmapRepo := sqlite.NewRoadmapRepository(db)
	milestoneRepo := sqlite.NewMilestoneRepository(db)
	taskRepo := sqlite.NewTaskRepository(db)
	timeLogRepo := sqlite.NewTimeLogRepository(db)
	resourceRepo := sqlite.NewResourceRepository(db)
	tagRepo := sqlite.NewTagRepository(db)
	skillRepo := sqlite.NewSkillRepository(db)
	achievementRepo := sqlite.NewAchievementRepository(db)
	settingsRepo := sqlite.NewSettingsRepository(db)
	progressRepo := sqlite.NewProgressRepository(db)
	statsRepo := sqlite.NewStatsRepository(db)

	if err := sqlite.InitAll(ctx,
		userRepo,
		roadmapRepo,
		milestoneRepo,
		taskRepo,
		timeLogRepo,
		resourceRepo,
		tagRepo,
		skillRepo,
		achievementRepo,
		settingsRepo,
		progressRepo,
		statsRepo,
	); err != nil {
		logger.Fatalf("init schema: %v", err)
	}

	sessions, purger, closeSessions, err := buildSessions(ctx, cfg, db, logger)
	if err != nil {
		logger.Fatalf("setup refresh sessions: %v", err)
	}
	defer closeSessions()

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:     cfg.Auth.JWTSecret,
		Issuer:     cfg.Auth.Issuer,
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
	})
	if err != nil {
		logger.Fatalf("setup tokens: %v", err)
	}
	authService, err := service.NewAuthService(userRepo, sessions, auth.NewPasswordHasher(cfg.Auth.BcryptCost), tokens, logger)
	if err != nil {
		logger.Fatalf("setup auth service: %v", err)
	}
	statsService := service.NewStatsService(statsRepo, taskRepo, logger)

	storageSvc, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	jobs := scheduler.New(logger, appMetrics)
	if err := jobs.ScheduleStreakReset(cfg.Stats.StreakResetSchedule, statsService); err != nil {
		logger.Fatalf("schedule streak reset: %v", err)
	}
	if purger != nil {
		if err := jobs.ScheduleTokenPurge("@hourly", purger); err != nil {
			logger.Fatalf("schedule token purge: %v", err)
		}
	}
	jobs.Start()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(authService, statsService, apphttp.Stores{
		Roadmaps:     roadmapRepo,
		Milestones:   milestoneRepo,
		Tasks:        taskRepo,
		TimeLogs:     timeLogRepo,
		Resources:    resourceRepo,
		Tags:         tagRepo,
		Skills:       skillRepo,
		Achievements: achievementRepo,
		Settings:     settingsRepo,
		Progress:     progressRepo,
		Stats:        statsRepo,
	}, storageSvc, apphttp.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		SecureCookies:  cfg.Production(),
		KeyPrefix:      cfg.Storage.KeyPrefix,
		Logger:         logger,
		Metrics:        appMetrics,
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	jobs.Stop()

	logger.Info("bye")
}

func configureLogger(logger *logrus.Logger, cfg config.Config) {
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
	}
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
}

// buildSessions picks the refresh session store. The purger is only set for
// stores that do not expire entries on their own.
func buildSessions(ctx context.Context, cfg config.Config, db *sql.DB, logger *logrus.Logger) (repository.RefreshTokenStore, scheduler.TokenPurger, func(), error) {
	if cfg.Auth.TokenStore == "redis" {
		store, err := redisstore.Connect(ctx, redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Infof("storing refresh sessions in redis at %s", cfg.Redis.Addr)
		return store, nil, func() { _ = store.Close() }, nil
	}

	store := sqlite.NewRefreshTokenRepository(db)
	if err := store.Init(ctx); err != nil {
		return nil, nil, nil, err
	}
	return store, store, func() {}, nil
}

// buildStorage returns nil when no bucket is configured; attachment routes
// then answer 503.
func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	if cfg.Storage.Bucket == "" {
		logger.Warn("no storage bucket configured, attachments disabled")
		return nil, nil
	}
	svc, err := storage.NewS3ServiceFromConfig(ctx, storage.S3Options{
		Bucket:   cfg.Storage.Bucket,
		Region:   cfg.Storage.Region,
		Endpoint: cfg.Storage.Endpoint,
		Profile:  cfg.AWS.Profile,
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return svc, nil
}
