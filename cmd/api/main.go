package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"

	"github.com/itsmeEn/New-MediSync-sub001/internal/config"
	appointmenthandler "github.com/itsmeEn/New-MediSync-sub001/internal/handler/appointment"
	archivehandler "github.com/itsmeEn/New-MediSync-sub001/internal/handler/archive"
	departmenthandler "github.com/itsmeEn/New-MediSync-sub001/internal/handler/department"
	healthhandler "github.com/itsmeEn/New-MediSync-sub001/internal/handler/health"
	notificationhandler "github.com/itsmeEn/New-MediSync-sub001/internal/handler/notification"
	queuehandler "github.com/itsmeEn/New-MediSync-sub001/internal/handler/queue"
	"github.com/itsmeEn/New-MediSync-sub001/internal/email"
	"github.com/itsmeEn/New-MediSync-sub001/internal/middleware"
	"github.com/itsmeEn/New-MediSync-sub001/internal/model"
	pgrepo "github.com/itsmeEn/New-MediSync-sub001/internal/repository/postgres"
	"github.com/itsmeEn/New-MediSync-sub001/internal/router"
	appointmentService "github.com/itsmeEn/New-MediSync-sub001/internal/service/appointment"
	archiveService "github.com/itsmeEn/New-MediSync-sub001/internal/service/archive"
	flowService "github.com/itsmeEn/New-MediSync-sub001/internal/service/flow"
	notificationService "github.com/itsmeEn/New-MediSync-sub001/internal/service/notification"
	queueService "github.com/itsmeEn/New-MediSync-sub001/internal/service/queue"
	"github.com/itsmeEn/New-MediSync-sub001/internal/ws"
	"github.com/itsmeEn/New-MediSync-sub001/pkg/auth"
	"github.com/itsmeEn/New-MediSync-sub001/pkg/ident"
	"github.com/itsmeEn/New-MediSync-sub001/pkg/logger"
	"github.com/itsmeEn/New-MediSync-sub001/pkg/messaging/redis"
	"github.com/itsmeEn/New-MediSync-sub001/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := pgrepo.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := runMigrations(db.DB, cfg.Database.Name); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	broker, err := redis.NewRedisBroker(redis.Config{URL: cfg.Redis.URL}, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	m := metrics.NewMetrics("medisync", "flow")
	clock := ident.NewClock()

	deptRepo := pgrepo.NewDepartmentRepository(db)
	queueRepo := pgrepo.NewQueueRepository(db)
	apptRepo := pgrepo.NewAppointmentRepository(db)
	notifRepo := pgrepo.NewNotificationRepository(db)
	archiveRepo := pgrepo.NewArchiveRepository(db)
	archiveLogRepo := pgrepo.NewArchiveAccessLogRepository(db)
	userRepo := pgrepo.NewUserRepository(db)

	emailSvc := email.NewService(cfg.SMTP)
	notifSvc := notificationService.NewService(notifRepo, userRepo, emailSvc, broker, clock, m)
	queueSvc := queueService.NewService(queueRepo, deptRepo, notifSvc, broker, clock, priorityWeights(cfg.Queue), m)
	apptSvc := appointmentService.NewService(apptRepo, deptRepo, userRepo, notifSvc, clock, ident.NewReferenceAllocator(clock), cfg.Notify.LeadWindow())

	mirrors, err := archiveService.NewMirrorStore(cfg.Archive.DualStoreRoot, m)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize mirror store")
	}
	signer := archiveService.NewSigner(cfg.Archive.SigningKey)
	archiveSvc := archiveService.NewService(archiveRepo, archiveLogRepo, userRepo, mirrors, signer, clock, &log.Logger, m, cfg.Archive.ListMaxPage)

	flowSvc := flowService.NewService(queueSvc, apptSvc, queueRepo, apptRepo, deptRepo, &log.Logger)

	// Restore the three-store invariant before serving traffic.
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 5*time.Minute)
	report, err := archiveSvc.Reconcile(startupCtx)
	cancelStartup()
	if err != nil {
		log.Fatal().Err(err).Msg("startup reconciliation failed")
	}
	log.Info().
		Int("checked", report.Checked).
		Int("repaired", report.Repaired).
		Int("orphans", report.Orphans).
		Msg("startup reconciliation complete")

	authMiddleware := middleware.NewAuthMiddleware(auth.NewVerifier(cfg.JWT.Secret))
	hub := ws.NewHub(broker, appLogger)

	r := router.NewRouter(
		authMiddleware,
		healthhandler.NewHandler(db, healthhandler.Check{
			Name:  "redis",
			Probe: func(c *gin.Context) error { return broker.Ping(c.Request.Context()) },
		}),
		queuehandler.NewHandler(flowSvc, queueSvc, notifSvc),
		appointmenthandler.NewHandler(flowSvc, apptSvc),
		archivehandler.NewHandler(archiveSvc),
		departmenthandler.NewHandler(deptRepo),
		notificationhandler.NewHandler(notifSvc),
		hub,
		router.Config{
			RateLimit:      100,
			RateBurst:      200,
			RequestTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
			MetricsPrefix:  "medisync",
		},
	)
	r.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("websocket hub stopped")
		}
	}()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func runMigrations(db *sql.DB, dbName string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://migrations", dbName, driver)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func priorityWeights(cfg config.QueueConfig) map[model.PriorityClass]int {
	if len(cfg.PriorityWeights) == 0 {
		return nil
	}
	weights := make(map[model.PriorityClass]int, len(cfg.PriorityWeights))
	for class, weight := range cfg.PriorityWeights {
		weights[model.PriorityClass(class)] = weight
	}
	return weights
}
