package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	"github.com/itsmeEn/New-MediSync-sub001/internal/config"
	"github.com/itsmeEn/New-MediSync-sub001/internal/email"
	pgrepo "github.com/itsmeEn/New-MediSync-sub001/internal/repository/postgres"
	archiveService "github.com/itsmeEn/New-MediSync-sub001/internal/service/archive"
	notificationService "github.com/itsmeEn/New-MediSync-sub001/internal/service/notification"
	queueService "github.com/itsmeEn/New-MediSync-sub001/internal/service/queue"
	"github.com/itsmeEn/New-MediSync-sub001/internal/worker"
	"github.com/itsmeEn/New-MediSync-sub001/pkg/ident"
	"github.com/itsmeEn/New-MediSync-sub001/pkg/messaging/redis"
	"github.com/itsmeEn/New-MediSync-sub001/pkg/metrics"
)

// WorkerEnv carries the overrides that only apply to the worker
// process, kept apart from the shared application config.
type WorkerEnv struct {
	HealthPort       int           `envconfig:"WORKER_HEALTH_PORT" default:"8081"`
	SweepInterval    time.Duration `envconfig:"WORKER_SWEEP_INTERVAL" default:"1m"`
	DispatchInterval time.Duration `envconfig:"WORKER_DISPATCH_INTERVAL" default:"30s"`
	DispatchBatch    int           `envconfig:"WORKER_DISPATCH_BATCH" default:"100"`
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	var env WorkerEnv
	if err := envconfig.Process("", &env); err != nil {
		log.Fatal().Err(err).Msg("failed to process worker environment")
	}

	db, err := pgrepo.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(redis.Config{URL: cfg.Redis.URL}, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	m := metrics.NewMetrics("medisync", "worker")
	clock := ident.NewClock()

	deptRepo := pgrepo.NewDepartmentRepository(db)
	queueRepo := pgrepo.NewQueueRepository(db)
	notifRepo := pgrepo.NewNotificationRepository(db)
	archiveRepo := pgrepo.NewArchiveRepository(db)
	archiveLogRepo := pgrepo.NewArchiveAccessLogRepository(db)
	userRepo := pgrepo.NewUserRepository(db)

	emailSvc := email.NewService(cfg.SMTP)
	notifSvc := notificationService.NewService(notifRepo, userRepo, emailSvc, broker, clock, m)
	queueSvc := queueService.NewService(queueRepo, deptRepo, notifSvc, broker, clock, nil, m)

	mirrors, err := archiveService.NewMirrorStore(cfg.Archive.DualStoreRoot, m)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize mirror store")
	}
	signer := archiveService.NewSigner(cfg.Archive.SigningKey)
	archiveSvc := archiveService.NewService(archiveRepo, archiveLogRepo, userRepo, mirrors, signer, clock, &log.Logger, m, cfg.Archive.ListMaxPage)

	setupHealthCheck(env.HealthPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("shutting down workers")
		cancel()
	}()

	var wg sync.WaitGroup
	start := func(run func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(ctx)
		}()
	}

	start(worker.NewEvictionWorker(queueSvc, cfg.Queue.EvictionTimeout(), env.SweepInterval, &log.Logger).Start)
	start(worker.NewReconcileWorker(archiveSvc, cfg.Archive.ReconcileInterval(), &log.Logger).Start)
	start(worker.NewDispatchWorker(notifSvc, env.DispatchInterval, env.DispatchBatch, &log.Logger).Start)

	log.Info().Msg("workers started")
	wg.Wait()
}

func setupHealthCheck(port int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
			log.Error().Err(err).Msg("health check server failed")
			os.Exit(1)
		}
	}()
}
