package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"verilink/internal/assignment"
	"verilink/internal/platform/config"
	"verilink/internal/platform/httpserver"
	"verilink/internal/platform/logger"
	platformmetrics "verilink/internal/platform/metrics"
	"verilink/internal/platform/middleware"
	platformredis "verilink/internal/platform/redis"
	"verilink/internal/submission"
	"verilink/internal/token"
	httptransport "verilink/internal/transport/http"
	"verilink/internal/verification"
	"verilink/internal/verification/handler"
	vmetrics "verilink/internal/verification/metrics"
	"verilink/internal/verification/service"
	"verilink/internal/verifier"
	"verilink/pkg/platform/audit"
	auditmemory "verilink/pkg/platform/audit/store/memory"
	auditpostgres "verilink/pkg/platform/audit/store/postgres"
	"verilink/pkg/platform/audit/publisher"
	auditworker "verilink/pkg/platform/audit/worker"
)

const auditQueueDepth = 256

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: postgres when DATABASE_URL is set, in-memory otherwise. The
	// memory path keeps local development dependency-free.
	var (
		db                *sql.DB
		verificationStore verification.Store
		submissionStore   submission.Store
		verifierStore     verifier.Store
		auditStore        audit.Store
	)
	if cfg.PostgresURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error("ping postgres", "error", err)
			os.Exit(1)
		}
		verificationStore = verification.NewPostgres(db)
		submissionStore = submission.NewPostgres(db)
		verifierStore = verifier.NewPostgres(db)
		auditStore = auditpostgres.New(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		verificationStore = verification.NewInMemoryStore()
		submissionStore = submission.NewInMemoryStore()
		verifierStore = verifier.NewInMemoryStore()
		auditStore = auditmemory.New()
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	var tokenCache token.Cache
	if redisClient != nil {
		tokenCache = token.NewRedisCache(redisClient.Client)
		defer redisClient.Close()
	} else {
		tokenCache = token.NewInMemoryCache()
	}

	// Audit pipeline: handlers push events onto a channel, the worker
	// persists them, the publisher relays the outbox to Kafka when brokers
	// are configured.
	auditInbox := make(chan audit.Event, auditQueueDepth)
	recorder := audit.NewRecorder(auditInbox, log)
	worker := auditworker.NewWorker(auditStore, auditInbox, log)

	var kafkaClient *kgo.Client
	if len(cfg.Kafka.Brokers) > 0 && db != nil {
		kafkaClient, err = kgo.NewClient(
			kgo.SeedBrokers(cfg.Kafka.Brokers...),
			kgo.AllowAutoTopicCreation(),
		)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer kafkaClient.Close()
		if err := publisher.EnsureTopic(ctx, kafkaClient, cfg.Kafka.AuditTopic); err != nil {
			log.Error("ensure audit topic", "error", err)
			os.Exit(1)
		}
	}

	selector := assignment.NewSelector(verifierStore, verificationStore, log,
		assignment.WithMetrics(assignment.NewMetrics()),
	)
	svc := service.New(verificationStore, submissionStore, selector, log,
		service.WithTokenCache(tokenCache),
		service.WithAuditor(recorder),
		service.WithMetrics(vmetrics.New()),
		service.WithGeofenceTolerance(cfg.GeofenceToleranceMeters),
	)

	verifications := handler.New(svc, selector, log)
	router := httptransport.NewRouter(httptransport.Dependencies{
		Verifications: verifications,
		Tokens:        middleware.NewHMACValidator(cfg.JWTSigningKey),
		Logger:        log,
		Metrics:       platformmetrics.New(),
		DB:            db,
		Redis:         redisClient,
	})
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	if kafkaClient != nil {
		relay := publisher.New(db, kafkaClient, cfg.Kafka.AuditTopic, log)
		g.Go(func() error {
			return relay.Run(gctx)
		})
	}
	g.Go(func() error {
		log.Info("starting verilink", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("shutdown", "error", err)
		os.Exit(1)
	}
	log.Info("verilink stopped")
}
