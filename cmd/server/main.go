package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"intake/internal/attachment"
	"intake/internal/audit"
	"intake/internal/persist"
	"intake/internal/platform/config"
	"intake/internal/platform/httpserver"
	"intake/internal/platform/logger"
	"intake/internal/platform/metrics"
	platformredis "intake/internal/platform/redis"
	"intake/internal/session"
	"intake/internal/session/handler"
)

// main wires storage backends, the session controller, the audit pipeline,
// and the sweep scheduler. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage backends: memory by default, Redis when configured, Postgres
	// for envelopes when a DSN is present.
	var (
		envelopes   persist.EnvelopeStore = persist.NewInMemoryEnvelopeStore()
		attachments attachment.Store      = attachment.NewInMemory()
	)

	redisClient, err := platformredis.New(cfg.RedisURL, cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		envelopes = persist.NewRedisEnvelopeStore(redisClient.Client)
		attachments = attachment.NewRedis(redisClient.Client)
		log.Info("using redis storage")
	}

	if cfg.PostgresDSN != "" {
		db, err := persist.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		envelopes = persist.NewPostgresEnvelopeStore(db)
		log.Info("using postgres envelope storage")
	}

	// Audit pipeline: always the in-process store, plus Kafka when brokers
	// are configured. Events flow through a channel worker so request paths
	// never block on delivery; a circuit around the Kafka sink drops events
	// during a broker outage instead of retrying into it.
	auditSinks := audit.Fanout{audit.NewInMemoryStore()}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			log.Error("kafka audit sink failed", "error", err)
			os.Exit(1)
		}
		defer kafkaSink.Close()
		auditSinks = append(auditSinks, audit.NewBreakerSink(kafkaSink, log))
		log.Info("audit events publishing to kafka", "topic", cfg.AuditTopic)
	}

	inbox := make(chan audit.Event, 256)
	worker := audit.NewWorker(auditSinks, inbox)
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
	}()

	engine := persist.NewEngine(envelopes, attachments, log,
		persist.WithRetention(cfg.Retention),
		persist.WithMetrics(m),
	)

	controller := session.NewController(engine, log,
		session.WithAuditPublisher(audit.NewPublisher(channelSink(inbox))),
		session.WithTransport(session.NewLogTransport(log)),
	)

	router := chi.NewRouter()
	handler.New(controller, log, m).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	srv := httpserver.New(cfg.Addr, router)

	go sweepLoop(ctx, engine, cfg.SweepInterval, log)

	go func() {
		log.Info("starting intake server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// sweepLoop runs the expiry sweep on a fixed cadence until shutdown.
func sweepLoop(ctx context.Context, engine *persist.Engine, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			if err := engine.SweepExpired(sweepCtx); err != nil {
				log.Error("sweep failed", "error", err)
			}
			cancel()
		}
	}
}

// channelSink adapts the worker inbox to the audit sink interface. Drops
// events when the inbox is full rather than blocking a request.
type channelSink chan<- audit.Event

func (c channelSink) Append(_ context.Context, ev audit.Event) error {
	select {
	case c <- ev:
		return nil
	default:
		return errors.New("audit inbox full")
	}
}
