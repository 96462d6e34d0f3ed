package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	legacystore "forestclient/internal/legacy/store"
	"forestclient/internal/mail"
	"forestclient/internal/platform/config"
	"forestclient/internal/platform/kafka/producer"
	httpmetrics "forestclient/internal/platform/metrics"
	"forestclient/internal/platform/middleware"
	"forestclient/internal/platform/postgres"
	platformredis "forestclient/internal/platform/redis"
	"forestclient/internal/processor"
	"forestclient/internal/processor/events"
	"forestclient/internal/processor/handler"
	procmetrics "forestclient/internal/processor/metrics"
	"forestclient/internal/registry"
	submissionstore "forestclient/internal/submission/store"
	"forestclient/pkg/platform/circuit"
	"forestclient/pkg/platform/httputil"
)

type dependencies struct {
	submissionPool *pgxpool.Pool
	legacyPool     *pgxpool.Pool
	redis          *platformredis.Client
	producer       *producer.Producer
	registry       *prometheus.Registry

	submissions  *submissionstore.PostgresStore
	orchestrator *processor.Orchestrator
}

func buildDependencies(ctx context.Context, cfg config.Config, log *slog.Logger) (_ *dependencies, err error) {
	deps := &dependencies{registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			deps.Close()
		}
	}()
	deps.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if deps.submissionPool, err = postgres.NewPool(ctx, cfg.Database.SubmissionURL); err != nil {
		return nil, fmt.Errorf("submission database: %w", err)
	}
	if deps.legacyPool, err = postgres.NewPool(ctx, cfg.Database.LegacyURL); err != nil {
		return nil, fmt.Errorf("legacy database: %w", err)
	}
	if deps.redis, err = platformredis.New(ctx, cfg.Redis); err != nil {
		return nil, err
	}
	if deps.producer, err = producer.New(cfg.Kafka, log); err != nil {
		return nil, err
	}
	if deps.producer != nil {
		if err = deps.producer.EnsureTopic(ctx); err != nil {
			return nil, err
		}
	}

	deps.submissions = submissionstore.NewPostgresStore(deps.submissionPool)
	legacy := legacystore.NewPostgresStore(deps.legacyPool)
	metrics := procmetrics.New(deps.registry)

	registryOpts := []registry.Option{
		registry.WithPolling(cfg.Registry.PollAttempts, cfg.Registry.PollInterval),
		registry.WithLogger(log),
	}
	if deps.redis != nil {
		registryOpts = append(registryOpts, registry.WithCache(registry.NewRedisCache(deps.redis, cfg.Registry.CacheTTL)))
	}
	bcRegistry := registry.NewService(registry.NewHTTPClient(cfg.Registry), registryOpts...)

	mailer := mail.NewCHESClient(cfg.Mail)
	notifier := processor.NewNotifier(mailer,
		processor.WithBreaker(circuit.New("ches",
			circuit.WithFailureThreshold(cfg.Mail.BreakerFails),
			circuit.WithCooldown(cfg.Mail.BreakerPause),
		)),
		processor.WithResendBacklog(cfg.Mail.ResendBacklog),
		processor.WithNotifierLogger(log),
		processor.WithNotifierMetrics(metrics),
	)

	opts := []processor.Option{
		processor.WithRegistry(bcRegistry),
		processor.WithPublisher(deps.publisher(ctx, log)),
		processor.WithWorkers(cfg.Pipeline.Workers),
		processor.WithEnrichWorkers(cfg.Pipeline.EnrichWorkers),
		processor.WithRegistryTimeout(cfg.Registry.LookupTimeout),
		processor.WithMatcher(processor.NewMatcher(legacy,
			processor.WithNameThreshold(cfg.Pipeline.NameThreshold),
			processor.WithMatcherLogger(log),
			processor.WithMatcherMetrics(metrics),
		)),
		processor.WithAggregator(processor.NewAggregator(
			processor.WithAggregationTimeout(cfg.Pipeline.AggregationTimeout),
			processor.WithAggregatorLogger(log),
			processor.WithAggregatorMetrics(metrics),
		)),
		processor.WithNotifier(notifier),
		processor.WithLogger(log),
		processor.WithMetrics(metrics),
	}
	if deps.redis != nil {
		opts = append(opts, processor.WithLocker(deps.redis, cfg.Pipeline.InFlightTTL))
	}
	deps.orchestrator = processor.New(processor.NewChannels(cfg.Pipeline.Buffer), deps.submissions, legacy, mailer, opts...)
	return deps, nil
}

// publisher sends terminal events to Kafka when it is configured and to the
// log otherwise.
func (d *dependencies) publisher(ctx context.Context, log *slog.Logger) processor.EventPublisher {
	if d.producer != nil {
		return events.NewFanout(log, events.NewKafkaPublisher(d.producer))
	}
	local := events.NewChannelPublisher(64)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case e := <-local.Events():
				log.Info("terminal event",
					"kind", e.Kind,
					"submission_id", e.SubmissionID,
					"correlation_id", e.CorrelationID,
					"client_number", e.ClientNumber,
				)
			}
		}
	}()
	return local
}

func (d *dependencies) Close() {
	if d.producer != nil {
		d.producer.Close()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.legacyPool != nil {
		d.legacyPool.Close()
	}
	if d.submissionPool != nil {
		d.submissionPool.Close()
	}
}

func newRouter(cfg config.Config, log *slog.Logger, deps *dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(httpmetrics.New(deps.registry).Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		if err := deps.submissionPool.Ping(r.Context()); err != nil {
			status["status"], status["database"] = "degraded", err.Error()
			code = http.StatusServiceUnavailable
		}
		if deps.redis != nil {
			if err := deps.redis.Health(r.Context()); err != nil {
				status["status"], status["redis"] = "degraded", err.Error()
				code = http.StatusServiceUnavailable
			}
		}
		httputil.WriteJSON(w, code, status)
	})
	r.Handle("/metrics", promhttp.HandlerFor(deps.registry, promhttp.HandlerOpts{}))

	trigger := handler.New(deps.orchestrator, log)
	r.Group(func(r chi.Router) {
		if cfg.Server.JWTSigningKey != "" {
			r.Use(middleware.RequireAuth(middleware.NewHMACValidator(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer), log))
		}
		trigger.Register(r)
	})
	return r
}
