package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vladislavdragonenkov/fulfillment/internal/auth"
	healthcheck "github.com/vladislavdragonenkov/fulfillment/internal/health"
	"github.com/vladislavdragonenkov/fulfillment/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/fulfillment/internal/metrics"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/analytics"
	grpcsvc "github.com/vladislavdragonenkov/fulfillment/internal/service/grpc"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/idempotency"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/outbox"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/rest"
	"github.com/vladislavdragonenkov/fulfillment/internal/version"
	fulfillmentv1 "github.com/vladislavdragonenkov/fulfillment/pkg/api/fulfillment/v1"
)

const shutdownTimeout = 5 * time.Second

// Run поднимает gRPC, REST и HTTP-метрики и блокируется до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close(logger)

	var verifier *auth.Verifier
	if cfg.JWTSecret != "" {
		if verifier, err = auth.NewVerifier(cfg.JWTSecret); err != nil {
			return err
		}
	}

	fulfillmentMetrics := metrics.NewFulfillmentMetrics()
	engine := createOrchestrator(deps, cfg, fulfillmentMetrics, logger)
	executor := idempotency.NewExecutor(deps.Idempotency,
		idempotency.WithExecutorLogger(logger.WithField("component", "idempotency")))

	kafkaProducer, err := initKafkaProducer(cfg.KafkaBrokers, logger)
	if err != nil {
		kafkaProducer = nil
	}
	defer closeKafka(kafkaProducer, logger)

	workersCtx, stopWorkers := context.WithCancel(ctx)
	var workers sync.WaitGroup
	defer func() {
		stopWorkers()
		workers.Wait()
	}()

	startWorkers(workersCtx, &workers, cfg, deps, kafkaProducer, logger)

	if kafkaProducer != nil && cfg.AnalyticsGroupID != "" {
		projection := analytics.NewProjection(
			analytics.WithLogger(logger.WithField("component", "analytics")),
			analytics.WithMetrics(metrics.NewAnalyticsMetrics(prometheus.DefaultRegisterer)),
		)
		consumer, consumerErr := startAnalyticsConsumer(workersCtx, cfg, projection, kafkaProducer, logger)
		if consumerErr != nil {
			logger.WithError(consumerErr).Warn("analytics consumer disabled")
		}
		defer stopConsumer(consumer, logger)
	}

	grpcServer, healthServer := newGRPCServer(verifier, grpcsvc.NewFulfillmentService(
		engine, deps.Catalog, deps.Cart, executor, logger.WithField("layer", "grpc"),
	), logger)

	healthHandler := newHealthHandler(deps, cfg)
	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)
	defer shutdownHTTP(metricsSrv, logger)

	if verifier != nil && cfg.HTTPAddr != "" {
		handler, handlerErr := rest.NewHandler(engine, verifier,
			rest.WithLogger(logger.WithField("layer", "rest")),
			rest.WithCatalog(deps.Catalog),
			rest.WithCart(deps.Cart),
			rest.WithIdempotency(executor),
		)
		if handlerErr != nil {
			return handlerErr
		}
		restSrv := startHTTPServer(cfg.HTTPAddr, handler.Routes(), logger)
		defer shutdownHTTP(restSrv, logger)
	} else {
		logger.Info("REST API disabled: OMS_JWT_SECRET is not set")
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("gRPC сервер слушает %s", cfg.GRPCAddr)
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем gRPC сервер")
		stopGRPC(grpcServer, healthServer, logger)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

// startWorkers запускает outbox-воркер и очистку ключей идемпотентности.
func startWorkers(ctx context.Context, wg *sync.WaitGroup, cfg Config, deps *Dependencies, producer *kafka.Producer, logger *log.Entry) {
	if producer != nil {
		options := []outbox.Option{
			outbox.WithLogger(logger.WithField("component", "outbox-worker")),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
			outbox.WithMaxRetryDelay(cfg.OutboxMaxRetryDelay),
			outbox.WithMetrics(metrics.NewOutboxMetrics(prometheus.DefaultRegisterer)),
		}
		if cfg.KafkaDLQTopic != "" {
			options = append(options, outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, cfg.KafkaDLQTopic)))
		}
		worker := outbox.NewWorker(deps.Outbox, kafka.NewOutboxPublisher(producer, cfg.KafkaEventsTopic), options...)

		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Run(ctx)
		}()
	} else {
		logger.Info("outbox worker disabled: kafka brokers are not configured")
	}

	cleanup := idempotency.NewCleanupWorker(deps.Idempotency,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		cleanup.Run(ctx)
	}()
}

// newGRPCServer собирает gRPC-сервер с метриками, аутентификацией, health и reflection.
func newGRPCServer(verifier *auth.Verifier, service fulfillmentv1.FulfillmentServiceServer, logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	interceptors := []grpc.UnaryServerInterceptor{grpcMetrics.UnaryServerInterceptor()}
	if verifier != nil {
		interceptors = append(interceptors, grpcsvc.AuthUnaryInterceptor(verifier))
	}
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))

	fulfillmentv1.RegisterFulfillmentServiceServer(grpcServer, service)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)

	return grpcServer, healthServer
}

// stopGRPC останавливает сервер, принудительно по истечении shutdownTimeout.
func stopGRPC(server *grpc.Server, healthServer *health.Server, logger *log.Entry) {
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	stoppedCh := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stoppedCh)
	}()
	select {
	case <-stoppedCh:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		server.Stop()
	}
}

// newHealthHandler регистрирует проверки хранилищ и размера outbox.
func newHealthHandler(deps *Dependencies, cfg Config) *healthcheck.Handler {
	handler := healthcheck.NewHandler(version.String())
	if deps.StoragePing != nil {
		handler.RegisterChecker("storage", healthcheck.NewSimpleChecker("storage", deps.StoragePing))
	}
	if deps.IdempotencyPing != nil {
		handler.RegisterChecker("idempotency", healthcheck.NewSimpleChecker("idempotency", deps.IdempotencyPing))
	}
	if cfg.OutboxMaxPending > 0 {
		handler.RegisterChecker("outbox", healthcheck.NewOutboxBacklogChecker(deps.Outbox, cfg.OutboxMaxPending))
	}
	return handler
}

// newMetricsMux: /metrics и health-эндпоинты служебного порта.
func newMetricsMux(healthHandler *healthcheck.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	return mux
}

// startMetricsServer запускает служебный HTTP-сервер и останавливает его по ctx.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	srv := startHTTPServer(addr, newMetricsMux(healthHandler), logger)
	logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

func startHTTPServer(addr string, handler http.Handler, logger *log.Entry) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Infof("HTTP сервер слушает %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).WithField("addr", addr).Warn("http server failed")
		}
	}()
	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
