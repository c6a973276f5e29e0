package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/nursery/internal/health"
	"github.com/vladislavdragonenkov/nursery/internal/httpx"
	"github.com/vladislavdragonenkov/nursery/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/nursery/internal/metrics"
	"github.com/vladislavdragonenkov/nursery/internal/redisx"
	"github.com/vladislavdragonenkov/nursery/internal/service/cart"
	"github.com/vladislavdragonenkov/nursery/internal/service/catalog"
	idemsvc "github.com/vladislavdragonenkov/nursery/internal/service/idempotency"
	"github.com/vladislavdragonenkov/nursery/internal/service/inventory"
	"github.com/vladislavdragonenkov/nursery/internal/service/orders"
	"github.com/vladislavdragonenkov/nursery/internal/service/outbox"
	"github.com/vladislavdragonenkov/nursery/internal/service/payment"
	"github.com/vladislavdragonenkov/nursery/internal/version"
)

const (
	healthCheckTimeout = 2 * time.Second
	shutdownTimeout    = 5 * time.Second
)

// Run собирает зависимости и запускает HTTP-сервер маркетплейса
// до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	logger.WithFields(log.Fields{
		"environment": cfg.Environment,
		"production":  cfg.IsProduction(),
	}).Info("запуск nursery service")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if deps.closeFn != nil {
			if err := deps.closeFn(); err != nil {
				logger.WithError(err).Warn("failed to close storage")
			}
		}
	}()

	orderMetrics := metrics.NewOrderMetrics()

	// Kafka опционален: без брокеров outbox копится в хранилище,
	// publisher-воркер не стартует.
	kafkaProducer, kafkaErr := initKafkaProducer(cfg.KafkaBrokers, logger)
	if kafkaErr != nil {
		logger.WithError(kafkaErr).Warn("kafka недоступен, события останутся в outbox")
	}
	defer closeKafka(kafkaProducer, logger)

	// Redis тоже опционален: дедупликация вебхуков советующая,
	// корректность держится на маркерах инвентаря.
	var dedup payment.Deduper
	if cfg.RedisAddr != "" {
		redisClient, err := redisx.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.WithError(err).Warn("redis недоступен, дедупликация вебхуков отключена")
		} else {
			defer func() { _ = redisClient.Close() }()
			dedup = redisx.NewDeduper(redisClient)
			logger.WithField("addr", cfg.RedisAddr).Info("redis deduper initialized")
		}
	}

	provider := payment.NewFakeProvider(
		[]byte(cfg.WebhookSecret),
		cfg.PaymentBaseURL,
		logger.WithField("component", "payment-provider"),
	)

	engine := inventory.New(
		deps.store,
		deps.timelineRepo,
		logger.WithField("component", "inventory-engine"),
		orderMetrics,
	)
	resolver := cart.NewResolver(deps.catalogRepo, logger.WithField("component", "cart"))

	orderService := orders.NewService(orders.Config{
		Store:    deps.store,
		Orders:   deps.repo,
		Timeline: deps.timelineRepo,
		Resolver: resolver,
		Engine:   engine,
		Provider: provider,
		Logger:   logger.WithField("component", "orders"),
		Metrics:  orderMetrics,
	})
	catalogService := catalog.NewService(deps.catalogRepo, logger.WithField("component", "catalog"))
	gateway := payment.NewGateway(payment.GatewayConfig{
		Orders:      deps.repo,
		Engine:      engine,
		Secret:      []byte(cfg.WebhookSecret),
		Environment: cfg.Environment,
		Dedup:       dedup,
		Logger:      logger.WithField("component", "payment-gateway"),
		Metrics:     orderMetrics,
	})

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if deps.storageChecker != nil {
		healthHandler.RegisterChecker("storage", deps.storageChecker)
	}

	router := httpx.NewRouter(httpx.RouterDeps{
		Orders:  httpx.NewOrdersHandler(orderService, deps.idempotencyRepo, logger.WithField("component", "http-orders")),
		Catalog: httpx.NewCatalogHandler(catalogService, logger.WithField("component", "http-catalog")),
		Payment: httpx.NewPaymentHandler(gateway, logger.WithField("component", "http-payment")),
		Health:  healthHandler,
		Ready:   healthHandler.ReadinessHandler,
		Logger:  logger.WithField("component", "http"),
	})

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	// Фоновые воркеры со своим стоп-контекстом, чтобы дождаться их на shutdown.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	var outboxDone chan struct{}
	if kafkaProducer != nil {
		publisher := kafka.NewOutboxPublisher(kafkaProducer, cfg.KafkaTopic)
		dlqPublisher := kafka.NewOutboxPublisher(kafkaProducer, kafka.TopicDeadLetterQueue)
		worker := outbox.NewWorker(deps.outboxRepo, publisher,
			outbox.WithLogger(logger.WithField("component", "outbox-worker")),
			outbox.WithDLQPublisher(dlqPublisher),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithMaxPending(cfg.OutboxMaxPending),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		outboxDone = make(chan struct{})
		go func() {
			defer close(outboxDone)
			worker.Run(workerCtx)
		}()
	} else {
		logger.Info("outbox worker отключён: kafka не настроен")
	}

	cleanupWorker := idemsvc.NewCleanupWorker(deps.idempotencyRepo,
		idemsvc.WithLogger(logger.WithField("component", "idempotency-cleanup")),
		idemsvc.WithInterval(cfg.IdempotencyCleanupInterval),
		idemsvc.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
	cleanupDone := make(chan struct{})
	go func() {
		defer close(cleanupDone)
		cleanupWorker.Run(workerCtx)
	}()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP сервер слушает %s", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownHTTP(srv, logger)
		shutdownHTTP(metricsSrv, logger)
		shutdownWorkers(stopWorkers, logger, outboxDone, cleanupDone)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		shutdownWorkers(stopWorkers, logger, outboxDone, cleanupDone)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startMetricsServer запускает служебный HTTP-сервер: /metrics для Prometheus
// и health-эндпоинты для оркестратора.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
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

// shutdownWorkers останавливает фоновые воркеры и ждёт их завершения.
func shutdownWorkers(cancel context.CancelFunc, logger *log.Entry, done ...chan struct{}) {
	if cancel != nil {
		cancel()
	}
	deadline := time.After(shutdownTimeout)
	for _, ch := range done {
		if ch == nil {
			continue
		}
		select {
		case <-ch:
		case <-deadline:
			logger.Warn("фоновые воркеры не остановились за таймаут")
			return
		}
	}
}
