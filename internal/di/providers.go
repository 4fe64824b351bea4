package di

import (
	"context"
	"fmt"
	"time"

	"OddsPulse/internal/domain/repository"
	"OddsPulse/internal/domain/service"
	"OddsPulse/internal/handler/api"
	internalrepo "OddsPulse/internal/repository"
	"OddsPulse/internal/service/maintenance"
	"OddsPulse/internal/service/ratelimit"
	"OddsPulse/internal/services/scoring"
	"OddsPulse/internal/services/stats"
	"OddsPulse/internal/usecase"
	"OddsPulse/pkg/cache"
	pkgch "OddsPulse/pkg/clickhouse"
	"OddsPulse/pkg/config"
	xhttp "OddsPulse/pkg/http"
	pkgkafka "OddsPulse/pkg/kafka"
	applogger "OddsPulse/pkg/logger"
	"OddsPulse/pkg/metrics"
	"OddsPulse/pkg/server"
)

const (
	serviceName  = "oddspulse"
	recordsTable = "records"
	wsPing       = 30 * time.Second
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder, or a no-op one when metrics are off.
func ProvideMetrics(cfg *config.Config) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New(nil)
}

// ProvideCache picks Redis (optionally fronted by an in-process LRU) or a memory-only cache.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize)), nil
	}

	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.PoolSize/2, 5*time.Second),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	l.Info("redis cache connected", applogger.String("addr", cfg.Redis.Addr), applogger.Bool("layered", cfg.Redis.Layered))

	if cfg.Redis.Layered {
		return cache.NewLayeredCache(rc,
			cache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize),
			cache.WithLayeredL1TTL(time.Minute),
		), nil
	}
	return rc, nil
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(cfg.ClickHouse.MaxOpenConns, cfg.ClickHouse.MaxIdleConns),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideRecordStore opens the configured store driver and ensures its schema.
func ProvideRecordStore(cfg *config.Config, l *applogger.Logger) (repository.RecordStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var store repository.RecordStore
	switch cfg.Store.Driver {
	case "memory":
		store = internalrepo.NewMemoryRecordStore()
	case "sqlite":
		s, err := internalrepo.NewSQLiteRecordStore(ctx, cfg.Store.SQLitePath, l)
		if err != nil {
			return nil, fmt.Errorf("sqlite store: %w", err)
		}
		store = s
	case "clickhouse":
		client, err := ProvideClickHouseClient(cfg)
		if err != nil {
			return nil, err
		}
		store = internalrepo.NewClickHouseRecordStore(client, recordsTable, l)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("%s store schema: %w", cfg.Store.Driver, err)
	}
	l.Info("record store ready", applogger.String("driver", cfg.Store.Driver))
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer when the backend or the log collector needs one.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Backend.Type != usecase.BackendKafka && !cfg.Log.Collector.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventPublisher returns the Kafka publisher for the kafka backend and nil otherwise.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.EventPublisher {
	if cfg.Backend.Type != usecase.BackendKafka || producer == nil {
		return nil
	}
	return internalrepo.NewKafkaRecordPublisher(producer, cfg.Kafka.RecordsTopic)
}

// ProvideKafkaConsumer creates the records consumer for the kafka backend and nil otherwise.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Backend.Type != usecase.BackendKafka {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerStartOffset(cfg.Kafka.Consumer.StartOffset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.TraceHook{},
		pkgkafka.LoggingHook{Logger: l, Slow: cfg.Server.SlowRequest},
	))
	return consumer, nil
}

// ProvideRecordEventsHandler applies consumed record events to the store.
func ProvideRecordEventsHandler(cfg *config.Config, store repository.RecordStore, m repository.Metrics, l *applogger.Logger) *usecase.RecordEventsHandler {
	return usecase.NewRecordEventsHandler(cfg.Kafka.RecordsTopic, store, m, l)
}

// ProvideScorerRegistry registers the asian and size scorers.
func ProvideScorerRegistry() *scoring.Registry {
	return scoring.NewRegistry()
}

func ProvideAggregator() service.WinRateAggregator {
	return stats.NewAggregator()
}

func ProvideRecordProcessor(pub repository.EventPublisher, store repository.RecordStore, m repository.Metrics, cfg *config.Config) *usecase.RecordProcessor {
	return usecase.NewRecordProcessor(pub, store, m, cfg.Backend.Type)
}

func ProvideRecommendUsecase(scorers usecase.ScorerSource, c cache.Service, m repository.Metrics, cfg *config.Config, l *applogger.Logger) *usecase.RecommendUsecase {
	return usecase.NewRecommendUsecase(scorers, c, cfg.Cache.RecommendTTL, m, l)
}

func ProvideRecordService(
	scorers usecase.ScorerSource,
	agg service.WinRateAggregator,
	store repository.RecordStore,
	processor *usecase.RecordProcessor,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.RecordService {
	return usecase.NewRecordService(scorers, agg, store, processor, m, l)
}

// ProvideRateLimiter returns nil when rate limiting is disabled.
func ProvideRateLimiter(c cache.Service, cfg *config.Config, l *applogger.Logger) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(c, cfg.RateLimit.Requests, cfg.RateLimit.Window, ratelimit.WithLogger(l))
}

// ProvideHTTPHandlers collects every route group served by the HTTP server.
func ProvideHTTPHandlers(
	l *applogger.Logger,
	recommend *usecase.RecommendUsecase,
	records *usecase.RecordService,
	limiter *ratelimit.Limiter,
) []xhttp.Handler {
	return []xhttp.Handler{
		api.NewRecordsEchoHandler(l, recommend, records, limiter),
		api.NewScoreStreamHandler(l, recommend, wsPing),
	}
}

func ProvideHTTPServer(cfg *config.Config, handlers []xhttp.Handler, l *applogger.Logger) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(handlers,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(len(cfg.Server.CORSOrigins) > 0, cfg.Server.CORSOrigins...),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithSlowRequestThreshold(cfg.Server.SlowRequest),
		xhttp.WithLogger(l),
	)
}

// ProvideScheduler returns nil when maintenance is disabled.
func ProvideScheduler(cfg *config.Config, store repository.RecordStore, m repository.Metrics, l *applogger.Logger) (*maintenance.Scheduler, error) {
	if !cfg.Maintenance.Enabled {
		return nil, nil
	}
	s := maintenance.NewScheduler(store, m, cfg.Store.Timeout, l)
	if err := s.Register(cfg.Maintenance.CompactCron); err != nil {
		return nil, fmt.Errorf("maintenance scheduler: %w", err)
	}
	return s, nil
}

// ProvideApp assembles the application and attaches the log collector when enabled.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	store repository.RecordStore,
	c cache.Service,
	processor *usecase.RecordProcessor,
	producer *pkgkafka.Producer,
	consumer *pkgkafka.Consumer,
	kh *usecase.RecordEventsHandler,
	scheduler *maintenance.Scheduler,
) *server.App {
	if cfg.Log.Collector.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Log.Collector.Interval,
			CountThreshold: cfg.Log.Collector.Threshold,
			Topic:          cfg.Log.Collector.Topic,
			Service:        serviceName,
			Publisher:      producer,
		})
	}

	d := server.Deps{
		Config:     cfg,
		Logger:     l,
		HTTPServer: httpServer,
		Store:      store,
		Cache:      c,
		Processor:  processor,
		Producer:   producer,
		Scheduler:  scheduler,
	}
	if consumer != nil {
		d.Consumer = consumer
		d.EventsHandler = kh
	}
	return server.New(d)
}
