package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"OddsPulse/internal/domain/repository"
	"OddsPulse/internal/service/maintenance"
	"OddsPulse/internal/usecase"
	"OddsPulse/pkg/cache"
	"OddsPulse/pkg/config"
	xhttp "OddsPulse/pkg/http"
	pkgkafka "OddsPulse/pkg/kafka"
	applogger "OddsPulse/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server
	store      repository.RecordStore
	cache      cache.Service
	processor  *usecase.RecordProcessor
	producer   *pkgkafka.Producer
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	scheduler  *maintenance.Scheduler
}

// Deps groups what New needs. Consumer, EventsHandler, Producer and Scheduler may be nil.
type Deps struct {
	Config        *config.Config
	Logger        *applogger.Logger
	HTTPServer    *xhttp.Server
	Store         repository.RecordStore
	Cache         cache.Service
	Processor     *usecase.RecordProcessor
	Producer      *pkgkafka.Producer
	Consumer      *pkgkafka.Consumer
	EventsHandler pkgkafka.MessageHandler
	Scheduler     *maintenance.Scheduler
}

func New(d Deps) *App {
	l := d.Logger
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		cfg:        d.Config,
		l:          l,
		httpServer: d.HTTPServer,
		store:      d.Store,
		cache:      d.Cache,
		processor:  d.Processor,
		producer:   d.Producer,
		consumer:   d.Consumer,
		kh:         d.EventsHandler,
		scheduler:  d.Scheduler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Start(); err != nil {
		_ = a.Shutdown(ctx)
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	return a.Shutdown(ctx)
}

// Start launches the consumer, the maintenance scheduler and the HTTP server without blocking.
func (a *App) Start() error {
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			a.l.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
		a.l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if a.scheduler != nil {
		a.scheduler.Start()
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("oddspulse started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("store", a.cfg.Store.Driver),
		applogger.String("backend", a.cfg.Backend.Type),
		applogger.Int("port", a.cfg.Server.Port),
	)
	return nil
}

// Shutdown gracefully stops all services. Inbound traffic stops first, the store last.
func (a *App) Shutdown(ctx context.Context) error {
	a.l.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.scheduler != nil {
		a.scheduler.Stop(shutdownCtx)
	}

	// The collector ships through the producer, so it goes before the producer closes.
	a.l.RemoveCollector()

	if a.processor != nil {
		a.processor.Close()
	}
	// With the kafka backend the processor's publisher owns the producer.
	if a.producer != nil && (a.processor == nil || a.processor.Backend() != usecase.BackendKafka) {
		if err := a.producer.Close(); err != nil {
			a.l.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.l.Warn("cache close error", applogger.Error(err))
		}
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.l.Warn("record store close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
