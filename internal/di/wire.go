//go:build wireinject
// +build wireinject

package di

import (
	"OddsPulse/internal/services/scoring"
	"OddsPulse/internal/usecase"
	"OddsPulse/pkg/config"
	"OddsPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideCache,

		// Storage and messaging
		ProvideRecordStore,
		ProvideKafkaProducer,
		ProvideEventPublisher,
		ProvideKafkaConsumer,
		ProvideRecordEventsHandler,

		// Domain services
		ProvideScorerRegistry,
		wire.Bind(new(usecase.ScorerSource), new(*scoring.Registry)),
		ProvideAggregator,

		// Use cases
		ProvideRecordProcessor,
		ProvideRecommendUsecase,
		ProvideRecordService,

		// Transport
		ProvideRateLimiter,
		ProvideHTTPHandlers,
		ProvideHTTPServer,
		ProvideScheduler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
